// Copyright 2025 Certen Protocol
//
// Optional YAML loading of named RunLimits profiles, so operators can
// check in a limits file instead of hand-writing RunLimits{} literals
// at every call site. The in-process literal remains the primary API;
// this is config plumbing around it, the same role
// pkg/config/anchor_config.go's YAML loader plays for anchor settings.
package authorizer

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/certen/biscuit/pkg/datalog"
)

// limitsProfile is the YAML shape of one named RunLimits entry.
type limitsProfile struct {
	MaxFacts      int    `yaml:"max_facts"`
	MaxIterations int    `yaml:"max_iterations"`
	MaxDuration   string `yaml:"max_duration"`
}

// LimitsFile is the YAML document shape: a set of named profiles an
// operator can reference by name (e.g. "default", "strict").
type LimitsFile struct {
	Profiles map[string]limitsProfile `yaml:"profiles"`
}

// LoadLimitsFile parses a YAML file of named RunLimits profiles.
func LoadLimitsFile(path string) (*LimitsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("authorizer: read limits file %s: %w", path, err)
	}
	var lf LimitsFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("authorizer: parse limits file %s: %w", path, err)
	}
	return &lf, nil
}

// RunLimits resolves the named profile into a datalog.RunLimits,
// falling back to datalog.DefaultRunLimits for any field left at its
// YAML zero value.
func (lf *LimitsFile) RunLimits(name string) (datalog.RunLimits, error) {
	profile, ok := lf.Profiles[name]
	if !ok {
		return datalog.RunLimits{}, fmt.Errorf("authorizer: no limits profile named %q", name)
	}

	limits := datalog.DefaultRunLimits()
	if profile.MaxFacts > 0 {
		limits.MaxFacts = profile.MaxFacts
	}
	if profile.MaxIterations > 0 {
		limits.MaxIterations = profile.MaxIterations
	}
	if profile.MaxDuration != "" {
		d, err := time.ParseDuration(profile.MaxDuration)
		if err != nil {
			return datalog.RunLimits{}, fmt.Errorf("authorizer: profile %q max_duration: %w", name, err)
		}
		limits.MaxDuration = d
	}
	return limits, nil
}
