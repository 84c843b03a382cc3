// Copyright 2025 Certen Protocol

package authorizer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/certen/biscuit/pkg/datalog"
)

func writeLimitsFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "limits.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write limits file: %v", err)
	}
	return path
}

func TestLoadLimitsFileResolvesNamedProfile(t *testing.T) {
	path := writeLimitsFile(t, `
profiles:
  strict:
    max_facts: 50
    max_iterations: 10
    max_duration: 250ms
  relaxed:
    max_facts: 5000
`)
	lf, err := LoadLimitsFile(path)
	if err != nil {
		t.Fatalf("load limits file: %v", err)
	}

	strict, err := lf.RunLimits("strict")
	if err != nil {
		t.Fatalf("resolve strict: %v", err)
	}
	if strict.MaxFacts != 50 || strict.MaxIterations != 10 || strict.MaxDuration != 250*time.Millisecond {
		t.Fatalf("unexpected strict limits: %+v", strict)
	}

	relaxed, err := lf.RunLimits("relaxed")
	if err != nil {
		t.Fatalf("resolve relaxed: %v", err)
	}
	defaults := datalog.DefaultRunLimits()
	if relaxed.MaxFacts != 5000 {
		t.Fatalf("expected overridden MaxFacts, got %d", relaxed.MaxFacts)
	}
	if relaxed.MaxIterations != defaults.MaxIterations || relaxed.MaxDuration != defaults.MaxDuration {
		t.Fatalf("expected unset fields to fall back to defaults, got %+v", relaxed)
	}
}

func TestLoadLimitsFileUnknownProfile(t *testing.T) {
	path := writeLimitsFile(t, "profiles:\n  default:\n    max_facts: 100\n")
	lf, err := LoadLimitsFile(path)
	if err != nil {
		t.Fatalf("load limits file: %v", err)
	}
	if _, err := lf.RunLimits("missing"); err == nil {
		t.Fatal("expected error for unknown profile name")
	}
}

func TestLoadLimitsFileMissingPath(t *testing.T) {
	if _, err := LoadLimitsFile(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadLimitsFileInvalidDuration(t *testing.T) {
	path := writeLimitsFile(t, "profiles:\n  bad:\n    max_duration: not-a-duration\n")
	lf, err := LoadLimitsFile(path)
	if err != nil {
		t.Fatalf("load limits file: %v", err)
	}
	if _, err := lf.RunLimits("bad"); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
