// Copyright 2025 Certen Protocol

package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MetricsAddr != "0.0.0.0:9090" {
		t.Fatalf("unexpected default MetricsAddr: %s", cfg.MetricsAddr)
	}
	if cfg.LimitsProfile != "default" {
		t.Fatalf("unexpected default LimitsProfile: %s", cfg.LimitsProfile)
	}
	if cfg.AuditEnabled {
		t.Fatal("expected audit disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("AUDIT_ENABLED", "true")
	t.Setenv("FIREBASE_PROJECT_ID", "biscuit-prod")
	t.Setenv("REVOCATION_DATABASE_URL", "postgres://user@host/db?sslmode=require")
	t.Setenv("LIMITS_PROFILE", "strict")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.AuditEnabled || cfg.FirebaseProjectID != "biscuit-prod" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.LimitsProfile != "strict" {
		t.Fatalf("expected overridden LimitsProfile, got %s", cfg.LimitsProfile)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to validate: %v", err)
	}
}

func TestValidateRejectsAuditWithoutProjectID(t *testing.T) {
	cfg := &Config{AuditEnabled: true}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when audit is enabled without a project id")
	}
}

func TestValidateRejectsInsecureRevocationDSN(t *testing.T) {
	cfg := &Config{RevocationDatabaseURL: "postgres://user@host/db?sslmode=disable"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for sslmode=disable")
	}
}
