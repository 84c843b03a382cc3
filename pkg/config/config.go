// Copyright 2025 Certen Protocol

// Package config loads the optional ambient services (revocation store,
// audit sink, metrics server) from environment variables. The core
// Datalog/crypto/authorizer packages take no config — they are pure
// libraries — this struct only configures the IO shell built around them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the environment-driven settings for the optional services
// a deployment wires around the authorizer: the revocation store, the
// audit sink, and the metrics listener.
type Config struct {
	// Revocation store (pkg/revocation)
	RevocationKVDir       string // directory for the embedded KV cache, empty disables it
	RevocationDatabaseURL string // Postgres DSN for the durable store, empty disables it
	RevocationMaxOpenConns int
	RevocationMaxIdleConns int
	RevocationConnMaxLife  time.Duration

	// Audit sink (pkg/audit)
	AuditEnabled        bool
	FirebaseProjectID   string
	FirebaseCredentials string
	AuditCollection     string

	// Metrics server (pkg/metrics)
	MetricsEnabled bool
	MetricsAddr    string

	// Authorizer
	LimitsFilePath string // optional YAML RunLimits profile file, empty uses DefaultRunLimits
	LimitsProfile  string

	LogLevel string
}

// Load reads configuration from environment variables. Every field has a
// safe default; nothing here is required the way a production deployment's
// root keys are — those are supplied to biscuitcrypto directly by the
// caller, never through this struct.
func Load() (*Config, error) {
	cfg := &Config{
		RevocationKVDir:        getEnv("REVOCATION_KV_DIR", ""),
		RevocationDatabaseURL:  getEnv("REVOCATION_DATABASE_URL", ""),
		RevocationMaxOpenConns: getEnvInt("REVOCATION_DB_MAX_OPEN_CONNS", 10),
		RevocationMaxIdleConns: getEnvInt("REVOCATION_DB_MAX_IDLE_CONNS", 2),
		RevocationConnMaxLife:  getEnvDuration("REVOCATION_DB_CONN_MAX_LIFETIME", time.Hour),

		AuditEnabled:        getEnvBool("AUDIT_ENABLED", false),
		FirebaseProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		AuditCollection:     getEnv("AUDIT_COLLECTION", "authorizeDecisions"),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		MetricsAddr:    getEnv("METRICS_ADDR", "0.0.0.0:9090"),

		LimitsFilePath: getEnv("LIMITS_FILE_PATH", ""),
		LimitsProfile:  getEnv("LIMITS_PROFILE", "default"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// Validate checks settings that must be internally consistent once set —
// unlike the teacher's Validate, nothing here is required by default since
// every ambient service is optional.
func (c *Config) Validate() error {
	var errs []string

	if c.AuditEnabled && c.FirebaseProjectID == "" {
		errs = append(errs, "FIREBASE_PROJECT_ID is required when AUDIT_ENABLED is true")
	}
	if c.RevocationDatabaseURL != "" && strings.Contains(c.RevocationDatabaseURL, "sslmode=disable") {
		errs = append(errs, "REVOCATION_DATABASE_URL must not disable TLS (sslmode=disable) outside local development")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
