// Copyright 2025 Certen Protocol
//
// Package audit streams authorizer decisions to Firestore for a live
// audit trail, mirroring pkg/firestore's AuditTrailService. It
// implements authorizer.Observer so it can be attached with
// authorizer.WithObserver without the decision algorithm depending on
// Firestore directly.
package audit

import (
	"context"
	"log"
	"os"
	"time"

	gcpfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/authorizer"
)

// Config configures a Sink. Enabled defaults to false so authorizer
// runs never block on Firestore unless a deployment opts in.
type Config struct {
	ProjectID       string
	CredentialsFile string
	Collection      string
	Enabled         bool
	Logger          *log.Logger
}

// DefaultConfig reads Config from environment variables, the way
// pkg/firestore.DefaultConfig does.
func DefaultConfig() Config {
	return Config{
		ProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		Collection:      envOr("BISCUIT_AUDIT_COLLECTION", "authorizeDecisions"),
		Enabled:         os.Getenv("BISCUIT_AUDIT_ENABLED") == "true",
		Logger:          log.New(os.Stdout, "[audit] ", log.LstdFlags),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Sink writes authorizer.Outcome values to Firestore. A disabled or
// zero-value Sink is a safe no-op, matching pkg/firestore.Client's
// "Enabled: false" no-op mode.
type Sink struct {
	client     *gcpfirestore.Client
	app        *firebase.App
	collection string
	enabled    bool
	logger     *log.Logger
}

// NewSink builds a Sink. If cfg.Enabled is false, it returns a working
// no-op Sink without contacting Firestore at all.
func NewSink(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[audit] ", log.LstdFlags)
	}
	if cfg.Collection == "" {
		cfg.Collection = "authorizeDecisions"
	}
	s := &Sink{collection: cfg.Collection, enabled: cfg.Enabled, logger: cfg.Logger}
	if !cfg.Enabled {
		cfg.Logger.Println("audit sink disabled - running in no-op mode")
		return s, nil
	}
	if cfg.ProjectID == "" {
		return nil, errs.New(errs.KindInternal, "FIREBASE_PROJECT_ID is required when the audit sink is enabled")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "initialize firebase app")
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "create firestore client")
	}
	s.app = app
	s.client = client
	return s, nil
}

// Close releases the underlying Firestore client, if any.
func (s *Sink) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// decisionEntry is the Firestore document shape for one Authorize()
// outcome.
type decisionEntry struct {
	RunID         string    `firestore:"runId"`
	Decision      string    `firestore:"decision"`
	MatchedPolicy *int      `firestore:"matchedPolicyIndex,omitempty"`
	FailedChecks  int       `firestore:"failedCheckCount"`
	FactCount     int       `firestore:"factCount"`
	DurationMs    int64     `firestore:"durationMs"`
	RecordedAt    time.Time `firestore:"recordedAt"`
	Error         string    `firestore:"error,omitempty"`
}

// Observe implements authorizer.Observer. A disabled sink only logs;
// an enabled sink writes one document per run, best-effort (a
// Firestore write failure is logged, never propagated back into the
// authorizer's own call stack).
func (s *Sink) Observe(o authorizer.Outcome) {
	entry := decisionEntry{
		RunID:        o.RunID.String(),
		Decision:     decisionLabel(o.Decision),
		FailedChecks: len(o.FailedChecks),
		FactCount:    o.FactCount,
		DurationMs:   o.Duration.Milliseconds(),
		RecordedAt:   time.Now(),
	}
	if o.MatchedPolicy != nil {
		idx := o.MatchedPolicy.Index
		entry.MatchedPolicy = &idx
	}
	if o.Err != nil {
		entry.Error = o.Err.Error()
	}

	if !s.enabled || s.client == nil {
		s.logger.Printf("run=%s decision=%s failed_checks=%d (audit sink disabled, not persisted)",
			entry.RunID, entry.Decision, entry.FailedChecks)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.client.Collection(s.collection).Doc(entry.RunID).Set(ctx, entry); err != nil {
		s.logger.Printf("failed to persist audit entry run=%s: %v", entry.RunID, err)
	}
}

func decisionLabel(d authorizer.Decision) string {
	switch d {
	case authorizer.DecisionAllow:
		return "allow"
	case authorizer.DecisionDeny:
		return "deny"
	case authorizer.DecisionNoMatch:
		return "no_match"
	default:
		return "error"
	}
}
