// Copyright 2025 Certen Protocol

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/certen/biscuit/pkg/authorizer"
)

func TestDisabledSinkIsNoOp(t *testing.T) {
	sink, err := NewSink(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	sink.Observe(authorizer.Outcome{
		RunID:    uuid.New(),
		Decision: authorizer.DecisionAllow,
		Duration: time.Millisecond,
	})
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestEnabledSinkRequiresProjectID(t *testing.T) {
	if _, err := NewSink(context.Background(), Config{Enabled: true}); err == nil {
		t.Fatal("expected an error when enabled without a project id")
	}
}
