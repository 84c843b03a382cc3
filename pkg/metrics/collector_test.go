// Copyright 2025 Certen Protocol

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/certen/biscuit/pkg/authorizer"
)

func TestCollectorRecordsDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	c.Observe(authorizer.Outcome{
		Decision:  authorizer.DecisionAllow,
		Duration:  5 * time.Millisecond,
		FactCount: 3,
	})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var found bool
	for _, f := range families {
		if f.GetName() != "biscuit_authorizer_decisions_total" {
			continue
		}
		for _, m := range f.Metric {
			if counterValue(m) == 1 {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("expected decisions_total counter to be incremented")
	}
}

func counterValue(m *dto.Metric) float64 {
	if m.Counter == nil {
		return 0
	}
	return m.Counter.GetValue()
}
