// Copyright 2025 Certen Protocol
//
// Package metrics exposes Prometheus collectors for authorizer
// decisions. It implements authorizer.Observer so it can be attached
// to an Authorizer with authorizer.WithObserver without the decision
// algorithm itself depending on Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/certen/biscuit/pkg/authorizer"
)

// Collector records authorizer outcomes as Prometheus metrics. The
// zero value is not usable; construct with NewCollector.
type Collector struct {
	decisions   *prometheus.CounterVec
	duration    prometheus.Histogram
	factCount   prometheus.Histogram
	failedCheck *prometheus.CounterVec
}

// NewCollector builds a Collector and registers its metrics with reg.
// Pass prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer to expose metrics on the process's
// default /metrics handler.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "biscuit",
			Subsystem: "authorizer",
			Name:      "decisions_total",
			Help:      "Total number of Authorize() calls by decision outcome.",
		}, []string{"decision"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "biscuit",
			Subsystem: "authorizer",
			Name:      "decision_duration_seconds",
			Help:      "Time spent in Authorize(), including saturation.",
			Buckets:   prometheus.DefBuckets,
		}),
		factCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "biscuit",
			Subsystem: "authorizer",
			Name:      "world_fact_count",
			Help:      "Number of distinct facts in the world after saturation.",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000},
		}),
		failedCheck: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "biscuit",
			Subsystem: "authorizer",
			Name:      "failed_checks_total",
			Help:      "Total number of individual check failures, by scope.",
		}, []string{"scope"}),
	}
	for _, collector := range []prometheus.Collector{c.decisions, c.duration, c.factCount, c.failedCheck} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Observe implements authorizer.Observer.
func (c *Collector) Observe(o authorizer.Outcome) {
	c.decisions.WithLabelValues(decisionLabel(o.Decision)).Inc()
	c.duration.Observe(o.Duration.Seconds())
	c.factCount.Observe(float64(o.FactCount))
	for _, fc := range o.FailedChecks {
		if fc.BlockIndex < 0 {
			c.failedCheck.WithLabelValues("authorizer").Inc()
		} else {
			c.failedCheck.WithLabelValues("block").Inc()
		}
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
