// Copyright 2025 Certen Protocol

package authorizer

import (
	"time"

	"github.com/google/uuid"

	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/datalog"
)

// Result is the outcome of a successful Authorize() call: the index of
// the matching Allow policy, plus a RunID correlating this decision
// with whatever an attached Observer records for it.
type Result struct {
	PolicyIndex int
	RunID       uuid.UUID
}

// Authorize runs the decision algorithm (§4.5): saturate, evaluate
// every authorizer check then every block check (continuing past
// failures), then test policies in order and apply first-match
// semantics. Returns the matching Allow policy's index on success. If
// an Observer is attached (WithObserver), it is notified of the
// Outcome exactly once, on every return path.
func (a *Authorizer) Authorize() (Result, error) {
	runID := uuid.New()
	start := time.Now()

	result, outcome := a.authorize(runID)
	outcome.RunID = runID
	outcome.Duration = time.Since(start)
	outcome.FactCount = a.world.FactCount()

	a.logger.Info("authorize run complete",
		"run_id", runID.String(),
		"decision", decisionString(outcome.Decision),
		"failed_checks", len(outcome.FailedChecks),
		"fact_count", outcome.FactCount,
		"duration", outcome.Duration.String(),
	)

	if a.observer != nil {
		a.observer.Observe(outcome)
	}
	if outcome.Err != nil {
		return Result{}, outcome.Err
	}
	return result, nil
}

func decisionString(d Decision) string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	case DecisionNoMatch:
		return "no_match"
	default:
		return "error"
	}
}

func (a *Authorizer) authorize(runID uuid.UUID) (Result, Outcome) {
	var deadline time.Time
	if a.limits.MaxDuration > 0 {
		deadline = time.Now().Add(a.limits.MaxDuration)
	}

	if err := a.world.Saturate(a.limits); err != nil {
		return Result{}, Outcome{Decision: DecisionError, Err: err}
	}
	a.saturated = true

	var failed []errs.FailedCheck

	for i, check := range a.checks {
		if deadlineExceeded(deadline) {
			err := errs.New(errs.KindTimeout, "authorization deadline exceeded")
			return Result{}, Outcome{Decision: DecisionError, Err: err}
		}
		ok, err := a.evaluateCheck(check, datalog.AuthorizerOrigin)
		if err != nil {
			return Result{}, Outcome{Decision: DecisionError, Err: err}
		}
		if !ok {
			failed = append(failed, errs.FailedCheck{BlockIndex: -1, CheckIndex: i})
		}
	}

	perBlockCheckIndex := map[int]int{}
	for _, bc := range a.blockChecks {
		if deadlineExceeded(deadline) {
			err := errs.New(errs.KindTimeout, "authorization deadline exceeded")
			return Result{}, Outcome{Decision: DecisionError, Err: err}
		}
		ok, err := a.evaluateCheck(bc.check, datalog.BlockIndex(bc.blockIndex))
		if err != nil {
			return Result{}, Outcome{Decision: DecisionError, Err: err}
		}
		idx := perBlockCheckIndex[bc.blockIndex]
		perBlockCheckIndex[bc.blockIndex] = idx + 1
		if !ok {
			failed = append(failed, errs.FailedCheck{BlockIndex: bc.blockIndex, CheckIndex: idx})
		}
	}

	for i, policy := range a.policies {
		if deadlineExceeded(deadline) {
			err := errs.New(errs.KindTimeout, "authorization deadline exceeded")
			return Result{}, Outcome{Decision: DecisionError, Err: err}
		}
		matched, err := a.policyMatches(policy, datalog.AuthorizerOrigin)
		if err != nil {
			// policy-evaluation errors are equivalent to policy-non-match (§7)
			continue
		}
		if !matched {
			continue
		}
		if policy.Kind == datalog.PolicyDeny {
			mp := &errs.MatchedPolicy{Kind: errs.PolicyDeny, Index: i}
			err := errs.Unauthorized(mp, failed)
			return Result{}, Outcome{Decision: DecisionDeny, MatchedPolicy: mp, FailedChecks: failed, Err: err}
		}
		mp := &errs.MatchedPolicy{Kind: errs.PolicyAllow, Index: i}
		if len(failed) > 0 {
			err := errs.Unauthorized(mp, failed)
			return Result{}, Outcome{Decision: DecisionDeny, MatchedPolicy: mp, FailedChecks: failed, Err: err}
		}
		return Result{PolicyIndex: i, RunID: runID}, Outcome{Decision: DecisionAllow, MatchedPolicy: mp}
	}

	err := errs.NoMatchingPolicy(failed)
	return Result{}, Outcome{Decision: DecisionNoMatch, FailedChecks: failed, Err: err}
}

// evaluateCheck dispatches per check kind (§3). ownBlockIndex is
// datalog.AuthorizerOrigin for authorizer-local checks, or the
// contributing block's own index for a block check — each query's
// scopes are resolved relative to that origin (§4.3).
func (a *Authorizer) evaluateCheck(check datalog.Check, ownBlockIndex datalog.BlockIndex) (bool, error) {
	switch check.Kind {
	case datalog.CheckOne:
		for _, q := range check.Queries {
			ok, err := a.world.FindMatch(q, a.trustedOrigins(q.Scopes, ownBlockIndex))
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case datalog.CheckAll:
		for _, q := range check.Queries {
			ok, err := a.world.CheckMatchAll(q, a.trustedOrigins(q.Scopes, ownBlockIndex))
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case datalog.CheckReject:
		for _, q := range check.Queries {
			ok, err := a.world.FindMatch(q, a.trustedOrigins(q.Scopes, ownBlockIndex))
			if err != nil {
				return false, err
			}
			if ok {
				return false, nil
			}
		}
		return true, nil
	default:
		return false, errs.New(errs.KindInvalidBlockRule, "unknown check kind %d", check.Kind)
	}
}

// policyMatches evaluates policy the same way as a One-kind check: the
// disjunction of its queries, scoped relative to ownBlockIndex.
func (a *Authorizer) policyMatches(p datalog.Policy, ownBlockIndex datalog.BlockIndex) (bool, error) {
	for _, q := range p.Queries {
		ok, err := a.world.FindMatch(q, a.trustedOrigins(q.Scopes, ownBlockIndex))
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
