// Copyright 2025 Certen Protocol
//
// Package authorizer implements the authorization decision algorithm
// (C5): transcribing a verified token's blocks into a shared Datalog
// world alongside request-local facts, rules, checks and policies, then
// evaluating the ordered check/policy algorithm described by the
// authorization model.
package authorizer

import (
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/google/uuid"

	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/datalog"
	"github.com/certen/biscuit/pkg/symbol"
	"github.com/certen/biscuit/pkg/term"
)

// Outcome describes one completed Authorize() run, for an optional
// Observer to record (metrics, audit trail) without the decision
// algorithm itself depending on a particular backend.
type Outcome struct {
	RunID         uuid.UUID
	Decision      Decision
	MatchedPolicy *errs.MatchedPolicy
	FailedChecks  []errs.FailedCheck
	FactCount     int
	Duration      time.Duration
	Err           error
}

// Decision classifies an Outcome at a glance.
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionDeny
	DecisionNoMatch
	DecisionError
)

// Observer receives the Outcome of every Authorize() call. pkg/metrics
// and pkg/audit each implement Observer against their own backend;
// Authorizer itself never imports Prometheus or Firestore directly.
type Observer interface {
	Observe(Outcome)
}

// Authorizer holds the accumulated world for one authorization run: an
// optional verified token's transcribed facts/rules, plus
// authorizer-local facts, rules, checks and an ordered policy list.
type Authorizer struct {
	symbols *symbol.SymbolTable
	keys    *symbol.KeyTable
	world   *datalog.World
	limits  datalog.RunLimits

	checks      []datalog.Check
	blockChecks []blockCheck
	policies    []datalog.Policy

	blockCount int
	keyIndex   datalog.KeyBlockIndex

	saturated bool
	observer  Observer
	logger    cmtlog.Logger
}

// Option configures an Authorizer at construction time.
type Option func(*Authorizer)

// WithObserver attaches obs; Authorize calls obs.Observe once, after
// the decision is made, with the run's Outcome.
func WithObserver(obs Observer) Option {
	return func(a *Authorizer) { a.observer = obs }
}

// WithLogger attaches l, the same structured logger the teacher wires
// through CometBFT (cmtlog.Logger), for Authorize()'s one decision log
// line per run. Defaults to a no-op logger.
func WithLogger(l cmtlog.Logger) Option {
	return func(a *Authorizer) { a.logger = l }
}

// blockCheck pairs a transcribed block check with the index of the
// block that contributed it, so a failure can be reported as
// FailedBlock(blockIndex, checkIndex) rather than FailedAuthorizer.
type blockCheck struct {
	blockIndex int
	check      datalog.Check
}

// New returns an empty Authorizer with no token loaded.
func New(limits datalog.RunLimits, opts ...Option) *Authorizer {
	symbols := symbol.NewTable()
	a := &Authorizer{
		symbols:  symbols,
		keys:     symbol.NewKeyTable(),
		world:    datalog.NewWorld(symbols),
		limits:   limits,
		keyIndex: datalog.KeyBlockIndex{},
		logger:   cmtlog.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddFact adds a ground predicate tagged with the authorizer's own
// pseudo-origin.
func (a *Authorizer) AddFact(pred term.Predicate) error {
	if !pred.IsGround() {
		return errs.New(errs.KindInvalidAmbientFact, "authorizer fact must be ground")
	}
	a.world.AddFact(datalog.Fact{Predicate: pred, Origin: datalog.NewOrigin(datalog.AuthorizerOrigin)})
	a.saturated = false
	return nil
}

// AddRule registers rule as an authorizer-local rule.
func (a *Authorizer) AddRule(rule datalog.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	a.world.AddRule(rule, datalog.AuthorizerOrigin, a.keyIndex)
	a.saturated = false
	return nil
}

// AddCheck registers an authorizer-local check, evaluated in
// insertion order during Authorize.
func (a *Authorizer) AddCheck(check datalog.Check) {
	a.checks = append(a.checks, check)
}

// AddPolicy appends policy to the ordered policy list.
func (a *Authorizer) AddPolicy(policy datalog.Policy) {
	a.policies = append(a.policies, policy)
}

// Symbols returns the authorizer's merged symbol table (read-only after
// Authorize returns, per the concurrency model).
func (a *Authorizer) Symbols() *symbol.SymbolTable { return a.symbols }

// KeyID returns the merged key table's id for key, so an
// authorizer-local check or query can build a ScopePublicKey(key)
// scope referencing a third-party signer introduced by a loaded
// token's blocks.
func (a *Authorizer) KeyID(key symbol.Key) (symbol.ID, bool) {
	return a.keys.IndexOf(key)
}

// trustedOrigins resolves the trust set for a check, query or policy
// owned by ownBlockIndex (datalog.AuthorizerOrigin for
// authorizer-local checks/policies/queries, the contributing block's
// own index for a block check), by delegating to the same
// scope/origin algebra rules use (§4.3's TrustedOrigins, reused
// verbatim rather than re-derived).
func (a *Authorizer) trustedOrigins(scopes []datalog.Scope, ownBlockIndex datalog.BlockIndex) datalog.Origin {
	return datalog.TrustedOrigins(scopes, ownBlockIndex, a.keyIndex)
}

func deadlineExceeded(deadline time.Time) bool {
	return !deadline.IsZero() && time.Now().After(deadline)
}
