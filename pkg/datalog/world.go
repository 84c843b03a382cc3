// Copyright 2025 Certen Protocol
//
// World is the naive bottom-up Datalog evaluator (C3): it holds a fact
// store and a rule set, and saturates the fact store to a fixpoint
// under bounded resource limits (§4.3, §5).
package datalog

import (
	"time"

	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/symbol"
	"github.com/certen/biscuit/pkg/term"
)

// RunLimits bounds every Datalog evaluation (§4.3, §5, §8).
type RunLimits struct {
	MaxFacts      int
	MaxIterations int
	MaxDuration   time.Duration
}

// DefaultRunLimits mirrors the values used in the spec's scenario 5 and
// are generous enough for ordinary authorization runs.
func DefaultRunLimits() RunLimits {
	return RunLimits{MaxFacts: 1000, MaxIterations: 100, MaxDuration: 1 * time.Second}
}

type ruleEntry struct {
	rule       Rule
	blockIndex BlockIndex
	trusted    Origin
}

// World holds the saturating fact/rule store for one authorization run.
type World struct {
	facts   map[string]*Fact
	order   []string
	rules   []ruleEntry
	symbols *symbol.SymbolTable
	eval    *term.Evaluator
}

// NewWorld returns an empty world over the given symbol table.
func NewWorld(symbols *symbol.SymbolTable) *World {
	return &World{
		facts:   map[string]*Fact{},
		symbols: symbols,
		eval:    term.NewEvaluator(symbols),
	}
}

// Clone returns an independent deep-enough copy of w. Each fact is
// copied, because AddFact widens the Origin of a fact already present;
// rules are shared, as nothing mutates them once added.
func (w *World) Clone() *World {
	facts := make(map[string]*Fact, len(w.facts))
	order := make([]string, len(w.order))
	copy(order, w.order)
	for k, f := range w.facts {
		cp := *f
		facts[k] = &cp
	}
	rules := make([]ruleEntry, len(w.rules))
	copy(rules, w.rules)
	return &World{facts: facts, order: order, rules: rules, symbols: w.symbols, eval: term.NewEvaluator(w.symbols)}
}

// AddFact inserts f, unioning its Origin into any existing fact with
// the same predicate value (§4.3's dedup-by-value-equality rule).
// Returns true if this added a genuinely new fact (for MaxFacts
// accounting).
func (w *World) AddFact(f Fact) bool {
	key := f.key()
	if existing, ok := w.facts[key]; ok {
		merged := existing.Origin.Union(f.Origin)
		if !merged.Equal(existing.Origin) {
			existing.Origin = merged
		}
		return false
	}
	cp := f
	w.facts[key] = &cp
	w.order = append(w.order, key)
	return true
}

// FactCount returns the number of distinct (by value) facts currently
// held.
func (w *World) FactCount() int { return len(w.facts) }

// Facts returns every fact in insertion order.
func (w *World) Facts() []Fact {
	out := make([]Fact, 0, len(w.order))
	for _, k := range w.order {
		out = append(out, *w.facts[k])
	}
	return out
}

// AddRule registers rule as having been contributed by blockIndex, with
// its TrustedOrigins precomputed from scopes.
func (w *World) AddRule(rule Rule, blockIndex BlockIndex, keyIndex KeyBlockIndex) {
	trusted := TrustedOrigins(rule.Scopes, blockIndex, keyIndex)
	w.rules = append(w.rules, ruleEntry{rule: rule, blockIndex: blockIndex, trusted: trusted})
}

// ResetRules clears the registered rules while keeping accumulated
// facts, mirroring authorizer.go's block-by-block evaluation where
// rules from one block must not keep firing once later blocks are
// loaded.
func (w *World) ResetRules() { w.rules = nil }

type assignment struct {
	binding term.Binding
	origin  Origin
}

// enumerate performs the conjunctive join of rule.Body against facts
// whose Origin is a subset of trusted, one body predicate at a time
// with shared-prefix binding reuse (§9's design note).
func (w *World) enumerate(rule Rule, trusted Origin) []assignment {
	var results []assignment
	var rec func(idx int, binding term.Binding, origin Origin)
	rec = func(idx int, binding term.Binding, origin Origin) {
		if idx == len(rule.Body) {
			results = append(results, assignment{binding: cloneBinding(binding), origin: origin})
			return
		}
		pred := rule.Body[idx]
		for _, key := range w.order {
			f := w.facts[key]
			if f.Predicate.Name != pred.Name || len(f.Predicate.Terms) != len(pred.Terms) {
				continue
			}
			if !f.Origin.IsSubsetOf(trusted) {
				continue
			}
			newBinding, ok := unify(pred, f.Predicate, binding)
			if !ok {
				continue
			}
			rec(idx+1, newBinding, origin.Union(f.Origin))
		}
	}
	rec(0, term.Binding{}, Origin{})
	return results
}

func unify(pred, fact term.Predicate, binding term.Binding) (term.Binding, bool) {
	next := binding
	cloned := false
	for i, t := range pred.Terms {
		if t.IsVariable() {
			if existing, ok := next[t.Str]; ok {
				if !existing.Equal(fact.Terms[i]) {
					return nil, false
				}
				continue
			}
			if !cloned {
				next = cloneBinding(binding)
				cloned = true
			}
			next[t.Str] = fact.Terms[i]
			continue
		}
		if !t.Equal(fact.Terms[i]) {
			return nil, false
		}
	}
	return next, true
}

func cloneBinding(b term.Binding) term.Binding {
	out := make(term.Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

func substitute(pred term.Predicate, binding term.Binding) (term.Predicate, bool) {
	out := term.Predicate{Name: pred.Name, Terms: make([]term.Term, len(pred.Terms))}
	for i, t := range pred.Terms {
		if t.IsVariable() {
			v, ok := binding[t.Str]
			if !ok {
				return term.Predicate{}, false
			}
			out.Terms[i] = v
			continue
		}
		out.Terms[i] = t
	}
	return out, true
}

// isSwallowedExpressionError reports whether err is one the Datalog
// engine swallows locally per §7's propagation policy (Execution,
// Overflow, InvalidType all become a failed match/check rather than a
// run-level error); Timeout and any other kind propagate.
func isSwallowedExpressionError(err error) bool {
	kind, ok := errs.KindOf(err)
	if !ok {
		return false
	}
	return kind == errs.KindExecution || kind == errs.KindOverflow || kind == errs.KindInvalidType
}

func (w *World) evalAssignmentBool(rule Rule, asn assignment) (bool, bool, error) {
	for _, expr := range rule.Expressions {
		v, err := w.eval.Eval(expr, asn.binding)
		if err != nil {
			if isSwallowedExpressionError(err) {
				return false, false, nil
			}
			return false, false, err
		}
		if v.Kind != term.KindBool {
			return false, false, nil // findMatch: non-bool treated as fail, no error
		}
		if !v.Bool {
			return false, true, nil
		}
	}
	return true, true, nil
}

// FindMatch reports whether at least one assignment of rule's body
// (restricted to trusted origins) satisfies every expression (§4.3).
func (w *World) FindMatch(rule Rule, trusted Origin) (bool, error) {
	for _, asn := range w.enumerate(rule, trusted) {
		ok, _, err := w.evalAssignmentBool(rule, asn)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// CheckMatchAll reports whether every match of rule's body satisfies
// every expression; it is vacuously true when the body has no match.
// A non-bool expression result
// raises InvalidType, which — per §7 — short-circuits this check to
// false rather than propagating as a run-level error (Timeout still
// propagates).
func (w *World) CheckMatchAll(rule Rule, trusted Origin) (bool, error) {
	assignments := w.enumerate(rule, trusted)
	if len(assignments) == 0 {
		return true, nil // vacuously true, §4.3
	}
	for _, asn := range assignments {
		for _, expr := range rule.Expressions {
			ok, err := w.eval.EvalBool(expr, asn.binding)
			if err != nil {
				if isSwallowedExpressionError(err) {
					return false, nil // includes InvalidType, short-circuits to false
				}
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

// Query evaluates rule against the current fact store (without
// registering it as a standing rule) and returns every derived fact
// whose assignment satisfies all of rule's expressions — the
// authorizer's one-off introspection query (§11's supplemented
// feature, grounded on the reference implementation's Query).
func (w *World) Query(rule Rule, trusted Origin) ([]Fact, error) {
	var out []Fact
	for _, asn := range w.enumerate(rule, trusted) {
		ok, _, err := w.evalAssignmentBool(rule, asn)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		head, ok := substitute(rule.Head, asn.binding)
		if !ok {
			continue
		}
		out = append(out, Fact{Predicate: head, Origin: asn.origin})
	}
	return out, nil
}

// Saturate runs the naive bottom-up fixpoint: repeatedly apply every
// registered rule until a full sweep adds no new fact, or a limit is
// hit (§4.3).
func (w *World) Saturate(limits RunLimits) error {
	var deadline time.Time
	if limits.MaxDuration > 0 {
		deadline = time.Now().Add(limits.MaxDuration)
		w.eval.Deadline = deadline
	}

	iterations := 0
	for {
		iterations++
		if limits.MaxIterations > 0 && iterations > limits.MaxIterations {
			return errs.New(errs.KindTooManyIterations, "saturation exceeded %d iterations", limits.MaxIterations)
		}

		addedAny := false
		for _, re := range w.rules {
			if !deadline.IsZero() && time.Now().After(deadline) {
				return errs.New(errs.KindTimeout, "saturation deadline exceeded")
			}

			for _, asn := range w.enumerate(re.rule, re.trusted) {
				ok, _, err := w.evalAssignmentBool(re.rule, asn)
				if err != nil {
					return err // Timeout or other non-swallowed error
				}
				if !ok {
					continue
				}
				head, ok := substitute(re.rule.Head, asn.binding)
				if !ok {
					continue // unbound head variable: InternalError, discard silently
				}
				derivedOrigin := asn.origin.Union(NewOrigin(re.blockIndex))
				if _, exists := w.facts[predicateKey(head)]; !exists {
					if limits.MaxFacts > 0 && w.FactCount() >= limits.MaxFacts {
						return errs.New(errs.KindTooManyFacts, "saturation exceeded %d facts", limits.MaxFacts)
					}
				}
				if w.AddFact(Fact{Predicate: head, Origin: derivedOrigin}) {
					addedAny = true
				}
			}
		}

		if !addedAny {
			return nil
		}
	}
}
