// Copyright 2025 Certen Protocol

package term

import "github.com/certen/biscuit/pkg/symbol"

// Predicate is (nameSymbolId, ordered terms) — §3.
type Predicate struct {
	Name  symbol.ID
	Terms []Term
}

// Matches reports whether p and o agree on name and arity, and every
// corresponding term matches: variables match anything, concrete terms
// match by value (§3).
func (p Predicate) Matches(o Predicate) bool {
	if p.Name != o.Name || len(p.Terms) != len(o.Terms) {
		return false
	}
	for i := range p.Terms {
		if p.Terms[i].IsVariable() || o.Terms[i].IsVariable() {
			continue
		}
		if !p.Terms[i].Equal(o.Terms[i]) {
			return false
		}
	}
	return true
}

// IsGround reports whether every term of p is ground, i.e. p is usable
// as a Fact.
func (p Predicate) IsGround() bool {
	for _, t := range p.Terms {
		if !t.IsGround() {
			return false
		}
	}
	return true
}

// Variables returns the set of variable symbol ids occurring in p, in
// first-occurrence order.
func (p Predicate) Variables() []symbol.ID {
	var out []symbol.ID
	seen := map[symbol.ID]bool{}
	for _, t := range p.Terms {
		if t.IsVariable() && !seen[t.Str] {
			seen[t.Str] = true
			out = append(out, t.Str)
		}
	}
	return out
}

// Equal reports structural value-equality between two predicates
// (name, arity, and every term equal — used for Rule/Check/Policy
// value-equality per spec.md §9's recommendation).
func (p Predicate) Equal(o Predicate) bool {
	if p.Name != o.Name || len(p.Terms) != len(o.Terms) {
		return false
	}
	for i := range p.Terms {
		if !p.Terms[i].Equal(o.Terms[i]) {
			return false
		}
	}
	return true
}
