// Copyright 2025 Certen Protocol

package datalog

import (
	"testing"
	"time"

	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/symbol"
	"github.com/certen/biscuit/pkg/term"
)

func strPredicate(symbols *symbol.SymbolTable, name string, args ...string) term.Predicate {
	pred := term.Predicate{Name: symbols.Insert(name)}
	for _, a := range args {
		pred.Terms = append(pred.Terms, term.String(symbols.Insert(a)))
	}
	return pred
}

func TestSaturateDerivesTransitiveFact(t *testing.T) {
	symbols := symbol.NewTable()
	w := NewWorld(symbols)
	w.AddFact(Fact{Predicate: strPredicate(symbols, "parent", "alice", "bob"), Origin: NewOrigin(0)})
	w.AddFact(Fact{Predicate: strPredicate(symbols, "parent", "bob", "carol"), Origin: NewOrigin(0)})

	x := symbols.Insert("x")
	y := symbols.Insert("y")
	z := symbols.Insert("z")
	parentName := symbols.Insert("parent")
	grandparentName := symbols.Insert("grandparent")

	rule := Rule{
		Head: term.Predicate{Name: grandparentName, Terms: []term.Term{term.Variable(x), term.Variable(z)}},
		Body: []term.Predicate{
			{Name: parentName, Terms: []term.Term{term.Variable(x), term.Variable(y)}},
			{Name: parentName, Terms: []term.Term{term.Variable(y), term.Variable(z)}},
		},
	}
	w.AddRule(rule, 0, nil)

	if err := w.Saturate(DefaultRunLimits()); err != nil {
		t.Fatalf("saturate: %v", err)
	}

	found := false
	for _, f := range w.Facts() {
		if f.Predicate.Name == grandparentName {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a derived grandparent fact after saturation")
	}
}

func TestSaturateEnforcesMaxFacts(t *testing.T) {
	symbols := symbol.NewTable()
	w := NewWorld(symbols)
	w.AddFact(Fact{Predicate: strPredicate(symbols, "parent", "alice", "bob"), Origin: NewOrigin(0)})
	w.AddFact(Fact{Predicate: strPredicate(symbols, "parent", "bob", "carol"), Origin: NewOrigin(0)})

	x := symbols.Insert("x")
	y := symbols.Insert("y")
	z := symbols.Insert("z")
	parentName := symbols.Insert("parent")
	grandparentName := symbols.Insert("grandparent")
	rule := Rule{
		Head: term.Predicate{Name: grandparentName, Terms: []term.Term{term.Variable(x), term.Variable(z)}},
		Body: []term.Predicate{
			{Name: parentName, Terms: []term.Term{term.Variable(x), term.Variable(y)}},
			{Name: parentName, Terms: []term.Term{term.Variable(y), term.Variable(z)}},
		},
	}
	w.AddRule(rule, 0, nil)

	err := w.Saturate(RunLimits{MaxFacts: 2, MaxIterations: 10, MaxDuration: time.Second})
	if err == nil {
		t.Fatal("expected MaxFacts to be exceeded")
	}
	if kind, ok := errs.KindOf(err); !ok || kind != errs.KindTooManyFacts {
		t.Fatalf("expected KindTooManyFacts, got %v", err)
	}
}

func TestSaturateEnforcesMaxIterations(t *testing.T) {
	symbols := symbol.NewTable()
	w := NewWorld(symbols)
	w.AddFact(Fact{Predicate: strPredicate(symbols, "a"), Origin: NewOrigin(0)})

	aName := symbols.Insert("a")
	bName := symbols.Insert("b")
	w.AddRule(Rule{Head: term.Predicate{Name: bName}, Body: []term.Predicate{{Name: aName}}}, 0, nil)

	// Sweep 1 derives b(); the second sweep needed to see no new facts
	// would exceed MaxIterations 1.
	err := w.Saturate(RunLimits{MaxFacts: 1000, MaxIterations: 1, MaxDuration: time.Second})
	if kind, ok := errs.KindOf(err); !ok || kind != errs.KindTooManyIterations {
		t.Fatalf("expected KindTooManyIterations, got %v", err)
	}
}

func TestFindMatchRespectsTrustedOrigin(t *testing.T) {
	symbols := symbol.NewTable()
	w := NewWorld(symbols)
	w.AddFact(Fact{Predicate: strPredicate(symbols, "right", "alice", "read"), Origin: NewOrigin(1)})

	x := symbols.Insert("x")
	rightName := symbols.Insert("right")
	rule := Rule{
		Head: term.Predicate{Name: symbols.Insert("ok")},
		Body: []term.Predicate{{Name: rightName, Terms: []term.Term{term.Variable(x), term.String(symbols.Insert("read"))}}},
	}

	matched, err := w.FindMatch(rule, NewOrigin(0))
	if err != nil {
		t.Fatalf("find match: %v", err)
	}
	if matched {
		t.Fatal("expected no match: fact's origin (block 1) is not trusted by origin {0}")
	}

	matched, err = w.FindMatch(rule, NewOrigin(0, 1))
	if err != nil {
		t.Fatalf("find match: %v", err)
	}
	if !matched {
		t.Fatal("expected a match once block 1 is trusted")
	}
}

func TestCheckMatchAllVacuouslyTrueWithNoMatches(t *testing.T) {
	symbols := symbol.NewTable()
	w := NewWorld(symbols)
	rule := Rule{
		Head: term.Predicate{Name: symbols.Insert("ok")},
		Body: []term.Predicate{{Name: symbols.Insert("nonexistent")}},
	}
	ok, err := w.CheckMatchAll(rule, NewOrigin(0))
	if err != nil {
		t.Fatalf("check match all: %v", err)
	}
	if !ok {
		t.Fatal("expected a check over zero matches to be vacuously true")
	}
}
