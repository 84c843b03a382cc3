// Copyright 2025 Certen Protocol

package datalog

import (
	"fmt"

	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/symbol"
	"github.com/certen/biscuit/pkg/term"
)

// Rule is head <- body, expressions..., scopes... (§3).
type Rule struct {
	Head        term.Predicate
	Body        []term.Predicate
	Expressions []term.Expression
	Scopes      []Scope
}

// Validate checks that every variable in the head and in every
// expression also occurs in at least one body predicate (§3).
func (r Rule) Validate() error {
	bound := map[symbol.ID]bool{}
	for _, p := range r.Body {
		for _, v := range p.Variables() {
			bound[v] = true
		}
	}
	for _, v := range r.Head.Variables() {
		if !bound[v] {
			return errs.New(errs.KindInvalidBlockRule, "rule head variable %d does not appear in the body", v)
		}
	}
	for _, expr := range r.Expressions {
		for _, v := range expr.Variables() {
			if !bound[v] {
				return errs.New(errs.KindInvalidBlockRule, "rule expression variable %d does not appear in the body", v)
			}
		}
	}
	return nil
}

// Key returns a canonical string for value-equality over
// (name, terms, expressions, scopes), per spec.md §9's recommendation
// that implementers settle on one consistent equality/hash.
func (r Rule) Key() string {
	s := predicateKey(r.Head) + "<-"
	for _, p := range r.Body {
		s += predicateKey(p) + ";"
	}
	var exprKey func(term.Expression) string
	exprKey = func(x term.Expression) string {
		k := "["
		for _, op := range x {
			k += fmt.Sprintf("%d.%d.%d.%s", op.Code, op.Unary, op.Binary, termKey(op.Value))
			if op.Closure != nil {
				k += fmt.Sprintf("%v", op.Closure.Params) + exprKey(op.Closure.Body)
			}
			k += ","
		}
		return k + "]"
	}
	for _, x := range r.Expressions {
		s += exprKey(x) + ";"
	}
	s += fmt.Sprintf("#expr=%d;#scopes=%d", len(r.Expressions), len(r.Scopes))
	for _, sc := range r.Scopes {
		s += fmt.Sprintf(":%d.%d", sc.Kind, sc.KeyID)
	}
	return s
}

// CheckKind enumerates check semantics (§3).
type CheckKind int

const (
	CheckOne CheckKind = iota
	CheckAll
	CheckReject
)

// Check is a required Datalog satisfiability condition (§3).
type Check struct {
	Kind    CheckKind
	Queries []Rule
}

// PolicyKind enumerates policy semantics (§3).
type PolicyKind int

const (
	PolicyAllow PolicyKind = iota
	PolicyDeny
)

// Policy is an ordered allow/deny rule at the authorizer layer (§3).
type Policy struct {
	Kind    PolicyKind
	Queries []Rule
}
