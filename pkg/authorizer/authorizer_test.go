// Copyright 2025 Certen Protocol

package authorizer

import (
	"testing"

	"github.com/google/uuid"

	"github.com/certen/biscuit/pkg/biscuitcrypto"
	"github.com/certen/biscuit/pkg/chain"
	"github.com/certen/biscuit/pkg/datalog"
	"github.com/certen/biscuit/pkg/symbol"
	"github.com/certen/biscuit/pkg/term"
)

func buildToken(t *testing.T) (*chain.Token, biscuitcrypto.Signer) {
	t.Helper()
	root, err := biscuitcrypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("generate root: %v", err)
	}
	symbols := symbol.NewTable()
	rightName := symbols.Insert("right")
	authority := chain.Block{
		Facts: []term.Predicate{{
			Name: rightName,
			Terms: []term.Term{
				term.String(symbols.Insert("file1")),
				term.String(symbols.Insert("read")),
			},
		}},
		Symbols: symbols.Values(),
		Version: chain.DatalogV3,
	}
	tok, err := chain.New(authority, root)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	return tok, root
}

func TestBasicAllow(t *testing.T) {
	tok, root := buildToken(t)
	az := New(datalog.DefaultRunLimits())
	if err := az.LoadToken(tok, root.PublicKey()); err != nil {
		t.Fatalf("load token: %v", err)
	}

	resourceName := az.Symbols().Insert("resource")
	operationName := az.Symbols().Insert("operation")
	rightName := az.Symbols().Insert("right")
	if err := az.AddFact(term.Predicate{Name: resourceName, Terms: []term.Term{term.String(az.Symbols().Insert("file1"))}}); err != nil {
		t.Fatalf("add resource fact: %v", err)
	}
	if err := az.AddFact(term.Predicate{Name: operationName, Terms: []term.Term{term.String(az.Symbols().Insert("read"))}}); err != nil {
		t.Fatalf("add operation fact: %v", err)
	}

	rVar := az.Symbols().Insert("r")
	oVar := az.Symbols().Insert("o")
	check := datalog.Check{
		Kind: datalog.CheckOne,
		Queries: []datalog.Rule{{
			Head: term.Predicate{Name: az.Symbols().Insert("valid")},
			Body: []term.Predicate{
				{Name: resourceName, Terms: []term.Term{term.Variable(rVar)}},
				{Name: operationName, Terms: []term.Term{term.Variable(oVar)}},
				{Name: rightName, Terms: []term.Term{term.Variable(rVar), term.Variable(oVar)}},
			},
		}},
	}
	az.AddCheck(check)

	trueExpr := term.Expression{term.PushValue(term.Bool(true))}
	az.AddPolicy(datalog.Policy{
		Kind: datalog.PolicyAllow,
		Queries: []datalog.Rule{{
			Head:        term.Predicate{Name: az.Symbols().Insert("ok")},
			Expressions: []term.Expression{trueExpr},
		}},
	})

	result, err := az.Authorize()
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if result.PolicyIndex != 0 {
		t.Fatalf("expected policy 0 to match, got %d", result.PolicyIndex)
	}
	if result.RunID == (uuid.UUID{}) {
		t.Fatal("expected a non-zero RunID")
	}
}

func TestNoMatchingPolicyFails(t *testing.T) {
	tok, root := buildToken(t)
	az := New(datalog.DefaultRunLimits())
	if err := az.LoadToken(tok, root.PublicKey()); err != nil {
		t.Fatalf("load token: %v", err)
	}
	_, err := az.Authorize()
	if err == nil {
		t.Fatal("expected NoMatchingPolicy error")
	}
}

type recordingObserver struct {
	outcomes []Outcome
}

func (r *recordingObserver) Observe(o Outcome) {
	r.outcomes = append(r.outcomes, o)
}

func TestObserverReceivesOutcome(t *testing.T) {
	tok, root := buildToken(t)
	obs := &recordingObserver{}
	az := New(datalog.DefaultRunLimits(), WithObserver(obs))
	if err := az.LoadToken(tok, root.PublicKey()); err != nil {
		t.Fatalf("load token: %v", err)
	}
	if _, err := az.Authorize(); err == nil {
		t.Fatal("expected NoMatchingPolicy error")
	}
	if len(obs.outcomes) != 1 {
		t.Fatalf("expected exactly one recorded outcome, got %d", len(obs.outcomes))
	}
	if obs.outcomes[0].Decision != DecisionNoMatch {
		t.Fatalf("expected DecisionNoMatch, got %v", obs.outcomes[0].Decision)
	}
	if obs.outcomes[0].RunID == (uuid.UUID{}) {
		t.Fatal("expected a non-zero RunID even on failure")
	}
}

// TestThirdPartyScopeRequiresTrustingClause reproduces the named
// third-party-block scenario: an authorizer check scoped to the
// third party's key sees its fact, the identical check with no
// scope at all does not, because the fact's origin (the third-party
// block) is outside {authority, authorizer}, the default trust set
// for an authorizer-local check.
func TestThirdPartyScopeRequiresTrustingClause(t *testing.T) {
	tok, root := buildToken(t)

	issuer, err := biscuitcrypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("generate third-party issuer: %v", err)
	}
	thirdPartySymbols := symbol.NewTable()
	adminName := thirdPartySymbols.Insert("admin")
	roleName := thirdPartySymbols.Insert("role")
	thirdPartyBlock := chain.Block{
		Facts: []term.Predicate{{
			Name:  roleName,
			Terms: []term.Term{term.String(adminName)},
		}},
		Symbols: thirdPartySymbols.Values(),
		Version: chain.DatalogV3,
	}
	tok, err = tok.AppendThirdParty(thirdPartyBlock, issuer)
	if err != nil {
		t.Fatalf("append third-party block: %v", err)
	}

	az := New(datalog.DefaultRunLimits())
	if err := az.LoadToken(tok, root.PublicKey()); err != nil {
		t.Fatalf("load token: %v", err)
	}

	roleCheckName := az.Symbols().Insert("role")
	adminCheckName := az.Symbols().Insert("admin")
	queryHead := term.Predicate{Name: az.Symbols().Insert("has_admin")}
	queryBody := []term.Predicate{{Name: roleCheckName, Terms: []term.Term{term.String(adminCheckName)}}}

	keyID, ok := az.KeyID(issuer.PublicKey())
	if !ok {
		t.Fatal("expected the third-party key to be present in the merged key table after LoadToken")
	}

	trustingCheck := datalog.Check{
		Kind: datalog.CheckOne,
		Queries: []datalog.Rule{{
			Head:   queryHead,
			Body:   queryBody,
			Scopes: []datalog.Scope{{Kind: datalog.ScopePublicKey, KeyID: keyID}},
		}},
	}
	az.AddCheck(trustingCheck)

	unscopedCheck := datalog.Check{
		Kind: datalog.CheckOne,
		Queries: []datalog.Rule{{
			Head: queryHead,
			Body: queryBody,
		}},
	}

	trueExpr := term.Expression{term.PushValue(term.Bool(true))}
	az.AddPolicy(datalog.Policy{
		Kind: datalog.PolicyAllow,
		Queries: []datalog.Rule{{
			Head:        term.Predicate{Name: az.Symbols().Insert("ok")},
			Expressions: []term.Expression{trueExpr},
		}},
	})

	if _, err := az.Authorize(); err != nil {
		t.Fatalf("expected the trusting check to pass and authorize, got %v", err)
	}

	az2 := New(datalog.DefaultRunLimits())
	if err := az2.LoadToken(tok, root.PublicKey()); err != nil {
		t.Fatalf("load token: %v", err)
	}
	az2.AddCheck(unscopedCheck)
	az2.AddPolicy(datalog.Policy{
		Kind: datalog.PolicyAllow,
		Queries: []datalog.Rule{{
			Head:        term.Predicate{Name: az2.Symbols().Insert("ok")},
			Expressions: []term.Expression{trueExpr},
		}},
	})

	if _, err := az2.Authorize(); err == nil {
		t.Fatal("expected the unscoped check to fail: the fact's origin is the third-party block, outside the default trust set")
	}
}

func TestCopyIsIndependent(t *testing.T) {
	tok, root := buildToken(t)
	az := New(datalog.DefaultRunLimits())
	if err := az.LoadToken(tok, root.PublicKey()); err != nil {
		t.Fatalf("load token: %v", err)
	}
	cp := az.Copy()
	extra := cp.Symbols().Insert("only_in_copy")
	if _, ok := az.Symbols().Get("only_in_copy"); ok {
		t.Fatal("mutating the copy's symbol table leaked into the original")
	}
	_ = extra
}
