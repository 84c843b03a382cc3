// Copyright 2025 Certen Protocol

package authorizer

import (
	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/chain"
	"github.com/certen/biscuit/pkg/datalog"
	"github.com/certen/biscuit/pkg/symbol"
	"github.com/certen/biscuit/pkg/term"
)

// LoadToken verifies tok against root and transcribes every one of its
// blocks into the authorizer's shared tables and world (§4.5 step 1):
// each block's local symbols/keys are translated into the authorizer's
// tables, its facts are inserted tagged with the block's own index, and
// its rules are registered with their computed TrustedOrigins.
func (a *Authorizer) LoadToken(tok *chain.Token, root symbol.Key) error {
	if err := tok.Verify(root); err != nil {
		return err
	}

	a.blockCount = tok.BlockCount()

	// First pass: build the global key index from every block's
	// external (third-party) signer, so ScopePublicKey resolution
	// works regardless of transcription order.
	for i := 0; i < a.blockCount; i++ {
		sb := tok.SignedBlockAt(i)
		if sb.External != nil {
			id := a.keys.Insert(sb.External.PublicKey)
			a.keyIndex[id] = append(a.keyIndex[id], datalog.BlockIndex(i))
		}
	}

	for i := 0; i < a.blockCount; i++ {
		sb := tok.SignedBlockAt(i)
		block, err := chain.DecodeBlock(sb.BlockBytes)
		if err != nil {
			return errs.Wrap(errs.KindBlockDeserialization, err, "block %d", i)
		}
		if err := a.transcribeBlock(block, datalog.BlockIndex(i)); err != nil {
			return err
		}
	}
	return nil
}

func (a *Authorizer) transcribeBlock(block chain.Block, index datalog.BlockIndex) error {
	localSymbols := symbol.NewTable()
	for _, s := range block.Symbols {
		localSymbols.Insert(s)
	}
	localKeys := symbol.NewKeyTable()
	for _, k := range block.PublicKeys {
		localKeys.Insert(k)
	}

	for _, pred := range block.Facts {
		remapped, err := a.remapPredicate(pred, localSymbols)
		if err != nil {
			return errs.Wrap(errs.KindInvalidBlockFact, err, "block %d fact", index)
		}
		a.world.AddFact(datalog.Fact{Predicate: remapped, Origin: datalog.NewOrigin(index)})
	}

	for _, rule := range block.Rules {
		remapped, err := a.remapRule(rule, localSymbols, localKeys)
		if err != nil {
			return errs.Wrap(errs.KindInvalidBlockRule, err, "block %d rule", index)
		}
		if err := remapped.Validate(); err != nil {
			return err
		}
		a.world.AddRule(remapped, index, a.keyIndex)
	}

	for _, check := range block.Checks {
		remapped, err := a.remapCheck(check, localSymbols, localKeys)
		if err != nil {
			return errs.Wrap(errs.KindInvalidBlockRule, err, "block %d check", index)
		}
		a.blockChecks = append(a.blockChecks, blockCheck{blockIndex: int(index), check: remapped})
	}

	return nil
}

func (a *Authorizer) remapPredicate(pred term.Predicate, local *symbol.SymbolTable) (term.Predicate, error) {
	name, err := a.remapSymbol(pred.Name, local)
	if err != nil {
		return term.Predicate{}, err
	}
	terms := make([]term.Term, len(pred.Terms))
	for i, t := range pred.Terms {
		if terms[i], err = a.remapTerm(t, local); err != nil {
			return term.Predicate{}, err
		}
	}
	return term.Predicate{Name: name, Terms: terms}, nil
}

func (a *Authorizer) remapSymbol(id symbol.ID, local *symbol.SymbolTable) (symbol.ID, error) {
	str, err := local.Resolve(id)
	if err != nil {
		return 0, err
	}
	return a.symbols.Insert(str), nil
}

func (a *Authorizer) remapTerm(t term.Term, local *symbol.SymbolTable) (term.Term, error) {
	switch t.Kind {
	case term.KindString:
		id, err := a.remapSymbol(t.Str, local)
		if err != nil {
			return term.Term{}, err
		}
		return term.String(id), nil
	case term.KindVariable:
		id, err := a.remapSymbol(t.Str, local)
		if err != nil {
			return term.Term{}, err
		}
		return term.Variable(id), nil
	case term.KindSet:
		members := make([]term.Term, len(t.Set))
		for i, m := range t.Set {
			mm, err := a.remapTerm(m, local)
			if err != nil {
				return term.Term{}, err
			}
			members[i] = mm
		}
		return term.NewSet(members)
	case term.KindArray:
		members := make([]term.Term, len(t.Array))
		for i, m := range t.Array {
			mm, err := a.remapTerm(m, local)
			if err != nil {
				return term.Term{}, err
			}
			members[i] = mm
		}
		return term.NewArray(members)
	case term.KindMap:
		entries := make([]term.MapEntry, len(t.Map))
		for i, e := range t.Map {
			key := e.Key
			if key.IsString {
				id, err := a.remapSymbol(key.Str, local)
				if err != nil {
					return term.Term{}, err
				}
				key.Str = id
			}
			v, err := a.remapTerm(e.Value, local)
			if err != nil {
				return term.Term{}, err
			}
			entries[i] = term.MapEntry{Key: key, Value: v}
		}
		return term.NewMap(entries)
	default:
		return t, nil
	}
}

func (a *Authorizer) remapExpression(expr term.Expression, local *symbol.SymbolTable) (term.Expression, error) {
	out := make(term.Expression, len(expr))
	for i, op := range expr {
		switch op.Code {
		case term.CodeValue:
			v, err := a.remapTerm(op.Value, local)
			if err != nil {
				return nil, err
			}
			out[i] = term.PushValue(v)
		case term.CodeClosure:
			params := make([]symbol.ID, len(op.Closure.Params))
			for j, p := range op.Closure.Params {
				id, err := a.remapSymbol(p, local)
				if err != nil {
					return nil, err
				}
				params[j] = id
			}
			body, err := a.remapExpression(op.Closure.Body, local)
			if err != nil {
				return nil, err
			}
			out[i] = term.PushClosure(&term.Closure{Params: params, Body: body})
		default:
			out[i] = op
		}
	}
	return out, nil
}

func (a *Authorizer) remapScope(s datalog.Scope, localKeys *symbol.KeyTable) (datalog.Scope, error) {
	if s.Kind != datalog.ScopePublicKey {
		return s, nil
	}
	key, ok := localKeys.Resolve(s.KeyID)
	if !ok {
		return datalog.Scope{}, errs.New(errs.KindMissingSymbols, "scope references unknown local key %d", s.KeyID)
	}
	return datalog.Scope{Kind: datalog.ScopePublicKey, KeyID: a.keys.Insert(key)}, nil
}

func (a *Authorizer) remapRule(r datalog.Rule, local *symbol.SymbolTable, localKeys *symbol.KeyTable) (datalog.Rule, error) {
	head, err := a.remapPredicate(r.Head, local)
	if err != nil {
		return datalog.Rule{}, err
	}
	body := make([]term.Predicate, len(r.Body))
	for i, p := range r.Body {
		if body[i], err = a.remapPredicate(p, local); err != nil {
			return datalog.Rule{}, err
		}
	}
	exprs := make([]term.Expression, len(r.Expressions))
	for i, x := range r.Expressions {
		if exprs[i], err = a.remapExpression(x, local); err != nil {
			return datalog.Rule{}, err
		}
	}
	scopes := make([]datalog.Scope, len(r.Scopes))
	for i, s := range r.Scopes {
		if scopes[i], err = a.remapScope(s, localKeys); err != nil {
			return datalog.Rule{}, err
		}
	}
	return datalog.Rule{Head: head, Body: body, Expressions: exprs, Scopes: scopes}, nil
}

func (a *Authorizer) remapCheck(c datalog.Check, local *symbol.SymbolTable, localKeys *symbol.KeyTable) (datalog.Check, error) {
	queries := make([]datalog.Rule, len(c.Queries))
	var err error
	for i, q := range c.Queries {
		if queries[i], err = a.remapRule(q, local, localKeys); err != nil {
			return datalog.Check{}, err
		}
	}
	return datalog.Check{Kind: c.Kind, Queries: queries}, nil
}
