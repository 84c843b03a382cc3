// Copyright 2025 Certen Protocol
//
// Package chain implements the cryptographic block chain (C4): blocks,
// signed blocks, the sealing state machine, signature payload
// construction, verification, and a binary codec for the block and
// token messages. No .proto file or generated stub exists for this
// format; the codec uses the varint and length-delimited primitives
// from google.golang.org/protobuf/encoding/protowire, but it writes
// each message's fields in a fixed order without field numbers or wire
// tags, so its output is not a Protocol Buffers message and can only be
// read back by this package's decoder.
package chain

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/datalog"
	"github.com/certen/biscuit/pkg/symbol"
	"github.com/certen/biscuit/pkg/term"
)

type encoder struct {
	buf []byte
}

func (e *encoder) varint(v uint64)  { e.buf = protowire.AppendVarint(e.buf, v) }
func (e *encoder) bytes(v []byte)   { e.buf = protowire.AppendBytes(e.buf, v) }
func (e *encoder) str(v string)     { e.buf = protowire.AppendString(e.buf, v) }
func (e *encoder) bool(v bool) {
	if v {
		e.varint(1)
	} else {
		e.varint(0)
	}
}

type decoder struct {
	buf []byte
}

func (d *decoder) varint() (uint64, error) {
	v, n := protowire.ConsumeVarint(d.buf)
	if n < 0 {
		return 0, errs.New(errs.KindBlockDeserialization, "truncated varint")
	}
	d.buf = d.buf[n:]
	return v, nil
}

func (d *decoder) bytesField() ([]byte, error) {
	v, n := protowire.ConsumeBytes(d.buf)
	if n < 0 {
		return nil, errs.New(errs.KindBlockDeserialization, "truncated length-delimited field")
	}
	d.buf = d.buf[n:]
	return v, nil
}

func (d *decoder) strField() (string, error) {
	b, err := d.bytesField()
	return string(b), err
}

func (d *decoder) boolField() (bool, error) {
	v, err := d.varint()
	return v != 0, err
}

func zigzagEncode(v int64) uint64 { return (uint64(v) << 1) ^ uint64(v>>63) }
func zigzagDecode(v uint64) int64 { return int64(v>>1) ^ -int64(v&1) }

// --- Term ---

func (e *encoder) term(t term.Term) {
	e.varint(uint64(t.Kind))
	switch t.Kind {
	case term.KindNull:
	case term.KindBool:
		e.bool(t.Bool)
	case term.KindInteger:
		e.varint(zigzagEncode(t.Integer))
	case term.KindString, term.KindVariable:
		e.varint(t.Str)
	case term.KindBytes:
		e.bytes(t.Bytes)
	case term.KindDate:
		e.varint(t.Date)
	case term.KindSet:
		e.varint(uint64(len(t.Set)))
		for _, m := range t.Set {
			e.term(m)
		}
	case term.KindArray:
		e.varint(uint64(len(t.Array)))
		for _, m := range t.Array {
			e.term(m)
		}
	case term.KindMap:
		e.varint(uint64(len(t.Map)))
		for _, m := range t.Map {
			e.bool(m.Key.IsString)
			if m.Key.IsString {
				e.varint(m.Key.Str)
			} else {
				e.varint(zigzagEncode(m.Key.Int))
			}
			e.term(m.Value)
		}
	}
}

func (d *decoder) term() (term.Term, error) {
	kindV, err := d.varint()
	if err != nil {
		return term.Term{}, err
	}
	kind := term.Kind(kindV)
	switch kind {
	case term.KindNull:
		return term.Null(), nil
	case term.KindBool:
		v, err := d.boolField()
		return term.Bool(v), err
	case term.KindInteger:
		v, err := d.varint()
		if err != nil {
			return term.Term{}, err
		}
		return term.Integer(zigzagDecode(v)), nil
	case term.KindString:
		v, err := d.varint()
		return term.String(v), err
	case term.KindVariable:
		v, err := d.varint()
		return term.Variable(v), err
	case term.KindBytes:
		v, err := d.bytesField()
		return term.Bytes(v), err
	case term.KindDate:
		v, err := d.varint()
		return term.Date(v), err
	case term.KindSet:
		n, err := d.varint()
		if err != nil {
			return term.Term{}, err
		}
		members := make([]term.Term, n)
		for i := range members {
			if members[i], err = d.term(); err != nil {
				return term.Term{}, err
			}
		}
		return term.NewSet(members)
	case term.KindArray:
		n, err := d.varint()
		if err != nil {
			return term.Term{}, err
		}
		members := make([]term.Term, n)
		for i := range members {
			if members[i], err = d.term(); err != nil {
				return term.Term{}, err
			}
		}
		return term.NewArray(members)
	case term.KindMap:
		n, err := d.varint()
		if err != nil {
			return term.Term{}, err
		}
		entries := make([]term.MapEntry, n)
		for i := range entries {
			isStr, err := d.boolField()
			if err != nil {
				return term.Term{}, err
			}
			raw, err := d.varint()
			if err != nil {
				return term.Term{}, err
			}
			key := term.MapKey{IsString: isStr}
			if isStr {
				key.Str = raw
			} else {
				key.Int = zigzagDecode(raw)
			}
			value, err := d.term()
			if err != nil {
				return term.Term{}, err
			}
			entries[i] = term.MapEntry{Key: key, Value: value}
		}
		return term.NewMap(entries)
	default:
		return term.Term{}, errs.New(errs.KindDeserialization, "unknown term kind %d", kindV)
	}
}

// --- Predicate ---

func (e *encoder) predicate(p term.Predicate) {
	e.varint(p.Name)
	e.varint(uint64(len(p.Terms)))
	for _, t := range p.Terms {
		e.term(t)
	}
}

func (d *decoder) predicate() (term.Predicate, error) {
	name, err := d.varint()
	if err != nil {
		return term.Predicate{}, err
	}
	n, err := d.varint()
	if err != nil {
		return term.Predicate{}, err
	}
	terms := make([]term.Term, n)
	for i := range terms {
		if terms[i], err = d.term(); err != nil {
			return term.Predicate{}, err
		}
	}
	return term.Predicate{Name: name, Terms: terms}, nil
}

// --- Expression (Op stack) ---

func (e *encoder) expression(expr term.Expression) {
	e.varint(uint64(len(expr)))
	for _, op := range expr {
		e.varint(uint64(op.Code))
		switch op.Code {
		case term.CodeValue:
			e.term(op.Value)
		case term.CodeUnary:
			e.varint(uint64(op.Unary))
		case term.CodeBinary:
			e.varint(uint64(op.Binary))
		case term.CodeClosure:
			e.varint(uint64(len(op.Closure.Params)))
			for _, p := range op.Closure.Params {
				e.varint(p)
			}
			e.expression(op.Closure.Body)
		}
	}
}

func (d *decoder) expression() (term.Expression, error) {
	n, err := d.varint()
	if err != nil {
		return nil, err
	}
	expr := make(term.Expression, n)
	for i := range expr {
		code, err := d.varint()
		if err != nil {
			return nil, err
		}
		switch term.OpCode(code) {
		case term.CodeValue:
			v, err := d.term()
			if err != nil {
				return nil, err
			}
			expr[i] = term.PushValue(v)
		case term.CodeUnary:
			v, err := d.varint()
			if err != nil {
				return nil, err
			}
			expr[i] = term.PushUnary(term.UnaryOp(v))
		case term.CodeBinary:
			v, err := d.varint()
			if err != nil {
				return nil, err
			}
			expr[i] = term.PushBinary(term.BinaryOp(v))
		case term.CodeClosure:
			pn, err := d.varint()
			if err != nil {
				return nil, err
			}
			params := make([]symbol.ID, pn)
			for j := range params {
				if params[j], err = d.varint(); err != nil {
					return nil, err
				}
			}
			body, err := d.expression()
			if err != nil {
				return nil, err
			}
			expr[i] = term.PushClosure(&term.Closure{Params: params, Body: body})
		default:
			return nil, errs.New(errs.KindDeserialization, "unknown op code %d", code)
		}
	}
	return expr, nil
}

// --- Scope ---

func (e *encoder) scope(s datalog.Scope) {
	e.varint(uint64(s.Kind))
	e.varint(s.KeyID)
}

func (d *decoder) scope() (datalog.Scope, error) {
	k, err := d.varint()
	if err != nil {
		return datalog.Scope{}, err
	}
	id, err := d.varint()
	if err != nil {
		return datalog.Scope{}, err
	}
	return datalog.Scope{Kind: datalog.ScopeKind(k), KeyID: id}, nil
}

// --- Rule / Check ---

func (e *encoder) rule(r datalog.Rule) {
	e.predicate(r.Head)
	e.varint(uint64(len(r.Body)))
	for _, p := range r.Body {
		e.predicate(p)
	}
	e.varint(uint64(len(r.Expressions)))
	for _, x := range r.Expressions {
		e.expression(x)
	}
	e.varint(uint64(len(r.Scopes)))
	for _, s := range r.Scopes {
		e.scope(s)
	}
}

func (d *decoder) rule() (datalog.Rule, error) {
	head, err := d.predicate()
	if err != nil {
		return datalog.Rule{}, err
	}
	bn, err := d.varint()
	if err != nil {
		return datalog.Rule{}, err
	}
	body := make([]term.Predicate, bn)
	for i := range body {
		if body[i], err = d.predicate(); err != nil {
			return datalog.Rule{}, err
		}
	}
	en, err := d.varint()
	if err != nil {
		return datalog.Rule{}, err
	}
	exprs := make([]term.Expression, en)
	for i := range exprs {
		if exprs[i], err = d.expression(); err != nil {
			return datalog.Rule{}, err
		}
	}
	sn, err := d.varint()
	if err != nil {
		return datalog.Rule{}, err
	}
	scopes := make([]datalog.Scope, sn)
	for i := range scopes {
		if scopes[i], err = d.scope(); err != nil {
			return datalog.Rule{}, err
		}
	}
	return datalog.Rule{Head: head, Body: body, Expressions: exprs, Scopes: scopes}, nil
}

func (e *encoder) check(c datalog.Check) {
	e.varint(uint64(c.Kind))
	e.varint(uint64(len(c.Queries)))
	for _, q := range c.Queries {
		e.rule(q)
	}
}

func (d *decoder) check() (datalog.Check, error) {
	k, err := d.varint()
	if err != nil {
		return datalog.Check{}, err
	}
	n, err := d.varint()
	if err != nil {
		return datalog.Check{}, err
	}
	queries := make([]datalog.Rule, n)
	for i := range queries {
		if queries[i], err = d.rule(); err != nil {
			return datalog.Check{}, err
		}
	}
	return datalog.Check{Kind: datalog.CheckKind(k), Queries: queries}, nil
}

// --- symbol.Key (PublicKey wire type) ---

func (e *encoder) key(k symbol.Key) {
	e.varint(uint64(k.Algorithm))
	e.bytes(k.Bytes)
}

func (d *decoder) key() (symbol.Key, error) {
	alg, err := d.varint()
	if err != nil {
		return symbol.Key{}, err
	}
	b, err := d.bytesField()
	if err != nil {
		return symbol.Key{}, err
	}
	return symbol.Key{Algorithm: symbol.Algorithm(alg), Bytes: b}, nil
}
