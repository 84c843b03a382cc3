// Copyright 2025 Certen Protocol

package chain

import (
	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/datalog"
	"github.com/certen/biscuit/pkg/symbol"
	"github.com/certen/biscuit/pkg/term"
)

// MinDatalogVersion and MaxDatalogVersion bound the schema versions
// this implementation accepts (§4.4's version gating table).
const (
	DatalogV3   uint32 = 3
	DatalogV3_1 uint32 = 31
	DatalogV3_2 uint32 = 32
	DatalogV3_3 uint32 = 33

	MinDatalogVersion = DatalogV3
	MaxDatalogVersion = DatalogV3_3
)

// Block is the content of one link in the chain (§6's Block message):
// a block-local symbol extension, an optional human-readable context,
// the facts/rules/checks it contributes, any scopes that restrict its
// own rules, the public keys it references for PublicKey scopes, and
// the minimum Datalog schema version its contents require.
// Block is one block of a token: the facts/rules/checks/scopes it
// contributes, plus the strings and public keys its terms reference by
// id. Symbols must be the building SymbolTable's Values() (in id
// order) at the moment the block is finished — every term or
// predicate name in Facts/Rules/Checks/Scopes is encoded as a numeric
// id into that table, and a decoder rebuilds the same table purely by
// replaying Symbols in order, so an incomplete or misordered Symbols
// list silently desyncs every name it contains.
type Block struct {
	Symbols    []string
	Context    string
	HasContext bool
	Facts      []term.Predicate
	Rules      []datalog.Rule
	Checks     []datalog.Check
	Scopes     []datalog.Scope
	PublicKeys []symbol.Key
	Version    uint32
}

// RequiredVersion computes the minimum Datalog schema version implied
// by the features it inspects in b: block scopes, check kinds (all,
// reject), rule scopes, rule expressions (closures, typeOf and the
// v3.3 binary operators, null/array/map literals) and public keys.
// The queries of checks and the terms of facts are not inspected, and
// bitwise operators and != do not raise the result on their own.
func (b Block) RequiredVersion() uint32 {
	v := DatalogV3
	if len(b.Scopes) > 0 {
		v = maxVersion(v, DatalogV3_1)
	}
	for _, c := range b.Checks {
		if c.Kind == datalog.CheckAll {
			v = maxVersion(v, DatalogV3_1)
		}
		if c.Kind == datalog.CheckReject {
			v = maxVersion(v, DatalogV3_3)
		}
	}
	for _, r := range b.Rules {
		if len(r.Scopes) > 0 {
			v = maxVersion(v, DatalogV3_1)
		}
		for _, x := range r.Expressions {
			if exprRequiresV33(x) {
				v = maxVersion(v, DatalogV3_3)
			}
		}
	}
	if len(b.PublicKeys) > 0 {
		v = maxVersion(v, DatalogV3_2)
	}
	return v
}

func maxVersion(a, b uint32) uint32 {
	if b > a {
		return b
	}
	return a
}

func exprRequiresV33(expr term.Expression) bool {
	for _, op := range expr {
		switch op.Code {
		case term.CodeClosure:
			return true
		}
		if op.Code == term.CodeUnary && op.Unary == term.OpTypeOf {
			return true
		}
		if op.Code == term.CodeBinary {
			switch op.Binary {
			case term.OpHeterogeneousEqual, term.OpTryOr, term.OpAny, term.OpAll, term.OpGet, term.OpLazyAnd, term.OpLazyOr:
				return true
			}
		}
		if op.Code == term.CodeValue && (op.Value.Kind == term.KindNull || op.Value.Kind == term.KindArray || op.Value.Kind == term.KindMap) {
			return true
		}
	}
	return false
}

// Validate checks the version-gating invariant (§4.4): the block's
// declared Version must be at least RequiredVersion(), and must not
// exceed what this implementation understands.
func (b Block) Validate() error {
	if b.Version > MaxDatalogVersion {
		return errs.VersionError(int(MinDatalogVersion), int(MaxDatalogVersion), int(b.Version))
	}
	if required := b.RequiredVersion(); b.Version < required {
		e := errs.New(errs.KindVersion, "block declares version %d but uses features requiring %d", b.Version, required)
		e.Min, e.Max, e.Actual = int(MinDatalogVersion), int(b.Version), int(required)
		return e
	}
	for _, r := range b.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Encode serializes b to its deterministic wire form.
func (b Block) Encode() []byte {
	e := &encoder{}
	e.varint(uint64(len(b.Symbols)))
	for _, s := range b.Symbols {
		e.str(s)
	}
	e.bool(b.HasContext)
	if b.HasContext {
		e.str(b.Context)
	}
	e.varint(uint64(len(b.Facts)))
	for _, f := range b.Facts {
		e.predicate(f)
	}
	e.varint(uint64(len(b.Rules)))
	for _, r := range b.Rules {
		e.rule(r)
	}
	e.varint(uint64(len(b.Checks)))
	for _, c := range b.Checks {
		e.check(c)
	}
	e.varint(uint64(len(b.Scopes)))
	for _, s := range b.Scopes {
		e.scope(s)
	}
	e.varint(uint64(len(b.PublicKeys)))
	for _, k := range b.PublicKeys {
		e.key(k)
	}
	e.varint(uint64(b.Version))
	return e.buf
}

// DecodeBlock parses a Block produced by Encode.
func DecodeBlock(data []byte) (Block, error) {
	d := &decoder{buf: data}
	var b Block

	n, err := d.varint()
	if err != nil {
		return Block{}, errs.Wrap(errs.KindBlockDeserialization, err, "symbols count")
	}
	b.Symbols = make([]string, n)
	for i := range b.Symbols {
		if b.Symbols[i], err = d.strField(); err != nil {
			return Block{}, errs.Wrap(errs.KindBlockDeserialization, err, "symbol %d", i)
		}
	}

	if b.HasContext, err = d.boolField(); err != nil {
		return Block{}, errs.Wrap(errs.KindBlockDeserialization, err, "context flag")
	}
	if b.HasContext {
		if b.Context, err = d.strField(); err != nil {
			return Block{}, errs.Wrap(errs.KindBlockDeserialization, err, "context")
		}
	}

	if n, err = d.varint(); err != nil {
		return Block{}, errs.Wrap(errs.KindBlockDeserialization, err, "facts count")
	}
	b.Facts = make([]term.Predicate, n)
	for i := range b.Facts {
		if b.Facts[i], err = d.predicate(); err != nil {
			return Block{}, errs.Wrap(errs.KindBlockDeserialization, err, "fact %d", i)
		}
	}

	if n, err = d.varint(); err != nil {
		return Block{}, errs.Wrap(errs.KindBlockDeserialization, err, "rules count")
	}
	b.Rules = make([]datalog.Rule, n)
	for i := range b.Rules {
		if b.Rules[i], err = d.rule(); err != nil {
			return Block{}, errs.Wrap(errs.KindBlockDeserialization, err, "rule %d", i)
		}
	}

	if n, err = d.varint(); err != nil {
		return Block{}, errs.Wrap(errs.KindBlockDeserialization, err, "checks count")
	}
	b.Checks = make([]datalog.Check, n)
	for i := range b.Checks {
		if b.Checks[i], err = d.check(); err != nil {
			return Block{}, errs.Wrap(errs.KindBlockDeserialization, err, "check %d", i)
		}
	}

	if n, err = d.varint(); err != nil {
		return Block{}, errs.Wrap(errs.KindBlockDeserialization, err, "scopes count")
	}
	b.Scopes = make([]datalog.Scope, n)
	for i := range b.Scopes {
		if b.Scopes[i], err = d.scope(); err != nil {
			return Block{}, errs.Wrap(errs.KindBlockDeserialization, err, "scope %d", i)
		}
	}

	if n, err = d.varint(); err != nil {
		return Block{}, errs.Wrap(errs.KindBlockDeserialization, err, "public keys count")
	}
	b.PublicKeys = make([]symbol.Key, n)
	for i := range b.PublicKeys {
		if b.PublicKeys[i], err = d.key(); err != nil {
			return Block{}, errs.Wrap(errs.KindBlockDeserialization, err, "public key %d", i)
		}
	}

	version, err := d.varint()
	if err != nil {
		return Block{}, errs.Wrap(errs.KindBlockDeserialization, err, "version")
	}
	b.Version = uint32(version)

	return b, nil
}
