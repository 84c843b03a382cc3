// Copyright 2025 Certen Protocol
//
// Package term implements the Biscuit value domain (C2): Term, MapKey,
// and Predicate. Terms are compared and matched by value; sets, arrays
// and maps never contain Variable terms, and map keys are restricted to
// String or Integer (§3).
package term

import (
	"fmt"
	"sort"

	"github.com/certen/biscuit/pkg/symbol"
)

// Kind tags the concrete variant carried by a Term.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInteger
	KindString
	KindBytes
	KindDate
	KindSet
	KindArray
	KindMap
	KindVariable
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInteger:
		return "integer"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindDate:
		return "date"
	case KindSet:
		return "set"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindVariable:
		return "variable"
	default:
		return "unknown"
	}
}

// MapKey is restricted to String or Integer terms (§3).
type MapKey struct {
	IsString bool
	Str      symbol.ID
	Int      int64
}

func (k MapKey) equal(o MapKey) bool {
	return k.IsString == o.IsString && k.Str == o.Str && k.Int == o.Int
}

func (k MapKey) less(o MapKey) bool {
	if k.IsString != o.IsString {
		return !k.IsString // integers sort before strings, arbitrary but stable
	}
	if k.IsString {
		return k.Str < o.Str
	}
	return k.Int < o.Int
}

// Term is the Biscuit value domain tagged union. Exactly one field is
// meaningful for a given Kind.
type Term struct {
	Kind Kind

	Bool    bool
	Integer int64
	Str     symbol.ID // KindString and KindVariable both intern through SymbolTable
	Bytes   []byte
	Date    uint64 // unix seconds

	Set   []Term
	Array []Term
	Map   []MapEntry
}

// MapEntry is a single key/value pair of a Map term, kept sorted by key
// for deterministic iteration and equality.
type MapEntry struct {
	Key   MapKey
	Value Term
}

func Null() Term                  { return Term{Kind: KindNull} }
func Bool(b bool) Term            { return Term{Kind: KindBool, Bool: b} }
func Integer(i int64) Term        { return Term{Kind: KindInteger, Integer: i} }
func String(id symbol.ID) Term    { return Term{Kind: KindString, Str: id} }
func Bytes(b []byte) Term         { return Term{Kind: KindBytes, Bytes: b} }
func Date(unixSeconds uint64) Term { return Term{Kind: KindDate, Date: unixSeconds} }
func Variable(id symbol.ID) Term  { return Term{Kind: KindVariable, Str: id} }

// NewSet builds a Set term, rejecting Variable members and deduplicating
// by value-equality, then sorting into a canonical order.
func NewSet(members []Term) (Term, error) {
	for _, m := range members {
		if m.Kind == KindVariable {
			return Term{}, fmt.Errorf("term: set cannot contain a variable")
		}
	}
	uniq := make([]Term, 0, len(members))
	for _, m := range members {
		found := false
		for _, u := range uniq {
			if u.Equal(m) {
				found = true
				break
			}
		}
		if !found {
			uniq = append(uniq, m)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].less(uniq[j]) })
	return Term{Kind: KindSet, Set: uniq}, nil
}

// NewArray builds an Array term, rejecting Variable members.
func NewArray(members []Term) (Term, error) {
	for _, m := range members {
		if m.Kind == KindVariable {
			return Term{}, fmt.Errorf("term: array cannot contain a variable")
		}
	}
	cp := make([]Term, len(members))
	copy(cp, members)
	return Term{Kind: KindArray, Array: cp}, nil
}

// NewMap builds a Map term, rejecting Variable values and duplicate keys.
func NewMap(entries []MapEntry) (Term, error) {
	out := make([]MapEntry, 0, len(entries))
	for _, e := range entries {
		if e.Value.Kind == KindVariable {
			return Term{}, fmt.Errorf("term: map value cannot be a variable")
		}
		for _, o := range out {
			if o.Key.equal(e.Key) {
				return Term{}, fmt.Errorf("term: duplicate map key")
			}
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return Term{Kind: KindMap, Map: out}, nil
}

// IsVariable reports whether the term is a Variable.
func (t Term) IsVariable() bool { return t.Kind == KindVariable }

// IsGround reports whether the term and, recursively, all of its
// elements (for Set/Array/Map) contain no Variable. Sets/arrays/maps
// structurally never contain variables (§3), so this is equivalent to
// t.Kind != KindVariable, but named for callers that want the
// groundedness vocabulary from §3 "Fact — a ground Predicate".
func (t Term) IsGround() bool { return t.Kind != KindVariable }

// Equal reports value-equality between two terms, following the tagged
// union: different Kinds are never equal (this is the "same tag"
// equality used internally for fact deduplication and set/map
// membership; cross-tag comparison is a property of the
// HeterogeneousEqual *expression* operator, not of this method — the
// strict Equal/NotEqual operators reject it).
func (t Term) Equal(o Term) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindNull:
		return true
	case KindBool:
		return t.Bool == o.Bool
	case KindInteger:
		return t.Integer == o.Integer
	case KindString, KindVariable:
		return t.Str == o.Str
	case KindBytes:
		return bytesEqual(t.Bytes, o.Bytes)
	case KindDate:
		return t.Date == o.Date
	case KindSet:
		return termsEqual(t.Set, o.Set)
	case KindArray:
		return termsEqual(t.Array, o.Array)
	case KindMap:
		if len(t.Map) != len(o.Map) {
			return false
		}
		for i := range t.Map {
			if !t.Map[i].Key.equal(o.Map[i].Key) || !t.Map[i].Value.Equal(o.Map[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (t Term) less(o Term) bool {
	if t.Kind != o.Kind {
		return t.Kind < o.Kind
	}
	switch t.Kind {
	case KindBool:
		return !t.Bool && o.Bool
	case KindInteger:
		return t.Integer < o.Integer
	case KindString:
		return t.Str < o.Str
	case KindBytes:
		return string(t.Bytes) < string(o.Bytes)
	case KindDate:
		return t.Date < o.Date
	default:
		return false
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func termsEqual(a, b []Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Contains reports whether t (a Set, Array, or Map) contains member;
// for a Map, member is looked up as a key.
func (t Term) Contains(member Term) bool {
	switch t.Kind {
	case KindSet:
		for _, m := range t.Set {
			if m.Equal(member) {
				return true
			}
		}
	case KindArray:
		for _, m := range t.Array {
			if m.Equal(member) {
				return true
			}
		}
	case KindMap:
		key, ok := toMapKey(member)
		if !ok {
			return false
		}
		for _, e := range t.Map {
			if e.Key.equal(key) {
				return true
			}
		}
	}
	return false
}

func toMapKey(t Term) (MapKey, bool) {
	switch t.Kind {
	case KindString:
		return MapKey{IsString: true, Str: t.Str}, true
	case KindInteger:
		return MapKey{IsString: false, Int: t.Integer}, true
	default:
		return MapKey{}, false
	}
}

// Get returns the element at index (Array) or the value for key (Map),
// or (Null(), true) if the index is out of range or the key is missing —
// §4.2's Get semantics. It returns (Term{}, false) when t is not an
// Array or Map, or key has the wrong type for it.
func (t Term) Get(key Term) (Term, bool) {
	switch t.Kind {
	case KindArray:
		if key.Kind != KindInteger {
			return Term{}, false
		}
		idx := key.Integer
		if idx < 0 || idx >= int64(len(t.Array)) {
			return Null(), true
		}
		return t.Array[idx], true
	case KindMap:
		mk, ok := toMapKey(key)
		if !ok {
			return Term{}, false
		}
		for _, e := range t.Map {
			if e.Key.equal(mk) {
				return e.Value, true
			}
		}
		return Null(), true
	default:
		return Term{}, false
	}
}

// Length returns the element count for Set/Array/Map/Bytes, or the
// UTF-8 code-point count for String-resolved text handled by the caller
// (the term itself only stores a symbol id, so string length is computed
// by the expression evaluator which has access to the symbol table).
func (t Term) Length() (int, bool) {
	switch t.Kind {
	case KindSet:
		return len(t.Set), true
	case KindArray:
		return len(t.Array), true
	case KindMap:
		return len(t.Map), true
	case KindBytes:
		return len(t.Bytes), true
	default:
		return 0, false
	}
}
