// Copyright 2025 Certen Protocol

package datalog

import (
	"fmt"

	"github.com/certen/biscuit/pkg/term"
)

// Fact is a ground Predicate tagged with the Origin that produced it
// (§3). Facts loaded directly from a block carry that block's own
// single-index Origin; derived facts carry the union of every
// contributing fact's Origin plus the deriving rule's own block index.
type Fact struct {
	Predicate term.Predicate
	Origin    Origin
}

// key returns a canonical string for value-equality-based deduplication
// (origin is deliberately excluded: duplicate facts dedup by predicate
// value and have their origins unioned, §4.3).
func (f Fact) key() string {
	return predicateKey(f.Predicate)
}

func predicateKey(p term.Predicate) string {
	s := fmt.Sprintf("%d(", p.Name)
	for i, t := range p.Terms {
		if i > 0 {
			s += ","
		}
		s += termKey(t)
	}
	return s + ")"
}

func termKey(t term.Term) string {
	switch t.Kind {
	case term.KindNull:
		return "n"
	case term.KindBool:
		return fmt.Sprintf("b%v", t.Bool)
	case term.KindInteger:
		return fmt.Sprintf("i%d", t.Integer)
	case term.KindString:
		return fmt.Sprintf("s%d", t.Str)
	case term.KindBytes:
		return fmt.Sprintf("x%x", t.Bytes)
	case term.KindDate:
		return fmt.Sprintf("d%d", t.Date)
	case term.KindVariable:
		return fmt.Sprintf("v%d", t.Str)
	case term.KindSet:
		s := "{"
		for _, e := range t.Set {
			s += termKey(e) + ","
		}
		return s + "}"
	case term.KindArray:
		s := "["
		for _, e := range t.Array {
			s += termKey(e) + ","
		}
		return s + "]"
	case term.KindMap:
		s := "m{"
		for _, e := range t.Map {
			if e.Key.IsString {
				s += fmt.Sprintf("s%d:", e.Key.Str)
			} else {
				s += fmt.Sprintf("i%d:", e.Key.Int)
			}
			s += termKey(e.Value) + ","
		}
		return s + "}"
	default:
		return "?"
	}
}
