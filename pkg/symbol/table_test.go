// Copyright 2025 Certen Protocol

package symbol

import "testing"

func TestNewTablePreloadsDefaults(t *testing.T) {
	tbl := NewTable()
	if tbl.Len() != len(defaultSymbols) {
		t.Fatalf("got %d preloaded symbols, want %d", tbl.Len(), len(defaultSymbols))
	}
	id, ok := tbl.Get("read")
	if !ok || id != 0 {
		t.Fatalf("expected %q at id 0, got id=%d ok=%v", "read", id, ok)
	}
}

func TestInsertReturnsExistingID(t *testing.T) {
	tbl := NewEmptyTable()
	a := tbl.Insert("hello")
	b := tbl.Insert("hello")
	if a != b {
		t.Fatalf("expected same id for repeated insert, got %d and %d", a, b)
	}
	if tbl.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", tbl.Len())
	}
}

func TestResolveOutOfRange(t *testing.T) {
	tbl := NewEmptyTable()
	if _, err := tbl.Resolve(42); err == nil {
		t.Fatal("expected error resolving out-of-range id")
	}
}

func TestExtendTranslatesIDs(t *testing.T) {
	base := NewEmptyTable()
	base.Insert("a")
	base.Insert("b")

	block := NewEmptyTable()
	block.Insert("b") // duplicate of base's "b"
	block.Insert("c") // new to base

	translate := base.Extend(block)

	bID, _ := block.Get("b")
	cID, _ := block.Get("c")

	baseBID, _ := base.Get("b")
	if translate[bID] != baseBID {
		t.Fatalf("expected duplicate symbol to translate to existing id %d, got %d", baseBID, translate[bID])
	}

	resolved, err := base.Resolve(translate[cID])
	if err != nil || resolved != "c" {
		t.Fatalf("expected translated id to resolve to %q, got %q (err=%v)", "c", resolved, err)
	}
}

func TestKeyTableInsertDedups(t *testing.T) {
	kt := NewKeyTable()
	k := Key{Algorithm: AlgorithmEd25519, Bytes: []byte{1, 2, 3}}
	a := kt.Insert(k)
	b := kt.Insert(Key{Algorithm: AlgorithmEd25519, Bytes: []byte{1, 2, 3}})
	if a != b {
		t.Fatalf("expected equal keys to dedup to same id, got %d and %d", a, b)
	}
	if kt.Len() != 1 {
		t.Fatalf("expected 1 key, got %d", kt.Len())
	}
}

func TestKeyTableExtend(t *testing.T) {
	base := NewKeyTable()
	base.Insert(Key{Algorithm: AlgorithmEd25519, Bytes: []byte{1}})

	block := NewKeyTable()
	block.Insert(Key{Algorithm: AlgorithmEd25519, Bytes: []byte{1}})
	block.Insert(Key{Algorithm: AlgorithmEd25519, Bytes: []byte{2}})

	translate := base.Extend(block)
	if base.Len() != 2 {
		t.Fatalf("expected base to grow to 2 keys, got %d", base.Len())
	}
	k2, _ := base.Resolve(translate[1])
	if k2.Bytes[0] != 2 {
		t.Fatalf("expected translated id to resolve to new key, got %+v", k2)
	}
}
