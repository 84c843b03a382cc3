// Copyright 2025 Certen Protocol

package chain

import (
	"bytes"
	"testing"

	"github.com/certen/biscuit/pkg/biscuitcrypto"
	"github.com/certen/biscuit/pkg/symbol"
	"github.com/certen/biscuit/pkg/term"
)

func TestBlockIDForFactAndPrefixDigest(t *testing.T) {
	root, err := biscuitcrypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("generate root: %v", err)
	}
	symbols := symbol.NewTable()
	authority := Block{
		Facts:   []term.Predicate{rightPredicate(symbols, "alice", "file1", "read")},
		Symbols: symbols.Values(),
		Version: DatalogV3,
	}
	tok, err := New(authority, root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	idx, err := tok.BlockIDForFact("right", "alice", "file1", "read")
	if err != nil {
		t.Fatalf("BlockIDForFact: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected authority block (0), got %d", idx)
	}

	if _, err := tok.BlockIDForFact("right", "bob", "file1", "read"); err == nil {
		t.Fatal("expected BlockIDForFact to fail for a fact that is not present")
	}

	digest1, err := tok.PrefixDigest(1)
	if err != nil {
		t.Fatalf("prefix digest: %v", err)
	}
	digest2, err := tok.PrefixDigest(1)
	if err != nil {
		t.Fatalf("prefix digest: %v", err)
	}
	if !bytes.Equal(digest1, digest2) {
		t.Fatal("expected PrefixDigest to be deterministic for the same token")
	}

	if _, err := tok.PrefixDigest(0); err == nil {
		t.Fatal("expected PrefixDigest(0) to be rejected")
	}

	if s := tok.String(); s == "" {
		t.Fatal("expected String() to render non-empty block text")
	}
}
