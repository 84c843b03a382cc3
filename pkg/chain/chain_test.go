// Copyright 2025 Certen Protocol

package chain

import (
	"testing"

	"github.com/certen/biscuit/pkg/biscuitcrypto"
	"github.com/certen/biscuit/pkg/symbol"
	"github.com/certen/biscuit/pkg/term"
)

func rightPredicate(symbols *symbol.SymbolTable, subject, resource, op string) term.Predicate {
	return term.Predicate{
		Name: symbols.Insert("right"),
		Terms: []term.Term{
			term.String(symbols.Insert(subject)),
			term.String(symbols.Insert(resource)),
			term.String(symbols.Insert(op)),
		},
	}
}

func TestBlockEncodeDecodeRoundTrip(t *testing.T) {
	symbols := symbol.NewTable()
	b := Block{
		Facts:   []term.Predicate{rightPredicate(symbols, "alice", "file1", "read")},
		Symbols: symbols.Values(),
		Version: DatalogV3,
	}
	encoded := b.Encode()
	decoded, err := DecodeBlock(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Facts) != 1 || decoded.Facts[0].Name != b.Facts[0].Name {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestTokenCreateAppendVerify(t *testing.T) {
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
	if err := tok.Verify(root.PublicKey()); err != nil {
		t.Fatalf("verify fresh token: %v", err)
	}

	block := Block{Version: DatalogV3}
	attenuated, err := tok.Append(block)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := attenuated.Verify(root.PublicKey()); err != nil {
		t.Fatalf("verify attenuated token: %v", err)
	}
	if len(attenuated.RevocationIDs()) != 2 {
		t.Fatalf("expected 2 revocation ids, got %d", len(attenuated.RevocationIDs()))
	}

	sealed, err := attenuated.Seal()
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if err := sealed.Verify(root.PublicKey()); err != nil {
		t.Fatalf("verify sealed token: %v", err)
	}
	if _, err := sealed.Append(Block{Version: DatalogV3}); err == nil {
		t.Fatal("expected append on sealed token to fail")
	}
}

func TestTamperedSignatureRejected(t *testing.T) {
	root, err := biscuitcrypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("generate root: %v", err)
	}
	symbols := symbol.NewTable()
	authority := Block{Facts: []term.Predicate{rightPredicate(symbols, "alice", "file1", "read")}, Symbols: symbols.Values(), Version: DatalogV3}
	tok, err := New(authority, root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	tok.Authority.Signature[0] ^= 0xFF
	if err := tok.Verify(root.PublicKey()); err == nil {
		t.Fatal("expected tampered signature to fail verification")
	}
}
