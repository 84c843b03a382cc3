// Copyright 2025 Certen Protocol
//
// Supplemented read-only introspection helpers, grounded on the
// reference biscuit-go implementation's GetBlockID/SHA256Sum/String
// (other_examples/.../biscuit.go.go): useful for debugging an
// attenuated token without altering its semantics.
package chain

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/symbol"
	"github.com/certen/biscuit/pkg/term"
)

// BlockIDForFact returns the index (0 = authority) of the first block
// whose facts include a predicate named name applied to exactly these
// string-valued terms, authority-first then append order. Only string
// terms are matched — the common case for debugging authorization
// facts like right("file1", "read").
func (t *Token) BlockIDForFact(name string, args ...string) (int, error) {
	for i := 0; i < t.BlockCount(); i++ {
		block, err := DecodeBlock(t.SignedBlockAt(i).BlockBytes)
		if err != nil {
			return -1, errs.Wrap(errs.KindBlockDeserialization, err, "block %d", i)
		}
		local := symbol.NewTable()
		for _, s := range block.Symbols {
			local.Insert(s)
		}
		for _, pred := range block.Facts {
			if factMatches(pred, local, name, args) {
				return i, nil
			}
		}
	}
	return -1, errs.New(errs.KindFactNotFound, "no block contains fact %s with the given arguments", name)
}

func factMatches(pred term.Predicate, local *symbol.SymbolTable, name string, args []string) bool {
	predName, err := local.Resolve(pred.Name)
	if err != nil || predName != name || len(pred.Terms) != len(args) {
		return false
	}
	for i, t := range pred.Terms {
		s, ok := resolveStringTerm(t, local)
		if !ok || s != args[i] {
			return false
		}
	}
	return true
}

func resolveStringTerm(t term.Term, local *symbol.SymbolTable) (string, bool) {
	if t.Kind != term.KindString {
		return "", false
	}
	s, err := local.Resolve(t.Str)
	if err != nil {
		return "", false
	}
	return s, true
}

// PrefixDigest hashes the first count blocks (authority is block 0)
// together with each block's next signing key, so two tokens sharing a
// delegation lineage can be compared cheaply without decoding facts.
func (t *Token) PrefixDigest(count int) ([]byte, error) {
	if count < 1 || count > t.BlockCount() {
		return nil, errs.New(errs.KindInvalidBlockIndex, "prefix digest count %d out of range [1,%d]", count, t.BlockCount())
	}
	h := sha256.New()
	for i := 0; i < count; i++ {
		sb := t.SignedBlockAt(i)
		h.Write(sb.BlockBytes)
		h.Write(algTag(sb.NextKey.Algorithm))
		h.Write(sb.NextKey.Bytes)
	}
	return h.Sum(nil), nil
}

// String renders the token's blocks as human-readable Datalog text,
// one block at a time, for debugging. It never participates in
// Encode/DecodeToken and has no bearing on verification.
func (t *Token) String() string {
	var b strings.Builder
	for i := 0; i < t.BlockCount(); i++ {
		block, err := DecodeBlock(t.SignedBlockAt(i).BlockBytes)
		if err != nil {
			fmt.Fprintf(&b, "block %d: <undecodable: %v>\n", i, err)
			continue
		}
		local := symbol.NewTable()
		for _, s := range block.Symbols {
			local.Insert(s)
		}
		label := "authority"
		if i > 0 {
			label = fmt.Sprintf("block[%d]", i)
		}
		fmt.Fprintf(&b, "%s {\n", label)
		for _, f := range block.Facts {
			fmt.Fprintf(&b, "  %s;\n", formatPredicate(f, local))
		}
		for _, r := range block.Rules {
			fmt.Fprintf(&b, "  %s <- %s;\n", formatPredicate(r.Head, local), formatBody(r.Body, local))
		}
		fmt.Fprintf(&b, "}\n")
	}
	return b.String()
}

func formatBody(preds []term.Predicate, local *symbol.SymbolTable) string {
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = formatPredicate(p, local)
	}
	return strings.Join(parts, ", ")
}

func formatPredicate(p term.Predicate, local *symbol.SymbolTable) string {
	name, _ := local.Resolve(p.Name)
	parts := make([]string, len(p.Terms))
	for i, tm := range p.Terms {
		parts[i] = formatTerm(tm, local)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}

func formatTerm(tm term.Term, local *symbol.SymbolTable) string {
	switch tm.Kind {
	case term.KindVariable:
		s, _ := local.Resolve(tm.Str)
		return "$" + s
	case term.KindString:
		s, _ := local.Resolve(tm.Str)
		return fmt.Sprintf("%q", s)
	case term.KindNull:
		return "null"
	case term.KindBool:
		return fmt.Sprintf("%v", tm.Bool)
	case term.KindInteger:
		return fmt.Sprintf("%d", tm.Integer)
	case term.KindBytes:
		return fmt.Sprintf("hex:%x", tm.Bytes)
	case term.KindDate:
		return fmt.Sprintf("date(%d)", tm.Date)
	case term.KindSet:
		parts := make([]string, len(tm.Set))
		for i, m := range tm.Set {
			parts[i] = formatTerm(m, local)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case term.KindArray:
		parts := make([]string, len(tm.Array))
		for i, m := range tm.Array {
			parts[i] = formatTerm(m, local)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "?"
	}
}
