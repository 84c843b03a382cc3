// Copyright 2025 Certen Protocol
//
// Package symbol implements the append-only interned tables (C1 of the
// Biscuit specification): a SymbolTable mapping strings to numeric ids,
// and a KeyTable mapping public keys to numeric ids. A fresh
// SymbolTable starts with a fixed well-known prefix so tokens minted by
// different producers agree on the common encodings without
// negotiation; a fresh KeyTable starts empty.
package symbol

import "github.com/certen/biscuit/internal/errs"

// ID is a symbol or key table index.
type ID = uint64

// defaultSymbols is the well-known prefix shared by every token. Ids are
// assigned by position, starting at 0; callers must never reorder this
// slice without breaking wire compatibility with already-issued tokens.
var defaultSymbols = []string{
	"read", "write", "resource", "operation", "right", "time", "role",
	"owner", "tenant", "namespace", "ip_address", "node", "hostname",
	"allow", "deny", "admin", "user", "group", "revocation_id",
	"authority", "ambient", "true", "false", "null", "error",
	"file", "path", "method", "status", "client", "server", "session",
	"scope", "audience", "issuer", "subject", "action", "context",
	"organization", "department", "project", "environment", "region",
	"cluster", "service", "version", "tag", "label", "policy", "check",
	"expiration", "not_before", "nonce", "request_id", "trace_id",
	"span_id", "correlation_id", "source", "destination", "protocol",
	"port", "domain", "email", "phone", "address", "country", "currency",
	"amount", "quantity", "unit", "rate", "limit", "quota", "priority",
	"severity", "category", "type", "format", "encoding", "checksum",
	"signature", "public_key", "private_key", "key_id",
}

// SymbolTable is an append-only interned list of strings. A fresh table
// (NewTable) preloads defaultSymbols at fixed low ids.
type SymbolTable struct {
	values []string
	index  map[string]ID
}

// NewTable returns a table preloaded with the default well-known prefix.
func NewTable() *SymbolTable {
	t := &SymbolTable{
		values: make([]string, 0, len(defaultSymbols)),
		index:  make(map[string]ID, len(defaultSymbols)),
	}
	for _, s := range defaultSymbols {
		t.Insert(s)
	}
	return t
}

// NewEmptyTable returns a table with no preloaded symbols, so its ids
// start at 0 with the first inserted value.
func NewEmptyTable() *SymbolTable {
	return &SymbolTable{index: make(map[string]ID)}
}

// Insert returns the existing id for value if present, else appends it
// and returns the new id.
func (t *SymbolTable) Insert(value string) ID {
	if id, ok := t.index[value]; ok {
		return id
	}
	id := ID(len(t.values))
	t.values = append(t.values, value)
	t.index[value] = id
	return id
}

// Get returns the id of value without inserting it.
func (t *SymbolTable) Get(value string) (ID, bool) {
	id, ok := t.index[value]
	return id, ok
}

// Resolve returns the string for id, failing if id is out of range.
func (t *SymbolTable) Resolve(id ID) (string, error) {
	if id >= ID(len(t.values)) {
		return "", errs.New(errs.KindMissingSymbols, "symbol id %d out of range (table has %d entries)", id, len(t.values))
	}
	return t.values[id], nil
}

// Len returns the number of interned symbols.
func (t *SymbolTable) Len() int { return len(t.values) }

// Clone returns an independent copy of t.
func (t *SymbolTable) Clone() *SymbolTable {
	values := make([]string, len(t.values))
	copy(values, t.values)
	index := make(map[string]ID, len(t.index))
	for k, v := range t.index {
		index[k] = v
	}
	return &SymbolTable{values: values, index: index}
}

// Extend appends every symbol of other not already present in t,
// returning a translation table from other's local ids to t's ids.
func (t *SymbolTable) Extend(other *SymbolTable) map[ID]ID {
	translate := make(map[ID]ID, len(other.values))
	for id, value := range other.values {
		translate[ID(id)] = t.Insert(value)
	}
	return translate
}

// NewSymbols returns other's values from id fromID onwards, in other's
// order. It does not consult t: values already present in t are
// returned too.
func (t *SymbolTable) NewSymbols(other *SymbolTable, fromID ID) []string {
	var out []string
	for i := int(fromID); i < len(other.values); i++ {
		out = append(out, other.values[i])
	}
	return out
}

// Values returns a read-only view of the interned strings.
func (t *SymbolTable) Values() []string { return t.values }
