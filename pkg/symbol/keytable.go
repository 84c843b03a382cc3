// Copyright 2025 Certen Protocol

package symbol

import "encoding/hex"

// Algorithm identifies a signature algorithm, matching the wire format's
// PublicKey.algorithm enum (§6).
type Algorithm uint32

const (
	AlgorithmEd25519    Algorithm = 0
	AlgorithmSECP256R1  Algorithm = 1 // ECDSA-P256, DER-encoded signatures
	AlgorithmSECP256K1  Algorithm = 2 // domain-stack extension, see SPEC_FULL.md
)

// Key is the interned form of a public key: algorithm tag plus raw or
// DER/compressed bytes, exactly as carried on the wire (§6).
type Key struct {
	Algorithm Algorithm
	Bytes     []byte
}

func (k Key) equal(other Key) bool {
	if k.Algorithm != other.Algorithm || len(k.Bytes) != len(other.Bytes) {
		return false
	}
	for i := range k.Bytes {
		if k.Bytes[i] != other.Bytes[i] {
			return false
		}
	}
	return true
}

// Hex returns the key bytes hex-encoded, for debugging/logging, mirroring
// the teacher's KeyManager.PublicKeyHex/GetPublicKeyHex helpers.
func (k Key) Hex() string { return hex.EncodeToString(k.Bytes) }

// KeyTable is an append-only interned list of public keys, used to
// resolve PublicKey(keyId) scopes (§3) without repeating key bytes in
// every scope/rule that references them.
type KeyTable struct {
	values []Key
}

// NewKeyTable returns an empty key table.
func NewKeyTable() *KeyTable {
	return &KeyTable{}
}

// Insert returns the existing id for key if present, else appends it.
func (t *KeyTable) Insert(key Key) ID {
	for i, existing := range t.values {
		if existing.equal(key) {
			return ID(i)
		}
	}
	id := ID(len(t.values))
	t.values = append(t.values, key)
	return id
}

// Resolve returns the key for id, failing if out of range.
func (t *KeyTable) Resolve(id ID) (Key, bool) {
	if id >= ID(len(t.values)) {
		return Key{}, false
	}
	return t.values[id], true
}

// IndexOf returns the id of key if present.
func (t *KeyTable) IndexOf(key Key) (ID, bool) {
	for i, existing := range t.values {
		if existing.equal(key) {
			return ID(i), true
		}
	}
	return 0, false
}

// Len returns the number of interned keys.
func (t *KeyTable) Len() int { return len(t.values) }

// Clone returns an independent copy of t.
func (t *KeyTable) Clone() *KeyTable {
	values := make([]Key, len(t.values))
	copy(values, t.values)
	return &KeyTable{values: values}
}

// Extend appends every key of other not already present in t, returning
// a translation table from other's local ids to t's ids.
func (t *KeyTable) Extend(other *KeyTable) map[ID]ID {
	translate := make(map[ID]ID, len(other.values))
	for id, key := range other.values {
		translate[ID(id)] = t.Insert(key)
	}
	return translate
}

// Values returns a read-only view of the interned keys.
func (t *KeyTable) Values() []Key { return t.values }
