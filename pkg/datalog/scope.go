// Copyright 2025 Certen Protocol

package datalog

import "github.com/certen/biscuit/pkg/symbol"

// ScopeKind enumerates the trust-scope variants (§3).
type ScopeKind int

const (
	ScopeAuthority ScopeKind = iota
	ScopePrevious
	ScopePublicKey
)

// Scope restricts which block origins a rule or check-query trusts.
type Scope struct {
	Kind  ScopeKind
	KeyID symbol.ID // meaningful only when Kind == ScopePublicKey
}

// KeyBlockIndex maps a key-table id to every block index whose
// externalKey equals that key, used to resolve PublicKey(k) scopes.
type KeyBlockIndex map[symbol.ID][]BlockIndex

// TrustedOrigins computes the set of block indices a rule (or
// check/policy query) with the given scopes and own block index is
// allowed to read facts from (§4.3):
//
//   - empty scopes -> {0, ownBlockIndex}
//   - Authority adds {0}
//   - Previous adds {0..ownBlockIndex-1} (rejected in the authority
//     block by the caller; this function does not itself validate that)
//   - PublicKey(k) adds every block index whose externalKey == k
//   - the authorizer pseudo-origin is always trusted
func TrustedOrigins(scopes []Scope, ownBlockIndex BlockIndex, keyIndex KeyBlockIndex) Origin {
	var indices []BlockIndex
	if len(scopes) == 0 {
		indices = append(indices, 0, ownBlockIndex)
	} else {
		for _, s := range scopes {
			switch s.Kind {
			case ScopeAuthority:
				indices = append(indices, 0)
			case ScopePrevious:
				for i := BlockIndex(0); i < ownBlockIndex; i++ {
					indices = append(indices, i)
				}
			case ScopePublicKey:
				indices = append(indices, keyIndex[s.KeyID]...)
			}
		}
	}
	indices = append(indices, AuthorizerOrigin)
	return NewOrigin(indices...)
}
