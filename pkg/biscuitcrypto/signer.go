// Copyright 2025 Certen Protocol
//
// Package biscuitcrypto provides the per-block signature primitives of
// the block chain (C4): a pluggable Signer/Verifier pair per algorithm,
// modeled on the attestation-strategy pattern used elsewhere in this
// codebase for other signature schemes.
package biscuitcrypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/symbol"
)

// Signer produces detached signatures over arbitrary payloads.
type Signer interface {
	Algorithm() symbol.Algorithm
	PublicKey() symbol.Key
	Sign(payload []byte) ([]byte, error)
}

// Verifier checks a detached signature against a public key.
type Verifier interface {
	Algorithm() symbol.Algorithm
	Verify(pub symbol.Key, payload, signature []byte) error
}

// SecretMarshaler is implemented by every Signer in this package so an
// unsealed token's next-block key can round-trip through the wire
// Proof message's next_secret field.
type SecretMarshaler interface {
	MarshalSecret() []byte
}

// LoadSigner reconstructs a Signer of the given algorithm from its
// marshaled secret bytes.
func LoadSigner(alg symbol.Algorithm, secret []byte) (Signer, error) {
	switch alg {
	case symbol.AlgorithmEd25519:
		return LoadEd25519(secret)
	case symbol.AlgorithmSECP256R1:
		return LoadP256(secret)
	case symbol.AlgorithmSECP256K1:
		return LoadSECP256K1(secret)
	default:
		return nil, errs.New(errs.KindUnknownPublicKey, "unsupported signature algorithm %d", alg)
	}
}

// NewVerifier returns the stateless Verifier for alg, or an error if the
// algorithm is unknown.
func NewVerifier(alg symbol.Algorithm) (Verifier, error) {
	switch alg {
	case symbol.AlgorithmEd25519:
		return ed25519Verifier{}, nil
	case symbol.AlgorithmSECP256R1:
		return p256Verifier{}, nil
	case symbol.AlgorithmSECP256K1:
		return secp256k1Verifier{}, nil
	default:
		return nil, errs.New(errs.KindUnknownPublicKey, "unsupported signature algorithm %d", alg)
	}
}

// GenerateEd25519 produces a fresh Ed25519 signing key, the default
// algorithm for new tokens (it is the fastest to sign and verify and
// carries no malleability concerns for this use case).
func GenerateEd25519() (Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &ed25519Signer{priv: priv, pub: pub}, nil
}
