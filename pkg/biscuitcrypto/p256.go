// Copyright 2025 Certen Protocol

package biscuitcrypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/symbol"
)

type p256Signer struct {
	priv *ecdsa.PrivateKey
}

// GenerateP256 produces a fresh NIST P-256 signing key, the algorithm
// offered for integration with ecosystems that already standardize on
// FIPS-approved curves.
func GenerateP256() (Signer, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate p256 key: %w", err)
	}
	return &p256Signer{priv: priv}, nil
}

func (s *p256Signer) Algorithm() symbol.Algorithm { return symbol.AlgorithmSECP256R1 }

func (s *p256Signer) PublicKey() symbol.Key {
	b := elliptic.MarshalCompressed(elliptic.P256(), s.priv.PublicKey.X, s.priv.PublicKey.Y)
	return symbol.Key{Algorithm: symbol.AlgorithmSECP256R1, Bytes: b}
}

func (s *p256Signer) Sign(payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	sig, err := ecdsa.SignASN1(rand.Reader, s.priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign with p256 key: %w", err)
	}
	return sig, nil
}

func (s *p256Signer) MarshalSecret() []byte {
	b := make([]byte, 32)
	s.priv.D.FillBytes(b)
	return b
}

// LoadP256 reconstructs a signer from a 32-byte big-endian scalar.
func LoadP256(secret []byte) (Signer, error) {
	if len(secret) != 32 {
		return nil, errs.New(errs.KindInvalidSignatureSize, "p256 secret must be 32 bytes, got %d", len(secret))
	}
	d := new(big.Int).SetBytes(secret)
	priv := new(ecdsa.PrivateKey)
	priv.Curve = elliptic.P256()
	priv.D = d
	priv.PublicKey.X, priv.PublicKey.Y = priv.Curve.ScalarBaseMult(secret)
	return &p256Signer{priv: priv}, nil
}

type p256Verifier struct{}

func (p256Verifier) Algorithm() symbol.Algorithm { return symbol.AlgorithmSECP256R1 }

func (p256Verifier) Verify(pub symbol.Key, payload, signature []byte) error {
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), pub.Bytes)
	if x == nil {
		return errs.New(errs.KindInvalidFormat, "malformed p256 compressed public key")
	}
	pk := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	digest := sha256.Sum256(payload)

	var parsed struct{ R, S *big.Int }
	if _, err := asn1.Unmarshal(signature, &parsed); err != nil {
		return errs.Wrap(errs.KindInvalidFormat, err, "malformed p256 asn.1 signature")
	}
	if !ecdsa.Verify(pk, digest[:], parsed.R, parsed.S) {
		return errs.New(errs.KindInvalidSignature, "p256 signature verification failed")
	}
	return nil
}
