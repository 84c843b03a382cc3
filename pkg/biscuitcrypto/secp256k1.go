// Copyright 2025 Certen Protocol

package biscuitcrypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/symbol"
)

// secp256k1 support is a domain-stack extension (SPEC_FULL.md §10):
// the curve itself is not part of the upstream toolchain's reference
// implementation, but it is the curve most integrations already hold
// keys on, so verifying against it needs no bridging key material.
type secp256k1Signer struct {
	priv *ecdsa.PrivateKey
}

// GenerateSECP256K1 produces a fresh secp256k1 signing key.
func GenerateSECP256K1() (Signer, error) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate secp256k1 key: %w", err)
	}
	return &secp256k1Signer{priv: priv}, nil
}

func (s *secp256k1Signer) Algorithm() symbol.Algorithm { return symbol.AlgorithmSECP256K1 }

func (s *secp256k1Signer) PublicKey() symbol.Key {
	b := ethcrypto.CompressPubkey(&s.priv.PublicKey)
	return symbol.Key{Algorithm: symbol.AlgorithmSECP256K1, Bytes: b}
}

func (s *secp256k1Signer) Sign(payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	sig, err := ethcrypto.Sign(digest[:], s.priv)
	if err != nil {
		return nil, fmt.Errorf("sign with secp256k1 key: %w", err)
	}
	return sig[:64], nil // drop the recovery byte, it carries no information we verify against
}

func (s *secp256k1Signer) MarshalSecret() []byte {
	return ethcrypto.FromECDSA(s.priv)
}

// LoadSECP256K1 reconstructs a signer from a 32-byte big-endian scalar.
func LoadSECP256K1(secret []byte) (Signer, error) {
	priv, err := ethcrypto.ToECDSA(secret)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidFormat, err, "malformed secp256k1 secret")
	}
	return &secp256k1Signer{priv: priv}, nil
}

type secp256k1Verifier struct{}

func (secp256k1Verifier) Algorithm() symbol.Algorithm { return symbol.AlgorithmSECP256K1 }

func (secp256k1Verifier) Verify(pub symbol.Key, payload, signature []byte) error {
	pk, err := ethcrypto.DecompressPubkey(pub.Bytes)
	if err != nil {
		return errs.Wrap(errs.KindInvalidFormat, err, "malformed secp256k1 compressed public key")
	}
	if len(signature) != 64 {
		return errs.New(errs.KindInvalidSignatureSize, "secp256k1 signature must be 64 bytes, got %d", len(signature))
	}
	digest := sha256.Sum256(payload)
	uncompressed := ethcrypto.FromECDSAPub(pk)
	if !ethcrypto.VerifySignature(uncompressed, digest[:], signature) {
		return errs.New(errs.KindInvalidSignature, "secp256k1 signature verification failed")
	}
	return nil
}
