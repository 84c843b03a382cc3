// Copyright 2025 Certen Protocol

package biscuitcrypto

import (
	"crypto/ed25519"

	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/symbol"
)

type ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// LoadEd25519 wraps an existing 64-byte Ed25519 private key.
func LoadEd25519(priv ed25519.PrivateKey) (Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, errs.New(errs.KindInvalidSignatureSize, "ed25519 private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	return &ed25519Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

func (s *ed25519Signer) Algorithm() symbol.Algorithm { return symbol.AlgorithmEd25519 }

func (s *ed25519Signer) PublicKey() symbol.Key {
	return symbol.Key{Algorithm: symbol.AlgorithmEd25519, Bytes: append([]byte(nil), s.pub...)}
}

func (s *ed25519Signer) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, payload), nil
}

func (s *ed25519Signer) MarshalSecret() []byte { return append([]byte(nil), s.priv...) }

type ed25519Verifier struct{}

func (ed25519Verifier) Algorithm() symbol.Algorithm { return symbol.AlgorithmEd25519 }

func (ed25519Verifier) Verify(pub symbol.Key, payload, signature []byte) error {
	if len(pub.Bytes) != ed25519.PublicKeySize {
		return errs.New(errs.KindInvalidSignatureSize, "ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub.Bytes))
	}
	if len(signature) != ed25519.SignatureSize {
		return errs.New(errs.KindInvalidSignatureSize, "ed25519 signature must be %d bytes, got %d", ed25519.SignatureSize, len(signature))
	}
	if !ed25519.Verify(ed25519.PublicKey(pub.Bytes), payload, signature) {
		return errs.New(errs.KindInvalidSignature, "ed25519 signature verification failed")
	}
	return nil
}
