// Copyright 2025 Certen Protocol

package chain

import (
	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/biscuitcrypto"
	"github.com/certen/biscuit/pkg/symbol"
)

// Verify runs the chain verification algorithm against root (§4.4):
// the authority block's V0 signature under root, each subsequent
// block's signature (and external signature, if any) under the
// running current key, and finally the proof — either the held
// NextSecret's public key must equal the current key, or the seal's
// FinalSignature must verify.
func (t *Token) Verify(root symbol.Key) error {
	currentKey := root
	previousSignature := []byte(nil)

	if err := verifyOne(t.Authority, currentKey, previousSignature); err != nil {
		return errs.Wrap(errs.KindInvalidSignature, err, "authority block")
	}
	currentKey = t.Authority.NextKey
	previousSignature = t.Authority.Signature

	for i, b := range t.Blocks {
		if err := verifyOne(b, currentKey, previousSignature); err != nil {
			return errs.Wrap(errs.KindInvalidSignature, err, "block %d", i+1)
		}
		currentKey = b.NextKey
		previousSignature = b.Signature
	}

	if t.Proof.Sealed() {
		v, err := biscuitcrypto.NewVerifier(currentKey.Algorithm)
		if err != nil {
			return err
		}
		last := t.lastSignedBlock()
		payload := sealPayload(last.BlockBytes, last.NextKey, last.Signature)
		if err := v.Verify(currentKey, payload, t.Proof.FinalSignature); err != nil {
			return errs.Wrap(errs.KindInvalidSignature, err, "seal")
		}
		return nil
	}

	signer, err := biscuitcrypto.LoadSigner(t.Proof.NextSecretAlgorithm, t.Proof.NextSecretBytes)
	if err != nil {
		return errs.Wrap(errs.KindInvalidFormat, err, "proof next secret")
	}
	if !publicKeyEqual(signer.PublicKey(), currentKey) {
		return errs.New(errs.KindInvalidSignature, "proof next key does not match chain's current key")
	}
	return nil
}

func publicKeyEqual(a, b symbol.Key) bool {
	return a.Hex() == b.Hex()
}

func verifyOne(b SignedBlock, currentKey symbol.Key, previousSignature []byte) error {
	v, err := biscuitcrypto.NewVerifier(currentKey.Algorithm)
	if err != nil {
		return err
	}
	var externalBytes []byte
	if b.External != nil {
		externalBytes = b.External.Signature
	}
	payload := signaturePayload(b.BlockBytes, externalBytes, b.NextKey, b.Version, previousSignature)
	if err := v.Verify(currentKey, payload, b.Signature); err != nil {
		return err
	}
	if b.External != nil {
		extVerifier, err := biscuitcrypto.NewVerifier(b.External.PublicKey.Algorithm)
		if err != nil {
			return err
		}
		extPayload := externalPayload(b.BlockBytes, previousSignature, uint32(b.Version))
		if err := extVerifier.Verify(b.External.PublicKey, extPayload, b.External.Signature); err != nil {
			return errs.Wrap(errs.KindInvalidSignature, err, "external signature")
		}
	}
	return nil
}
