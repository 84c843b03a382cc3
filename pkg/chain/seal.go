// Copyright 2025 Certen Protocol

package chain

import "github.com/certen/biscuit/internal/errs"

// Seal transitions t into the terminal FinalSignature proof state
// (§4.4): proof = FinalSignature(sig) where sig is produced by the
// current next-block key over the last block's sealing payload. Once
// sealed, Append and AppendThirdParty are rejected.
func (t *Token) Seal() (*Token, error) {
	if t.Proof.Sealed() {
		return nil, errs.New(errs.KindSealed, "token is already sealed")
	}
	if t.nextSigner == nil {
		return nil, errs.New(errs.KindSealed, "token has no reconstructible next-block key")
	}

	last := t.lastSignedBlock()
	payload := sealPayload(last.BlockBytes, last.NextKey, last.Signature)
	sig, err := t.nextSigner.Sign(payload)
	if err != nil {
		return nil, err
	}

	next := t.clone()
	next.Proof = Proof{FinalSignature: sig}
	next.nextSigner = nil
	return next, nil
}
