// Copyright 2025 Certen Protocol

package chain

import (
	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/biscuitcrypto"
)

func marshalSecret(s biscuitcrypto.Signer) []byte {
	m, ok := s.(biscuitcrypto.SecretMarshaler)
	if !ok {
		return nil
	}
	return m.MarshalSecret()
}

// New creates a token whose sole block is authority, signed by root.
// Tokens start in the NextSecret proof state (§4.4's state machine).
func New(authority Block, root biscuitcrypto.Signer) (*Token, error) {
	if authority.Version == 0 {
		authority.Version = authority.RequiredVersion()
	}
	if err := authority.Validate(); err != nil {
		return nil, err
	}

	nextSigner, err := biscuitcrypto.GenerateEd25519()
	if err != nil {
		return nil, err
	}

	blockBytes := authority.Encode()
	payload := signaturePayload(blockBytes, nil, nextSigner.PublicKey(), SignatureV0, nil)
	sig, err := root.Sign(payload)
	if err != nil {
		return nil, err
	}

	t := &Token{
		Authority: SignedBlock{
			BlockBytes: blockBytes,
			NextKey:    nextSigner.PublicKey(),
			Signature:  sig,
			Version:    SignatureV0,
		},
		Proof: Proof{
			NextSecretAlgorithm: nextSigner.Algorithm(),
			NextSecretBytes:     marshalSecret(nextSigner),
		},
		nextSigner: nextSigner,
	}
	return t, nil
}

// Append attenuates t with a new block, signed by t's current ephemeral
// key, returning a new, independent Token (§4.4, §5: tokens are
// immutable; attenuation never mutates the receiver).
func (t *Token) Append(block Block) (*Token, error) {
	if t.Proof.Sealed() {
		return nil, errs.New(errs.KindSealed, "cannot append to a sealed token")
	}
	if t.nextSigner == nil {
		return nil, errs.New(errs.KindSealed, "token has no reconstructible next-block key")
	}
	if block.Version == 0 {
		block.Version = block.RequiredVersion()
	}
	if err := block.Validate(); err != nil {
		return nil, err
	}

	blockBytes := block.Encode()
	newNextSigner, err := biscuitcrypto.GenerateEd25519()
	if err != nil {
		return nil, err
	}

	previous := t.lastSignedBlock()
	version := SignatureV1
	payload := signaturePayload(blockBytes, nil, newNextSigner.PublicKey(), version, previous.Signature)
	sig, err := t.nextSigner.Sign(payload)
	if err != nil {
		return nil, err
	}

	next := t.clone()
	next.Blocks = append(next.Blocks, SignedBlock{
		BlockBytes: blockBytes,
		NextKey:    newNextSigner.PublicKey(),
		Signature:  sig,
		Version:    version,
	})
	next.Proof = Proof{NextSecretAlgorithm: newNextSigner.Algorithm(), NextSecretBytes: marshalSecret(newNextSigner)}
	next.nextSigner = newNextSigner
	return next, nil
}

// AppendThirdParty attenuates t with a block counter-signed by an
// external signer (§4.4): external signs payload_ext with its own key,
// then t's current ephemeral key signs a normal block payload that
// embeds the external signature bytes.
func (t *Token) AppendThirdParty(block Block, external biscuitcrypto.Signer) (*Token, error) {
	if t.Proof.Sealed() {
		return nil, errs.New(errs.KindSealed, "cannot append to a sealed token")
	}
	if t.nextSigner == nil {
		return nil, errs.New(errs.KindSealed, "token has no reconstructible next-block key")
	}
	if block.Version == 0 {
		block.Version = block.RequiredVersion()
	}
	block.Version = maxVersion(block.Version, DatalogV3_2)
	if err := block.Validate(); err != nil {
		return nil, err
	}

	blockBytes := block.Encode()
	previous := t.lastSignedBlock()

	extPayload := externalPayload(blockBytes, previous.Signature, uint32(SignatureV1))
	extSig, err := external.Sign(extPayload)
	if err != nil {
		return nil, err
	}
	ext := &ExternalSignature{Signature: extSig, PublicKey: external.PublicKey()}

	newNextSigner, err := biscuitcrypto.GenerateEd25519()
	if err != nil {
		return nil, err
	}

	payload := signaturePayload(blockBytes, extSig, newNextSigner.PublicKey(), SignatureV1, previous.Signature)
	sig, err := t.nextSigner.Sign(payload)
	if err != nil {
		return nil, err
	}

	next := t.clone()
	next.Blocks = append(next.Blocks, SignedBlock{
		BlockBytes: blockBytes,
		NextKey:    newNextSigner.PublicKey(),
		Signature:  sig,
		External:   ext,
		Version:    SignatureV1,
	})
	next.Proof = Proof{NextSecretAlgorithm: newNextSigner.Algorithm(), NextSecretBytes: marshalSecret(newNextSigner)}
	next.nextSigner = newNextSigner
	return next, nil
}

func (t *Token) clone() *Token {
	blocks := make([]SignedBlock, len(t.Blocks))
	copy(blocks, t.Blocks)
	var rootKeyID *uint32
	if t.RootKeyID != nil {
		id := *t.RootKeyID
		rootKeyID = &id
	}
	return &Token{Authority: t.Authority, Blocks: blocks, Proof: t.Proof, RootKeyID: rootKeyID, nextSigner: t.nextSigner}
}
