// Copyright 2025 Certen Protocol

package chain

import (
	"github.com/certen/biscuit/internal/errs"
	"github.com/certen/biscuit/pkg/biscuitcrypto"
)

// Token is the full chain: an authority block, zero or more appended
// blocks, and a proof of its current (unsealed or sealed) state (§6's
// Biscuit message). nextSigner is the in-memory reconstruction of the
// proof's NextSecret, used by Append and Seal; it is nil on a sealed
// token or one decoded without its secret.
type Token struct {
	Authority SignedBlock
	Blocks    []SignedBlock
	Proof     Proof
	RootKeyID *uint32

	nextSigner biscuitcrypto.Signer
}

// BlockCount returns 1 (authority) plus the number of appended blocks.
func (t *Token) BlockCount() int { return 1 + len(t.Blocks) }

// SignedBlockAt returns the signed block at the given chain index (0 is
// authority).
func (t *Token) SignedBlockAt(index int) SignedBlock {
	if index == 0 {
		return t.Authority
	}
	return t.Blocks[index-1]
}

// lastSignedBlock returns the most recently appended (or authority)
// signed block, whose signature is the previousBlockSignature for the
// next append.
func (t *Token) lastSignedBlock() SignedBlock {
	if len(t.Blocks) == 0 {
		return t.Authority
	}
	return t.Blocks[len(t.Blocks)-1]
}

// RevocationIDs returns every block's signature bytes in chain order,
// each treated as that token version's globally-unique fingerprint
// (§4.4).
func (t *Token) RevocationIDs() [][]byte {
	ids := make([][]byte, 0, t.BlockCount())
	ids = append(ids, append([]byte(nil), t.Authority.Signature...))
	for _, b := range t.Blocks {
		ids = append(ids, append([]byte(nil), b.Signature...))
	}
	return ids
}

// Encode serializes the whole token to its deterministic wire form.
func (t *Token) Encode() []byte {
	e := &encoder{}
	e.signedBlock(t.Authority)
	e.varint(uint64(len(t.Blocks)))
	for _, b := range t.Blocks {
		e.signedBlock(b)
	}
	e.proof(t.Proof)
	e.bool(t.RootKeyID != nil)
	if t.RootKeyID != nil {
		e.varint(uint64(*t.RootKeyID))
	}
	return e.buf
}

// DecodeToken parses a Token produced by Encode. The returned token's
// nextSigner is reconstructed from the proof's NextSecret when present,
// so it can be appended to or sealed directly.
func DecodeToken(data []byte) (*Token, error) {
	d := &decoder{buf: data}
	t := &Token{}

	var err error
	if t.Authority, err = d.signedBlock(); err != nil {
		return nil, errs.Wrap(errs.KindDeserialization, err, "authority block")
	}
	n, err := d.varint()
	if err != nil {
		return nil, errs.Wrap(errs.KindDeserialization, err, "blocks count")
	}
	t.Blocks = make([]SignedBlock, n)
	for i := range t.Blocks {
		if t.Blocks[i], err = d.signedBlock(); err != nil {
			return nil, errs.Wrap(errs.KindDeserialization, err, "block %d", i)
		}
	}
	if t.Proof, err = d.proof(); err != nil {
		return nil, errs.Wrap(errs.KindDeserialization, err, "proof")
	}
	hasRootKeyID, err := d.boolField()
	if err != nil {
		return nil, errs.Wrap(errs.KindDeserialization, err, "root key id flag")
	}
	if hasRootKeyID {
		v, err := d.varint()
		if err != nil {
			return nil, errs.Wrap(errs.KindDeserialization, err, "root key id")
		}
		id := uint32(v)
		t.RootKeyID = &id
	}

	if !t.Proof.Sealed() {
		signer, err := biscuitcrypto.LoadSigner(t.Proof.NextSecretAlgorithm, t.Proof.NextSecretBytes)
		if err == nil {
			t.nextSigner = signer
		}
	}

	return t, nil
}
