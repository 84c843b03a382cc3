// Copyright 2025 Certen Protocol

package chain

import "github.com/certen/biscuit/pkg/symbol"

// ExternalSignature carries a third-party signer's detached signature
// over payload_ext, plus the key that produced it (§4.4, §6).
type ExternalSignature struct {
	Signature []byte
	PublicKey symbol.Key
}

// SignedBlock is one link of the chain: a serialized Block, the public
// key that will sign the next block, this block's own signature, an
// optional external (third-party) signature, and the signature payload
// version it was built with (§6's SignedBlock message).
type SignedBlock struct {
	BlockBytes []byte
	NextKey    symbol.Key
	Signature  []byte
	External   *ExternalSignature
	Version    SignatureVersion
}

func (e *encoder) signedBlock(sb SignedBlock) {
	e.bytes(sb.BlockBytes)
	e.key(sb.NextKey)
	e.bytes(sb.Signature)
	e.bool(sb.External != nil)
	if sb.External != nil {
		e.bytes(sb.External.Signature)
		e.key(sb.External.PublicKey)
	}
	e.varint(uint64(sb.Version))
}

func (d *decoder) signedBlock() (SignedBlock, error) {
	var sb SignedBlock
	var err error
	if sb.BlockBytes, err = d.bytesField(); err != nil {
		return SignedBlock{}, err
	}
	if sb.NextKey, err = d.key(); err != nil {
		return SignedBlock{}, err
	}
	if sb.Signature, err = d.bytesField(); err != nil {
		return SignedBlock{}, err
	}
	hasExternal, err := d.boolField()
	if err != nil {
		return SignedBlock{}, err
	}
	if hasExternal {
		sb.External = &ExternalSignature{}
		if sb.External.Signature, err = d.bytesField(); err != nil {
			return SignedBlock{}, err
		}
		if sb.External.PublicKey, err = d.key(); err != nil {
			return SignedBlock{}, err
		}
	}
	version, err := d.varint()
	if err != nil {
		return SignedBlock{}, err
	}
	sb.Version = SignatureVersion(version)
	return sb, nil
}
