// Copyright 2025 Certen Protocol

package chain

import "github.com/certen/biscuit/pkg/symbol"

// Proof is the token's terminal state (§4.4): exactly one of
// NextSecret (the ephemeral key able to sign a further append) or
// FinalSignature (produced by Seal, after which append is rejected) is
// set.
type Proof struct {
	NextSecretAlgorithm symbol.Algorithm
	NextSecretBytes     []byte
	FinalSignature      []byte
}

// Sealed reports whether this proof is a terminal FinalSignature.
func (p Proof) Sealed() bool { return len(p.FinalSignature) > 0 }

func (e *encoder) proof(p Proof) {
	e.bool(p.Sealed())
	if p.Sealed() {
		e.bytes(p.FinalSignature)
		return
	}
	e.varint(uint64(p.NextSecretAlgorithm))
	e.bytes(p.NextSecretBytes)
}

func (d *decoder) proof() (Proof, error) {
	sealed, err := d.boolField()
	if err != nil {
		return Proof{}, err
	}
	if sealed {
		sig, err := d.bytesField()
		if err != nil {
			return Proof{}, err
		}
		return Proof{FinalSignature: sig}, nil
	}
	alg, err := d.varint()
	if err != nil {
		return Proof{}, err
	}
	secret, err := d.bytesField()
	if err != nil {
		return Proof{}, err
	}
	return Proof{NextSecretAlgorithm: symbol.Algorithm(alg), NextSecretBytes: secret}, nil
}
