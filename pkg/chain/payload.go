// Copyright 2025 Certen Protocol

package chain

import (
	"encoding/binary"

	"github.com/certen/biscuit/pkg/symbol"
)

// SignatureVersion enumerates the two payload formats a block may
// declare (§4.4).
type SignatureVersion uint32

const (
	SignatureV0 SignatureVersion = 0
	SignatureV1 SignatureVersion = 1
)

func algTag(alg symbol.Algorithm) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(alg))
	return b
}

// basePayload builds the V0 payload: the serialized block, an optional
// external signature's bytes, and the next key's algorithm tag and raw
// bytes (§4.4).
func basePayload(blockBytes, externalSignature []byte, nextKey symbol.Key) []byte {
	buf := make([]byte, 0, len(blockBytes)+len(externalSignature)+4+len(nextKey.Bytes))
	buf = append(buf, blockBytes...)
	buf = append(buf, externalSignature...)
	buf = append(buf, algTag(nextKey.Algorithm)...)
	buf = append(buf, nextKey.Bytes...)
	return buf
}

// signaturePayload builds the payload actually signed for a block,
// applying V1's extra previousBlockSignature suffix when version == 1.
func signaturePayload(blockBytes, externalSignature []byte, nextKey symbol.Key, version SignatureVersion, previousSignature []byte) []byte {
	base := basePayload(blockBytes, externalSignature, nextKey)
	if version == SignatureV0 {
		return base
	}
	return append(base, previousSignature...)
}

// externalPayload builds payload_ext, what a third-party signer signs
// with their own key (§4.4).
func externalPayload(blockBytes, previousSignature []byte, version uint32) []byte {
	buf := make([]byte, 0, len(blockBytes)+len(previousSignature)+4)
	buf = append(buf, blockBytes...)
	buf = append(buf, previousSignature...)
	v := make([]byte, 4)
	binary.LittleEndian.PutUint32(v, version)
	return append(buf, v...)
}

// sealPayload builds the payload the seal's FinalSignature covers
// (§4.4): the last block's serialized bytes, its next key's algorithm
// tag and bytes, and its signature.
func sealPayload(lastBlockBytes []byte, lastNextKey symbol.Key, lastSignature []byte) []byte {
	buf := make([]byte, 0, len(lastBlockBytes)+4+len(lastNextKey.Bytes)+len(lastSignature))
	buf = append(buf, lastBlockBytes...)
	buf = append(buf, algTag(lastNextKey.Algorithm)...)
	buf = append(buf, lastNextKey.Bytes...)
	buf = append(buf, lastSignature...)
	return buf
}
