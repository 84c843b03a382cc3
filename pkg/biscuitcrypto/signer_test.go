// Copyright 2025 Certen Protocol

package biscuitcrypto

import "testing"

func TestEd25519SignVerifyRoundTrip(t *testing.T) {
	signer, err := GenerateEd25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	payload := []byte("block payload")
	sig, err := signer.Sign(payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	v, err := NewVerifier(signer.Algorithm())
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if err := v.Verify(signer.PublicKey(), payload, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := v.Verify(signer.PublicKey(), []byte("tampered"), sig); err == nil {
		t.Fatal("expected verification failure on tampered payload")
	}
}

func TestP256SignVerifyRoundTrip(t *testing.T) {
	signer, err := GenerateP256()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	payload := []byte("block payload")
	sig, err := signer.Sign(payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	v, _ := NewVerifier(signer.Algorithm())
	if err := v.Verify(signer.PublicKey(), payload, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestSECP256K1SignVerifyRoundTrip(t *testing.T) {
	signer, err := GenerateSECP256K1()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	payload := []byte("block payload")
	sig, err := signer.Sign(payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	v, _ := NewVerifier(signer.Algorithm())
	if err := v.Verify(signer.PublicKey(), payload, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestUnknownAlgorithmRejected(t *testing.T) {
	if _, err := NewVerifier(99); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}
