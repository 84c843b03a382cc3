// Copyright 2025 Certen Protocol

package revocation

import (
	"testing"

	dbm "github.com/cometbft/cometbft-db"
)

func TestKVStoreRecordAndContains(t *testing.T) {
	store := NewKVStore(dbm.NewMemDB())
	id := []byte{0xde, 0xad, 0xbe, 0xef}

	ok, err := store.Contains(id)
	if err != nil {
		t.Fatalf("contains before record: %v", err)
	}
	if ok {
		t.Fatal("expected id to be absent before Record")
	}

	if err := store.Record([][]byte{id}); err != nil {
		t.Fatalf("record: %v", err)
	}

	ok, err = store.Contains(id)
	if err != nil {
		t.Fatalf("contains after record: %v", err)
	}
	if !ok {
		t.Fatal("expected id to be present after Record")
	}
}

type fakeStore struct {
	recorded [][]byte
	has      map[string]bool
}

func newFakeStore() *fakeStore { return &fakeStore{has: map[string]bool{}} }

func (f *fakeStore) Record(ids [][]byte) error {
	for _, id := range ids {
		f.recorded = append(f.recorded, id)
		f.has[hexKey(id)] = true
	}
	return nil
}

func (f *fakeStore) Contains(id []byte) (bool, error) {
	return f.has[hexKey(id)], nil
}

func TestLayeredPrefersCacheHit(t *testing.T) {
	cache := newFakeStore()
	durable := newFakeStore()
	layered := NewLayered(cache, durable)

	id := []byte{1, 2, 3}
	if err := layered.Record([][]byte{id}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(cache.recorded) != 1 || len(durable.recorded) != 1 {
		t.Fatal("expected Record to write through to both stores")
	}

	ok, err := layered.Contains(id)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !ok {
		t.Fatal("expected layered lookup to find the recorded id")
	}
}

func TestLayeredFallsThroughOnCacheMiss(t *testing.T) {
	cache := newFakeStore()
	durable := newFakeStore()
	layered := NewLayered(cache, durable)

	id := []byte{9, 9, 9}
	durable.has[hexKey(id)] = true

	ok, err := layered.Contains(id)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !ok {
		t.Fatal("expected fallthrough to durable store to find the id")
	}
}
