// Copyright 2025 Certen Protocol

package revocation

// Layered checks a fast cache before falling through to a durable
// store, and records to both — the shape pkg/kvdb.KVAdapter plus
// pkg/database.Client are combined into, from the teacher's own
// architecture of a CometBFT-backed ledger cache in front of a
// Postgres system of record.
type Layered struct {
	Cache   Store
	Durable Store
}

// NewLayered returns a Store that checks cache first, then durable.
func NewLayered(cache, durable Store) *Layered {
	return &Layered{Cache: cache, Durable: durable}
}

// Record writes to both stores; durable is authoritative, so its error
// (if any) is the one returned after the cache write is attempted.
func (l *Layered) Record(ids [][]byte) error {
	_ = l.Cache.Record(ids)
	return l.Durable.Record(ids)
}

// Contains checks the cache first and only falls through to durable on
// a cache miss.
func (l *Layered) Contains(id []byte) (bool, error) {
	if ok, err := l.Cache.Contains(id); err == nil && ok {
		return true, nil
	}
	return l.Durable.Contains(id)
}
