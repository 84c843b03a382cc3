// Copyright 2025 Certen Protocol

package revocation

import (
	dbm "github.com/cometbft/cometbft-db"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// KVStore is the fast local-cache Store, backed directly by a
// cometbft-db dbm.DB the way pkg/kvdb.KVAdapter wraps one for
// ledger state. Unlike the Postgres store it keeps no history beyond
// presence — a single byte value marks a recorded id.
type KVStore struct {
	db     dbm.DB
	logger cmtlog.Logger
}

var presentValue = []byte{1}

// KVOption configures a KVStore at construction time.
type KVOption func(*KVStore)

// WithKVLogger attaches l for one log line per Record call.
func WithKVLogger(l cmtlog.Logger) KVOption {
	return func(s *KVStore) { s.logger = l }
}

// NewKVStore wraps db as a revocation Store.
func NewKVStore(db dbm.DB, opts ...KVOption) *KVStore {
	s := &KVStore{db: db, logger: cmtlog.NewNopLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implements Store.
func (s *KVStore) Record(ids [][]byte) error {
	for _, id := range ids {
		if err := s.db.SetSync([]byte(hexKey(id)), presentValue); err != nil {
			return err
		}
	}
	s.logger.Debug("recorded revocation ids in cache", "count", len(ids))
	return nil
}

// Contains implements Store.
func (s *KVStore) Contains(id []byte) (bool, error) {
	v, err := s.db.Get([]byte(hexKey(id)))
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// Close closes the underlying database.
func (s *KVStore) Close() error {
	return s.db.Close()
}
