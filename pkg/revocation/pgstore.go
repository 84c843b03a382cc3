// Copyright 2025 Certen Protocol
//
// Durable Postgres-backed revocation id store, pooled and migrated the
// way pkg/database.Client manages the proof-artifact schema.
package revocation

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PGConfig configures a PGStore's connection pool.
type PGConfig struct {
	DatabaseURL  string
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxIdle  time.Duration
	ConnMaxLife  time.Duration
}

// PGStore is the durable Store, backed by Postgres through database/sql
// and the lib/pq driver.
type PGStore struct {
	db     *sql.DB
	logger cmtlog.Logger
}

// PGOption configures a PGStore at construction time.
type PGOption func(*PGStore)

// WithPGLogger attaches l for one log line per Record call.
func WithPGLogger(l cmtlog.Logger) PGOption {
	return func(s *PGStore) { s.logger = l }
}

// NewPGStore opens a pooled connection to cfg.DatabaseURL and applies
// the revocation_ids schema.
func NewPGStore(ctx context.Context, cfg PGConfig, opts ...PGOption) (*PGStore, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("revocation: database URL cannot be empty")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("revocation: open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdle > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdle)
	}
	if cfg.ConnMaxLife > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLife)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("revocation: ping database: %w", err)
	}

	s := &PGStore{db: db, logger: cmtlog.NewNopLogger()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("revocation: read migrations: %w", err)
	}
	for _, entry := range entries {
		contents, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("revocation: read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(contents)); err != nil {
			return fmt.Errorf("revocation: apply migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Record implements Store.
func (s *PGStore) Record(ids [][]byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("revocation: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO revocation_ids (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("revocation: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, hexKey(id)); err != nil {
			return fmt.Errorf("revocation: insert id: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("revocation: commit: %w", err)
	}
	s.logger.Info("recorded revocation ids", "count", len(ids))
	return nil
}

// Contains implements Store.
func (s *PGStore) Contains(id []byte) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revocation_ids WHERE id = $1)`, hexKey(id)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("revocation: query id: %w", err)
	}
	return exists, nil
}

// Close closes the connection pool.
func (s *PGStore) Close() error {
	return s.db.Close()
}
