package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Config configures the SQLite store.
type Config struct {
	// DSN is a modernc sqlite data source, e.g. "file:botguard.db" or a path.
	DSN string

	// MaxOpenConns caps open connections. Default: 4.
	MaxOpenConns int

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5s.
	BusyTimeout time.Duration
}

// Store is the SQLite-backed record store.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: missing rows wrap ErrNotFound (cache.ErrNotFound for the cache
//   sources); other errors are transient.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database and applies connection pragmas. It does not
// create the schema; call Migrate.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, ErrEmptyDSN
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	return &Store{db: db, now: time.Now}, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) unixNow() int64 {
	return s.now().UTC().Unix()
}
