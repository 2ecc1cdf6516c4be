// Package store provides SQLite persistence for signals, opportunities and
// briefs.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a row with the requested id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conditional update lost: the row exists
	// but no longer holds the expected prior state.
	ErrConflict = errors.New("conflict: row changed concurrently")
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations
}

var memSeq atomic.Int64

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Named shared-cache memory DB so every pooled connection sees the
		// same data, but separate Open calls stay isolated.
		connStr = fmt.Sprintf("file:viralmem%d?mode=memory&cache=shared", memSeq.Add(1))
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// For in-memory databases, limit to 1 connection to avoid issues
	// with multiple connections getting different databases
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required tables and indexes if they don't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS signals (
		id TEXT PRIMARY KEY,
		source_type TEXT NOT NULL,
		external_id TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		community TEXT NOT NULL DEFAULT '',
		created_at_external INTEGER,
		metrics TEXT NOT NULL DEFAULT '{}',
		raw_excerpt TEXT NOT NULL DEFAULT '',
		industry TEXT NOT NULL DEFAULT '',
		fetched_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(source_type, external_id)
	);

	CREATE INDEX IF NOT EXISTS idx_signals_fetched ON signals(fetched_at DESC);
	CREATE INDEX IF NOT EXISTS idx_signals_industry ON signals(industry, fetched_at DESC);

	CREATE TABLE IF NOT EXISTS sources (
		name TEXT PRIMARY KEY,
		last_fetched_at INTEGER,
		item_count INTEGER DEFAULT 0,
		error_count INTEGER DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS opportunities (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL DEFAULT '',
		industry TEXT NOT NULL DEFAULT '',
		channel TEXT NOT NULL,
		topic TEXT NOT NULL,
		angle TEXT NOT NULL DEFAULT '',
		hook TEXT NOT NULL DEFAULT '',
		reasoning TEXT NOT NULL DEFAULT '',
		score REAL NOT NULL,
		score_breakdown TEXT NOT NULL,
		source_signal_ids TEXT NOT NULL,
		status TEXT NOT NULL,
		seo_data TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_opportunities_client ON opportunities(client_id, status, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_opportunities_score ON opportunities(score DESC);

	CREATE TABLE IF NOT EXISTS briefs (
		id TEXT PRIMARY KEY,
		opportunity_id TEXT NOT NULL DEFAULT '',
		client_id TEXT NOT NULL DEFAULT '',
		signal_ids TEXT NOT NULL,
		content TEXT NOT NULL,
		evidence TEXT NOT NULL,
		source_from INTEGER,
		source_to INTEGER,
		status TEXT NOT NULL,
		parent_id TEXT NOT NULL DEFAULT '',
		superseded_by TEXT NOT NULL DEFAULT '',
		model_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_briefs_opportunity ON briefs(opportunity_id);
	CREATE INDEX IF NOT EXISTS idx_briefs_status ON briefs(status, created_at DESC);

	CREATE TABLE IF NOT EXISTS brief_generations (
		id TEXT PRIMARY KEY,
		brief_id TEXT NOT NULL REFERENCES briefs(id),
		channel TEXT NOT NULL,
		version INTEGER NOT NULL,
		content TEXT NOT NULL,
		usage TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		UNIQUE(brief_id, channel, version)
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Times are stored as unix milliseconds.

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return fromMillis(n.Int64)
}

// placeholders returns "?,?,?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, 2*n-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
