// Package store persists completed question sessions in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store holds the database handle and provides access to repositories.
type Store struct {
	db  *sql.DB
	seq *sequenceCounter
}

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas and creates missing tables.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serialises writers anyway; one connection keeps pragmas and
	// in-memory databases consistent across the pool.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	seq, err := newSequenceCounter(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, seq: seq}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRepo returns a RecordRepo backed by this store.
func (s *Store) RecordRepo() RecordRepo {
	return &recordRepo{db: s.db, seq: s.seq}
}

// applyPragmas configures SQLite for optimal single-user performance.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS analytics_records (
		id            TEXT PRIMARY KEY,
		sequence      INTEGER NOT NULL UNIQUE,
		created_at    TEXT NOT NULL,
		user_id       TEXT NOT NULL DEFAULT '',
		session_id    TEXT NOT NULL,
		question_id   TEXT NOT NULL,
		type_id       TEXT NOT NULL,
		type_version  TEXT NOT NULL,
		atom_id       TEXT NOT NULL DEFAULT '',
		is_correct    INTEGER NOT NULL,
		mastery_after REAL NOT NULL,
		fallback      INTEGER NOT NULL,
		data          TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_user_atom ON analytics_records (user_id, atom_id, sequence)`,
	`CREATE TABLE IF NOT EXISTS interaction_logs (
		record_id  TEXT NOT NULL REFERENCES analytics_records (id) ON DELETE CASCADE,
		position   INTEGER NOT NULL,
		type       TEXT NOT NULL,
		payload    TEXT NOT NULL,
		timestamp  TEXT NOT NULL,
		PRIMARY KEY (record_id, position)
	)`,
}

func migrate(db *sql.DB) error {
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. QUIZFLOW_DB environment variable
// 2. $XDG_DATA_HOME/quizflow/quizflow.db
// 3. ~/.local/share/quizflow/quizflow.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("QUIZFLOW_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "quizflow", "quizflow.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
