// Package store provides a SQLite-backed answer history for LuxRAG. Every
// completed query is recorded with its citations and per-stage timings so
// operators can review what was answered and which sources grounded it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// CitationRecord is the persisted form of one answer citation.
type CitationRecord struct {
	// Number is the bracketed marker in the answer text, 1-based.
	Number int `json:"n"`
	// Source is the origin path of the cited document.
	Source string `json:"source"`
	// Title is the cited document's title, empty when unknown.
	Title string `json:"title,omitempty"`
}

// Entry is one recorded question/answer exchange.
type Entry struct {
	// ID is the query's UUID.
	ID string
	// Question is the user's question as asked.
	Question string
	// Answer is the generated answer text.
	Answer string
	// Model is the "backend/model" identity that produced the answer.
	Model string
	// Citations are the sources the answer referenced.
	Citations []CitationRecord
	// Timings maps pipeline stage names to their duration in milliseconds.
	Timings map[string]int64
	// CreatedAt is when the answer was recorded.
	CreatedAt time.Time
}

// HistoryStore persists completed answers. Implementations must be safe for
// concurrent use. Recording is advisory: callers treat failures as non-fatal.
type HistoryStore interface {
	// Record persists one answer entry.
	Record(ctx context.Context, e Entry) error
	// Recent returns the most recent n entries, newest first.
	Recent(ctx context.Context, n int) ([]Entry, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the answer history database.
// It resolves to ~/.luxrag/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".luxrag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS answers (
    id         TEXT    PRIMARY KEY,
    question   TEXT    NOT NULL,
    answer     TEXT    NOT NULL,
    model      TEXT    NOT NULL DEFAULT '',
    citations  TEXT    NOT NULL DEFAULT '[]',  -- JSON array of citation records
    timings    TEXT    NOT NULL DEFAULT '{}',  -- JSON object, stage name to ms
    created_at INTEGER NOT NULL                -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_answers_created
    ON answers (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Record persists one answer entry. A zero CreatedAt is filled with now.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("store: record: entry ID must not be empty")
	}
	citations, err := json.Marshal(e.Citations)
	if err != nil {
		return fmt.Errorf("store: record: marshal citations: %w", err)
	}
	timings, err := json.Marshal(e.Timings)
	if err != nil {
		return fmt.Errorf("store: record: marshal timings: %w", err)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	const q = `
INSERT INTO answers (id, question, answer, model, citations, timings, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    question   = excluded.question,
    answer     = excluded.answer,
    model      = excluded.model,
    citations  = excluded.citations,
    timings    = excluded.timings,
    created_at = excluded.created_at`
	if _, err := s.db.ExecContext(ctx, q,
		e.ID, e.Question, e.Answer, e.Model, string(citations), string(timings), created.Unix()); err != nil {
		return fmt.Errorf("store: record: %w", err)
	}
	return nil
}

// Recent returns the most recent n entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Entry, error) {
	const q = `
SELECT id, question, answer, model, citations, timings, created_at
FROM   answers
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			citations string
			timings   string
			ts        int64
		)
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &e.Model, &citations, &timings, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		if err := json.Unmarshal([]byte(citations), &e.Citations); err != nil {
			return nil, fmt.Errorf("store: recent: citations for %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(timings), &e.Timings); err != nil {
			return nil, fmt.Errorf("store: recent: timings for %s: %w", e.ID, err)
		}
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return entries, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
