// Package catalog provides a SQLite-backed catalog of the QA records
// behind the vector index. The index stores embeddings; the catalog keeps
// the authoritative record fields so the index can be re-seeded and records
// can be listed without a similarity search.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/qa"
)

// Store persists QA records. Implementations must be safe for concurrent use.
type Store interface {
	// Save inserts a record or replaces the existing record with the same ID.
	Save(ctx context.Context, rec qa.Record) error
	// All returns every record in the catalog, oldest-first.
	All(ctx context.Context) ([]qa.Record, error)
	// Recent returns the most recently saved n records, newest-first.
	Recent(ctx context.Context, n int) ([]qa.Record, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the record catalog database.
// It resolves to ~/.helpdesk/catalog.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("catalog: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".helpdesk")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("catalog: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "catalog.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
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
CREATE TABLE IF NOT EXISTS qa_records (
    id         TEXT PRIMARY KEY,
    title      TEXT NOT NULL,
    content    TEXT NOT NULL,
    topic      TEXT NOT NULL,
    schools    TEXT NOT NULL,  -- comma-joined list, or the unrestricted sentinel
    audiences  TEXT NOT NULL,
    language   TEXT NOT NULL,
    date       TEXT NOT NULL,
    post_type  TEXT NOT NULL,
    status     TEXT NOT NULL,
    created_at INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_qa_records_created
    ON qa_records (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// Save inserts a record or replaces the existing record with the same ID.
func (s *SQLiteStore) Save(ctx context.Context, rec qa.Record) error {
	const q = `
INSERT INTO qa_records (id, title, content, topic, schools, audiences, language, date, post_type, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title, content = excluded.content, topic = excluded.topic,
    schools = excluded.schools, audiences = excluded.audiences, language = excluded.language,
    date = excluded.date, post_type = excluded.post_type, status = excluded.status,
    created_at = excluded.created_at`
	_, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.Title, rec.Content, rec.Topic,
		joinList(rec.Schools), joinList(rec.Audiences), rec.Language,
		rec.Date, rec.PostType, rec.Status, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("catalog: save %s: %w", rec.ID, err)
	}
	return nil
}

// All returns every record in the catalog, oldest-first. Used to re-seed the
// vector index when its on-disk store is missing or broken.
func (s *SQLiteStore) All(ctx context.Context) ([]qa.Record, error) {
	const q = `
SELECT id, title, content, topic, schools, audiences, language, date, post_type, status
FROM   qa_records
ORDER  BY created_at ASC, id ASC`
	return s.query(ctx, q)
}

// Recent returns the most recently saved n records, newest-first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]qa.Record, error) {
	const q = `
SELECT id, title, content, topic, schools, audiences, language, date, post_type, status
FROM   qa_records
ORDER  BY created_at DESC, id DESC
LIMIT  ?`
	return s.query(ctx, q, n)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]qa.Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: query: %w", err)
	}
	defer rows.Close()

	var recs []qa.Record
	for rows.Next() {
		var rec qa.Record
		var schools, audiences string
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Content, &rec.Topic,
			&schools, &audiences, &rec.Language, &rec.Date, &rec.PostType, &rec.Status); err != nil {
			return nil, fmt.Errorf("catalog: scan: %w", err)
		}
		rec.Schools = splitList(schools)
		rec.Audiences = splitList(audiences)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: rows: %w", err)
	}
	return recs, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("catalog: close: %w", err)
	}
	return nil
}

func joinList(vals []string) string {
	if len(vals) == 0 {
		return qa.Unrestricted
	}
	return strings.Join(vals, ",")
}

func splitList(s string) []string {
	if s == "" || s == qa.Unrestricted {
		return nil
	}
	return strings.Split(s, ",")
}
