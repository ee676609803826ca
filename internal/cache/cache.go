// Package cache provides the SQLite-backed response cache and fetch audit log.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// Cache stores raw results-page bytes keyed by the exact keyword string
// (no expiry) and an append-only log of every query attempt.
type Cache struct {
	db *sql.DB
}

// FetchRecord is one logged query attempt.
type FetchRecord struct {
	ID        string    `json:"id"`
	Keywords  string    `json:"keywords"`
	Mode      string    `json:"mode"`
	Status    string    `json:"status"` // "ok" or "failed"
	Error     string    `json:"error,omitempty"`
	Duration  int64     `json:"duration_ms"`
	FetchedAt time.Time `json:"fetched_at"`
}

// New opens or creates the cache database at the given path.
func New(path string) (*Cache, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	c := &Cache{db: db}

	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return c, nil
}

// ulid.Make's default entropy source is locked, so IDs are safe to mint
// from concurrent workers.
func (c *Cache) newID() string {
	return ulid.Make().String()
}

func (c *Cache) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS responses (
		keywords   TEXT PRIMARY KEY,
		body       BLOB NOT NULL,
		fetched_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fetches (
		id          TEXT PRIMARY KEY,
		keywords    TEXT NOT NULL,
		mode        TEXT NOT NULL,
		status      TEXT NOT NULL,
		error       TEXT,
		duration_ms INTEGER NOT NULL,
		fetched_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_fetches_at ON fetches(fetched_at DESC);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Get returns the cached results page for the keyword string, reporting
// whether one exists.
func (c *Cache) Get(ctx context.Context, keywords string) ([]byte, bool, error) {
	var body []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT body FROM responses WHERE keywords = ?`, keywords).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

// Put stores (or replaces) the cached results page for the keyword string.
func (c *Cache) Put(ctx context.Context, keywords string, body []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO responses (keywords, body, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(keywords) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		keywords, body, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Delete drops the cached page for the keyword string, if any.
func (c *Cache) Delete(ctx context.Context, keywords string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM responses WHERE keywords = ?`, keywords)
	return err
}

// LogFetch appends one query attempt to the audit log.
func (c *Cache) LogFetch(ctx context.Context, rec FetchRecord) error {
	if rec.ID == "" {
		rec.ID = c.newID()
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}

	var errText *string
	if rec.Error != "" {
		errText = &rec.Error
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO fetches (id, keywords, mode, status, error, duration_ms, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Keywords, rec.Mode, rec.Status, errText, rec.Duration,
		rec.FetchedAt.UTC().Format(time.RFC3339))
	return err
}

// RecentFetches returns the newest log entries, most recent first.
func (c *Cache) RecentFetches(ctx context.Context, limit int) ([]FetchRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, keywords, mode, status, error, duration_ms, fetched_at
		 FROM fetches ORDER BY fetched_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []FetchRecord
	for rows.Next() {
		var rec FetchRecord
		var errText sql.NullString
		var fetchedAt string
		if err := rows.Scan(&rec.ID, &rec.Keywords, &rec.Mode, &rec.Status,
			&errText, &rec.Duration, &fetchedAt); err != nil {
			return nil, err
		}
		if errText.Valid {
			rec.Error = errText.String
		}
		rec.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
