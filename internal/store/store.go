// Package store persists finished jobs in SQLite so results outlive the
// in-memory job registry, and serves repeated summaries by content hash.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no result has the requested ID.
var ErrNotFound = errors.New("result not found")

const (
	KindTranslate = "translate"
	KindSummarize = "summarize"
)

// Result is one finished job.
type Result struct {
	ID           string    `json:"job_id"`
	Kind         string    `json:"kind"`
	Filename     string    `json:"filename"`
	Title        string    `json:"title"`
	Language     string    `json:"language,omitempty"`
	ContentHash  string    `json:"content_hash"`
	Strategy     string    `json:"strategy,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	OutputPath   string    `json:"-"`
	Pages        int       `json:"pages"`
	Chunks       int       `json:"chunks"`
	FailedChunks int       `json:"failed_chunks"`
	CreatedAt    time.Time `json:"created_at"`
}

// timeLayout is fixed-width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db *sql.DB
}

// Open creates the database file if needed, migrates it and returns a
// ready Store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	// golang-migrate may hold a connection of its own, so this one is unpooled.
	migrateConn, err := openSQLite(path, 0)
	if err != nil {
		return nil, err
	}
	if err := migrateUp(migrateConn); err != nil {
		migrateConn.Close()
		return nil, err
	}

	db, err := openSQLite(path, 1)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// openSQLite opens path with WAL and a busy timeout. Pragmas apply per
// connection, so the store proper runs on a single one (maxConns 1).
func openSQLite(path string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(maxConns)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces r.
func (s *Store) Save(ctx context.Context, r Result) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO results
			(id, kind, filename, title, language, content_hash, strategy, summary,
			 output_path, pages, chunks, failed_chunks, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Kind, r.Filename, r.Title, r.Language, r.ContentHash, r.Strategy, r.Summary,
		r.OutputPath, r.Pages, r.Chunks, r.FailedChunks, r.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save result %s: %w", r.ID, err)
	}
	return nil
}

const selectColumns = `id, kind, filename, title, language, content_hash, strategy, summary,
	output_path, pages, chunks, failed_chunks, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (Result, error) {
	var r Result
	var created string
	err := row.Scan(&r.ID, &r.Kind, &r.Filename, &r.Title, &r.Language, &r.ContentHash,
		&r.Strategy, &r.Summary, &r.OutputPath, &r.Pages, &r.Chunks, &r.FailedChunks, &created)
	if err != nil {
		return Result{}, err
	}
	r.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return Result{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return r, nil
}

func (s *Store) Get(ctx context.Context, id string) (Result, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM results WHERE id = ?`, id)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrNotFound
	}
	if err != nil {
		return Result{}, fmt.Errorf("get result %s: %w", id, err)
	}
	return r, nil
}

// List returns results newest first. An empty kind matches both kinds; a
// non-positive limit means 100.
func (s *Store) List(ctx context.Context, kind string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM results
		WHERE (? = '' OR kind = ?)
		ORDER BY created_at DESC
		LIMIT ?`, kind, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := []Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes the result and returns what was removed so the caller can
// clean up its output file.
func (s *Store) Delete(ctx context.Context, id string) (Result, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE id = ?`, id); err != nil {
		return Result{}, fmt.Errorf("delete result %s: %w", id, err)
	}
	return r, nil
}

// SummaryByHash finds the newest summary of identical content that had no
// failed chunks. Degraded summaries are never served from the cache.
func (s *Store) SummaryByHash(ctx context.Context, hash string) (Result, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+` FROM results
		WHERE kind = ? AND content_hash = ? AND failed_chunks = 0
		ORDER BY created_at DESC
		LIMIT 1`, KindSummarize, hash)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("summary by hash: %w", err)
	}
	return r, true, nil
}
