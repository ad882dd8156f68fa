// Package ledger persists per-chunk progress in a SQLite database inside the
// working directory. Rows are authoritative for resume decisions, with file
// existence as the fallback consistency check: Reconcile demotes rows whose
// artifacts vanished and repairs rows for artifacts that finished without a
// recorded completion.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; a mismatched database must be deleted (it only caches progress).
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by an incompatible
// version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Status is a chunk's position in the pipeline.
type Status string

const (
	StatusPending  Status = "pending"
	StatusEnhanced Status = "enhanced"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
)

const splitCompleteKey = "split_expected_chunks"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Record is one chunk row.
type Record struct {
	Index        int
	Status       Status
	EnhancedAt   *time.Time
	DoneAt       *time.Time
	ErrorMessage string
	UpdatedAt    time.Time
}

// Store manages chunk persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start over)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// EnsureChunks inserts pending rows for any of the given indices that have no
// row yet. Existing rows keep their state.
func (s *Store) EnsureChunks(ctx context.Context, count int) error {
	ctx = ensureContext(ctx)
	now := timestamp()
	for i := 0; i < count; i++ {
		if _, err := s.execWithRetry(ctx,
			`INSERT INTO chunks (idx, status, updated_at) VALUES (?, ?, ?)
             ON CONFLICT(idx) DO NOTHING`,
			i, StatusPending, now,
		); err != nil {
			return fmt.Errorf("ensure chunk %d: %w", i, err)
		}
	}
	return nil
}

// Get returns the row for one chunk index.
func (s *Store) Get(ctx context.Context, index int) (Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT idx, status, enhanced_at, done_at, error_message, updated_at
         FROM chunks WHERE idx = ?`, index)
	return scanRecord(row)
}

// List returns all chunk rows in index order.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, status, enhanced_at, done_at, error_message, updated_at
         FROM chunks ORDER BY idx`)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		record      Record
		status      string
		enhancedAt  sql.NullString
		doneAt      sql.NullString
		errMessage  sql.NullString
		updatedAtTS string
	)
	if err := row.Scan(&record.Index, &status, &enhancedAt, &doneAt, &errMessage, &updatedAtTS); err != nil {
		return Record{}, fmt.Errorf("scan chunk row: %w", err)
	}
	record.Status = Status(status)
	record.ErrorMessage = errMessage.String
	if ts, err := time.Parse(time.RFC3339Nano, updatedAtTS); err == nil {
		record.UpdatedAt = ts
	}
	if enhancedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, enhancedAt.String); err == nil {
			record.EnhancedAt = &ts
		}
	}
	if doneAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, doneAt.String); err == nil {
			record.DoneAt = &ts
		}
	}
	return record, nil
}

// MarkEnhanced records completion of the enhancement stage for a chunk.
func (s *Store) MarkEnhanced(ctx context.Context, index int) error {
	now := timestamp()
	_, err := s.execWithRetry(ctx,
		`UPDATE chunks SET status = ?, enhanced_at = ?, error_message = NULL, updated_at = ? WHERE idx = ?`,
		StatusEnhanced, now, now, index)
	if err != nil {
		return fmt.Errorf("mark chunk %d enhanced: %w", index, err)
	}
	return nil
}

// MarkDone records full completion of a chunk.
func (s *Store) MarkDone(ctx context.Context, index int) error {
	now := timestamp()
	_, err := s.execWithRetry(ctx,
		`UPDATE chunks SET status = ?, done_at = ?, error_message = NULL, updated_at = ? WHERE idx = ?`,
		StatusDone, now, now, index)
	if err != nil {
		return fmt.Errorf("mark chunk %d done: %w", index, err)
	}
	return nil
}

// MarkFailed records a stage failure for a chunk.
func (s *Store) MarkFailed(ctx context.Context, index int, message string) error {
	now := timestamp()
	_, err := s.execWithRetry(ctx,
		`UPDATE chunks SET status = ?, error_message = ?, updated_at = ? WHERE idx = ?`,
		StatusFailed, message, now, index)
	if err != nil {
		return fmt.Errorf("mark chunk %d failed: %w", index, err)
	}
	return nil
}

// Demote resets a chunk to pending. Used when a recorded artifact turns out
// to be missing on disk.
func (s *Store) Demote(ctx context.Context, index int) error {
	now := timestamp()
	_, err := s.execWithRetry(ctx,
		`UPDATE chunks SET status = ?, enhanced_at = NULL, done_at = NULL, error_message = NULL, updated_at = ? WHERE idx = ?`,
		StatusPending, now, index)
	if err != nil {
		return fmt.Errorf("demote chunk %d: %w", index, err)
	}
	return nil
}

// SetSplitComplete records that splitting produced exactly count segments.
func (s *Store) SetSplitComplete(ctx context.Context, count int) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO job_state (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		splitCompleteKey, strconv.Itoa(count))
	if err != nil {
		return fmt.Errorf("record split completion: %w", err)
	}
	return nil
}

// SplitComplete reports the recorded segment count, or ok=false when the
// split has not completed.
func (s *Store) SplitComplete(ctx context.Context) (int, bool, error) {
	ctx = ensureContext(ctx)
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM job_state WHERE key = ?`, splitCompleteKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read split completion: %w", err)
	}
	count, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse split completion %q: %w", value, err)
	}
	return count, true, nil
}

// Reconcile aligns rows with the artifacts actually on disk. finalOK reports
// whether the final artifact for an index exists and is non-empty. Done rows
// without an artifact are demoted; artifacts without a done row repair the
// row. Returns the indices that were demoted.
func (s *Store) Reconcile(ctx context.Context, finalOK func(index int) bool) ([]int, error) {
	ctx = ensureContext(ctx)
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var demoted []int
	for _, record := range records {
		hasArtifact := finalOK(record.Index)
		switch {
		case record.Status == StatusDone && !hasArtifact:
			if err := s.Demote(ctx, record.Index); err != nil {
				return demoted, err
			}
			demoted = append(demoted, record.Index)
		case record.Status != StatusDone && hasArtifact:
			if err := s.MarkDone(ctx, record.Index); err != nil {
				return demoted, err
			}
		}
	}
	return demoted, nil
}
