// Package state persists the coordinator's cross-tick state: the active
// run id, the details queue cursor, and the published run pointer. The
// store is a small key/value table backed by SQLite and adds a
// conditional-write primitive so concurrent ticks cannot silently clobber
// each other.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"newscastd/internal/config"
)

// Keys owned by the coordinator. Each key has exactly one writing stage.
const (
	KeyActiveRunID  = "active-run-id"
	KeyDetailCursor = "details-queue-cursor"
	KeyPublishedRun = "published-run-id"
)

// ErrConflict is returned by PutIf when the stored value no longer
// matches the expected one.
var ErrConflict = errors.New("state: conditional write conflict")

// Store manages coordinator state persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the state database under the data
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS coordinator_state (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`
	if err := s.execWithRetry(ctx, schema); err != nil {
		return fmt.Errorf("init state schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Get returns the value for key and whether it was present.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	ctx = ensureContext(ctx)
	var value string
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `SELECT value FROM coordinator_state WHERE key = ?`, key)
		return row.Scan(&value)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %q: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key, overwriting any previous value.
func (s *Store) Put(ctx context.Context, key, value string) error {
	ctx = ensureContext(ctx)
	err := s.execWithRetry(ctx, `
INSERT INTO coordinator_state (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("put state %q: %w", key, err)
	}
	return nil
}

// PutIf stores value under key only when the current value equals expect.
// An empty expect requires the key to be absent. ErrConflict is returned
// when the precondition does not hold. This is the conditional write that
// closes the lost-update race between overlapping ticks.
func (s *Store) PutIf(ctx context.Context, key, expect, value string) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin conditional write: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		var current string
		err = tx.QueryRowContext(ctx, `SELECT value FROM coordinator_state WHERE key = ?`, key).Scan(&current)
		present := true
		if errors.Is(err, sql.ErrNoRows) {
			present = false
		} else if err != nil {
			return fmt.Errorf("read state %q: %w", key, err)
		}

		if present && current != expect {
			return fmt.Errorf("%w: key %q has %q, expected %q", ErrConflict, key, current, expect)
		}
		if !present && expect != "" {
			return fmt.Errorf("%w: key %q absent, expected %q", ErrConflict, key, expect)
		}

		_, err = tx.ExecContext(ctx, `
INSERT INTO coordinator_state (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("write state %q: %w", key, err)
		}
		return tx.Commit()
	})
}

// ActiveRunID returns the run id the pipeline is currently building, or
// empty when no run is active.
func (s *Store) ActiveRunID(ctx context.Context) (string, error) {
	value, _, err := s.Get(ctx, KeyActiveRunID)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// BeginRun records a freshly created run id and resets the details cursor.
// This is the only place the cursor moves backwards.
func (s *Store) BeginRun(ctx context.Context, runID string) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("state: run id must not be empty")
	}
	if err := s.Put(ctx, KeyActiveRunID, runID); err != nil {
		return err
	}
	return s.Put(ctx, KeyDetailCursor, "0")
}

// Cursor returns the current details queue offset. An absent key reads
// as zero.
func (s *Store) Cursor(ctx context.Context) (int, error) {
	value, ok, err := s.Get(ctx, KeyDetailCursor)
	if err != nil {
		return 0, err
	}
	if !ok || strings.TrimSpace(value) == "" {
		return 0, nil
	}
	cursor, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse cursor %q: %w", value, err)
	}
	if cursor < 0 {
		return 0, fmt.Errorf("negative cursor %d", cursor)
	}
	return cursor, nil
}

// AdvanceCursor moves the cursor from old to new via conditional write so
// an overlapping tick that already advanced it loses cleanly.
func (s *Store) AdvanceCursor(ctx context.Context, old, new int) error {
	expect := strconv.Itoa(old)
	if old == 0 {
		// A fresh run may not have written the key yet.
		if _, ok, err := s.Get(ctx, KeyDetailCursor); err != nil {
			return err
		} else if !ok {
			expect = ""
		}
	}
	return s.PutIf(ctx, KeyDetailCursor, expect, strconv.Itoa(new))
}

// PublishedRunID returns the currently promoted run id, or empty when
// nothing has been published yet.
func (s *Store) PublishedRunID(ctx context.Context) (string, error) {
	value, _, err := s.Get(ctx, KeyPublishedRun)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// PublishRun swings the published pointer to runID and returns the
// previously published run id. The swap is conditional on the pointer
// not having moved since it was read.
func (s *Store) PublishRun(ctx context.Context, runID string) (string, error) {
	previous, err := s.PublishedRunID(ctx)
	if err != nil {
		return "", err
	}
	if err := s.PutIf(ctx, KeyPublishedRun, previous, runID); err != nil {
		return "", err
	}
	return previous, nil
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

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ensureContext(ctx), func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}
