// Package store is the persistence gateway for the duplicate-scene
// database: file rows, per-frame brightness, extrema hashes, pairwise
// whitelists and advisory import locks, all backed by SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Sentinel errors surfaced to callers.
var (
	// ErrAlreadyLocked is returned by TryLock when a fresh advisory lock
	// for the same path exists.
	ErrAlreadyLocked = errors.New("store: import lock already held")

	// ErrNotFound is returned when a referenced file row does not exist.
	ErrNotFound = errors.New("store: file not found")
)

// FileInfo mirrors one row of the files relation.
type FileInfo struct {
	FID      int64
	Name     string
	FPS      float64
	Duration float64
}

// HashEntry is one extremum: the frame it occurred at and the time gap in
// seconds since the previous extremum (or since the start for the first).
type HashEntry struct {
	Frame int64
	Gap   float64
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and brings the
// schema up to date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	// Serialize access through a single connection; the tool is a single
	// process and this keeps SQLITE_BUSY windows short.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 30000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for tests and diagnostics.
func (s *Store) DB() *sql.DB {
	return s.db
}

// isSQLiteBusy reports whether err looks like a transient SQLITE_BUSY
// condition worth retrying.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked")
}

// retryOnBusy runs fn and retries it once after a short pause if the first
// attempt failed with a busy error.
func retryOnBusy(fn func() error) error {
	err := fn()
	if err == nil || !isSQLiteBusy(err) {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return fn()
}
