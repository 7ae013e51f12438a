package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultLockTTL is how long an advisory import lock stays fresh.
const DefaultLockTTL = time.Hour

// TryLock takes the advisory import lock for name. It returns
// ErrAlreadyLocked when a lock younger than ttl exists; stale locks are
// replaced. The returned token releases the lock via Unlock.
func (s *Store) TryLock(name string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	cutoff := time.Now().Add(-ttl).Unix()

	err := retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin lock transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(
			`DELETE FROM import_locks WHERE name = ? AND acquired_at < ?`,
			name, cutoff); err != nil {
			return fmt.Errorf("expire stale lock on %s: %w", name, err)
		}

		_, err = tx.Exec(
			`INSERT INTO import_locks (name, token, acquired_at) VALUES (?, ?, ?)`,
			name, token, time.Now().Unix())
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyLocked
			}
			return fmt.Errorf("acquire lock on %s: %w", name, err)
		}
		return tx.Commit()
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Unlock releases an advisory lock previously taken with TryLock. A token
// mismatch (someone expired and re-took the lock) is a no-op.
func (s *Store) Unlock(name, token string) error {
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(
			`DELETE FROM import_locks WHERE name = ? AND token = ?`, name, token)
		return err
	})
	if err != nil {
		return fmt.Errorf("release lock on %s: %w", name, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLITE_CONSTRAINT")
}
