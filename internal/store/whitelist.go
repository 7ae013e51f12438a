package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Whitelist records that matches between the two files should be suppressed
// in future reports. The pair is stored normalized (lower fid first) and the
// insert is idempotent.
func (s *Store) Whitelist(fidA, fidB int64) error {
	lo, hi := orderPair(fidA, fidB)
	if lo == hi {
		return fmt.Errorf("whitelist: cannot pair %d with itself", lo)
	}
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO whitelist (fid_lo, fid_hi) VALUES (?, ?)`, lo, hi)
		return err
	})
	if err != nil {
		return fmt.Errorf("whitelist (%d, %d): %w", lo, hi, err)
	}
	return nil
}

// IsWhitelisted reports whether the pair has been whitelisted. Symmetric in
// its arguments.
func (s *Store) IsWhitelisted(fidA, fidB int64) (bool, error) {
	lo, hi := orderPair(fidA, fidB)
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM whitelist WHERE fid_lo = ? AND fid_hi = ?`, lo, hi).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check whitelist (%d, %d): %w", lo, hi, err)
	}
	return true, nil
}

func orderPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}
