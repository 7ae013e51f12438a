package store

import (
	"fmt"

	"github.com/banshee-data/viddup/internal/monitoring"
)

// TidyDB removes file rows without any hashes and orphaned dependent rows.
// Run before purge so the readability scan only sees rows worth keeping.
func (s *Store) TidyDB() error {
	monitoring.Infof("cleaning database")
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tidy: %w", err)
		}
		defer tx.Rollback()

		stmts := []string{
			`DELETE FROM files WHERE NOT EXISTS
			   (SELECT 1 FROM hashes WHERE hashes.fid = files.fid LIMIT 1)`,
			`DELETE FROM hashes WHERE fid NOT IN (SELECT fid FROM files)`,
			`DELETE FROM brightness WHERE fid NOT IN (SELECT fid FROM files)`,
			`DELETE FROM whitelist WHERE fid_lo NOT IN (SELECT fid FROM files)`,
			`DELETE FROM whitelist WHERE fid_hi NOT IN (SELECT fid FROM files)`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("tidy statement failed: %w", err)
			}
		}
		return tx.Commit()
	})
}
