package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// GetID looks up the file id for an absolute path. The second return value
// reports whether the path is known.
func (s *Store) GetID(name string) (int64, bool, error) {
	var fid int64
	err := s.db.QueryRow(`SELECT fid FROM files WHERE name = ?`, name).Scan(&fid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get id for %s: %w", name, err)
	}
	return fid, true, nil
}

// IsNameInDB reports whether the path has a live file row.
func (s *Store) IsNameInDB(name string) (bool, error) {
	_, ok, err := s.GetID(name)
	return ok, err
}

// GetFileInfos returns all file rows ordered by fid ascending.
func (s *Store) GetFileInfos() ([]FileInfo, error) {
	rows, err := s.db.Query(`SELECT fid, name, fps, duration FROM files ORDER BY fid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query file infos: %w", err)
	}
	defer rows.Close()

	var infos []FileInfo
	for rows.Next() {
		var fi FileInfo
		if err := rows.Scan(&fi.FID, &fi.Name, &fi.FPS, &fi.Duration); err != nil {
			return nil, fmt.Errorf("scan file info: %w", err)
		}
		infos = append(infos, fi)
	}
	return infos, rows.Err()
}

// GetFileInfo returns the file row for fid, or ErrNotFound.
func (s *Store) GetFileInfo(fid int64) (FileInfo, error) {
	var fi FileInfo
	err := s.db.QueryRow(
		`SELECT fid, name, fps, duration FROM files WHERE fid = ?`, fid,
	).Scan(&fi.FID, &fi.Name, &fi.FPS, &fi.Duration)
	if errors.Is(err, sql.ErrNoRows) {
		return FileInfo{}, ErrNotFound
	}
	if err != nil {
		return FileInfo{}, fmt.Errorf("get file info %d: %w", fid, err)
	}
	return fi, nil
}

// UpdateName rewrites the stored absolute path of a file.
func (s *Store) UpdateName(fid int64, newName string) error {
	err := retryOnBusy(func() error {
		res, err := s.db.Exec(`UPDATE files SET name = ? WHERE fid = ?`, newName, fid)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err == nil && n == 0 {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("update name of %d: %w", fid, err)
	}
	return nil
}

// DelFile removes a file row. Brightness, hashes and whitelist entries go
// with it through the schema's cascading foreign keys.
func (s *Store) DelFile(fid int64) error {
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`DELETE FROM files WHERE fid = ?`, fid)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete file %d: %w", fid, err)
	}
	return nil
}

// HasHashes reports whether any extrema rows exist for fid.
func (s *Store) HasHashes(fid int64) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM hashes WHERE fid = ? LIMIT 1`, fid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check hashes of %d: %w", fid, err)
	}
	return true, nil
}

// GetBrightness returns the stored per-frame brightness series of fid in
// frame order.
func (s *Store) GetBrightness(fid int64) ([]float32, error) {
	rows, err := s.db.Query(
		`SELECT value FROM brightness WHERE fid = ? ORDER BY frame ASC`, fid)
	if err != nil {
		return nil, fmt.Errorf("query brightness of %d: %w", fid, err)
	}
	defer rows.Close()

	var series []float32
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan brightness of %d: %w", fid, err)
		}
		series = append(series, float32(v))
	}
	return series, rows.Err()
}

// GetHashes returns the extrema rows of fid with minFrame <= frame < maxFrame
// ordered by frame, split into parallel frame and gap slices.
func (s *Store) GetHashes(fid, minFrame, maxFrame int64) ([]int64, []float64, error) {
	rows, err := s.db.Query(
		`SELECT frame, gap FROM hashes
		 WHERE fid = ? AND frame >= ? AND frame < ?
		 ORDER BY frame ASC`, fid, minFrame, maxFrame)
	if err != nil {
		return nil, nil, fmt.Errorf("query hashes of %d: %w", fid, err)
	}
	defer rows.Close()

	var frames []int64
	var gaps []float64
	for rows.Next() {
		var frame int64
		var gap float64
		if err := rows.Scan(&frame, &gap); err != nil {
			return nil, nil, fmt.Errorf("scan hash row of %d: %w", fid, err)
		}
		frames = append(frames, frame)
		gaps = append(gaps, gap)
	}
	return frames, gaps, rows.Err()
}

// InsertHashes replaces the extrema rows of fid in a single transaction.
// Used by the rehash migration; imports go through an ImportTx instead.
func (s *Store) InsertHashes(fid int64, entries []HashEntry) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin hash insert for %d: %w", fid, err)
		}
		if err := insertHashesTx(tx, fid, entries); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func insertHashesTx(tx *sql.Tx, fid int64, entries []HashEntry) error {
	if _, err := tx.Exec(`DELETE FROM hashes WHERE fid = ?`, fid); err != nil {
		return fmt.Errorf("clear hashes of %d: %w", fid, err)
	}
	stmt, err := tx.Prepare(`INSERT INTO hashes (fid, frame, gap) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare hash insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.Exec(fid, e.Frame, e.Gap); err != nil {
			return fmt.Errorf("insert hash (%d, %d): %w", fid, e.Frame, err)
		}
	}
	return nil
}

func insertBrightnessTx(tx *sql.Tx, fid int64, series []float32) error {
	if _, err := tx.Exec(`DELETE FROM brightness WHERE fid = ?`, fid); err != nil {
		return fmt.Errorf("clear brightness of %d: %w", fid, err)
	}
	stmt, err := tx.Prepare(`INSERT INTO brightness (fid, frame, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare brightness insert: %w", err)
	}
	defer stmt.Close()
	for frame, v := range series {
		if _, err := stmt.Exec(fid, frame, float64(v)); err != nil {
			return fmt.Errorf("insert brightness (%d, %d): %w", fid, frame, err)
		}
	}
	return nil
}

// ImportTx is a write transaction covering one file's import: the file row,
// its brightness series and its extrema hashes commit or roll back together.
// Brightness must be inserted before hashes.
type ImportTx struct {
	tx *sql.Tx
}

// Begin opens an import transaction.
func (s *Store) Begin() (*ImportTx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin import transaction: %w", err)
	}
	return &ImportTx{tx: tx}, nil
}

// InsertFile creates or refreshes the file row for name. An existing row
// keeps its fid (and therefore its whitelist entries) and only has fps and
// duration rewritten.
func (t *ImportTx) InsertFile(name string, fps, duration float64) (FileInfo, error) {
	var fid int64
	err := t.tx.QueryRow(`SELECT fid FROM files WHERE name = ?`, name).Scan(&fid)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := t.tx.Exec(
			`INSERT INTO files (name, fps, duration) VALUES (?, ?, ?)`,
			name, fps, duration)
		if err != nil {
			return FileInfo{}, fmt.Errorf("insert file %s: %w", name, err)
		}
		fid, err = res.LastInsertId()
		if err != nil {
			return FileInfo{}, fmt.Errorf("file id of %s: %w", name, err)
		}
	case err != nil:
		return FileInfo{}, fmt.Errorf("look up file %s: %w", name, err)
	default:
		if _, err := t.tx.Exec(
			`UPDATE files SET fps = ?, duration = ? WHERE fid = ?`,
			fps, duration, fid); err != nil {
			return FileInfo{}, fmt.Errorf("refresh file %s: %w", name, err)
		}
	}
	return FileInfo{FID: fid, Name: name, FPS: fps, Duration: duration}, nil
}

// InsertBrightness replaces the brightness series of fid.
func (t *ImportTx) InsertBrightness(fid int64, series []float32) error {
	return insertBrightnessTx(t.tx, fid, series)
}

// InsertHashes replaces the extrema rows of fid.
func (t *ImportTx) InsertHashes(fid int64, entries []HashEntry) error {
	return insertHashesTx(t.tx, fid, entries)
}

// Commit finalizes the import.
func (t *ImportTx) Commit() error {
	return t.tx.Commit()
}

// Rollback abandons the import.
func (t *ImportTx) Rollback() error {
	return t.tx.Rollback()
}
