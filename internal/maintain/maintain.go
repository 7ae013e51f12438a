// Package maintain holds the store housekeeping operations: purging
// vanished files, reconciling renames, whitelisting and rehashing.
package maintain

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/viddup/internal/fingerprint"
	"github.com/banshee-data/viddup/internal/ingest"
	"github.com/banshee-data/viddup/internal/monitoring"
	"github.com/banshee-data/viddup/internal/store"
)

// Purge removes store entries whose file is no longer readable. With
// dryRun set it only reports them. Each deletion is its own
// transaction, so an interrupted purge leaves no partial cascade.
func Purge(st *store.Store, dryRun bool) error {
	if err := st.TidyDB(); err != nil {
		return err
	}

	infos, err := st.GetFileInfos()
	if err != nil {
		return err
	}

	gone := 0
	for _, fi := range infos {
		f, err := os.Open(fi.Name)
		if err == nil {
			f.Close()
			continue
		}
		gone++
		if dryRun {
			monitoring.Infof("would delete %s: %v", fi.Name, err)
			continue
		}
		if err := st.DelFile(fi.FID); err != nil {
			return err
		}
		monitoring.Infof("deleted %s", fi.Name)
	}
	monitoring.Infof("purge: %d of %d files missing", gone, len(infos))
	return nil
}

// Rename moves a tracked file on disk and updates its store row. An
// unknown path is a warning no-op.
func Rename(st *store.Store, oldPath, newPath string) error {
	fid, ok, err := st.GetID(oldPath)
	if err != nil {
		return err
	}
	if !ok {
		monitoring.Warnf("%s is not in the database", oldPath)
		return nil
	}

	f, err := os.Open(oldPath)
	if err != nil {
		return fmt.Errorf("unreadable: %w", err)
	}
	f.Close()
	if _, err := os.Stat(newPath); err == nil {
		return fmt.Errorf("%s already exists", newPath)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("move %s: %w", oldPath, err)
	}
	return st.UpdateName(fid, newPath)
}

// FixMoved scans dir for tracked files that moved without a rename and
// updates their stored paths. Basenames stored more than once are
// ambiguous and left alone.
func FixMoved(st *store.Store, dir string, exts map[string]bool) error {
	infos, err := st.GetFileInfos()
	if err != nil {
		return err
	}

	byBase := make(map[string]store.FileInfo)
	ambiguous := make(map[string]bool)
	for _, fi := range infos {
		base := filepath.Base(fi.Name)
		if _, dup := byBase[base]; dup {
			ambiguous[base] = true
			continue
		}
		byBase[base] = fi
	}

	paths, err := ingest.FindVideos(dir, exts)
	if err != nil {
		return err
	}

	moved := 0
	for _, path := range paths {
		base := filepath.Base(path)
		if ambiguous[base] {
			monitoring.Warnf("basename %s is ambiguous, not fixing", base)
			continue
		}
		fi, ok := byBase[base]
		if !ok || fi.Name == path {
			continue
		}
		monitoring.Infof("fixing %s -> %s", fi.Name, path)
		if err := st.UpdateName(fi.FID, path); err != nil {
			return err
		}
		moved++
	}
	monitoring.Infof("fixed %d moved files", moved)
	return nil
}

// Whitelist resolves paths to file ids and marks every pair among them
// as a known non-duplicate. Unknown paths are reported and skipped.
func Whitelist(st *store.Store, paths []string) error {
	var fids []int64
	for _, path := range paths {
		fid, ok, err := st.GetID(path)
		if err != nil {
			return err
		}
		if !ok {
			monitoring.Warnf("%s is not in the database", path)
			continue
		}
		fids = append(fids, fid)
	}
	if len(fids) < 2 {
		return fmt.Errorf("whitelist needs at least two known files, got %d", len(fids))
	}

	for i, a := range fids {
		for _, b := range fids[i+1:] {
			if err := st.Whitelist(a, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// Rehash recomputes extrema for every file that has a brightness series
// but no hash rows, using the stored frame rate. Files that already have
// hash rows keep them unchanged.
func Rehash(st *store.Store) error {
	infos, err := st.GetFileInfos()
	if err != nil {
		return err
	}

	done := 0
	for _, fi := range infos {
		hashed, err := st.HasHashes(fi.FID)
		if err != nil {
			return err
		}
		if hashed {
			continue
		}
		series, err := st.GetBrightness(fi.FID)
		if err != nil {
			return err
		}
		if len(series) == 0 {
			continue
		}
		entries := fingerprint.Extrema(series, fi.FPS)
		if err := st.InsertHashes(fi.FID, entries); err != nil {
			return err
		}
		monitoring.Infof("rehashed %s: %d extrema", fi.Name, len(entries))
		done++
	}
	monitoring.Infof("rehashed %d files", done)
	return nil
}
