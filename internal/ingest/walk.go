package ingest

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/banshee-data/viddup/internal/monitoring"
)

// recentWriteGuard is how fresh a file's mtime may be before the walk
// treats it as an in-flight download and skips it.
const recentWriteGuard = 36 * time.Second

// DefaultExtensions are the container suffixes considered when no
// extension list is given.
var DefaultExtensions = []string{"mp4", "mkv", "avi", "ts", "asf", "wmv"}

// ParseExtensions splits a comma list like "mp4,mkv" into a normalized
// extension set. An empty list falls back to DefaultExtensions.
func ParseExtensions(list string) map[string]bool {
	exts := strings.Split(list, ",")
	if list == "" {
		exts = DefaultExtensions
	}
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		set["."+strings.TrimPrefix(e, ".")] = true
	}
	return set
}

// FindVideos walks dir recursively and returns the paths of all files
// with a matching extension in sorted order. Entries written within the
// last few seconds are skipped.
func FindVideos(dir string, exts map[string]bool) ([]string, error) {
	var paths []string
	cutoff := time.Now().Add(-recentWriteGuard)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			monitoring.Infof("skipping %s, still being written", path)
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	sort.Strings(paths)
	return paths, nil
}
