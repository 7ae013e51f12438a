// Package ingest coordinates the import of video files: locking,
// decoding, fingerprinting and the transactional store write.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/viddup/internal/fingerprint"
	"github.com/banshee-data/viddup/internal/monitoring"
	"github.com/banshee-data/viddup/internal/store"
	"github.com/banshee-data/viddup/internal/video"
)

// frameSource is the slice of video.FrameReader the importer consumes.
type frameSource interface {
	Next() ([]byte, error)
	Close() error
}

// Test seams over the decoder tool family.
var (
	probeVideo = video.ProbeWithRepair

	openFrames = func(ctx context.Context, path string, meta video.Metadata) (frameSource, error) {
		return video.OpenFrames(ctx, path, meta)
	}
)

// Importer drives file imports against one store.
type Importer struct {
	Store   *store.Store
	Refresh bool          // re-import paths already in the store
	Repair  bool          // remux containers with broken duration metadata
	LockTTL time.Duration // zero means store.DefaultLockTTL
}

// ImportAll imports paths in order. The context is consulted between
// files only; the in-flight file always completes. Per-file failures
// are logged and do not stop the run.
func (im *Importer) ImportAll(ctx context.Context, paths []string) error {
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			monitoring.Infof("import stopped: %v", err)
			return err
		}
		if err := im.ImportFile(context.WithoutCancel(ctx), path); err != nil {
			if ctx.Err() != nil {
				return err
			}
			monitoring.Errorf("import %s: %v", path, err)
		}
	}
	return nil
}

// ImportFile runs the full pipeline for one file: readability check,
// skip-unless-refresh, advisory lock, decode, fingerprint, one write
// transaction. A failed import leaves the lock in place until it
// expires.
func (im *Importer) ImportFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("unreadable: %w", err)
	}
	f.Close()

	known, err := im.Store.IsNameInDB(path)
	if err != nil {
		return err
	}
	if known && !im.Refresh {
		monitoring.Debugf("skipping %s, already imported", path)
		return nil
	}

	ttl := im.LockTTL
	if ttl == 0 {
		ttl = store.DefaultLockTTL
	}
	token, err := im.Store.TryLock(path, ttl)
	if errors.Is(err, store.ErrAlreadyLocked) {
		monitoring.Warnf("skipping %s, import lock held elsewhere", path)
		return nil
	}
	if err != nil {
		return err
	}

	if err := im.importLocked(ctx, path); err != nil {
		return err
	}
	return im.Store.Unlock(path, token)
}

func (im *Importer) importLocked(ctx context.Context, path string) error {
	monitoring.Infof("importing %s", path)

	// Probe while a throwaway read spins the disk up.
	var meta video.Metadata
	var g errgroup.Group
	g.Go(func() error {
		preRead(path)
		return nil
	})
	g.Go(func() error {
		var err error
		meta, err = probeVideo(ctx, path, im.Repair)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	series, err := collectBrightness(ctx, path, meta)
	if err != nil {
		return err
	}
	entries := fingerprint.Extrema(series, meta.FPS)
	monitoring.Infof("%s: %d frames, %d extrema", path, len(series), len(entries))

	tx, err := im.Store.Begin()
	if err != nil {
		return err
	}
	fi, err := tx.InsertFile(path, meta.FPS, float64(len(series))/meta.FPS)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.InsertBrightness(fi.FID, series); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.InsertHashes(fi.FID, entries); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func collectBrightness(ctx context.Context, path string, meta video.Metadata) ([]float32, error) {
	reader, err := openFrames(ctx, path, meta)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var readErr error
	series := fingerprint.Collect(func() ([]byte, bool) {
		frame, err := reader.Next()
		switch {
		case errors.Is(err, io.EOF):
			return nil, false
		case errors.Is(err, video.ErrSourceTruncated):
			// Keep the frames decoded so far.
			monitoring.Warnf("%s: %v", path, err)
			return nil, false
		case err != nil:
			readErr = err
			return nil, false
		}
		return frame, true
	})
	if readErr != nil {
		return nil, fmt.Errorf("decode %s: %w", path, readErr)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no frames decoded from %s", video.ErrSourceUnreadable, path)
	}
	return series, nil
}

// preRead pulls the first KiB so slow media wakes up before the
// decoder starts. Errors are irrelevant, the real read follows.
func preRead(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	io.ReadFull(f, make([]byte, 1024))
}
