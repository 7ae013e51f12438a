// Package knn builds fixed-width gap windows from stored fingerprints and
// answers radius queries over them through pluggable vector-index backends.
package knn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/viddup/internal/monitoring"
	"github.com/banshee-data/viddup/internal/store"
)

// minHashesPerFile is the fingerprint length below which a file cannot
// contribute windows.
const minHashesPerFile = 5

// Params are the window and query knobs shared by the builder and the
// search driver.
type Params struct {
	IndexLength int     // window dimension L
	SceneLength float64 // per-window time budget in seconds
	Radius      float64 // L2 distance cutoff
	Step        int     // query stride over windows
	IgnoreStart float64 // seconds trimmed from the head of each file
	IgnoreEnd   float64 // seconds trimmed from the tail of each file
	FixSpeed    bool    // mean-normalize windows
	Backend     string  // index backend name
}

// DefaultParams mirrors the CLI defaults.
func DefaultParams() Params {
	return Params{
		IndexLength: 10,
		SceneLength: 300,
		Radius:      3.0,
		Step:        1,
		Backend:     "kdtree",
	}
}

// HashSource is the slice of the store the window builder reads.
type HashSource interface {
	GetFileInfos() ([]store.FileInfo, error)
	GetHashes(fid, minFrame, maxFrame int64) ([]int64, []float64, error)
}

// ItemSet holds the windows of one search invocation together with the
// file and anchor-frame references parallel to them.
type ItemSet struct {
	Items     [][]float64
	FileRefs  []store.FileInfo
	FrameRefs []int64
	Dim       int
}

// Len returns the number of windows.
func (s *ItemSet) Len() int { return len(s.Items) }

// BuildItems slices every file's stored extrema gaps into overlapping
// windows of p.IndexLength values. Windows are truncated against the
// scene-length budget and optionally speed-normalized.
func BuildItems(src HashSource, p Params) (*ItemSet, error) {
	if p.IndexLength < 1 {
		return nil, fmt.Errorf("index length %d out of range", p.IndexLength)
	}

	infos, err := src.GetFileInfos()
	if err != nil {
		return nil, fmt.Errorf("load file infos: %w", err)
	}

	set := &ItemSet{Dim: p.IndexLength}
	for _, fi := range infos {
		minFrame := int64(p.IgnoreStart * fi.FPS)
		maxFrame := int64((fi.Duration - p.IgnoreEnd) * fi.FPS)

		frames, gaps, err := src.GetHashes(fi.FID, minFrame, maxFrame)
		if err != nil {
			return nil, fmt.Errorf("load hashes of %s: %w", fi.Name, err)
		}
		if len(gaps) < minHashesPerFile {
			continue
		}

		for k := 0; k+p.IndexLength <= len(gaps)-1; k++ {
			window := clampWindow(gaps[k:k+p.IndexLength], p.SceneLength)
			if p.FixSpeed {
				var ok bool
				window, ok = normalizeSpeed(window)
				if !ok {
					continue
				}
			}
			set.Items = append(set.Items, window)
			set.FileRefs = append(set.FileRefs, fi)
			set.FrameRefs = append(set.FrameRefs, frames[k])
		}
	}

	monitoring.Infof("built %d windows from %d files", set.Len(), len(infos))
	return set, nil
}

// clampWindow copies the window and zeroes every position from the first
// one whose preceding original gaps already exceed the scene budget. The
// running total accumulates the original values, so the clamp decision is
// independent of earlier zeroing.
func clampWindow(gaps []float64, sceneLength float64) []float64 {
	window := make([]float64, len(gaps))
	totalTime := 0.0
	for n, v := range gaps {
		if totalTime > sceneLength {
			window[n] = 0
		} else {
			window[n] = v
		}
		totalTime += v
	}
	return window
}

// normalizeSpeed rescales the window to 128·w/mean(w). Windows with a zero
// mean cannot be normalized and are skipped by the caller.
func normalizeSpeed(window []float64) ([]float64, bool) {
	mean := floats.Sum(window) / float64(len(window))
	if mean == 0 {
		return nil, false
	}
	floats.Scale(128/mean, window)
	return window, true
}
