package fingerprint

import (
	"math"

	"github.com/banshee-data/viddup/internal/store"
)

// IndexDist is the half-width, in seconds, of the neighbourhood a frame must
// dominate to count as a local brightness maximum.
const IndexDist = 10.0

// Order returns the extremum neighbourhood half-width in frames for a given
// frame rate.
func Order(fps float64) int {
	return int(math.Round(IndexDist * fps))
}

// NormalizeFlatRuns zeroes every element equal to its predecessor, in place,
// and returns the slice. A run of equal values keeps exactly one
// representative, so the strict local-max predicate sees isolated peaks
// rather than plateaus.
func NormalizeFlatRuns(series []float32) []float32 {
	for i := len(series) - 1; i > 0; i-- {
		if series[i] == series[i-1] {
			series[i] = 0
		}
	}
	return series
}

// Extrema converts a brightness series into hash entries: for each strict
// local maximum, the frame index and the seconds elapsed since the previous
// maximum (since the start for the first). Frames within Order(fps) of
// either boundary are never extrema.
//
// Flat-run normalization is applied to a copy; the input series is left
// unchanged.
func Extrema(series []float32, fps float64) []store.HashEntry {
	if fps <= 0 {
		return nil
	}
	series = NormalizeFlatRuns(append([]float32(nil), series...))

	order := Order(fps)
	var entries []store.HashEntry
	prev := int64(0)
	for i := order; i < len(series)-order; i++ {
		if !isStrictMax(series, i, order) {
			continue
		}
		frame := int64(i)
		gap := float64(frame-prev) / fps
		if len(entries) == 0 {
			gap = float64(frame) / fps
		}
		entries = append(entries, store.HashEntry{Frame: frame, Gap: gap})
		prev = frame
	}
	return entries
}

func isStrictMax(series []float32, i, order int) bool {
	v := series[i]
	for j := i - order; j <= i+order; j++ {
		if j == i {
			continue
		}
		if series[j] >= v {
			return false
		}
	}
	return true
}
