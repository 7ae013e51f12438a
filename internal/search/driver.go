// Package search runs duplicate-scene queries over a built window index
// and manages the resulting groups.
package search

import (
	"fmt"

	"github.com/banshee-data/viddup/internal/knn"
	"github.com/banshee-data/viddup/internal/monitoring"
	"github.com/banshee-data/viddup/internal/store"
)

// WhitelistChecker reports whether a file pair was marked as a known
// non-duplicate.
type WhitelistChecker interface {
	IsWhitelisted(a, b int64) (bool, error)
}

// Detail is one group member: a file and the offset of the matching
// scene within it.
type Detail struct {
	File   store.FileInfo `yaml:"file"`
	Offset float64        `yaml:"offset"`
}

// Group is a set of files sharing one scene, each at its own offset.
type Group []Detail

// Run strides over the indexed windows and collects duplicate groups.
// Every file pair is reported at most once, at its first occurrence.
// Per-window query errors are logged and skipped.
func Run(idx knn.Index, set *knn.ItemSet, wl WhitelistChecker, p knn.Params) ([]Group, error) {
	if p.Step < 1 {
		return nil, fmt.Errorf("step %d out of range", p.Step)
	}

	known := make(map[[2]int64]bool)
	var groups []Group

	for i := 0; i < idx.Len(); i += p.Step {
		neighbors, err := idx.Query(i, p.Radius)
		if err != nil {
			monitoring.Warnf("query window %d: %v", i, err)
			continue
		}
		if len(neighbors) <= 1 {
			continue
		}

		fresh, err := freshPairs(neighbors, set, known, wl)
		if err != nil {
			monitoring.Warnf("window %d: %v", i, err)
			continue
		}
		if len(fresh) == 0 {
			continue
		}

		live := make(map[int64]bool)
		for pair := range fresh {
			known[pair] = true
			live[pair[0]] = true
			live[pair[1]] = true
		}

		group := assembleGroup(neighbors, set, live)
		if len(group) > 1 {
			groups = append(groups, group)
			dumpGroup(i, group, set, neighbors)
		}
	}

	monitoring.Infof("found %d duplicate groups", len(groups))
	return groups, nil
}

// freshPairs returns the fid combinations among the neighbor windows
// that are not self-pairs, not already reported, and not whitelisted.
func freshPairs(neighbors []int, set *knn.ItemSet, known map[[2]int64]bool, wl WhitelistChecker) (map[[2]int64]bool, error) {
	fids := make(map[int64]bool)
	for _, m := range neighbors {
		fids[set.FileRefs[m].FID] = true
	}

	fresh := make(map[[2]int64]bool)
	for a := range fids {
		for b := range fids {
			if a >= b {
				continue
			}
			pair := [2]int64{a, b}
			if known[pair] {
				continue
			}
			listed, err := wl.IsWhitelisted(a, b)
			if err != nil {
				return nil, fmt.Errorf("whitelist check %d/%d: %w", a, b, err)
			}
			if listed {
				continue
			}
			fresh[pair] = true
		}
	}
	return fresh, nil
}

// assembleGroup picks the first window of every live file, in ascending
// window order, and projects it to a time offset.
func assembleGroup(neighbors []int, set *knn.ItemSet, live map[int64]bool) Group {
	var group Group
	seen := make(map[int64]bool)
	for _, m := range neighbors {
		fi := set.FileRefs[m]
		if !live[fi.FID] || seen[fi.FID] {
			continue
		}
		seen[fi.FID] = true
		group = append(group, Detail{File: fi, Offset: float64(set.FrameRefs[m]) / fi.FPS})
	}
	return group
}

func dumpGroup(window int, group Group, set *knn.ItemSet, neighbors []int) {
	monitoring.Debugf("window %d matched %d files", window, len(group))
	for _, m := range neighbors {
		monitoring.Debugf("  fid=%d frame=%d row=%v",
			set.FileRefs[m].FID, set.FrameRefs[m], set.Items[m])
	}
}
