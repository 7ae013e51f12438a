package knn

import (
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// linearIndex scans every window per query. Exact like the kd-tree but
// index-free, useful as a reference for the tree backends.
type linearIndex struct {
	set *ItemSet
}

func newLinearIndex(set *ItemSet) *linearIndex {
	return &linearIndex{set: set}
}

func (ix *linearIndex) Len() int { return ix.set.Len() }

func (ix *linearIndex) Query(n int, radius float64) ([]int, error) {
	items := ix.set.Items
	q := items[n]

	shards := runtime.GOMAXPROCS(0)
	if shards > len(items) {
		shards = 1
	}
	chunk := (len(items) + shards - 1) / shards

	found := make([][]int, shards)
	var g errgroup.Group
	for s := 0; s < shards; s++ {
		start := s * chunk
		end := min(start+chunk, len(items))
		g.Go(func() error {
			var hits []int
			for i := start; i < end; i++ {
				if floats.Distance(q, items[i], 2) < radius {
					hits = append(hits, i)
				}
			}
			found[s] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var hits []int
	for _, part := range found {
		hits = append(hits, part...)
	}
	sort.Ints(hits)
	return hits, nil
}
