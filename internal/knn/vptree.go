package knn

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/vptree"
)

// vptreeEffort is the number of vantage-point candidates sampled per
// node during construction.
const vptreeEffort = 5

type vpPoint struct {
	vec []float64
	id  int
}

func (p vpPoint) Distance(c vptree.Comparable) float64 {
	return floats.Distance(p.vec, c.(vpPoint).vec, 2)
}

type vpTreeIndex struct {
	set  *ItemSet
	tree *vptree.Tree
}

func newVPTreeIndex(set *ItemSet) (*vpTreeIndex, error) {
	pts := make([]vptree.Comparable, set.Len())
	for i, w := range set.Items {
		pts[i] = vpPoint{vec: w, id: i}
	}
	// A fixed seed keeps repeated runs over the same store identical.
	tree, err := vptree.New(pts, vptreeEffort, rand.NewPCG(1, 1))
	if err != nil {
		return nil, fmt.Errorf("build vp-tree: %w", err)
	}
	return &vpTreeIndex{set: set, tree: tree}, nil
}

func (ix *vpTreeIndex) Len() int { return ix.set.Len() }

func (ix *vpTreeIndex) Query(n int, radius float64) ([]int, error) {
	keep := vptree.NewDistKeeper(radius)
	ix.tree.NearestSet(keep, vpPoint{vec: ix.set.Items[n], id: n})

	hits := make([]int, 0, len(keep.Heap))
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue
		}
		if cd.Dist < radius {
			hits = append(hits, cd.Comparable.(vpPoint).id)
		}
	}
	sort.Ints(hits)
	return hits, nil
}
