package knn

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// indexedPoint is one window vector tagged with its ItemSet position.
type indexedPoint struct {
	vec []float64
	id  int
}

func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.vec[d] - c.(indexedPoint).vec[d]
}

func (p indexedPoint) Dims() int { return len(p.vec) }

// Distance returns the squared Euclidean distance, matching the units the
// tree prunes in.
func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(indexedPoint)
	var sum float64
	for i, v := range p.vec {
		dv := v - q.vec[i]
		sum += dv * dv
	}
	return sum
}

type pointSet []indexedPoint

func (p pointSet) Index(i int) kdtree.Comparable         { return p[i] }
func (p pointSet) Len() int                              { return len(p) }
func (p pointSet) Pivot(d kdtree.Dim) int                { return plane{pointSet: p, Dim: d}.Pivot() }
func (p pointSet) Slice(start, end int) kdtree.Interface { return p[start:end] }

type plane struct {
	pointSet
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	return p.pointSet[i].vec[p.Dim] < p.pointSet[j].vec[p.Dim]
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.pointSet = p.pointSet[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.pointSet[i], p.pointSet[j] = p.pointSet[j], p.pointSet[i]
}

type kdTreeIndex struct {
	set  *ItemSet
	tree *kdtree.Tree
}

func newKDTreeIndex(set *ItemSet) *kdTreeIndex {
	pts := make(pointSet, set.Len())
	for i, w := range set.Items {
		pts[i] = indexedPoint{vec: w, id: i}
	}
	return &kdTreeIndex{set: set, tree: kdtree.New(pts, true)}
}

func (ix *kdTreeIndex) Len() int { return ix.set.Len() }

func (ix *kdTreeIndex) Query(n int, radius float64) ([]int, error) {
	r2 := radius * radius
	keep := kdtree.NewDistKeeper(r2)
	ix.tree.NearestSet(keep, indexedPoint{vec: ix.set.Items[n], id: n})

	hits := make([]int, 0, len(keep.Heap))
	for _, cd := range keep.Heap {
		// The keeper seeds its heap with a nil sentinel.
		if cd.Comparable == nil {
			continue
		}
		if cd.Dist < r2 {
			hits = append(hits, cd.Comparable.(indexedPoint).id)
		}
	}
	sort.Ints(hits)
	return hits, nil
}
