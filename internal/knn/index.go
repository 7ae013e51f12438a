package knn

import (
	"errors"
	"fmt"
)

// ErrUnknownBackend is returned by NewIndex for backend names it does
// not recognize.
var ErrUnknownBackend = errors.New("knn: unknown index backend")

// Backends lists the selectable index backends.
var Backends = []string{"kdtree", "vptree", "linear"}

// Index answers radius queries over a built ItemSet.
type Index interface {
	// Len returns the number of indexed windows.
	Len() int

	// Query returns the indices of every window whose L2 distance to
	// window n is strictly below radius, in ascending index order. The
	// query window itself is part of the result.
	Query(n int, radius float64) ([]int, error)
}

// NewIndex builds the named backend over set.
func NewIndex(set *ItemSet, backend string) (Index, error) {
	switch backend {
	case "kdtree":
		return newKDTreeIndex(set), nil
	case "vptree":
		return newVPTreeIndex(set)
	case "linear":
		return newLinearIndex(set), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
