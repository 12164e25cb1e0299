// Package grid provides the structured Cartesian grid abstraction consumed
// by the solver bridge: index spaces, global and local grids, entity types,
// and rank-grid partitioners.
package grid

import "fmt"

// IndexSpace is a D-dimensional half-open index range [Min, Max).
type IndexSpace struct {
	min []int
	max []int
}

// NewIndexSpace creates an index space from per-axis lower (inclusive) and
// upper (exclusive) bounds.
func NewIndexSpace(min, max []int) (IndexSpace, error) {
	if len(min) == 0 || len(min) != len(max) {
		return IndexSpace{}, fmt.Errorf("grid: index space bounds must be non-empty and of equal dimension, got %d and %d", len(min), len(max))
	}
	for d := range min {
		if max[d] < min[d] {
			return IndexSpace{}, fmt.Errorf("grid: index space axis %d has max %d < min %d", d, max[d], min[d])
		}
	}
	s := IndexSpace{min: make([]int, len(min)), max: make([]int, len(max))}
	copy(s.min, min)
	copy(s.max, max)
	return s, nil
}

// NumDim returns the spatial dimension of the space.
func (s IndexSpace) NumDim() int { return len(s.min) }

// Min returns the inclusive lower bound on axis d.
func (s IndexSpace) Min(d int) int { return s.min[d] }

// Max returns the exclusive upper bound on axis d.
func (s IndexSpace) Max(d int) int { return s.max[d] }

// Extent returns the number of indices on axis d.
func (s IndexSpace) Extent(d int) int { return s.max[d] - s.min[d] }

// Extents returns the per-axis extents.
func (s IndexSpace) Extents() []int {
	e := make([]int, len(s.min))
	for d := range e {
		e[d] = s.Extent(d)
	}
	return e
}

// Size returns the total number of indices in the space.
func (s IndexSpace) Size() int {
	n := 1
	for d := range s.min {
		n *= s.Extent(d)
	}
	return n
}

// Contains reports whether idx lies inside the space.
func (s IndexSpace) Contains(idx []int) bool {
	if len(idx) != len(s.min) {
		return false
	}
	for d, i := range idx {
		if i < s.min[d] || i >= s.max[d] {
			return false
		}
	}
	return true
}
