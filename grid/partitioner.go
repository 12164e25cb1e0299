package grid

import (
	"fmt"
	"sort"
)

// Partitioner decomposes a communicator into a Cartesian rank grid over the
// mesh axes.
type Partitioner interface {
	// RanksPerDim returns the number of ranks along each mesh axis. The
	// product over all axes must equal the communicator size.
	RanksPerDim(comm Comm, cellsPerDim []int) ([]int, error)
}

// UniformDimPartitioner factors the communicator size into a near-uniform
// rank grid, biasing extra ranks toward the axes with the most cells.
type UniformDimPartitioner struct{}

// RanksPerDim implements Partitioner.
func (UniformDimPartitioner) RanksPerDim(comm Comm, cellsPerDim []int) ([]int, error) {
	nd := len(cellsPerDim)
	if nd == 0 {
		return nil, fmt.Errorf("grid: no axes to partition")
	}
	ranks := make([]int, nd)
	for d := range ranks {
		ranks[d] = 1
	}
	// Assign prime factors of the group size, largest first, to the axis
	// with the most cells per rank so far.
	for _, f := range primeFactors(comm.Size()) {
		best := 0
		for d := 1; d < nd; d++ {
			if cellsPerDim[d]/ranks[d] > cellsPerDim[best]/ranks[best] {
				best = d
			}
		}
		ranks[best] *= f
	}
	for d := range ranks {
		if ranks[d] > cellsPerDim[d] {
			return nil, fmt.Errorf("grid: axis %d has %d cells for %d ranks", d, cellsPerDim[d], ranks[d])
		}
	}
	return ranks, nil
}

func primeFactors(n int) []int {
	var f []int
	for p := 2; p*p <= n; p++ {
		for n%p == 0 {
			f = append(f, p)
			n /= p
		}
	}
	if n > 1 {
		f = append(f, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(f)))
	return f
}

// ManualPartitioner uses a caller-provided rank grid.
type ManualPartitioner struct {
	ranksPerDim []int
}

// NewManualPartitioner creates a partitioner with a fixed rank grid.
func NewManualPartitioner(ranksPerDim []int) ManualPartitioner {
	r := make([]int, len(ranksPerDim))
	copy(r, ranksPerDim)
	return ManualPartitioner{ranksPerDim: r}
}

// RanksPerDim implements Partitioner.
func (m ManualPartitioner) RanksPerDim(comm Comm, cellsPerDim []int) ([]int, error) {
	if len(m.ranksPerDim) != len(cellsPerDim) {
		return nil, fmt.Errorf("grid: rank grid has %d axes, mesh has %d", len(m.ranksPerDim), len(cellsPerDim))
	}
	total := 1
	for _, r := range m.ranksPerDim {
		total *= r
	}
	if total != comm.Size() {
		return nil, fmt.Errorf("grid: rank grid totals %d ranks, communicator has %d", total, comm.Size())
	}
	r := make([]int, len(m.ranksPerDim))
	copy(r, m.ranksPerDim)
	return r, nil
}

// Partition builds the calling rank's local grid by block-distributing the
// global cells over the partitioner's rank grid. Remainder cells go to the
// low-coordinate ranks, one per rank. Rank coordinates vary fastest along
// axis 0.
func Partition(p Partitioner, global *GlobalGrid) (*LocalGrid, error) {
	comm := global.Comm()
	nd := global.NumDim()
	cells := make([]int, nd)
	for d := 0; d < nd; d++ {
		cells[d] = global.NumCell(d)
	}
	ranks, err := p.RanksPerDim(comm, cells)
	if err != nil {
		return nil, err
	}

	// Cartesian coordinates of the calling rank.
	coord := make([]int, nd)
	r := comm.Rank()
	for d := 0; d < nd; d++ {
		coord[d] = r % ranks[d]
		r /= ranks[d]
	}

	min := make([]int, nd)
	max := make([]int, nd)
	for d := 0; d < nd; d++ {
		base := cells[d] / ranks[d]
		rem := cells[d] % ranks[d]
		min[d] = coord[d]*base + minInt(coord[d], rem)
		ext := base
		if coord[d] < rem {
			ext++
		}
		max[d] = min[d] + ext
	}
	owned, err := NewIndexSpace(min, max)
	if err != nil {
		return nil, err
	}
	return NewLocalGrid(global, owned)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
