package grid

import "fmt"

// EntityType classifies the mesh entity a field or solver is defined over.
type EntityType int

const (
	// Cell entities are centered in grid cells.
	Cell EntityType = iota
	// Node entities sit on cell corners.
	Node
)

func (e EntityType) String() string {
	switch e {
	case Cell:
		return "Cell"
	case Node:
		return "Node"
	}
	return fmt.Sprintf("EntityType(%d)", int(e))
}

// GlobalGrid describes the global structured mesh: cell counts and
// periodicity per axis, and the communicator the mesh is distributed over.
type GlobalGrid struct {
	comm     Comm
	cells    []int
	periodic []bool
}

// NewGlobalGrid creates a global grid with the given per-axis global cell
// counts and periodicity.
func NewGlobalGrid(comm Comm, numCells []int, periodic []bool) (*GlobalGrid, error) {
	if len(numCells) == 0 {
		return nil, fmt.Errorf("grid: global grid needs at least one axis")
	}
	if len(periodic) != len(numCells) {
		return nil, fmt.Errorf("grid: periodicity has %d axes, cell counts have %d", len(periodic), len(numCells))
	}
	for d, n := range numCells {
		if n < 1 {
			return nil, fmt.Errorf("grid: axis %d has non-positive cell count %d", d, n)
		}
	}
	g := &GlobalGrid{
		comm:     comm,
		cells:    make([]int, len(numCells)),
		periodic: make([]bool, len(periodic)),
	}
	copy(g.cells, numCells)
	copy(g.periodic, periodic)
	return g, nil
}

// NumDim returns the spatial dimension of the grid.
func (g *GlobalGrid) NumDim() int { return len(g.cells) }

// Comm returns the communicator the grid is distributed over.
func (g *GlobalGrid) Comm() Comm { return g.comm }

// IsPeriodic reports whether axis d is periodic.
func (g *GlobalGrid) IsPeriodic(d int) bool { return g.periodic[d] }

// NumCell returns the global cell count on axis d.
func (g *GlobalGrid) NumCell(d int) int { return g.cells[d] }

// NumEntity returns the global entity count on axis d. Node counts collapse
// onto the cell count on periodic axes, where the closing node wraps onto
// the first.
func (g *GlobalGrid) NumEntity(e EntityType, d int) int {
	if e == Node && !g.periodic[d] {
		return g.cells[d] + 1
	}
	return g.cells[d]
}

// LocalGrid is the per-rank view of a global grid: the block of cells owned
// by the calling rank, addressed in global indices.
type LocalGrid struct {
	global *GlobalGrid
	owned  IndexSpace
}

// NewLocalGrid creates a local grid owning the given global cell index
// space.
func NewLocalGrid(global *GlobalGrid, owned IndexSpace) (*LocalGrid, error) {
	if global == nil {
		return nil, fmt.Errorf("grid: nil global grid")
	}
	if owned.NumDim() != global.NumDim() {
		return nil, fmt.Errorf("grid: owned space has %d axes, global grid has %d", owned.NumDim(), global.NumDim())
	}
	for d := 0; d < global.NumDim(); d++ {
		if owned.Min(d) < 0 || owned.Max(d) > global.NumCell(d) {
			return nil, fmt.Errorf("grid: owned space [%d,%d) exceeds global axis %d of %d cells",
				owned.Min(d), owned.Max(d), d, global.NumCell(d))
		}
	}
	return &LocalGrid{global: global, owned: owned}, nil
}

// GlobalGrid returns the global grid the local grid is a block of.
func (l *LocalGrid) GlobalGrid() *GlobalGrid { return l.global }

// OwnedCells returns the owned global cell index space.
func (l *LocalGrid) OwnedCells() IndexSpace { return l.owned }

// OwnedSpace returns the owned global index space of the given entity type.
// A rank owns the nodes on the lower faces of its cells; the rank at the
// global upper boundary of a non-periodic axis additionally owns the
// closing node layer.
func (l *LocalGrid) OwnedSpace(e EntityType) IndexSpace {
	if e == Cell {
		return l.owned
	}
	nd := l.global.NumDim()
	min := make([]int, nd)
	max := make([]int, nd)
	for d := 0; d < nd; d++ {
		min[d] = l.owned.Min(d)
		max[d] = l.owned.Max(d)
		if !l.global.IsPeriodic(d) && l.owned.Max(d) == l.global.NumCell(d) {
			max[d]++
		}
	}
	s, err := NewIndexSpace(min, max)
	if err != nil {
		panic(fmt.Sprintf("grid: invalid owned node space: %v", err))
	}
	return s
}
