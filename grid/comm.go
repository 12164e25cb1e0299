package grid

// Comm identifies a process group to the solver engine. The bridge itself
// performs no collective communication; the engine bound to a solver owns
// every collective triggered inside setup and solve, and the communicator
// used to build a solver's grid must be used for all of them.
type Comm struct {
	rank int
	size int
}

// SelfComm returns the single-process communicator.
func SelfComm() Comm { return Comm{rank: 0, size: 1} }

// NewComm creates a communicator handle for the calling rank of a group of
// the given size.
func NewComm(rank, size int) Comm { return Comm{rank: rank, size: size} }

// Rank returns the calling process rank.
func (c Comm) Rank() int { return c.rank }

// Size returns the process group size.
func (c Comm) Size() int {
	if c.size == 0 {
		return 1
	}
	return c.size
}
