// Package engine defines the contract of the external structured-matrix
// solver engine the bridge drives. Every call returns a numeric Status; the
// engine owns all numerical algorithms and all collective communication.
// An implementation backed by an out-of-process engine can be bound in
// place of the in-tree reference engine without touching the bridge.
package engine

import "github.com/notargets/structmesh/grid"

// Status is the numeric result of an engine call. Zero means success; the
// meaning of non-zero codes is engine-defined and rendered by Describe.
type Status int

// OK is the success status.
const OK Status = 0

// Method enumerates the structured solver methods an engine provides.
type Method int

const (
	// PCG is the preconditioned conjugate gradient method.
	PCG Method = iota
	// GMRES is the generalized minimal residual method.
	GMRES
	// BiCGSTAB is the stabilized bi-conjugate gradient method.
	BiCGSTAB
	// PFMG is the semicoarsening geometric multigrid method.
	PFMG
	// SMG is the simpler geometric multigrid method.
	SMG
	// Jacobi is weighted point relaxation.
	Jacobi
)

func (m Method) String() string {
	switch m {
	case PCG:
		return "PCG"
	case GMRES:
		return "GMRES"
	case BiCGSTAB:
		return "BiCGSTAB"
	case PFMG:
		return "PFMG"
	case SMG:
		return "SMG"
	case Jacobi:
		return "Jacobi"
	}
	return "unknown"
}

// SolverFn applies a solver object's setup or solve to a system. The first
// argument is the solver the function is bound to; it is nil for the
// diagonal-scaling functions, which need no solver state.
type SolverFn func(s Solver, A Matrix, b, x Vector) Status

// Engine creates engine-resident objects over a communicator.
type Engine interface {
	NewGrid(comm grid.Comm, numDim int) (Grid, Status)
	NewStencil(numDim, size int) (Stencil, Status)
	NewMatrix(comm grid.Comm, g Grid, s Stencil) (Matrix, Status)
	NewVector(comm grid.Comm, g Grid) (Vector, Status)
	NewSolver(comm grid.Comm, m Method) (Solver, Status)

	// SetupFn and SolveFn return the setup/solve function pair of a
	// method, for handing a solver to another solver as preconditioner.
	SetupFn(m Method) SolverFn
	SolveFn(m Method) SolverFn
	// DiagScaleSetup and DiagScaleSolve return the diagonal-scaling
	// preconditioner functions, which have no solver object.
	DiagScaleSetup() SolverFn
	DiagScaleSolve() SolverFn

	// Describe renders a status as the engine's error description.
	Describe(st Status) string
}

// Grid is an engine-resident distributed box grid. Extents are given in
// engine axis order with inclusive bounds.
type Grid interface {
	SetExtents(lower, upper []int) Status
	// SetPeriodic sets the periodicity length per axis, zero meaning
	// non-periodic.
	SetPeriodic(period []int) Status
	Assemble() Status
	Destroy() Status
}

// Stencil is an ordered set of index offsets defining matrix coupling.
type Stencil interface {
	SetElement(index int, offset []int) Status
	Destroy() Status
}

// Matrix is an engine-resident structured matrix. Box values carry, for
// each point of the box in engine axis order (axis 0 fastest), one value
// per requested stencil entry, entry index innermost.
type Matrix interface {
	SetSymmetric(symmetric bool) Status
	Initialize() Status
	SetBoxValues(lower, upper []int, entries []int, values []float64) Status
	GetBoxValues(lower, upper []int, entries []int, values []float64) Status
	Assemble() Status
	Destroy() Status
}

// Vector is an engine-resident structured vector. Box values are ordered
// over the box in engine axis order with axis 0 fastest.
type Vector interface {
	Initialize() Status
	SetBoxValues(lower, upper []int, values []float64) Status
	GetBoxValues(lower, upper []int, values []float64) Status
	Assemble() Status
	Destroy() Status
}

// Solver is an engine-resident solver or preconditioner object. Options
// not supported by the solver's method return a non-zero status.
type Solver interface {
	SetTol(tol float64) Status
	SetAbsoluteTol(tol float64) Status
	SetMaxIter(n int) Status
	SetPrintLevel(level int) Status
	SetLogging(level int) Status

	SetTwoNorm(on bool) Status
	SetRelChange(on bool) Status
	SetKDim(k int) Status
	SetZeroGuess() Status
	SetMaxLevels(n int) Status
	SetRelaxType(t int) Status
	SetJacobiWeight(w float64) Status
	SetRAPType(t int) Status
	SetNumPreRelax(n int) Status
	SetNumPostRelax(n int) Status
	SetSkipRelax(n int) Status

	SetPrecond(solve, setup SolverFn, p Solver) Status
	Setup(A Matrix, b, x Vector) Status
	Solve(A Matrix, b, x Vector) Status
	NumIterations() (int, Status)
	FinalRelativeResidualNorm() (float64, Status)
	Destroy() Status
}
