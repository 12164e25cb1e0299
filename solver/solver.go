// Package solver bridges structured-mesh field arrays to an external
// structured-matrix solver engine. A solver instance is bound to a field
// layout at construction and is permanently in either solver mode, owning
// engine-side grid, matrix, and vector resources, or preconditioner mode,
// owning only its engine solver object so it can be attached to another
// solver.
//
// Instances are not safe for concurrent use; the engine handles are not
// reentrant and callers must serialize access per instance. Setup and
// Solve block on any communication internal to the engine.
package solver

import (
	"fmt"

	"github.com/notargets/structmesh/engine"
	"github.com/notargets/structmesh/field"
	"github.com/notargets/structmesh/grid"
)

// Solver is the universal solver contract shared by every variant. The
// variant set is closed: the seven types in this package are the only
// implementations.
type Solver interface {
	// SetMatrixStencil defines the matrix coupling offsets, one per matrix
	// entry per mesh point, and creates the operator matrix. Offsets are
	// given in the mesh's natural axis order. With symmetric storage the
	// offsets must contain one entry from each symmetric pair.
	SetMatrixStencil(offsets [][]int, symmetric bool) error
	// SetMatrixValues transfers matrix entry values from an array carrying
	// one value per stencil entry per mesh point. Values for stencil
	// entries reaching outside the domain must be zero.
	SetMatrixValues(values *field.Array) error
	// SetTolerance sets the relative convergence tolerance for subsequent
	// setup and solve calls.
	SetTolerance(tol float64) error
	// SetMaxIter bounds the iteration count of subsequent solves.
	SetMaxIter(n int) error
	// SetPrintLevel forwards the engine's output level.
	SetPrintLevel(level int) error
	// SetPreconditioner attaches a preconditioner-mode solver. The binding
	// keeps the preconditioner alive until the solver is closed; it must
	// not be mutated while bound.
	SetPreconditioner(p Solver) error
	// Setup prepares the engine solver for the current matrix. Variants
	// that do not set up implicitly require it before Solve.
	Setup() error
	// Solve solves A·x = b, reading the right-hand side from b and writing
	// the solution through x. Both must carry one value per mesh point.
	Solve(b, x *field.Array) error
	// NumIter reports the iteration count of the most recent solve.
	NumIter() (int, error)
	// FinalRelativeResidualNorm reports the relative residual norm of the
	// most recent solve.
	FinalRelativeResidualNorm() (float64, error)
	// IsPreconditioner reports whether the instance is in preconditioner
	// mode.
	IsPreconditioner() bool
	// Close destroys the engine objects owned by the instance and releases
	// the preconditioner binding.
	Close() error

	variant
}

// variant is the per-method extension point table. Concrete types map each
// hook onto their engine solver object.
type variant interface {
	variantName() string
	setToleranceImpl(tol float64) error
	setMaxIterImpl(n int) error
	setPrintLevelImpl(level int) error
	setupImpl(A engine.Matrix, b, x engine.Vector) error
	solveImpl(A engine.Matrix, b, x engine.Vector) error
	numIterImpl() (int, error)
	finalResidualNormImpl() (float64, error)
	setPreconditionerImpl(p Solver) error
	engineSolver() engine.Solver
	engineSetupFn() engine.SolverFn
	engineSolveFn() engine.SolverFn
	destroyImpl() error
}

// structured holds the engine-side resources and lifecycle shared by every
// variant.
type structured struct {
	eng       engine.Engine
	comm      grid.Comm
	layout    *field.Layout
	numDim    int
	isPrecond bool
	impl      variant

	g           engine.Grid
	lower       []int // engine axis order, inclusive
	upper       []int
	stencil     engine.Stencil
	stencilSize int
	A           engine.Matrix
	b, x        engine.Vector

	precond Solver
	closed  bool
}

// init builds the engine grid and the right-hand-side and solution vectors
// for solver-mode instances. Preconditioner-mode instances allocate no
// grid, matrix, or vector resources.
func (s *structured) init(eng engine.Engine, layout *field.Layout, isPrecond bool, impl variant) error {
	if eng == nil {
		return fmt.Errorf("%w: nil engine", ErrInvalidUsage)
	}
	if layout == nil {
		return fmt.Errorf("%w: nil layout", ErrInvalidUsage)
	}
	s.eng = eng
	s.layout = layout
	s.comm = layout.LocalGrid().GlobalGrid().Comm()
	s.numDim = layout.NumDim()
	s.isPrecond = isPrecond
	s.impl = impl

	if isPrecond {
		return nil
	}

	g, st := eng.NewGrid(s.comm, s.numDim)
	if err := s.check("grid create", st); err != nil {
		return err
	}
	s.g = g

	// The engine wants the slowest-varying mesh axis first and inclusive
	// upper bounds. Building the grid reversed keeps every subsequent box
	// transfer a plain reordered copy.
	global := layout.OwnedGlobalSpace()
	s.lower = make([]int, s.numDim)
	s.upper = make([]int, s.numDim)
	for d := 0; d < s.numDim; d++ {
		s.lower[d] = global.Min(s.numDim - 1 - d)
		s.upper[d] = global.Max(s.numDim-1-d) - 1
	}
	if err := s.check("grid extents", g.SetExtents(s.lower, s.upper)); err != nil {
		s.release()
		return err
	}

	gg := layout.LocalGrid().GlobalGrid()
	period := make([]int, s.numDim)
	for d := 0; d < s.numDim; d++ {
		if gg.IsPeriodic(d) {
			period[s.numDim-1-d] = gg.NumEntity(layout.Entity(), d)
		}
	}
	if err := s.check("grid periodicity", g.SetPeriodic(period)); err != nil {
		s.release()
		return err
	}
	if err := s.check("grid assemble", g.Assemble()); err != nil {
		s.release()
		return err
	}

	zero := make([]float64, global.Size())
	for _, v := range []*engine.Vector{&s.b, &s.x} {
		vec, st := eng.NewVector(s.comm, g)
		if err := s.check("vector create", st); err != nil {
			s.release()
			return err
		}
		*v = vec
		if err := s.check("vector initialize", vec.Initialize()); err != nil {
			s.release()
			return err
		}
		if err := s.check("vector values", vec.SetBoxValues(s.lower, s.upper, zero)); err != nil {
			s.release()
			return err
		}
		if err := s.check("vector assemble", vec.Assemble()); err != nil {
			s.release()
			return err
		}
	}
	return nil
}

// check converts a non-zero engine status into an EngineError.
func (s *structured) check(op string, st engine.Status) error {
	if st == engine.OK {
		return nil
	}
	return &EngineError{Op: op, Status: st, Desc: s.eng.Describe(st)}
}

// IsPreconditioner implements Solver.
func (s *structured) IsPreconditioner() bool { return s.isPrecond }

// SetMatrixStencil implements Solver.
func (s *structured) SetMatrixStencil(offsets [][]int, symmetric bool) error {
	if s.isPrecond {
		return fmt.Errorf("%w: SetMatrixStencil on a %s preconditioner", ErrInvalidUsage, s.impl.variantName())
	}
	if len(offsets) == 0 {
		return fmt.Errorf("%w: empty stencil", ErrInvalidUsage)
	}
	for _, off := range offsets {
		if len(off) != s.numDim {
			return &DimensionError{What: "stencil offset dimension", Expected: s.numDim, Actual: len(off)}
		}
	}

	st, stat := s.eng.NewStencil(s.numDim, len(offsets))
	if err := s.check("stencil create", stat); err != nil {
		return err
	}
	s.stencil = st
	s.stencilSize = len(offsets)

	// Offsets address the engine grid, whose axes are reversed.
	rev := make([]int, s.numDim)
	for n, off := range offsets {
		for d := range rev {
			rev[d] = off[s.numDim-1-d]
		}
		if err := s.check("stencil element", st.SetElement(n, rev)); err != nil {
			return err
		}
	}

	A, stat := s.eng.NewMatrix(s.comm, s.g, st)
	if err := s.check("matrix create", stat); err != nil {
		return err
	}
	s.A = A
	return s.check("matrix symmetry", A.SetSymmetric(symmetric))
}

// matchLayout verifies that an array is compatible with the solver's vector
// space.
func (s *structured) matchLayout(a *field.Array) error {
	if a == nil {
		return fmt.Errorf("%w: nil array", ErrInvalidUsage)
	}
	al := a.Layout()
	if al.Entity() != s.layout.Entity() {
		return &DimensionError{What: "array entity type", Expected: int(s.layout.Entity()), Actual: int(al.Entity())}
	}
	want := s.layout.OwnedGlobalSpace()
	got := al.OwnedGlobalSpace()
	for d := 0; d < s.numDim; d++ {
		if got.Min(d) != want.Min(d) || got.Max(d) != want.Max(d) {
			return &DimensionError{What: fmt.Sprintf("owned index range on axis %d", d), Expected: want.Extent(d), Actual: got.Extent(d)}
		}
	}
	return nil
}

// SetMatrixValues implements Solver.
func (s *structured) SetMatrixValues(values *field.Array) error {
	if s.isPrecond {
		return fmt.Errorf("%w: SetMatrixValues on a %s preconditioner", ErrInvalidUsage, s.impl.variantName())
	}
	if s.stencilSize == 0 {
		return fmt.Errorf("%w: SetMatrixValues before SetMatrixStencil", ErrInvalidUsage)
	}
	if err := s.matchLayout(values); err != nil {
		return err
	}
	if dofs := values.Layout().DofsPerEntity(); dofs != s.stencilSize {
		return &DimensionError{What: "matrix values per point", Expected: s.stencilSize, Actual: dofs}
	}

	mirror, err := values.MirrorToHost()
	if err != nil {
		return fmt.Errorf("solver: staging matrix values: %w", err)
	}
	buf := make([]float64, s.layout.OwnedGlobalSpace().Size()*s.stencilSize)
	stageOwned(values, mirror, buf)

	if err := s.check("matrix initialize", s.A.Initialize()); err != nil {
		return err
	}
	entries := make([]int, s.stencilSize)
	for i := range entries {
		entries[i] = i
	}
	if err := s.check("matrix values", s.A.SetBoxValues(s.lower, s.upper, entries, buf)); err != nil {
		return err
	}
	return s.check("matrix assemble", s.A.Assemble())
}

// SetTolerance implements Solver.
func (s *structured) SetTolerance(tol float64) error { return s.impl.setToleranceImpl(tol) }

// SetMaxIter implements Solver.
func (s *structured) SetMaxIter(n int) error { return s.impl.setMaxIterImpl(n) }

// SetPrintLevel implements Solver.
func (s *structured) SetPrintLevel(level int) error { return s.impl.setPrintLevelImpl(level) }

// SetPreconditioner implements Solver.
func (s *structured) SetPreconditioner(p Solver) error {
	if s.isPrecond {
		return fmt.Errorf("%w: SetPreconditioner on a %s preconditioner", ErrInvalidUsage, s.impl.variantName())
	}
	if p == nil || !p.IsPreconditioner() {
		return fmt.Errorf("%w: argument is not in preconditioner mode", ErrInvalidUsage)
	}
	if err := s.impl.setPreconditionerImpl(p); err != nil {
		return err
	}
	s.precond = p
	return nil
}

// Setup implements Solver.
func (s *structured) Setup() error {
	if s.isPrecond {
		return fmt.Errorf("%w: Setup on a %s preconditioner", ErrInvalidUsage, s.impl.variantName())
	}
	return s.impl.setupImpl(s.A, s.b, s.x)
}

// Solve implements Solver.
func (s *structured) Solve(b, x *field.Array) error {
	if s.isPrecond {
		return fmt.Errorf("%w: Solve on a %s preconditioner", ErrInvalidUsage, s.impl.variantName())
	}
	for _, a := range []*field.Array{b, x} {
		if err := s.matchLayout(a); err != nil {
			return err
		}
		if dofs := a.Layout().DofsPerEntity(); dofs != 1 {
			return &DimensionError{What: "solve values per point", Expected: 1, Actual: dofs}
		}
	}

	mirror, err := b.MirrorToHost()
	if err != nil {
		return fmt.Errorf("solver: staging right-hand side: %w", err)
	}
	buf := make([]float64, s.layout.OwnedGlobalSpace().Size())
	stageOwned(b, mirror, buf)

	if err := s.check("rhs initialize", s.b.Initialize()); err != nil {
		return err
	}
	if err := s.check("rhs values", s.b.SetBoxValues(s.lower, s.upper, buf)); err != nil {
		return err
	}
	if err := s.check("rhs assemble", s.b.Assemble()); err != nil {
		return err
	}

	if err := s.impl.solveImpl(s.A, s.b, s.x); err != nil {
		return err
	}

	if err := s.check("solution values", s.x.GetBoxValues(s.lower, s.upper, buf)); err != nil {
		return err
	}
	xm, err := x.MirrorToHost()
	if err != nil {
		return fmt.Errorf("solver: staging solution: %w", err)
	}
	unstageOwned(buf, x, xm)
	if err := x.CopyFromHost(xm); err != nil {
		return fmt.Errorf("solver: storing solution: %w", err)
	}
	return nil
}

// NumIter implements Solver.
func (s *structured) NumIter() (int, error) { return s.impl.numIterImpl() }

// FinalRelativeResidualNorm implements Solver.
func (s *structured) FinalRelativeResidualNorm() (float64, error) {
	return s.impl.finalResidualNormImpl()
}

// release destroys the grid-side resources in reverse creation order,
// keeping the first engine failure.
func (s *structured) release() error {
	var first error
	keep := func(err error) {
		if first == nil && err != nil {
			first = err
		}
	}
	if s.x != nil {
		keep(s.check("solution destroy", s.x.Destroy()))
		s.x = nil
	}
	if s.b != nil {
		keep(s.check("rhs destroy", s.b.Destroy()))
		s.b = nil
	}
	if s.A != nil {
		keep(s.check("matrix destroy", s.A.Destroy()))
		s.A = nil
	}
	if s.stencil != nil {
		keep(s.check("stencil destroy", s.stencil.Destroy()))
		s.stencil = nil
	}
	if s.g != nil {
		keep(s.check("grid destroy", s.g.Destroy()))
		s.g = nil
	}
	return first
}

// Close implements Solver.
func (s *structured) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.impl.destroyImpl()
	if rerr := s.release(); err == nil {
		err = rerr
	}
	s.precond = nil
	return err
}
