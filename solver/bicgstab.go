package solver

import (
	"fmt"

	"github.com/notargets/structmesh/engine"
	"github.com/notargets/structmesh/field"
)

// BiCGSTAB is the stabilized bi-conjugate gradient solver. It accepts
// general nonsymmetric operators.
type BiCGSTAB struct {
	structured
	h engine.Solver
}

// NewBiCGSTAB creates a BiCGSTAB instance over a field layout. BiCGSTAB
// cannot serve as a preconditioner.
func NewBiCGSTAB(eng engine.Engine, layout *field.Layout, asPreconditioner bool) (*BiCGSTAB, error) {
	if asPreconditioner {
		return nil, fmt.Errorf("%w: BiCGSTAB cannot be used as a preconditioner", ErrInvalidUsage)
	}
	s := &BiCGSTAB{}
	if err := s.init(eng, layout, false, s); err != nil {
		return nil, err
	}
	h, st := eng.NewSolver(s.comm, engine.BiCGSTAB)
	if err := s.check("BiCGSTAB create", st); err != nil {
		s.release()
		return nil, err
	}
	s.h = h
	return s, nil
}

// SetAbsoluteTol sets an absolute convergence tolerance alongside the
// relative one.
func (s *BiCGSTAB) SetAbsoluteTol(tol float64) error {
	return s.check("BiCGSTAB absolute tolerance", s.h.SetAbsoluteTol(tol))
}

// SetLogging sets the engine's logging level.
func (s *BiCGSTAB) SetLogging(level int) error {
	return s.check("BiCGSTAB logging", s.h.SetLogging(level))
}

func (s *BiCGSTAB) variantName() string { return "BiCGSTAB" }

func (s *BiCGSTAB) setToleranceImpl(tol float64) error {
	return s.check("BiCGSTAB tolerance", s.h.SetTol(tol))
}

func (s *BiCGSTAB) setMaxIterImpl(n int) error {
	return s.check("BiCGSTAB max iterations", s.h.SetMaxIter(n))
}

func (s *BiCGSTAB) setPrintLevelImpl(level int) error {
	return s.check("BiCGSTAB print level", s.h.SetPrintLevel(level))
}

func (s *BiCGSTAB) setupImpl(A engine.Matrix, b, x engine.Vector) error {
	return s.check("BiCGSTAB setup", s.h.Setup(A, b, x))
}

func (s *BiCGSTAB) solveImpl(A engine.Matrix, b, x engine.Vector) error {
	return s.check("BiCGSTAB solve", s.h.Solve(A, b, x))
}

func (s *BiCGSTAB) numIterImpl() (int, error) {
	n, st := s.h.NumIterations()
	return n, s.check("BiCGSTAB iteration count", st)
}

func (s *BiCGSTAB) finalResidualNormImpl() (float64, error) {
	r, st := s.h.FinalRelativeResidualNorm()
	return r, s.check("BiCGSTAB residual norm", st)
}

func (s *BiCGSTAB) setPreconditionerImpl(p Solver) error {
	return s.check("BiCGSTAB preconditioner", s.h.SetPrecond(p.engineSolveFn(), p.engineSetupFn(), p.engineSolver()))
}

func (s *BiCGSTAB) engineSolver() engine.Solver    { return s.h }
func (s *BiCGSTAB) engineSetupFn() engine.SolverFn { return s.eng.SetupFn(engine.BiCGSTAB) }
func (s *BiCGSTAB) engineSolveFn() engine.SolverFn { return s.eng.SolveFn(engine.BiCGSTAB) }

func (s *BiCGSTAB) destroyImpl() error {
	if s.h == nil {
		return nil
	}
	return s.check("BiCGSTAB destroy", s.h.Destroy())
}
