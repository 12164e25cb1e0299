package solver

import (
	"fmt"

	"github.com/notargets/structmesh/engine"
	"github.com/notargets/structmesh/field"
)

// Jacobi is the weighted point relaxation solver. It can run standalone or
// serve as a preconditioner; in preconditioner mode it applies a fixed
// number of sweeps from a zero initial guess.
type Jacobi struct {
	structured
	h engine.Solver
}

// NewJacobi creates a Jacobi instance over a field layout.
func NewJacobi(eng engine.Engine, layout *field.Layout, asPreconditioner bool) (*Jacobi, error) {
	s := &Jacobi{}
	if err := s.init(eng, layout, asPreconditioner, s); err != nil {
		return nil, err
	}
	h, st := eng.NewSolver(s.comm, engine.Jacobi)
	if err := s.check("Jacobi create", st); err != nil {
		s.release()
		return nil, err
	}
	s.h = h
	if asPreconditioner {
		if err := s.check("Jacobi zero guess", h.SetZeroGuess()); err != nil {
			s.Close()
			return nil, err
		}
		if err := s.check("Jacobi fixed sweeps", h.SetTol(0)); err != nil {
			s.Close()
			return nil, err
		}
		if err := s.check("Jacobi sweep count", h.SetMaxIter(2)); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Jacobi) variantName() string { return "Jacobi" }

func (s *Jacobi) setToleranceImpl(tol float64) error {
	return s.check("Jacobi tolerance", s.h.SetTol(tol))
}

func (s *Jacobi) setMaxIterImpl(n int) error {
	return s.check("Jacobi max iterations", s.h.SetMaxIter(n))
}

// setPrintLevelImpl accepts any level without forwarding it; the engine's
// Jacobi solver produces no output.
func (s *Jacobi) setPrintLevelImpl(level int) error { return nil }

func (s *Jacobi) setupImpl(A engine.Matrix, b, x engine.Vector) error {
	return s.check("Jacobi setup", s.h.Setup(A, b, x))
}

func (s *Jacobi) solveImpl(A engine.Matrix, b, x engine.Vector) error {
	return s.check("Jacobi solve", s.h.Solve(A, b, x))
}

func (s *Jacobi) numIterImpl() (int, error) {
	n, st := s.h.NumIterations()
	return n, s.check("Jacobi iteration count", st)
}

func (s *Jacobi) finalResidualNormImpl() (float64, error) {
	r, st := s.h.FinalRelativeResidualNorm()
	return r, s.check("Jacobi residual norm", st)
}

func (s *Jacobi) setPreconditionerImpl(p Solver) error {
	return fmt.Errorf("%w: Jacobi solver does not support preconditioning", ErrInvalidUsage)
}

func (s *Jacobi) engineSolver() engine.Solver    { return s.h }
func (s *Jacobi) engineSetupFn() engine.SolverFn { return s.eng.SetupFn(engine.Jacobi) }
func (s *Jacobi) engineSolveFn() engine.SolverFn { return s.eng.SolveFn(engine.Jacobi) }

func (s *Jacobi) destroyImpl() error {
	if s.h == nil {
		return nil
	}
	return s.check("Jacobi destroy", s.h.Destroy())
}
