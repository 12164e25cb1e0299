package solver

import (
	"fmt"

	"github.com/notargets/structmesh/engine"
	"github.com/notargets/structmesh/field"
)

// PCG is the preconditioned conjugate gradient solver. It requires a
// symmetric positive definite operator and always measures convergence in
// the two-norm.
type PCG struct {
	structured
	h engine.Solver
}

// NewPCG creates a PCG instance over a field layout. PCG cannot serve as a
// preconditioner.
func NewPCG(eng engine.Engine, layout *field.Layout, asPreconditioner bool) (*PCG, error) {
	if asPreconditioner {
		return nil, fmt.Errorf("%w: PCG cannot be used as a preconditioner", ErrInvalidUsage)
	}
	s := &PCG{}
	if err := s.init(eng, layout, false, s); err != nil {
		return nil, err
	}
	h, st := eng.NewSolver(s.comm, engine.PCG)
	if err := s.check("PCG create", st); err != nil {
		s.release()
		return nil, err
	}
	s.h = h
	if err := s.check("PCG two-norm", h.SetTwoNorm(true)); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// SetAbsoluteTol sets an absolute convergence tolerance alongside the
// relative one.
func (s *PCG) SetAbsoluteTol(tol float64) error {
	return s.check("PCG absolute tolerance", s.h.SetAbsoluteTol(tol))
}

// SetRelChange additionally requires the relative change in the solution to
// pass the convergence test.
func (s *PCG) SetRelChange(on bool) error {
	return s.check("PCG relative change", s.h.SetRelChange(on))
}

// SetLogging sets the engine's logging level.
func (s *PCG) SetLogging(level int) error {
	return s.check("PCG logging", s.h.SetLogging(level))
}

func (s *PCG) variantName() string { return "PCG" }

func (s *PCG) setToleranceImpl(tol float64) error {
	return s.check("PCG tolerance", s.h.SetTol(tol))
}

func (s *PCG) setMaxIterImpl(n int) error {
	return s.check("PCG max iterations", s.h.SetMaxIter(n))
}

func (s *PCG) setPrintLevelImpl(level int) error {
	return s.check("PCG print level", s.h.SetPrintLevel(level))
}

func (s *PCG) setupImpl(A engine.Matrix, b, x engine.Vector) error {
	return s.check("PCG setup", s.h.Setup(A, b, x))
}

func (s *PCG) solveImpl(A engine.Matrix, b, x engine.Vector) error {
	return s.check("PCG solve", s.h.Solve(A, b, x))
}

func (s *PCG) numIterImpl() (int, error) {
	n, st := s.h.NumIterations()
	return n, s.check("PCG iteration count", st)
}

func (s *PCG) finalResidualNormImpl() (float64, error) {
	r, st := s.h.FinalRelativeResidualNorm()
	return r, s.check("PCG residual norm", st)
}

func (s *PCG) setPreconditionerImpl(p Solver) error {
	return s.check("PCG preconditioner", s.h.SetPrecond(p.engineSolveFn(), p.engineSetupFn(), p.engineSolver()))
}

func (s *PCG) engineSolver() engine.Solver    { return s.h }
func (s *PCG) engineSetupFn() engine.SolverFn { return s.eng.SetupFn(engine.PCG) }
func (s *PCG) engineSolveFn() engine.SolverFn { return s.eng.SolveFn(engine.PCG) }

func (s *PCG) destroyImpl() error {
	if s.h == nil {
		return nil
	}
	return s.check("PCG destroy", s.h.Destroy())
}
