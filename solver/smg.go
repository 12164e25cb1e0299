package solver

import (
	"fmt"

	"github.com/notargets/structmesh/engine"
	"github.com/notargets/structmesh/field"
)

// SMG is the robust geometric multigrid solver. It can run standalone or
// serve as a preconditioner; in preconditioner mode it applies a fixed cycle
// from a zero initial guess.
type SMG struct {
	structured
	h engine.Solver
}

// NewSMG creates an SMG instance over a field layout.
func NewSMG(eng engine.Engine, layout *field.Layout, asPreconditioner bool) (*SMG, error) {
	s := &SMG{}
	if err := s.init(eng, layout, asPreconditioner, s); err != nil {
		return nil, err
	}
	h, st := eng.NewSolver(s.comm, engine.SMG)
	if err := s.check("SMG create", st); err != nil {
		s.release()
		return nil, err
	}
	s.h = h
	if asPreconditioner {
		if err := s.check("SMG zero guess", h.SetZeroGuess()); err != nil {
			s.Close()
			return nil, err
		}
		if err := s.check("SMG fixed cycles", h.SetTol(0)); err != nil {
			s.Close()
			return nil, err
		}
		if err := s.check("SMG cycle count", h.SetMaxIter(1)); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// SetRelChange additionally requires the relative change in the solution to
// pass the convergence test.
func (s *SMG) SetRelChange(on bool) error {
	return s.check("SMG relative change", s.h.SetRelChange(on))
}

// SetNumPreRelax sets the relaxation sweep count before coarse-grid
// correction.
func (s *SMG) SetNumPreRelax(n int) error {
	return s.check("SMG pre-relax sweeps", s.h.SetNumPreRelax(n))
}

// SetNumPostRelax sets the relaxation sweep count after coarse-grid
// correction.
func (s *SMG) SetNumPostRelax(n int) error {
	return s.check("SMG post-relax sweeps", s.h.SetNumPostRelax(n))
}

// SetLogging sets the engine's logging level.
func (s *SMG) SetLogging(level int) error {
	return s.check("SMG logging", s.h.SetLogging(level))
}

func (s *SMG) variantName() string { return "SMG" }

func (s *SMG) setToleranceImpl(tol float64) error {
	return s.check("SMG tolerance", s.h.SetTol(tol))
}

func (s *SMG) setMaxIterImpl(n int) error {
	return s.check("SMG max iterations", s.h.SetMaxIter(n))
}

func (s *SMG) setPrintLevelImpl(level int) error {
	return s.check("SMG print level", s.h.SetPrintLevel(level))
}

func (s *SMG) setupImpl(A engine.Matrix, b, x engine.Vector) error {
	return s.check("SMG setup", s.h.Setup(A, b, x))
}

func (s *SMG) solveImpl(A engine.Matrix, b, x engine.Vector) error {
	return s.check("SMG solve", s.h.Solve(A, b, x))
}

func (s *SMG) numIterImpl() (int, error) {
	n, st := s.h.NumIterations()
	return n, s.check("SMG iteration count", st)
}

func (s *SMG) finalResidualNormImpl() (float64, error) {
	r, st := s.h.FinalRelativeResidualNorm()
	return r, s.check("SMG residual norm", st)
}

func (s *SMG) setPreconditionerImpl(p Solver) error {
	return fmt.Errorf("%w: SMG solver does not support preconditioning", ErrInvalidUsage)
}

func (s *SMG) engineSolver() engine.Solver    { return s.h }
func (s *SMG) engineSetupFn() engine.SolverFn { return s.eng.SetupFn(engine.SMG) }
func (s *SMG) engineSolveFn() engine.SolverFn { return s.eng.SolveFn(engine.SMG) }

func (s *SMG) destroyImpl() error {
	if s.h == nil {
		return nil
	}
	return s.check("SMG destroy", s.h.Destroy())
}
