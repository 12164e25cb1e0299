package solver

import (
	"fmt"

	"github.com/notargets/structmesh/engine"
	"github.com/notargets/structmesh/field"
)

// PFMG is the semicoarsening geometric multigrid solver. It can run
// standalone or serve as a preconditioner; in preconditioner mode it applies
// a fixed cycle from a zero initial guess.
type PFMG struct {
	structured
	h engine.Solver
}

// NewPFMG creates a PFMG instance over a field layout.
func NewPFMG(eng engine.Engine, layout *field.Layout, asPreconditioner bool) (*PFMG, error) {
	s := &PFMG{}
	if err := s.init(eng, layout, asPreconditioner, s); err != nil {
		return nil, err
	}
	h, st := eng.NewSolver(s.comm, engine.PFMG)
	if err := s.check("PFMG create", st); err != nil {
		s.release()
		return nil, err
	}
	s.h = h
	if asPreconditioner {
		if err := s.check("PFMG zero guess", h.SetZeroGuess()); err != nil {
			s.Close()
			return nil, err
		}
		if err := s.check("PFMG fixed cycles", h.SetTol(0)); err != nil {
			s.Close()
			return nil, err
		}
		if err := s.check("PFMG cycle count", h.SetMaxIter(1)); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// SetMaxLevels bounds the number of multigrid levels.
func (s *PFMG) SetMaxLevels(n int) error {
	return s.check("PFMG max levels", s.h.SetMaxLevels(n))
}

// SetRelChange additionally requires the relative change in the solution to
// pass the convergence test.
func (s *PFMG) SetRelChange(on bool) error {
	return s.check("PFMG relative change", s.h.SetRelChange(on))
}

// SetRelaxType selects the relaxation scheme used on each level.
func (s *PFMG) SetRelaxType(t int) error {
	return s.check("PFMG relax type", s.h.SetRelaxType(t))
}

// SetJacobiWeight sets the weight of weighted Jacobi relaxation.
func (s *PFMG) SetJacobiWeight(w float64) error {
	return s.check("PFMG Jacobi weight", s.h.SetJacobiWeight(w))
}

// SetRAPType selects how coarse-grid operators are formed.
func (s *PFMG) SetRAPType(t int) error {
	return s.check("PFMG RAP type", s.h.SetRAPType(t))
}

// SetNumPreRelax sets the relaxation sweep count before coarse-grid
// correction.
func (s *PFMG) SetNumPreRelax(n int) error {
	return s.check("PFMG pre-relax sweeps", s.h.SetNumPreRelax(n))
}

// SetNumPostRelax sets the relaxation sweep count after coarse-grid
// correction.
func (s *PFMG) SetNumPostRelax(n int) error {
	return s.check("PFMG post-relax sweeps", s.h.SetNumPostRelax(n))
}

// SetSkipRelax skips relaxation on levels where it is provably redundant.
func (s *PFMG) SetSkipRelax(n int) error {
	return s.check("PFMG skip relax", s.h.SetSkipRelax(n))
}

// SetLogging sets the engine's logging level.
func (s *PFMG) SetLogging(level int) error {
	return s.check("PFMG logging", s.h.SetLogging(level))
}

func (s *PFMG) variantName() string { return "PFMG" }

func (s *PFMG) setToleranceImpl(tol float64) error {
	return s.check("PFMG tolerance", s.h.SetTol(tol))
}

func (s *PFMG) setMaxIterImpl(n int) error {
	return s.check("PFMG max iterations", s.h.SetMaxIter(n))
}

func (s *PFMG) setPrintLevelImpl(level int) error {
	return s.check("PFMG print level", s.h.SetPrintLevel(level))
}

func (s *PFMG) setupImpl(A engine.Matrix, b, x engine.Vector) error {
	return s.check("PFMG setup", s.h.Setup(A, b, x))
}

func (s *PFMG) solveImpl(A engine.Matrix, b, x engine.Vector) error {
	return s.check("PFMG solve", s.h.Solve(A, b, x))
}

func (s *PFMG) numIterImpl() (int, error) {
	n, st := s.h.NumIterations()
	return n, s.check("PFMG iteration count", st)
}

func (s *PFMG) finalResidualNormImpl() (float64, error) {
	r, st := s.h.FinalRelativeResidualNorm()
	return r, s.check("PFMG residual norm", st)
}

func (s *PFMG) setPreconditionerImpl(p Solver) error {
	return fmt.Errorf("%w: PFMG solver does not support preconditioning", ErrInvalidUsage)
}

func (s *PFMG) engineSolver() engine.Solver    { return s.h }
func (s *PFMG) engineSetupFn() engine.SolverFn { return s.eng.SetupFn(engine.PFMG) }
func (s *PFMG) engineSolveFn() engine.SolverFn { return s.eng.SolveFn(engine.PFMG) }

func (s *PFMG) destroyImpl() error {
	if s.h == nil {
		return nil
	}
	return s.check("PFMG destroy", s.h.Destroy())
}
