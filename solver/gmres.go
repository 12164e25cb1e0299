package solver

import (
	"fmt"

	"github.com/notargets/structmesh/engine"
	"github.com/notargets/structmesh/field"
)

// GMRES is the restarted generalized minimal residual solver. It accepts
// general nonsymmetric operators.
type GMRES struct {
	structured
	h engine.Solver
}

// NewGMRES creates a GMRES instance over a field layout. GMRES cannot serve
// as a preconditioner.
func NewGMRES(eng engine.Engine, layout *field.Layout, asPreconditioner bool) (*GMRES, error) {
	if asPreconditioner {
		return nil, fmt.Errorf("%w: GMRES cannot be used as a preconditioner", ErrInvalidUsage)
	}
	s := &GMRES{}
	if err := s.init(eng, layout, false, s); err != nil {
		return nil, err
	}
	h, st := eng.NewSolver(s.comm, engine.GMRES)
	if err := s.check("GMRES create", st); err != nil {
		s.release()
		return nil, err
	}
	s.h = h
	return s, nil
}

// SetAbsoluteTol sets an absolute convergence tolerance alongside the
// relative one.
func (s *GMRES) SetAbsoluteTol(tol float64) error {
	return s.check("GMRES absolute tolerance", s.h.SetAbsoluteTol(tol))
}

// SetKDim sets the Krylov subspace dimension at which the method restarts.
func (s *GMRES) SetKDim(k int) error {
	return s.check("GMRES restart dimension", s.h.SetKDim(k))
}

// SetLogging sets the engine's logging level.
func (s *GMRES) SetLogging(level int) error {
	return s.check("GMRES logging", s.h.SetLogging(level))
}

func (s *GMRES) variantName() string { return "GMRES" }

func (s *GMRES) setToleranceImpl(tol float64) error {
	return s.check("GMRES tolerance", s.h.SetTol(tol))
}

func (s *GMRES) setMaxIterImpl(n int) error {
	return s.check("GMRES max iterations", s.h.SetMaxIter(n))
}

func (s *GMRES) setPrintLevelImpl(level int) error {
	return s.check("GMRES print level", s.h.SetPrintLevel(level))
}

func (s *GMRES) setupImpl(A engine.Matrix, b, x engine.Vector) error {
	return s.check("GMRES setup", s.h.Setup(A, b, x))
}

func (s *GMRES) solveImpl(A engine.Matrix, b, x engine.Vector) error {
	return s.check("GMRES solve", s.h.Solve(A, b, x))
}

func (s *GMRES) numIterImpl() (int, error) {
	n, st := s.h.NumIterations()
	return n, s.check("GMRES iteration count", st)
}

func (s *GMRES) finalResidualNormImpl() (float64, error) {
	r, st := s.h.FinalRelativeResidualNorm()
	return r, s.check("GMRES residual norm", st)
}

func (s *GMRES) setPreconditionerImpl(p Solver) error {
	return s.check("GMRES preconditioner", s.h.SetPrecond(p.engineSolveFn(), p.engineSetupFn(), p.engineSolver()))
}

func (s *GMRES) engineSolver() engine.Solver    { return s.h }
func (s *GMRES) engineSetupFn() engine.SolverFn { return s.eng.SetupFn(engine.GMRES) }
func (s *GMRES) engineSolveFn() engine.SolverFn { return s.eng.SolveFn(engine.GMRES) }

func (s *GMRES) destroyImpl() error {
	if s.h == nil {
		return nil
	}
	return s.check("GMRES destroy", s.h.Destroy())
}
