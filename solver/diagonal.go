package solver

import (
	"fmt"

	"github.com/notargets/structmesh/engine"
	"github.com/notargets/structmesh/field"
)

// Diagonal is the diagonal scaling preconditioner. It has no engine solver
// object and no options; it exists only to be attached to a Krylov solver.
type Diagonal struct {
	structured
}

// NewDiagonal creates a diagonal scaling instance over a field layout. It
// must be created in preconditioner mode.
func NewDiagonal(eng engine.Engine, layout *field.Layout, asPreconditioner bool) (*Diagonal, error) {
	if !asPreconditioner {
		return nil, fmt.Errorf("%w: diagonal scaling is only usable as a preconditioner", ErrInvalidUsage)
	}
	s := &Diagonal{}
	if err := s.init(eng, layout, true, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Diagonal) variantName() string { return "Diagonal" }

func (s *Diagonal) setToleranceImpl(tol float64) error {
	return fmt.Errorf("%w: diagonal scaling has no tolerance", ErrInvalidUsage)
}

func (s *Diagonal) setMaxIterImpl(n int) error {
	return fmt.Errorf("%w: diagonal scaling has no iteration limit", ErrInvalidUsage)
}

func (s *Diagonal) setPrintLevelImpl(level int) error {
	return fmt.Errorf("%w: diagonal scaling has no print level", ErrInvalidUsage)
}

func (s *Diagonal) setupImpl(A engine.Matrix, b, x engine.Vector) error {
	return fmt.Errorf("%w: diagonal scaling cannot be set up directly", ErrInvalidUsage)
}

func (s *Diagonal) solveImpl(A engine.Matrix, b, x engine.Vector) error {
	return fmt.Errorf("%w: diagonal scaling cannot solve directly", ErrInvalidUsage)
}

func (s *Diagonal) numIterImpl() (int, error) {
	return 0, fmt.Errorf("%w: diagonal scaling has no iteration count", ErrInvalidUsage)
}

func (s *Diagonal) finalResidualNormImpl() (float64, error) {
	return 0, fmt.Errorf("%w: diagonal scaling has no residual norm", ErrInvalidUsage)
}

func (s *Diagonal) setPreconditionerImpl(p Solver) error {
	return fmt.Errorf("%w: diagonal scaling cannot be preconditioned", ErrInvalidUsage)
}

func (s *Diagonal) engineSolver() engine.Solver    { return nil }
func (s *Diagonal) engineSetupFn() engine.SolverFn { return s.eng.DiagScaleSetup() }
func (s *Diagonal) engineSolveFn() engine.SolverFn { return s.eng.DiagScaleSolve() }

func (s *Diagonal) destroyImpl() error { return nil }
