// Package native is the in-process reference implementation of the engine
// contract. It is single-rank: creating objects on a communicator with more
// than one process fails, and a distributed engine binding must be used
// instead. The multigrid methods (PFMG, SMG) are realized as configurable
// relaxation cycling over the same option surface a multigrid engine
// exposes; coarse-grid cycling is an engine-internal concern this reference
// does not reproduce.
package native

import (
	"fmt"

	"github.com/notargets/structmesh/engine"
	"github.com/notargets/structmesh/grid"
)

const (
	stBadArg engine.Status = iota + 1
	stBadHandle
	stNotAssembled
	stValueCount
	stMultiRank
	stUnsupportedOption
	stMissingDiagonal
	stBreakdown
	stDestroyed
)

var statusDesc = map[engine.Status]string{
	engine.OK:           "no error",
	stBadArg:            "invalid argument",
	stBadHandle:         "object handle is not a native engine object",
	stNotAssembled:      "object used before assembly",
	stValueCount:        "value buffer does not cover the requested box",
	stMultiRank:         "native engine supports single-rank communicators only",
	stUnsupportedOption: "option not supported by this solver method",
	stMissingDiagonal:   "stencil has no zero-offset diagonal entry",
	stBreakdown:         "method breakdown",
	stDestroyed:         "object used after destruction",
}

// Engine is the native engine factory.
type Engine struct{}

// New creates a native engine.
func New() *Engine { return &Engine{} }

// NewGrid implements engine.Engine.
func (e *Engine) NewGrid(comm grid.Comm, numDim int) (engine.Grid, engine.Status) {
	if comm.Size() != 1 {
		return nil, stMultiRank
	}
	if numDim < 1 {
		return nil, stBadArg
	}
	return &gridState{numDim: numDim}, engine.OK
}

// NewStencil implements engine.Engine.
func (e *Engine) NewStencil(numDim, size int) (engine.Stencil, engine.Status) {
	if numDim < 1 || size < 1 {
		return nil, stBadArg
	}
	return &stencilState{numDim: numDim, offsets: make([][]int, size)}, engine.OK
}

// NewMatrix implements engine.Engine.
func (e *Engine) NewMatrix(comm grid.Comm, g engine.Grid, s engine.Stencil) (engine.Matrix, engine.Status) {
	if comm.Size() != 1 {
		return nil, stMultiRank
	}
	gs, ok := g.(*gridState)
	if !ok || gs == nil {
		return nil, stBadHandle
	}
	st, ok := s.(*stencilState)
	if !ok || st == nil {
		return nil, stBadHandle
	}
	return &matrix{g: gs, st: st}, engine.OK
}

// NewVector implements engine.Engine.
func (e *Engine) NewVector(comm grid.Comm, g engine.Grid) (engine.Vector, engine.Status) {
	if comm.Size() != 1 {
		return nil, stMultiRank
	}
	gs, ok := g.(*gridState)
	if !ok || gs == nil {
		return nil, stBadHandle
	}
	return &vector{g: gs}, engine.OK
}

// NewSolver implements engine.Engine.
func (e *Engine) NewSolver(comm grid.Comm, m engine.Method) (engine.Solver, engine.Status) {
	if comm.Size() != 1 {
		return nil, stMultiRank
	}
	s := &solver{
		method:  m,
		tol:     1e-6,
		maxIter: 1000,
		weight:  2.0 / 3.0,
		numPre:  1,
		numPost: 1,
	}
	switch m {
	case engine.PCG, engine.GMRES, engine.BiCGSTAB, engine.Jacobi:
	case engine.PFMG, engine.SMG:
		s.maxIter = 200
	default:
		return nil, stBadArg
	}
	return s, engine.OK
}

// SetupFn implements engine.Engine.
func (e *Engine) SetupFn(m engine.Method) engine.SolverFn {
	return func(s engine.Solver, A engine.Matrix, b, x engine.Vector) engine.Status {
		ns, ok := s.(*solver)
		if !ok || ns == nil || ns.method != m {
			return stBadHandle
		}
		return ns.Setup(A, b, x)
	}
}

// SolveFn implements engine.Engine.
func (e *Engine) SolveFn(m engine.Method) engine.SolverFn {
	return func(s engine.Solver, A engine.Matrix, b, x engine.Vector) engine.Status {
		ns, ok := s.(*solver)
		if !ok || ns == nil || ns.method != m {
			return stBadHandle
		}
		return ns.Solve(A, b, x)
	}
}

// DiagScaleSetup implements engine.Engine.
func (e *Engine) DiagScaleSetup() engine.SolverFn {
	return func(_ engine.Solver, A engine.Matrix, b, x engine.Vector) engine.Status {
		_, _, _, st := systemState(A, b, x)
		return st
	}
}

// DiagScaleSolve implements engine.Engine.
func (e *Engine) DiagScaleSolve() engine.SolverFn {
	return diagScaleSolve
}

// Describe implements engine.Engine.
func (e *Engine) Describe(st engine.Status) string {
	if d, ok := statusDesc[st]; ok {
		return d
	}
	return fmt.Sprintf("unknown status %d", int(st))
}
