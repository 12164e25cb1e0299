package native

import (
	"github.com/notargets/structmesh/engine"
	"gonum.org/v1/gonum/floats"
)

// solver is a native solver object. One struct serves every method; option
// setters reject options the method does not support, mirroring the
// per-method configuration surface of a structured solver engine.
type solver struct {
	method    engine.Method
	destroyed bool

	tol, atol  float64
	maxIter    int
	twoNorm    bool
	relChange  bool
	kdim       int
	zeroGuess  bool
	relaxType  int
	weight     float64
	rapType    int
	numPre     int
	numPost    int
	skipRelax  int
	maxLevels  int
	printLevel int
	logging    int

	pSolve engine.SolverFn
	pSetup engine.SolverFn
	pObj   engine.Solver

	iters   int
	relNorm float64
}

func (s *solver) guard() engine.Status {
	if s.destroyed {
		return stDestroyed
	}
	return engine.OK
}

func (s *solver) option(st *engine.Status, methods ...engine.Method) bool {
	if *st = s.guard(); *st != engine.OK {
		return false
	}
	for _, m := range methods {
		if s.method == m {
			return true
		}
	}
	*st = stUnsupportedOption
	return false
}

func (s *solver) SetTol(tol float64) engine.Status {
	if st := s.guard(); st != engine.OK {
		return st
	}
	if tol < 0 {
		return stBadArg
	}
	s.tol = tol
	return engine.OK
}

func (s *solver) SetAbsoluteTol(tol float64) engine.Status {
	var st engine.Status
	if !s.option(&st, engine.PCG, engine.GMRES, engine.BiCGSTAB) {
		return st
	}
	if tol < 0 {
		return stBadArg
	}
	s.atol = tol
	return engine.OK
}

func (s *solver) SetMaxIter(n int) engine.Status {
	if st := s.guard(); st != engine.OK {
		return st
	}
	if n < 1 {
		return stBadArg
	}
	s.maxIter = n
	return engine.OK
}

func (s *solver) SetPrintLevel(level int) engine.Status {
	var st engine.Status
	if !s.option(&st, engine.PCG, engine.GMRES, engine.BiCGSTAB, engine.PFMG, engine.SMG) {
		return st
	}
	s.printLevel = level
	return engine.OK
}

func (s *solver) SetLogging(level int) engine.Status {
	if st := s.guard(); st != engine.OK {
		return st
	}
	s.logging = level
	return engine.OK
}

func (s *solver) SetTwoNorm(on bool) engine.Status {
	var st engine.Status
	if !s.option(&st, engine.PCG) {
		return st
	}
	s.twoNorm = on
	return engine.OK
}

func (s *solver) SetRelChange(on bool) engine.Status {
	var st engine.Status
	if !s.option(&st, engine.PCG, engine.PFMG, engine.SMG) {
		return st
	}
	s.relChange = on
	return engine.OK
}

func (s *solver) SetKDim(k int) engine.Status {
	var st engine.Status
	if !s.option(&st, engine.GMRES) {
		return st
	}
	if k < 1 {
		return stBadArg
	}
	s.kdim = k
	return engine.OK
}

func (s *solver) SetZeroGuess() engine.Status {
	var st engine.Status
	if !s.option(&st, engine.PFMG, engine.SMG, engine.Jacobi) {
		return st
	}
	s.zeroGuess = true
	return engine.OK
}

func (s *solver) SetMaxLevels(n int) engine.Status {
	var st engine.Status
	if !s.option(&st, engine.PFMG) {
		return st
	}
	if n < 1 {
		return stBadArg
	}
	s.maxLevels = n
	return engine.OK
}

func (s *solver) SetRelaxType(t int) engine.Status {
	var st engine.Status
	if !s.option(&st, engine.PFMG) {
		return st
	}
	if t < 0 || t > 3 {
		return stBadArg
	}
	s.relaxType = t
	return engine.OK
}

func (s *solver) SetJacobiWeight(w float64) engine.Status {
	var st engine.Status
	if !s.option(&st, engine.PFMG) {
		return st
	}
	if w <= 0 || w > 1 {
		return stBadArg
	}
	s.weight = w
	return engine.OK
}

func (s *solver) SetRAPType(t int) engine.Status {
	var st engine.Status
	if !s.option(&st, engine.PFMG) {
		return st
	}
	if t < 0 || t > 1 {
		return stBadArg
	}
	s.rapType = t
	return engine.OK
}

func (s *solver) SetNumPreRelax(n int) engine.Status {
	var st engine.Status
	if !s.option(&st, engine.PFMG, engine.SMG) {
		return st
	}
	if n < 0 {
		return stBadArg
	}
	s.numPre = n
	return engine.OK
}

func (s *solver) SetNumPostRelax(n int) engine.Status {
	var st engine.Status
	if !s.option(&st, engine.PFMG, engine.SMG) {
		return st
	}
	if n < 0 {
		return stBadArg
	}
	s.numPost = n
	return engine.OK
}

func (s *solver) SetSkipRelax(n int) engine.Status {
	var st engine.Status
	if !s.option(&st, engine.PFMG) {
		return st
	}
	s.skipRelax = n
	return engine.OK
}

func (s *solver) SetPrecond(solve, setup engine.SolverFn, p engine.Solver) engine.Status {
	var st engine.Status
	if !s.option(&st, engine.PCG, engine.GMRES, engine.BiCGSTAB) {
		return st
	}
	if solve == nil || setup == nil {
		return stBadArg
	}
	s.pSolve = solve
	s.pSetup = setup
	s.pObj = p
	return engine.OK
}

// systemState validates and unwraps a matrix/vector triple, checking that
// all three live on the same grid.
func systemState(A engine.Matrix, b, x engine.Vector) (*matrix, *vector, *vector, engine.Status) {
	am, ok := A.(*matrix)
	if !ok || am == nil {
		return nil, nil, nil, stBadHandle
	}
	bv, ok := b.(*vector)
	if !ok || bv == nil {
		return nil, nil, nil, stBadHandle
	}
	xv, ok := x.(*vector)
	if !ok || xv == nil {
		return nil, nil, nil, stBadHandle
	}
	if am.destroyed || bv.destroyed || xv.destroyed {
		return nil, nil, nil, stDestroyed
	}
	if !am.assembled || bv.data == nil || xv.data == nil {
		return nil, nil, nil, stNotAssembled
	}
	if bv.g != am.g || xv.g != am.g {
		return nil, nil, nil, stBadArg
	}
	return am, bv, xv, engine.OK
}

// Setup validates the system and runs the preconditioner's setup if one is
// attached.
func (s *solver) Setup(A engine.Matrix, b, x engine.Vector) engine.Status {
	if st := s.guard(); st != engine.OK {
		return st
	}
	am, _, _, st := systemState(A, b, x)
	if st != engine.OK {
		return st
	}
	switch s.method {
	case engine.PFMG, engine.SMG, engine.Jacobi:
		if _, st := am.diagonal(); st != engine.OK {
			return st
		}
	}
	if s.pSetup != nil {
		if st := s.pSetup(s.pObj, A, b, x); st != engine.OK {
			return st
		}
	}
	return engine.OK
}

// Solve runs the configured method. The solution vector's current content
// is the initial guess. Reaching the iteration limit is reported through
// the convergence diagnostics, not as an error status.
func (s *solver) Solve(A engine.Matrix, b, x engine.Vector) engine.Status {
	if st := s.guard(); st != engine.OK {
		return st
	}
	am, bv, xv, st := systemState(A, b, x)
	if st != engine.OK {
		return st
	}

	switch s.method {
	case engine.PCG, engine.GMRES, engine.BiCGSTAB:
		return s.krylovSolve(am, bv, xv)
	case engine.PFMG, engine.SMG, engine.Jacobi:
		return s.relaxSolve(am, bv, xv)
	}
	return stBadArg
}

func (s *solver) krylovSolve(am *matrix, bv, xv *vector) engine.Status {
	var m krylovMethod
	switch s.method {
	case engine.PCG:
		m = &cg{}
	case engine.GMRES:
		m = &gmres{restart: s.kdim}
	case engine.BiCGSTAB:
		m = &bicgstab{}
	}

	cfg := krylovConfig{tol: s.tol, atol: s.atol, maxIter: s.maxIter}
	if s.pSolve != nil {
		cfg.psolve = func(dst, src []float64) engine.Status {
			for i := range dst {
				dst[i] = 0
			}
			rb := &vector{g: am.g, data: src, assembled: true}
			rz := &vector{g: am.g, data: dst, assembled: true}
			return s.pSolve(s.pObj, am, rb, rz)
		}
	}

	iters, relNorm, st := solveKrylov(am.matVec, bv.data, xv.data, m, cfg)
	s.iters = iters
	s.relNorm = relNorm
	return st
}

// relaxSolve runs weighted point-relaxation cycles. PFMG and SMG count one
// cycle of pre plus post sweeps per iteration; Jacobi does one sweep per
// iteration. A zero tolerance means a fixed number of iterations, which is
// how the method behaves as a preconditioner application.
func (s *solver) relaxSolve(am *matrix, bv, xv *vector) engine.Status {
	diag, st := am.diagonal()
	if st != engine.OK {
		return st
	}

	x := xv.data
	b := bv.data
	if s.zeroGuess {
		for i := range x {
			x[i] = 0
		}
	}

	w := s.weight
	if s.relaxType == 0 {
		w = 1
	}
	sweeps := 1
	if s.method != engine.Jacobi {
		sweeps = s.numPre + s.numPost
		if sweeps < 1 {
			sweeps = 1
		}
	}

	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		bnorm = 1
	}
	work := make([]float64, len(x))

	s.iters = 0
	for it := 0; it < s.maxIter; it++ {
		for sw := 0; sw < sweeps; sw++ {
			if st := am.matVec(work, x); st != engine.OK {
				return st
			}
			for i := range x {
				x[i] += w * (b[i] - work[i]) / diag[i]
			}
		}
		s.iters = it + 1

		if st := am.matVec(work, x); st != engine.OK {
			return st
		}
		floats.AddScaledTo(work, b, -1, work)
		s.relNorm = floats.Norm(work, 2) / bnorm
		if s.tol > 0 && s.relNorm <= s.tol {
			break
		}
	}
	return engine.OK
}

func (s *solver) NumIterations() (int, engine.Status) {
	if st := s.guard(); st != engine.OK {
		return 0, st
	}
	return s.iters, engine.OK
}

func (s *solver) FinalRelativeResidualNorm() (float64, engine.Status) {
	if st := s.guard(); st != engine.OK {
		return 0, st
	}
	return s.relNorm, engine.OK
}

func (s *solver) Destroy() engine.Status {
	s.destroyed = true
	return engine.OK
}

// diagScaleSolve applies one diagonal-scaling sweep: x = b / diag(A).
func diagScaleSolve(_ engine.Solver, A engine.Matrix, b, x engine.Vector) engine.Status {
	am, bv, xv, st := systemState(A, b, x)
	if st != engine.OK {
		return st
	}
	diag, st := am.diagonal()
	if st != engine.OK {
		return st
	}
	for i := range xv.data {
		xv.data[i] = bv.data[i] / diag[i]
	}
	return engine.OK
}
