package native

import (
	"math"
	"testing"

	"github.com/notargets/structmesh/engine"
	"github.com/notargets/structmesh/grid"
)

// buildSystem assembles a 1D system on [0,n) from a stencil and per-point
// entry values, returning the assembled objects.
func buildSystem(t *testing.T, eng *Engine, n int, offsets [][]int, symmetric bool, periodic bool, vals func(point, entry int) float64) (engine.Matrix, engine.Vector, engine.Vector) {
	t.Helper()
	comm := grid.SelfComm()

	g, st := eng.NewGrid(comm, 1)
	if st != engine.OK {
		t.Fatalf("NewGrid: %v", eng.Describe(st))
	}
	if st := g.SetExtents([]int{0}, []int{n - 1}); st != engine.OK {
		t.Fatalf("SetExtents: %v", eng.Describe(st))
	}
	period := []int{0}
	if periodic {
		period[0] = n
	}
	if st := g.SetPeriodic(period); st != engine.OK {
		t.Fatalf("SetPeriodic: %v", eng.Describe(st))
	}
	if st := g.Assemble(); st != engine.OK {
		t.Fatalf("grid Assemble: %v", eng.Describe(st))
	}

	stencil, st := eng.NewStencil(1, len(offsets))
	if st != engine.OK {
		t.Fatalf("NewStencil: %v", eng.Describe(st))
	}
	for i, off := range offsets {
		if st := stencil.SetElement(i, off); st != engine.OK {
			t.Fatalf("SetElement: %v", eng.Describe(st))
		}
	}

	A, st := eng.NewMatrix(comm, g, stencil)
	if st != engine.OK {
		t.Fatalf("NewMatrix: %v", eng.Describe(st))
	}
	if st := A.SetSymmetric(symmetric); st != engine.OK {
		t.Fatalf("SetSymmetric: %v", eng.Describe(st))
	}
	if st := A.Initialize(); st != engine.OK {
		t.Fatalf("matrix Initialize: %v", eng.Describe(st))
	}
	entries := make([]int, len(offsets))
	values := make([]float64, n*len(offsets))
	for e := range entries {
		entries[e] = e
	}
	for p := 0; p < n; p++ {
		for e := range offsets {
			values[p*len(offsets)+e] = vals(p, e)
		}
	}
	lower, upper := []int{0}, []int{n - 1}
	if st := A.SetBoxValues(lower, upper, entries, values); st != engine.OK {
		t.Fatalf("matrix SetBoxValues: %v", eng.Describe(st))
	}
	if st := A.Assemble(); st != engine.OK {
		t.Fatalf("matrix Assemble: %v", eng.Describe(st))
	}

	newVec := func() engine.Vector {
		v, st := eng.NewVector(comm, g)
		if st != engine.OK {
			t.Fatalf("NewVector: %v", eng.Describe(st))
		}
		if st := v.Initialize(); st != engine.OK {
			t.Fatalf("vector Initialize: %v", eng.Describe(st))
		}
		if st := v.SetBoxValues(lower, upper, make([]float64, n)); st != engine.OK {
			t.Fatalf("vector SetBoxValues: %v", eng.Describe(st))
		}
		if st := v.Assemble(); st != engine.OK {
			t.Fatalf("vector Assemble: %v", eng.Describe(st))
		}
		return v
	}
	return A, newVec(), newVec()
}

func setVec(t *testing.T, v engine.Vector, vals []float64) {
	t.Helper()
	if st := v.SetBoxValues([]int{0}, []int{len(vals) - 1}, vals); st != engine.OK {
		t.Fatalf("vector SetBoxValues: %d", st)
	}
	if st := v.Assemble(); st != engine.OK {
		t.Fatalf("vector Assemble: %d", st)
	}
}

func getVec(t *testing.T, v engine.Vector, n int) []float64 {
	t.Helper()
	out := make([]float64, n)
	if st := v.GetBoxValues([]int{0}, []int{n - 1}, out); st != engine.OK {
		t.Fatalf("vector GetBoxValues: %d", st)
	}
	return out
}

func TestEngineRejectsMultiRank(t *testing.T) {
	eng := New()
	if _, st := eng.NewGrid(grid.NewComm(0, 2), 2); st != stMultiRank {
		t.Errorf("NewGrid on 2 ranks: expected %d, got %d", stMultiRank, st)
	}
	if _, st := eng.NewSolver(grid.NewComm(1, 4), engine.PCG); st != stMultiRank {
		t.Errorf("NewSolver on 4 ranks: expected %d, got %d", stMultiRank, st)
	}
}

func TestDescribe(t *testing.T) {
	eng := New()
	if got := eng.Describe(engine.OK); got != "no error" {
		t.Errorf("Describe(OK) = %q", got)
	}
	if got := eng.Describe(stMultiRank); got != "native engine supports single-rank communicators only" {
		t.Errorf("Describe(stMultiRank) = %q", got)
	}
	if got := eng.Describe(engine.Status(999)); got != "unknown status 999" {
		t.Errorf("Describe(999) = %q", got)
	}
}

func TestGridValidation(t *testing.T) {
	eng := New()
	g, st := eng.NewGrid(grid.SelfComm(), 2)
	if st != engine.OK {
		t.Fatalf("NewGrid: %v", eng.Describe(st))
	}
	if st := g.SetExtents([]int{0, 0}, []int{-1, 3}); st != stBadArg {
		t.Errorf("inverted extents: expected %d, got %d", stBadArg, st)
	}
	if st := g.SetExtents([]int{0}, []int{3}); st != stBadArg {
		t.Errorf("dimension mismatch: expected %d, got %d", stBadArg, st)
	}
	if st := g.Assemble(); st != stBadArg {
		t.Errorf("assemble before extents: expected %d, got %d", stBadArg, st)
	}
	if st := g.SetExtents([]int{0, 0}, []int{3, 3}); st != engine.OK {
		t.Fatalf("SetExtents: %v", eng.Describe(st))
	}
	if st := g.Assemble(); st != engine.OK {
		t.Fatalf("Assemble: %v", eng.Describe(st))
	}
	if st := g.Destroy(); st != engine.OK {
		t.Fatalf("Destroy: %v", eng.Describe(st))
	}
	if st := g.Assemble(); st != stDestroyed {
		t.Errorf("use after destroy: expected %d, got %d", stDestroyed, st)
	}
}

func TestVectorBoxValues(t *testing.T) {
	eng := New()
	_, b, _ := buildSystem(t, eng, 4, [][]int{{0}}, false, false,
		func(p, e int) float64 { return 1 })

	setVec(t, b, []float64{1, 2, 3, 4})
	got := getVec(t, b, 4)
	for i, want := range []float64{1, 2, 3, 4} {
		if got[i] != want {
			t.Errorf("value %d: expected %g, got %g", i, want, got[i])
		}
	}

	// Sub-box access.
	if st := b.SetBoxValues([]int{1}, []int{2}, []float64{9, 8}); st != engine.OK {
		t.Fatalf("sub-box SetBoxValues: %v", eng.Describe(st))
	}
	got = getVec(t, b, 4)
	if got[1] != 9 || got[2] != 8 {
		t.Errorf("sub-box write: got %v", got)
	}

	if st := b.SetBoxValues([]int{0}, []int{4}, make([]float64, 5)); st != stBadArg {
		t.Errorf("out-of-grid box: expected %d, got %d", stBadArg, st)
	}
	if st := b.SetBoxValues([]int{0}, []int{3}, make([]float64, 3)); st != stValueCount {
		t.Errorf("short buffer: expected %d, got %d", stValueCount, st)
	}
}

func TestMatrixBoxValuesRoundTrip(t *testing.T) {
	eng := New()
	n := 4
	A, _, _ := buildSystem(t, eng, n, [][]int{{-1}, {0}, {1}}, false, false, func(p, e int) float64 {
		return float64(10*p + e)
	})

	// Full read-back, every entry.
	got := make([]float64, n*3)
	if st := A.GetBoxValues([]int{0}, []int{n - 1}, []int{0, 1, 2}, got); st != engine.OK {
		t.Fatalf("GetBoxValues: %v", eng.Describe(st))
	}
	for p := 0; p < n; p++ {
		for e := 0; e < 3; e++ {
			if want := float64(10*p + e); got[p*3+e] != want {
				t.Errorf("point %d entry %d: expected %g, got %g", p, e, want, got[p*3+e])
			}
		}
	}

	// Entry-subset read over a sub-box: values carry only the requested
	// entries, entry index innermost.
	sub := make([]float64, 2*2)
	if st := A.GetBoxValues([]int{1}, []int{2}, []int{2, 0}, sub); st != engine.OK {
		t.Fatalf("sub-box GetBoxValues: %v", eng.Describe(st))
	}
	want := []float64{12, 10, 22, 20}
	for i := range want {
		if sub[i] != want[i] {
			t.Errorf("sub-box value %d: expected %g, got %g", i, want[i], sub[i])
		}
	}

	if st := A.GetBoxValues([]int{0}, []int{n - 1}, []int{3}, got); st != stBadArg {
		t.Errorf("out-of-range entry: expected %d, got %d", stBadArg, st)
	}
	if st := A.SetBoxValues([]int{0}, []int{n - 1}, []int{0}, make([]float64, n-1)); st != stValueCount {
		t.Errorf("short buffer: expected %d, got %d", stValueCount, st)
	}
}

func TestMatVecNonSymmetric(t *testing.T) {
	eng := New()
	// Tridiagonal: A[i][i-1] = -1.5, A[i][i] = 3, A[i][i+1] = -0.5, zero
	// outside the domain.
	offsets := [][]int{{-1}, {0}, {1}}
	n := 5
	A, _, _ := buildSystem(t, eng, n, offsets, false, false, func(p, e int) float64 {
		switch e {
		case 0:
			if p == 0 {
				return 0
			}
			return -1.5
		case 1:
			return 3
		default:
			if p == n-1 {
				return 0
			}
			return -0.5
		}
	})

	x := []float64{1, 2, 3, 4, 5}
	dst := make([]float64, n)
	am := A.(*matrix)
	if st := am.matVec(dst, x); st != engine.OK {
		t.Fatalf("matVec: %v", eng.Describe(st))
	}
	// Row i: -1.5*x[i-1] + 3*x[i] - 0.5*x[i+1].
	want := []float64{2, 3, 4, 5, 9}
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-14 {
			t.Errorf("row %d: expected %g, got %g", i, want[i], dst[i])
		}
	}
}

func TestMatVecSymmetricStorage(t *testing.T) {
	eng := New()
	// 1D Laplacian with symmetric storage: only the diagonal and the +1
	// offset are stored; the -1 coupling comes from the transpose term.
	offsets := [][]int{{0}, {1}}
	n := 4
	A, _, _ := buildSystem(t, eng, n, offsets, true, false, func(p, e int) float64 {
		if e == 0 {
			return 2
		}
		if p == n-1 {
			return 0
		}
		return -1
	})

	x := []float64{1, 2, 3, 4}
	dst := make([]float64, n)
	am := A.(*matrix)
	if st := am.matVec(dst, x); st != engine.OK {
		t.Fatalf("matVec: %v", eng.Describe(st))
	}
	want := []float64{0, 0, 0, 5}
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-14 {
			t.Errorf("row %d: expected %g, got %g", i, want[i], dst[i])
		}
	}
}

func TestMatVecPeriodic(t *testing.T) {
	eng := New()
	// Periodic tridiagonal with wrap-around coupling.
	offsets := [][]int{{-1}, {0}, {1}}
	n := 4
	A, _, _ := buildSystem(t, eng, n, offsets, false, true, func(p, e int) float64 {
		switch e {
		case 0:
			return -1
		case 1:
			return 3
		default:
			return -1
		}
	})

	x := []float64{1, 2, 3, 4}
	dst := make([]float64, n)
	am := A.(*matrix)
	if st := am.matVec(dst, x); st != engine.OK {
		t.Fatalf("matVec: %v", eng.Describe(st))
	}
	// Row 0 wraps to x[3], row 3 wraps to x[0].
	want := []float64{3 - 2 - 4, 6 - 1 - 3, 9 - 2 - 4, 12 - 3 - 1}
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-14 {
			t.Errorf("row %d: expected %g, got %g", i, want[i], dst[i])
		}
	}
}

func TestSolverOptionGating(t *testing.T) {
	eng := New()
	comm := grid.SelfComm()

	gm, st := eng.NewSolver(comm, engine.GMRES)
	if st != engine.OK {
		t.Fatalf("NewSolver: %v", eng.Describe(st))
	}
	if st := gm.SetTwoNorm(true); st != stUnsupportedOption {
		t.Errorf("SetTwoNorm on GMRES: expected %d, got %d", stUnsupportedOption, st)
	}
	if st := gm.SetKDim(10); st != engine.OK {
		t.Errorf("SetKDim on GMRES: %v", eng.Describe(st))
	}
	if st := gm.SetZeroGuess(); st != stUnsupportedOption {
		t.Errorf("SetZeroGuess on GMRES: expected %d, got %d", stUnsupportedOption, st)
	}

	ja, st := eng.NewSolver(comm, engine.Jacobi)
	if st != engine.OK {
		t.Fatalf("NewSolver: %v", eng.Describe(st))
	}
	if st := ja.SetPrintLevel(1); st != stUnsupportedOption {
		t.Errorf("SetPrintLevel on Jacobi: expected %d, got %d", stUnsupportedOption, st)
	}
	if st := ja.SetZeroGuess(); st != engine.OK {
		t.Errorf("SetZeroGuess on Jacobi: %v", eng.Describe(st))
	}

	pf, st := eng.NewSolver(comm, engine.PFMG)
	if st != engine.OK {
		t.Fatalf("NewSolver: %v", eng.Describe(st))
	}
	if st := pf.SetJacobiWeight(0.8); st != engine.OK {
		t.Errorf("SetJacobiWeight on PFMG: %v", eng.Describe(st))
	}
	if st := pf.SetJacobiWeight(1.5); st != stBadArg {
		t.Errorf("SetJacobiWeight out of range: expected %d, got %d", stBadArg, st)
	}
	if st := pf.SetKDim(5); st != stUnsupportedOption {
		t.Errorf("SetKDim on PFMG: expected %d, got %d", stUnsupportedOption, st)
	}

	if st := pf.Destroy(); st != engine.OK {
		t.Fatalf("Destroy: %v", eng.Describe(st))
	}
	if st := pf.SetTol(1e-8); st != stDestroyed {
		t.Errorf("option after destroy: expected %d, got %d", stDestroyed, st)
	}
}

// laplacian1D builds the symmetric-storage 1D Laplacian test system with a
// known solution and returns the expected solution values.
func laplacian1D(t *testing.T, eng *Engine, n int) (engine.Matrix, engine.Vector, engine.Vector, []float64) {
	t.Helper()
	A, b, x := buildSystem(t, eng, n, [][]int{{0}, {1}}, true, false, func(p, e int) float64 {
		if e == 0 {
			return 2
		}
		if p == n-1 {
			return 0
		}
		return -1
	})
	want := make([]float64, n)
	for i := range want {
		want[i] = float64(i + 1)
	}
	rhs := make([]float64, n)
	am := A.(*matrix)
	if st := am.matVec(rhs, want); st != engine.OK {
		t.Fatalf("matVec: %v", eng.Describe(st))
	}
	setVec(t, b, rhs)
	return A, b, x, want
}

func checkSolution(t *testing.T, got, want []float64, tol float64) {
	t.Helper()
	for i := range want {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("solution %d: expected %g, got %g", i, want[i], got[i])
		}
	}
}

func TestPCGSolve(t *testing.T) {
	eng := New()
	n := 16
	A, b, x, want := laplacian1D(t, eng, n)

	s, st := eng.NewSolver(grid.SelfComm(), engine.PCG)
	if st != engine.OK {
		t.Fatalf("NewSolver: %v", eng.Describe(st))
	}
	if st := s.SetTol(1e-10); st != engine.OK {
		t.Fatalf("SetTol: %v", eng.Describe(st))
	}
	if st := s.Setup(A, b, x); st != engine.OK {
		t.Fatalf("Setup: %v", eng.Describe(st))
	}
	if st := s.Solve(A, b, x); st != engine.OK {
		t.Fatalf("Solve: %v", eng.Describe(st))
	}

	checkSolution(t, getVec(t, x, n), want, 1e-6)
	iters, st := s.NumIterations()
	if st != engine.OK || iters < 1 {
		t.Errorf("NumIterations = %d (%d)", iters, st)
	}
	rn, st := s.FinalRelativeResidualNorm()
	if st != engine.OK || rn > 1e-10 {
		t.Errorf("FinalRelativeResidualNorm = %g (%d)", rn, st)
	}
}

func TestGMRESSolveNonSymmetric(t *testing.T) {
	eng := New()
	n := 12
	A, b, x := buildSystem(t, eng, n, [][]int{{-1}, {0}, {1}}, false, false, func(p, e int) float64 {
		switch e {
		case 0:
			if p == 0 {
				return 0
			}
			return -1.5
		case 1:
			return 4
		default:
			if p == n-1 {
				return 0
			}
			return -0.5
		}
	})
	want := make([]float64, n)
	for i := range want {
		want[i] = math.Sin(float64(i) + 1)
	}
	rhs := make([]float64, n)
	am := A.(*matrix)
	if st := am.matVec(rhs, want); st != engine.OK {
		t.Fatalf("matVec: %v", eng.Describe(st))
	}
	setVec(t, b, rhs)

	s, st := eng.NewSolver(grid.SelfComm(), engine.GMRES)
	if st != engine.OK {
		t.Fatalf("NewSolver: %v", eng.Describe(st))
	}
	if st := s.SetTol(1e-12); st != engine.OK {
		t.Fatalf("SetTol: %v", eng.Describe(st))
	}
	if st := s.SetKDim(6); st != engine.OK {
		t.Fatalf("SetKDim: %v", eng.Describe(st))
	}
	if st := s.Solve(A, b, x); st != engine.OK {
		t.Fatalf("Solve: %v", eng.Describe(st))
	}
	checkSolution(t, getVec(t, x, n), want, 1e-8)
}

func TestBiCGSTABSolve(t *testing.T) {
	eng := New()
	n := 12
	A, b, x := buildSystem(t, eng, n, [][]int{{-1}, {0}, {1}}, false, false, func(p, e int) float64 {
		switch e {
		case 0:
			if p == 0 {
				return 0
			}
			return -1
		case 1:
			return 3.5
		default:
			if p == n-1 {
				return 0
			}
			return -0.75
		}
	})
	want := make([]float64, n)
	for i := range want {
		want[i] = float64(n - i)
	}
	rhs := make([]float64, n)
	am := A.(*matrix)
	if st := am.matVec(rhs, want); st != engine.OK {
		t.Fatalf("matVec: %v", eng.Describe(st))
	}
	setVec(t, b, rhs)

	s, st := eng.NewSolver(grid.SelfComm(), engine.BiCGSTAB)
	if st != engine.OK {
		t.Fatalf("NewSolver: %v", eng.Describe(st))
	}
	if st := s.SetTol(1e-11); st != engine.OK {
		t.Fatalf("SetTol: %v", eng.Describe(st))
	}
	if st := s.Solve(A, b, x); st != engine.OK {
		t.Fatalf("Solve: %v", eng.Describe(st))
	}
	checkSolution(t, getVec(t, x, n), want, 1e-7)
}

func TestRelaxationSolve(t *testing.T) {
	eng := New()
	n := 10
	// Strongly diagonally dominant, so relaxation converges quickly.
	A, b, x := buildSystem(t, eng, n, [][]int{{-1}, {0}, {1}}, false, false, func(p, e int) float64 {
		switch e {
		case 0:
			if p == 0 {
				return 0
			}
			return -1
		case 1:
			return 10
		default:
			if p == n-1 {
				return 0
			}
			return -1
		}
	})
	want := make([]float64, n)
	for i := range want {
		want[i] = float64(i%3) + 1
	}
	rhs := make([]float64, n)
	am := A.(*matrix)
	if st := am.matVec(rhs, want); st != engine.OK {
		t.Fatalf("matVec: %v", eng.Describe(st))
	}
	setVec(t, b, rhs)

	for _, m := range []engine.Method{engine.Jacobi, engine.PFMG, engine.SMG} {
		setVec(t, x, make([]float64, n))
		s, st := eng.NewSolver(grid.SelfComm(), m)
		if st != engine.OK {
			t.Fatalf("NewSolver(%v): %v", m, eng.Describe(st))
		}
		if st := s.SetTol(1e-10); st != engine.OK {
			t.Fatalf("SetTol: %v", eng.Describe(st))
		}
		if st := s.Setup(A, b, x); st != engine.OK {
			t.Fatalf("Setup(%v): %v", m, eng.Describe(st))
		}
		if st := s.Solve(A, b, x); st != engine.OK {
			t.Fatalf("Solve(%v): %v", m, eng.Describe(st))
		}
		checkSolution(t, getVec(t, x, n), want, 1e-6)
	}
}

func TestRelaxationFixedSweeps(t *testing.T) {
	eng := New()
	n := 8
	A, b, x := buildSystem(t, eng, n, [][]int{{0}}, false, false, func(p, e int) float64 {
		return 2
	})
	setVec(t, b, []float64{2, 4, 6, 8, 10, 12, 14, 16})

	s, st := eng.NewSolver(grid.SelfComm(), engine.Jacobi)
	if st != engine.OK {
		t.Fatalf("NewSolver: %v", eng.Describe(st))
	}
	// Zero tolerance runs exactly maxIter sweeps.
	if st := s.SetTol(0); st != engine.OK {
		t.Fatalf("SetTol: %v", eng.Describe(st))
	}
	if st := s.SetMaxIter(3); st != engine.OK {
		t.Fatalf("SetMaxIter: %v", eng.Describe(st))
	}
	if st := s.Solve(A, b, x); st != engine.OK {
		t.Fatalf("Solve: %v", eng.Describe(st))
	}
	iters, st := s.NumIterations()
	if st != engine.OK {
		t.Fatalf("NumIterations: %v", eng.Describe(st))
	}
	if iters != 3 {
		t.Errorf("expected 3 fixed sweeps, got %d", iters)
	}
}

func TestIterationLimitIsNotAnError(t *testing.T) {
	eng := New()
	n := 32
	A, b, x, _ := laplacian1D(t, eng, n)

	s, st := eng.NewSolver(grid.SelfComm(), engine.PCG)
	if st != engine.OK {
		t.Fatalf("NewSolver: %v", eng.Describe(st))
	}
	if st := s.SetTol(1e-14); st != engine.OK {
		t.Fatalf("SetTol: %v", eng.Describe(st))
	}
	if st := s.SetMaxIter(2); st != engine.OK {
		t.Fatalf("SetMaxIter: %v", eng.Describe(st))
	}
	if st := s.Solve(A, b, x); st != engine.OK {
		t.Fatalf("Solve at iteration limit must succeed: %v", eng.Describe(st))
	}
	iters, _ := s.NumIterations()
	if iters != 2 {
		t.Errorf("expected 2 iterations, got %d", iters)
	}
	rn, _ := s.FinalRelativeResidualNorm()
	if rn <= 1e-14 {
		t.Errorf("residual should not have converged, got %g", rn)
	}
}

func TestDiagScale(t *testing.T) {
	eng := New()
	n := 6
	A, b, x := buildSystem(t, eng, n, [][]int{{0}, {1}}, true, false, func(p, e int) float64 {
		if e == 0 {
			return float64(p + 1)
		}
		return 0
	})
	setVec(t, b, []float64{1, 4, 9, 16, 25, 36})

	if st := eng.DiagScaleSetup()(nil, A, b, x); st != engine.OK {
		t.Fatalf("DiagScaleSetup: %v", eng.Describe(st))
	}
	if st := eng.DiagScaleSolve()(nil, A, b, x); st != engine.OK {
		t.Fatalf("DiagScaleSolve: %v", eng.Describe(st))
	}
	checkSolution(t, getVec(t, x, n), []float64{1, 2, 3, 4, 5, 6}, 1e-14)
}

func TestMissingDiagonal(t *testing.T) {
	eng := New()
	A, b, x := buildSystem(t, eng, 4, [][]int{{1}}, false, false, func(p, e int) float64 {
		return 1
	})
	s, st := eng.NewSolver(grid.SelfComm(), engine.Jacobi)
	if st != engine.OK {
		t.Fatalf("NewSolver: %v", eng.Describe(st))
	}
	if st := s.Setup(A, b, x); st != stMissingDiagonal {
		t.Errorf("Setup without a diagonal entry: expected %d, got %d", stMissingDiagonal, st)
	}
}

func TestPreconditionedPCG(t *testing.T) {
	eng := New()
	n := 24
	// Variable diagonal makes the plain system ill conditioned; diagonal
	// scaling restores it.
	A, b, x := buildSystem(t, eng, n, [][]int{{0}, {1}}, true, false, func(p, e int) float64 {
		if e == 0 {
			return 1 + 5*float64(p)
		}
		if p == n-1 {
			return 0
		}
		return -0.2
	})
	want := make([]float64, n)
	for i := range want {
		want[i] = 1 + math.Cos(float64(i))
	}
	rhs := make([]float64, n)
	am := A.(*matrix)
	if st := am.matVec(rhs, want); st != engine.OK {
		t.Fatalf("matVec: %v", eng.Describe(st))
	}
	setVec(t, b, rhs)

	run := func(precond bool) int {
		setVec(t, x, make([]float64, n))
		s, st := eng.NewSolver(grid.SelfComm(), engine.PCG)
		if st != engine.OK {
			t.Fatalf("NewSolver: %v", eng.Describe(st))
		}
		if st := s.SetTol(1e-10); st != engine.OK {
			t.Fatalf("SetTol: %v", eng.Describe(st))
		}
		if st := s.SetMaxIter(500); st != engine.OK {
			t.Fatalf("SetMaxIter: %v", eng.Describe(st))
		}
		if precond {
			if st := s.SetPrecond(eng.DiagScaleSolve(), eng.DiagScaleSetup(), nil); st != engine.OK {
				t.Fatalf("SetPrecond: %v", eng.Describe(st))
			}
		}
		if st := s.Setup(A, b, x); st != engine.OK {
			t.Fatalf("Setup: %v", eng.Describe(st))
		}
		if st := s.Solve(A, b, x); st != engine.OK {
			t.Fatalf("Solve: %v", eng.Describe(st))
		}
		checkSolution(t, getVec(t, x, n), want, 1e-6)
		iters, _ := s.NumIterations()
		return iters
	}

	plain := run(false)
	preconditioned := run(true)
	if preconditioned >= plain {
		t.Errorf("diagonal scaling should reduce iterations: %d without, %d with", plain, preconditioned)
	}
}
