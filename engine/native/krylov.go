package native

import (
	"errors"
	"math"

	"github.com/notargets/structmesh/engine"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
)

// The Krylov methods below use a reverse-communication interface: iterate
// returns the operation the driver must perform on the context before
// calling iterate again. This keeps the methods independent of the matrix
// and preconditioner representation.

type krylovOp int

const (
	opNone krylovOp = iota
	opMatVec
	opPSolve
	opComputeResidual
	opCheckNorm
	opEnd
)

type krylovCtx struct {
	x        []float64
	residual []float64
	resNorm  float64
	conv     bool
	src, dst []float64
}

type krylovMethod interface {
	init(dim int)
	iterate(*krylovCtx) (krylovOp, error)
}

func reuse(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	s = s[:n]
	for i := range s {
		s[i] = 0
	}
	return s
}

const machEps = 0x1p-52

// cg is the preconditioned conjugate gradient method, for symmetric
// positive definite systems.
type cg struct {
	first        bool
	rho, rhoPrev float64
	resume       int
	z, p, ap     []float64
}

func (c *cg) init(dim int) {
	c.z = reuse(c.z, dim)
	c.p = reuse(c.p, dim)
	c.ap = reuse(c.ap, dim)
	c.first = true
	c.resume = 1
}

func (c *cg) iterate(ctx *krylovCtx) (krylovOp, error) {
	switch c.resume {
	case 1:
		ctx.src = ctx.residual
		ctx.dst = c.z
		c.resume = 2
		return opPSolve, nil
		// Solve M z = r.
	case 2:
		c.rho = floats.Dot(ctx.residual, c.z)
		if c.first {
			copy(c.p, c.z)
		} else {
			beta := c.rho / c.rhoPrev
			floats.Scale(beta, c.p)
			floats.Add(c.p, c.z)
		}
		ctx.src = c.p
		ctx.dst = c.ap
		c.resume = 3
		return opMatVec, nil
		// Compute A p.
	case 3:
		den := floats.Dot(c.p, c.ap)
		if math.Abs(den) < machEps*machEps {
			c.resume = 0
			return opNone, errors.New("native: cg denominator breakdown")
		}
		alpha := c.rho / den
		floats.AddScaled(ctx.x, alpha, c.p)
		floats.AddScaled(ctx.residual, -alpha, c.ap)
		ctx.resNorm = floats.Norm(ctx.residual, 2)
		ctx.conv = false
		c.resume = 4
		return opCheckNorm, nil
	case 4:
		c.rhoPrev = c.rho
		c.first = false
		if ctx.conv {
			c.resume = 0
		} else {
			c.resume = 1
		}
		return opEnd, nil
	default:
		panic("native: cg iterate before init")
	}
}

// bicgstab is the stabilized bi-conjugate gradient method, for general
// non-symmetric systems.
type bicgstab struct {
	first  bool
	resume int

	rho, rhoPrev float64
	alpha        float64
	omega        float64

	rt, p, v, t   []float64
	phat, s, shat []float64
}

func (b *bicgstab) init(dim int) {
	b.rt = reuse(b.rt, dim)
	b.p = reuse(b.p, dim)
	b.v = reuse(b.v, dim)
	b.t = reuse(b.t, dim)
	b.phat = reuse(b.phat, dim)
	b.s = reuse(b.s, dim)
	b.shat = reuse(b.shat, dim)
	b.first = true
	b.resume = 1
}

func (b *bicgstab) iterate(ctx *krylovCtx) (krylovOp, error) {
	switch b.resume {
	case 1:
		if b.first {
			copy(b.rt, ctx.residual)
		}
		b.rho = floats.Dot(b.rt, ctx.residual)
		if math.Abs(b.rho) < machEps*machEps {
			b.resume = 0
			return opNone, errors.New("native: bicgstab rho breakdown")
		}
		if b.first {
			copy(b.p, ctx.residual)
		} else {
			beta := (b.rho / b.rhoPrev) * (b.alpha / b.omega)
			floats.AddScaled(b.p, -b.omega, b.v)
			floats.Scale(beta, b.p)
			floats.Add(b.p, ctx.residual)
		}
		ctx.src = b.p
		ctx.dst = b.phat
		b.resume = 2
		return opPSolve, nil
		// Solve M p^ = p.
	case 2:
		ctx.src = b.phat
		ctx.dst = b.v
		b.resume = 3
		return opMatVec, nil
		// Compute A p^ -> v.
	case 3:
		b.alpha = b.rho / floats.Dot(b.rt, b.v)
		floats.AddScaled(ctx.residual, -b.alpha, b.v)
		copy(b.s, ctx.residual)
		ctx.resNorm = floats.Norm(ctx.residual, 2)
		ctx.conv = false
		b.resume = 4
		return opCheckNorm, nil
	case 4:
		if ctx.conv {
			floats.AddScaled(ctx.x, b.alpha, b.phat)
			b.resume = 0
			return opEnd, nil
		}
		ctx.src = ctx.residual
		ctx.dst = b.shat
		b.resume = 5
		return opPSolve, nil
		// Solve M s^ = r.
	case 5:
		ctx.src = b.shat
		ctx.dst = b.t
		b.resume = 6
		return opMatVec, nil
		// Compute A s^ -> t.
	case 6:
		b.omega = floats.Dot(b.t, b.s) / floats.Dot(b.t, b.t)
		floats.AddScaled(ctx.x, b.alpha, b.phat)
		floats.AddScaled(ctx.x, b.omega, b.shat)
		floats.AddScaled(ctx.residual, -b.omega, b.t)
		ctx.resNorm = floats.Norm(ctx.residual, 2)
		ctx.conv = false
		b.resume = 7
		return opCheckNorm, nil
	case 7:
		if ctx.conv {
			b.resume = 0
			return opEnd, nil
		}
		if math.Abs(b.omega) < machEps*machEps {
			b.resume = 0
			return opNone, errors.New("native: bicgstab omega breakdown")
		}
		b.rhoPrev = b.rho
		b.first = false
		b.resume = 1
		return opEnd, nil
	default:
		panic("native: bicgstab iterate before init")
	}
}

// gmres is the restarted generalized minimal residual method with Givens
// rotations maintaining the least-squares system.
type gmres struct {
	// restart is the Krylov subspace size between restarts. Zero means
	// the full dimension.
	restart int

	resume int
	i      int

	s, w, y, av []float64

	v    []float64
	ldv  int
	h    []float64
	ldh  int
	givs []givensRot
}

type givensRot struct {
	c, s float64
}

func (g *gmres) init(dim int) {
	if g.restart <= 0 || dim < g.restart {
		g.restart = dim
	}
	g.s = reuse(g.s, g.restart+1)
	g.w = reuse(g.w, dim)
	g.y = reuse(g.y, g.restart+1)
	g.av = reuse(g.av, dim)

	k := g.restart
	g.ldv = dim
	g.v = reuse(g.v, g.ldv*(k+1))
	g.ldh = k + 1
	g.h = reuse(g.h, g.ldh*k)
	if cap(g.givs) < k {
		g.givs = make([]givensRot, k)
	} else {
		g.givs = g.givs[:k]
	}
	g.resume = 1
}

func (g *gmres) iterate(ctx *krylovCtx) (krylovOp, error) {
	n := len(ctx.x)
	ldv := g.ldv
	switch g.resume {
	case 1:
		ctx.src = ctx.residual
		ctx.dst = g.v[:n]
		g.resume = 2
		return opPSolve, nil
		// Solve M V[:,0] = r.
	case 2:
		rnorm := floats.Norm(g.v[:n], 2)
		if rnorm == 0 {
			g.resume = 0
			return opNone, errors.New("native: gmres zero preconditioned residual")
		}
		floats.Scale(1/rnorm, g.v[:n])
		for i := range g.s {
			g.s[i] = 0
		}
		g.s[0] = rnorm
		g.i = 0
		fallthrough
	case 3:
		i := g.i
		if i == g.restart {
			g.resume = 7
			return opNone, nil
		}
		ctx.src = g.v[i*ldv : i*ldv+n]
		ctx.dst = g.av
		g.resume = 4
		return opMatVec, nil
		// Compute A V[:,i].
	case 4:
		ctx.src = g.av
		ctx.dst = g.w
		g.resume = 5
		return opPSolve, nil
		// Solve M w = A V[:,i].
	case 5:
		i := g.i
		h := g.h
		ldh := g.ldh

		// Gram-Schmidt against the previous columns of V.
		for k := 0; k <= i; k++ {
			vk := g.v[k*ldv : k*ldv+n]
			hki := floats.Dot(vk, g.w)
			h[k+i*ldh] = hki
			floats.AddScaled(g.w, -hki, vk)
		}
		wnorm := floats.Norm(g.w, 2)
		hi := h[i*ldh : i*ldh+g.restart+1]
		hi[i+1] = wnorm
		vip1 := g.v[(i+1)*ldv : (i+1)*ldv+n]
		copy(vip1, g.w)
		if wnorm != 0 {
			// wnorm == 0 is a happy breakdown; the rotation below then
			// zeroes the residual estimate and the solve converges.
			floats.Scale(1/wnorm, vip1)
		}

		for j := 0; j < i; j++ {
			hi[j], hi[j+1] = rotVec(hi[j], hi[j+1], g.givs[j])
		}
		g.givs[i] = newGivens(hi[i], hi[i+1])
		hi[i], hi[i+1] = rotVec(hi[i], hi[i+1], g.givs[i])
		g.s[i], g.s[i+1] = rotVec(g.s[i], g.s[i+1], g.givs[i])

		ctx.resNorm = math.Abs(g.s[i+1])
		ctx.conv = false
		g.resume = 6
		return opCheckNorm, nil
	case 6:
		if ctx.conv {
			g.update(ctx.x)
			g.resume = 0
			return opEnd, nil
		}
		g.i++
		g.resume = 3
		return opNone, nil
	case 7:
		// Restart: fold the accumulated correction into x and recompute
		// the true residual.
		g.i = g.restart - 1
		g.update(ctx.x)
		g.resume = 8
		return opComputeResidual, nil
	case 8:
		ctx.resNorm = floats.Norm(ctx.residual, 2)
		ctx.conv = false
		g.resume = 9
		return opCheckNorm, nil
	case 9:
		if ctx.conv {
			g.resume = 0
		} else {
			g.resume = 1
		}
		return opEnd, nil
	default:
		panic("native: gmres iterate before init")
	}
}

func (g *gmres) update(x []float64) {
	i := g.i
	y := g.y[:i+1]
	copy(y, g.s[:i+1])
	// Solve the upper triangular system H y = s. H is stored column-major,
	// so solve through the transposed lower view.
	bi := blas64.Implementation()
	bi.Dtrsv(blas.Lower, blas.Trans, blas.NonUnit, i+1, g.h, g.ldh, y, 1)
	n := len(x)
	for j := 0; j <= i; j++ {
		vj := g.v[j*g.ldv : j*g.ldv+n]
		floats.AddScaled(x, y[j], vj)
	}
}

func newGivens(a, b float64) givensRot {
	if b == 0 {
		return givensRot{c: 1, s: 0}
	}
	if math.Abs(b) > math.Abs(a) {
		tmp := -a / b
		s := 1 / math.Sqrt(1+tmp*tmp)
		return givensRot{c: tmp * s, s: s}
	}
	tmp := -b / a
	c := 1 / math.Sqrt(1+tmp*tmp)
	return givensRot{c: c, s: tmp * c}
}

func rotVec(x, y float64, g givensRot) (rx, ry float64) {
	rx = g.c*x - g.s*y
	ry = g.s*x + g.c*y
	return
}

type krylovConfig struct {
	tol     float64
	atol    float64
	maxIter int
	psolve  func(dst, src []float64) engine.Status
}

// solveKrylov drives a reverse-communication method on the system given by
// matvec, solving in place into x with x as the initial guess. Reaching the
// iteration limit is not an error; the caller inspects the returned
// relative norm.
func solveKrylov(matvec func(dst, src []float64) engine.Status, b, x []float64, m krylovMethod, cfg krylovConfig) (iters int, relNorm float64, st engine.Status) {
	dim := len(b)
	ctx := &krylovCtx{
		x:        x,
		residual: make([]float64, dim),
	}

	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		bnorm = 1
	}

	// r = b - A x.
	if st := matvec(ctx.residual, ctx.x); st != engine.OK {
		return 0, 0, st
	}
	floats.AddScaledTo(ctx.residual, b, -1, ctx.residual)
	ctx.resNorm = floats.Norm(ctx.residual, 2)
	if converged(ctx.resNorm, bnorm, cfg) {
		return 0, ctx.resNorm / bnorm, engine.OK
	}

	m.init(dim)
	for {
		op, err := m.iterate(ctx)
		if err != nil {
			return iters, ctx.resNorm / bnorm, stBreakdown
		}
		switch op {
		case opNone:
		case opMatVec:
			if st := matvec(ctx.dst, ctx.src); st != engine.OK {
				return iters, ctx.resNorm / bnorm, st
			}
		case opPSolve:
			if cfg.psolve == nil {
				copy(ctx.dst, ctx.src)
				break
			}
			if st := cfg.psolve(ctx.dst, ctx.src); st != engine.OK {
				return iters, ctx.resNorm / bnorm, st
			}
		case opComputeResidual:
			if st := matvec(ctx.residual, ctx.x); st != engine.OK {
				return iters, ctx.resNorm / bnorm, st
			}
			floats.AddScaledTo(ctx.residual, b, -1, ctx.residual)
		case opCheckNorm:
			ctx.conv = converged(ctx.resNorm, bnorm, cfg)
		case opEnd:
			iters++
			if ctx.conv || iters >= cfg.maxIter {
				return iters, ctx.resNorm / bnorm, engine.OK
			}
		}
	}
}

func converged(resNorm, bnorm float64, cfg krylovConfig) bool {
	if cfg.tol > 0 && resNorm <= cfg.tol*bnorm {
		return true
	}
	return cfg.atol > 0 && resNorm <= cfg.atol
}
