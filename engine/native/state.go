package native

import "github.com/notargets/structmesh/engine"

// gridState is a single-rank box grid. Bounds are inclusive, in engine axis
// order, with axis 0 varying fastest in every value buffer.
type gridState struct {
	numDim    int
	lower     []int
	upper     []int
	period    []int
	assembled bool
	destroyed bool
}

func (g *gridState) SetExtents(lower, upper []int) engine.Status {
	if g.destroyed {
		return stDestroyed
	}
	if len(lower) != g.numDim || len(upper) != g.numDim {
		return stBadArg
	}
	for d := range lower {
		if upper[d] < lower[d] {
			return stBadArg
		}
	}
	g.lower = append([]int(nil), lower...)
	g.upper = append([]int(nil), upper...)
	return engine.OK
}

func (g *gridState) SetPeriodic(period []int) engine.Status {
	if g.destroyed {
		return stDestroyed
	}
	if len(period) != g.numDim {
		return stBadArg
	}
	for _, p := range period {
		if p < 0 {
			return stBadArg
		}
	}
	g.period = append([]int(nil), period...)
	return engine.OK
}

func (g *gridState) Assemble() engine.Status {
	if g.destroyed {
		return stDestroyed
	}
	if g.lower == nil {
		return stBadArg
	}
	if g.period == nil {
		g.period = make([]int, g.numDim)
	}
	g.assembled = true
	return engine.OK
}

func (g *gridState) Destroy() engine.Status {
	g.destroyed = true
	return engine.OK
}

func (g *gridState) extent(d int) int { return g.upper[d] - g.lower[d] + 1 }

func (g *gridState) size() int {
	n := 1
	for d := 0; d < g.numDim; d++ {
		n *= g.extent(d)
	}
	return n
}

// flatIndex maps global engine coordinates to a flat offset, axis 0 fastest.
func (g *gridState) flatIndex(idx []int) int {
	flat := 0
	for d := g.numDim - 1; d >= 0; d-- {
		flat = flat*g.extent(d) + idx[d] - g.lower[d]
	}
	return flat
}

// checkBox validates a sub-box of the grid.
func (g *gridState) checkBox(lower, upper []int) engine.Status {
	if !g.assembled {
		return stNotAssembled
	}
	if len(lower) != g.numDim || len(upper) != g.numDim {
		return stBadArg
	}
	for d := range lower {
		if lower[d] < g.lower[d] || upper[d] > g.upper[d] || upper[d] < lower[d] {
			return stBadArg
		}
	}
	return engine.OK
}

// forEachBoxPoint walks a sub-box in engine order (axis 0 fastest), calling
// fn with the grid flat index and the running position within the box.
func (g *gridState) forEachBoxPoint(lower, upper []int, fn func(flat, pos int)) {
	idx := append([]int(nil), lower...)
	pos := 0
	for {
		fn(g.flatIndex(idx), pos)
		pos++
		d := 0
		for d < g.numDim {
			idx[d]++
			if idx[d] <= upper[d] {
				break
			}
			idx[d] = lower[d]
			d++
		}
		if d == g.numDim {
			return
		}
	}
}

type stencilState struct {
	numDim    int
	offsets   [][]int
	destroyed bool
}

func (s *stencilState) SetElement(index int, offset []int) engine.Status {
	if s.destroyed {
		return stDestroyed
	}
	if index < 0 || index >= len(s.offsets) || len(offset) != s.numDim {
		return stBadArg
	}
	s.offsets[index] = append([]int(nil), offset...)
	return engine.OK
}

func (s *stencilState) Destroy() engine.Status {
	s.destroyed = true
	return engine.OK
}

func (s *stencilState) size() int { return len(s.offsets) }

// diagEntry returns the index of the zero-offset entry, or -1.
func (s *stencilState) diagEntry() int {
	for n, off := range s.offsets {
		zero := off != nil
		for _, o := range off {
			if o != 0 {
				zero = false
				break
			}
		}
		if zero {
			return n
		}
	}
	return -1
}

type vector struct {
	g         *gridState
	data      []float64
	assembled bool
	destroyed bool
}

func (v *vector) Initialize() engine.Status {
	if v.destroyed {
		return stDestroyed
	}
	if !v.g.assembled {
		return stNotAssembled
	}
	if v.data == nil {
		v.data = make([]float64, v.g.size())
	}
	v.assembled = false
	return engine.OK
}

func (v *vector) SetBoxValues(lower, upper []int, values []float64) engine.Status {
	if v.destroyed {
		return stDestroyed
	}
	if v.data == nil {
		return stNotAssembled
	}
	if st := v.g.checkBox(lower, upper); st != engine.OK {
		return st
	}
	if len(values) != boxSize(lower, upper) {
		return stValueCount
	}
	v.g.forEachBoxPoint(lower, upper, func(flat, pos int) {
		v.data[flat] = values[pos]
	})
	return engine.OK
}

func (v *vector) GetBoxValues(lower, upper []int, values []float64) engine.Status {
	if v.destroyed {
		return stDestroyed
	}
	if v.data == nil {
		return stNotAssembled
	}
	if st := v.g.checkBox(lower, upper); st != engine.OK {
		return st
	}
	if len(values) != boxSize(lower, upper) {
		return stValueCount
	}
	v.g.forEachBoxPoint(lower, upper, func(flat, pos int) {
		values[pos] = v.data[flat]
	})
	return engine.OK
}

func (v *vector) Assemble() engine.Status {
	if v.destroyed {
		return stDestroyed
	}
	if v.data == nil {
		return stNotAssembled
	}
	v.assembled = true
	return engine.OK
}

func (v *vector) Destroy() engine.Status {
	v.destroyed = true
	return engine.OK
}

type matrix struct {
	g         *gridState
	st        *stencilState
	symmetric bool
	values    []float64 // grid size × stencil size, entry index innermost
	assembled bool
	destroyed bool
}

func (m *matrix) SetSymmetric(symmetric bool) engine.Status {
	if m.destroyed {
		return stDestroyed
	}
	if m.values != nil {
		return stBadArg
	}
	m.symmetric = symmetric
	return engine.OK
}

func (m *matrix) Initialize() engine.Status {
	if m.destroyed {
		return stDestroyed
	}
	if !m.g.assembled {
		return stNotAssembled
	}
	if m.values == nil {
		m.values = make([]float64, m.g.size()*m.st.size())
	}
	m.assembled = false
	return engine.OK
}

func (m *matrix) SetBoxValues(lower, upper []int, entries []int, values []float64) engine.Status {
	return m.boxValues(lower, upper, entries, values, true)
}

func (m *matrix) GetBoxValues(lower, upper []int, entries []int, values []float64) engine.Status {
	return m.boxValues(lower, upper, entries, values, false)
}

func (m *matrix) boxValues(lower, upper []int, entries []int, values []float64, set bool) engine.Status {
	if m.destroyed {
		return stDestroyed
	}
	if m.values == nil {
		return stNotAssembled
	}
	if st := m.g.checkBox(lower, upper); st != engine.OK {
		return st
	}
	ssize := m.st.size()
	for _, e := range entries {
		if e < 0 || e >= ssize {
			return stBadArg
		}
	}
	ne := len(entries)
	if ne == 0 || len(values) != boxSize(lower, upper)*ne {
		return stValueCount
	}
	m.g.forEachBoxPoint(lower, upper, func(flat, pos int) {
		for k, e := range entries {
			if set {
				m.values[flat*ssize+e] = values[pos*ne+k]
			} else {
				values[pos*ne+k] = m.values[flat*ssize+e]
			}
		}
	})
	return engine.OK
}

func (m *matrix) Assemble() engine.Status {
	if m.destroyed {
		return stDestroyed
	}
	if m.values == nil {
		return stNotAssembled
	}
	m.assembled = true
	return engine.OK
}

func (m *matrix) Destroy() engine.Status {
	m.destroyed = true
	return engine.OK
}

// neighbor resolves idx+off within the grid box, wrapping periodic axes.
// ok is false when the neighbor falls outside a non-periodic boundary.
func (m *matrix) neighbor(idx, off, out []int) bool {
	g := m.g
	for d := 0; d < g.numDim; d++ {
		j := idx[d] + off[d]
		if j < g.lower[d] || j > g.upper[d] {
			if g.period[d] == 0 {
				return false
			}
			ext := g.extent(d)
			j = g.lower[d] + mod(j-g.lower[d], ext)
		}
		out[d] = j
	}
	return true
}

// matVec computes dst = A·x over the full grid box. With symmetric storage
// each stored off-diagonal entry also contributes its transpose coupling.
func (m *matrix) matVec(dst, x []float64) engine.Status {
	if !m.assembled {
		return stNotAssembled
	}
	g := m.g
	ssize := m.st.size()
	idx := append([]int(nil), g.lower...)
	nb := make([]int, g.numDim)
	for i := range dst {
		dst[i] = 0
	}
	g.forEachBoxPoint(g.lower, g.upper, func(flat, pos int) {
		copyPointIndex(g, flat, idx)
		for s, off := range m.st.offsets {
			if off == nil {
				continue
			}
			if m.neighbor(idx, off, nb) {
				dst[flat] += m.values[flat*ssize+s] * x[g.flatIndex(nb)]
			}
			if m.symmetric && !isZeroOffset(off) {
				// Transpose coupling: the neighbor at idx-off stores
				// the entry (idx-off, idx).
				if m.neighborNeg(idx, off, nb) {
					q := g.flatIndex(nb)
					dst[flat] += m.values[q*ssize+s] * x[q]
				}
			}
		}
	})
	return engine.OK
}

func (m *matrix) neighborNeg(idx, off, out []int) bool {
	g := m.g
	for d := 0; d < g.numDim; d++ {
		j := idx[d] - off[d]
		if j < g.lower[d] || j > g.upper[d] {
			if g.period[d] == 0 {
				return false
			}
			ext := g.extent(d)
			j = g.lower[d] + mod(j-g.lower[d], ext)
		}
		out[d] = j
	}
	return true
}

// diagonal extracts the per-point diagonal values. Fails when the stencil
// has no zero-offset entry or a diagonal value is zero.
func (m *matrix) diagonal() ([]float64, engine.Status) {
	if !m.assembled {
		return nil, stNotAssembled
	}
	de := m.st.diagEntry()
	if de < 0 {
		return nil, stMissingDiagonal
	}
	ssize := m.st.size()
	n := m.g.size()
	diag := make([]float64, n)
	for i := 0; i < n; i++ {
		diag[i] = m.values[i*ssize+de]
		if diag[i] == 0 {
			return nil, stMissingDiagonal
		}
	}
	return diag, engine.OK
}

// copyPointIndex reconstructs the multi-index of a flat grid offset.
func copyPointIndex(g *gridState, flat int, idx []int) {
	for d := 0; d < g.numDim; d++ {
		ext := g.extent(d)
		idx[d] = g.lower[d] + flat%ext
		flat /= ext
	}
}

func boxSize(lower, upper []int) int {
	n := 1
	for d := range lower {
		n *= upper[d] - lower[d] + 1
	}
	return n
}

func isZeroOffset(off []int) bool {
	for _, o := range off {
		if o != 0 {
			return false
		}
	}
	return true
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
