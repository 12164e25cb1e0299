package solver

import "github.com/notargets/structmesh/field"

// The box transcoder is the single path between an array's native layout
// and the engine's box representation. Arrays store the dof index innermost
// with mesh axis 0 varying fastest; the engine grid is built with the axes
// reversed, so its box buffers run with the LAST mesh axis fastest, dof
// still innermost. Every matrix and vector transfer goes through these two
// routines so the permutation is applied identically everywhere.

// stageOwned copies the owned region of a host mirror of a into an engine
// box buffer. buf must hold ownedSize*dofs values.
func stageOwned(a *field.Array, mirror, buf []float64) {
	transcodeOwned(a, mirror, buf, true)
}

// unstageOwned copies an engine box buffer back into the owned region of a
// host mirror of a, leaving ghost values untouched.
func unstageOwned(buf []float64, a *field.Array, mirror []float64) {
	transcodeOwned(a, mirror, buf, false)
}

func transcodeOwned(a *field.Array, mirror, buf []float64, toEngine bool) {
	ext := a.Layout().OwnedGlobalSpace().Extents()
	ndof := a.Layout().DofsPerEntity()
	nd := len(ext)
	idx := make([]int, nd)
	for {
		// Engine box position: axis nd-1 has stride 1.
		pos := 0
		for d := 0; d < nd; d++ {
			pos = pos*ext[d] + idx[d]
		}
		for s := 0; s < ndof; s++ {
			if toEngine {
				buf[pos*ndof+s] = mirror[a.FlatIndex(idx, s)]
			} else {
				mirror[a.FlatIndex(idx, s)] = buf[pos*ndof+s]
			}
		}
		d := nd - 1
		for d >= 0 {
			idx[d]++
			if idx[d] < ext[d] {
				break
			}
			idx[d] = 0
			d--
		}
		if d < 0 {
			return
		}
	}
}
