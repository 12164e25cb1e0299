package solver

import (
	"github.com/notargets/structmesh/engine"
	"github.com/notargets/structmesh/field"
)

// Create builds a solver by name. Recognized names are "PCG", "GMRES",
// "BiCGSTAB", "PFMG", "SMG", "Jacobi", and "Diagonal"; any other name
// yields a ConfigurationError.
func Create(eng engine.Engine, name string, layout *field.Layout, asPreconditioner bool) (Solver, error) {
	var (
		s   Solver
		err error
	)
	switch name {
	case "PCG":
		s, err = NewPCG(eng, layout, asPreconditioner)
	case "GMRES":
		s, err = NewGMRES(eng, layout, asPreconditioner)
	case "BiCGSTAB":
		s, err = NewBiCGSTAB(eng, layout, asPreconditioner)
	case "PFMG":
		s, err = NewPFMG(eng, layout, asPreconditioner)
	case "SMG":
		s, err = NewSMG(eng, layout, asPreconditioner)
	case "Jacobi":
		s, err = NewJacobi(eng, layout, asPreconditioner)
	case "Diagonal":
		s, err = NewDiagonal(eng, layout, asPreconditioner)
	default:
		return nil, &ConfigurationError{Name: name}
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
