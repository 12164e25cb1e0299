// Package field provides scalar field arrays over a local structured grid,
// with host- or device-resident storage staged through host-visible memory.
package field

import (
	"fmt"

	"github.com/notargets/structmesh/grid"
)

// Layout fixes the vector space of a field: the local grid block it lives
// on, the entity type it is centered on, and the number of degrees of
// freedom carried per entity.
type Layout struct {
	local  *grid.LocalGrid
	entity grid.EntityType
	dofs   int
}

// NewLayout creates a layout with the given degrees of freedom per entity.
func NewLayout(local *grid.LocalGrid, entity grid.EntityType, dofsPerEntity int) (*Layout, error) {
	if local == nil {
		return nil, fmt.Errorf("field: nil local grid")
	}
	if dofsPerEntity < 1 {
		return nil, fmt.Errorf("field: dofs per entity must be positive, got %d", dofsPerEntity)
	}
	return &Layout{local: local, entity: entity, dofs: dofsPerEntity}, nil
}

// LocalGrid returns the grid block the layout is defined over.
func (l *Layout) LocalGrid() *grid.LocalGrid { return l.local }

// Entity returns the entity type the layout is centered on.
func (l *Layout) Entity() grid.EntityType { return l.entity }

// DofsPerEntity returns the per-entity value count.
func (l *Layout) DofsPerEntity() int { return l.dofs }

// NumDim returns the spatial dimension of the layout.
func (l *Layout) NumDim() int { return l.local.GlobalGrid().NumDim() }

// OwnedGlobalSpace returns the owned entity index space in global indices.
func (l *Layout) OwnedGlobalSpace() grid.IndexSpace {
	return l.local.OwnedSpace(l.entity)
}
