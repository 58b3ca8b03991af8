package cell

import (
	"github.com/notargets/hiparstencil/grid"
	"github.com/notargets/hiparstencil/region"
)

// GridAccessor is the reference NeighborhoodAccessor, grounded on
// original_source/src/storage/neighborhoodadapter.h's pattern of
// resolving a neighbor lookup against an underlying container rather
// than the cell's own coordinate: here the container is a Displaced
// grid and the lookup is Center+offset. The Stepper constructs one
// GridAccessor per nano-step and re-centers it on each site (or streak
// origin) it updates.
type GridAccessor[T any] struct {
	g      *grid.Displaced[T]
	center region.Coord
	dims   region.Coord
}

// NewGridAccessor builds an accessor over g, initially centered at
// center, for a simulation of the given global dimensions.
func NewGridAccessor[T any](g *grid.Displaced[T], center, globalDims region.Coord) *GridAccessor[T] {
	return &GridAccessor[T]{g: g, center: center, dims: globalDims}
}

// Recenter moves the accessor to a new site without reallocating,
// letting the Stepper reuse one accessor across an entire streak pass.
func (a *GridAccessor[T]) Recenter(center region.Coord) { a.center = center }

// At implements NeighborhoodAccessor.
func (a *GridAccessor[T]) At(offset region.Coord) T {
	return a.g.At(a.center.Add(offset))
}

// Center implements NeighborhoodAccessor.
func (a *GridAccessor[T]) Center() region.Coord { return a.center.Clone() }

// GlobalDimensions implements NeighborhoodAccessor.
func (a *GridAccessor[T]) GlobalDimensions() region.Coord { return a.dims.Clone() }
