// Package cell defines the contract a user cell type implements (spec.md
// §6) and a capability set the Stepper reads once at construction, per
// spec.md §9's design note: model dynamic dispatch over cell types as a
// bit-of-facts read up front rather than threading the cell type as a
// deep generic parameter through every layer. A NeighborhoodAccessor
// reference implementation, grounded on
// original_source/src/storage/neighborhoodadapter.h's neighbor-lookup
// adapter, resolves relative offsets against a windowed grid.
package cell

import "github.com/notargets/hiparstencil/region"

// Cell is the contract a simulation's state type implements: its own
// value is both the cell payload and the update rule. Dim, WrapsAxis,
// StencilRadius and NanoStepsPerCycle describe the cell type uniformly
// (every value of T answers the same way); Update computes the next
// nano-step's value for one site from its neighborhood.
type Cell[T any] interface {
	// Dim is the lattice dimensionality this cell type is defined over.
	Dim() int
	// WrapsAxis reports whether axis is periodic (torus) for this cell
	// type. A Cube topology cell returns false for every axis.
	WrapsAxis(axis int) bool
	// StencilRadius is the maximum Chebyshev distance of any neighbor
	// this cell's Update reads, and so the minimum viable ghost zone
	// width G.
	StencilRadius() int
	// NanoStepsPerCycle is N, the number of nano-steps that make up one
	// cell step.
	NanoStepsPerCycle() int
	// Update returns the cell's value at nanoStep+1 given a neighborhood
	// accessor centered on this cell's coordinate at nanoStep.
	Update(acc NeighborhoodAccessor[T], nanoStep int) T
}

// StreakUpdater is the optional whole-streak update variant (spec.md
// §6): "for vectorization; when present, the stepper prefers it." A cell
// type implements this alongside Cell[T] when it can compute an entire
// streak's next values in one call, e.g. to hand a contiguous slice to
// an accelerated kernel instead of looping cell by cell.
type StreakUpdater[T any] interface {
	// UpdateStreak fills out with the nanoStep+1 values for every cell
	// in the streak acc is centered over, in streak order.
	UpdateStreak(acc NeighborhoodAccessor[T], nanoStep int, out []T)
}

// NeighborhoodAccessor gives a Cell's Update method read access to the
// cells around the site currently being updated, addressed by offset
// from that site (the zero Coord is the site itself).
type NeighborhoodAccessor[T any] interface {
	// At returns the neighbor at the given offset from the accessor's
	// center, substituting the edge cell or wrapping per the lattice
	// topology exactly as a direct grid access would.
	At(offset region.Coord) T
	// Center returns the global coordinate this accessor is centered on.
	Center() region.Coord
	// GlobalDimensions returns the simulation box's extents, for cells
	// whose update rule depends on absolute position (e.g. boundary
	// forcing).
	GlobalDimensions() region.Coord
}
