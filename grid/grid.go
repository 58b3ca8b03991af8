// Package grid implements dense D-dimensional cell storage (spec.md §4.4):
// a fixed-size buffer addressed by region.Coord, with an edge cell used
// when topology.Locate signals an out-of-bounds access, and streak-
// oriented bulk I/O matching region.Region's atomic unit.
package grid

import (
	"github.com/notargets/hiparstencil/builder"
	"github.com/notargets/hiparstencil/region"
)

// Grid is a dense, row-major buffer of cells over [0, dims) in every axis,
// generic over the cell type T. Capacity is rounded up to a whole number
// of cache lines (per builder.CacheLineAlign, the teacher's device-memory
// alignment constant). Only the capacity is rounded: the backing array
// starts wherever the Go allocator places it, so a slice of it is not
// guaranteed to start on a cache-line boundary.
type Grid[T any] struct {
	dims     region.Coord
	strides  []int
	cells    []T
	edgeCell T
}

// New allocates a zero-valued Grid over the given dimensions.
func New[T any](dims region.Coord) *Grid[T] {
	g := &Grid[T]{}
	g.Resize(dims)
	return g
}

// Dimensions returns the grid's extents.
func (g *Grid[T]) Dimensions() region.Coord { return g.dims.Clone() }

// Resize drops the current buffer to zero length, then reallocates to the
// new dimensions (every cell zero-valued). This mirrors the teacher's
// array-spec reallocation discipline: never realloc in place over live
// data, always drop first.
func (g *Grid[T]) Resize(dims region.Coord) {
	g.cells = nil
	g.dims = dims.Clone()
	g.strides = make([]int, len(dims))
	stride := 1
	for i := range dims {
		g.strides[i] = stride
		stride *= dims[i]
	}
	size := stride
	aligned := alignedCapacity[T](size)
	g.cells = make([]T, size, aligned)
	g.cells = g.cells[:size]
}

// alignedCapacity rounds n up so the backing array spans a whole number of
// builder.CacheLineAlign-byte lines.
func alignedCapacity[T any](n int) int {
	var zero T
	elemSize := sizeOf(zero)
	if elemSize == 0 {
		return n
	}
	lineElems := int(builder.CacheLineAlign) / elemSize
	if lineElems <= 1 {
		return n
	}
	rem := n % lineElems
	if rem == 0 {
		return n
	}
	return n + (lineElems - rem)
}

func (g *Grid[T]) index(c region.Coord) int {
	idx := 0
	for i, v := range c {
		idx += v * g.strides[i]
	}
	return idx
}

func (g *Grid[T]) inBounds(c region.Coord) bool {
	for i, v := range c {
		if v < 0 || v >= g.dims[i] {
			return false
		}
	}
	return true
}

// At returns the cell at c, or the edge cell if c falls outside the grid.
func (g *Grid[T]) At(c region.Coord) T {
	if !g.inBounds(c) {
		return g.edgeCell
	}
	return g.cells[g.index(c)]
}

// Set writes the cell at c. Out-of-bounds writes are silently dropped: the
// edge cell is read-only state maintained via SetEdgeCell.
func (g *Grid[T]) Set(c region.Coord, v T) {
	if !g.inBounds(c) {
		return
	}
	g.cells[g.index(c)] = v
}

// EdgeCell returns the value substituted for any out-of-bounds access.
func (g *Grid[T]) EdgeCell() T { return g.edgeCell }

// SetEdgeCell installs the value substituted for any out-of-bounds access.
func (g *Grid[T]) SetEdgeCell(v T) { g.edgeCell = v }

// GetStreak copies a streak's cells into dst, growing it if needed, and
// returns the (possibly reallocated) slice.
func (g *Grid[T]) GetStreak(s region.Streak, dst []T) []T {
	n := s.Length()
	if cap(dst) < n {
		dst = make([]T, n)
	}
	dst = dst[:n]
	origin := s.Origin
	for x := 0; x < n; x++ {
		c := origin.Clone()
		c[0] = origin.X() + x
		dst[x] = g.At(c)
	}
	return dst
}

// SetStreak writes vals (len(vals) == s.Length()) into the streak.
func (g *Grid[T]) SetStreak(s region.Streak, vals []T) {
	origin := s.Origin
	for x := 0; x < s.Length(); x++ {
		c := origin.Clone()
		c[0] = origin.X() + x
		g.Set(c, vals[x])
	}
}

// CopyFrom overwrites every cell (including the edge cell) from src,
// which must share this grid's dimensions. Mirrors the teacher's
// device-memory CopyFrom idiom (runner/kernel_copy.go) for the host-side
// ping-pong buffer a Stepper keeps between current and next nano-step
// state.
func (g *Grid[T]) CopyFrom(src *Grid[T]) {
	copy(g.cells, src.cells)
	g.edgeCell = src.edgeCell
}

// EachInRegion calls fn for every coordinate/cell pair owned by r, in
// canonical streak order.
func (g *Grid[T]) EachInRegion(r *region.Region, fn func(region.Coord, T)) {
	r.EachPoint(func(c region.Coord) bool {
		fn(c, g.At(c))
		return true
	})
}

func sizeOf(v any) int {
	switch v.(type) {
	case float64:
		return 8
	case float32:
		return 4
	case int64, uint64:
		return 8
	case int32, uint32:
		return 4
	case int:
		return 8
	default:
		return 0
	}
}
