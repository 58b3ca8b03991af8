package grid

import "github.com/notargets/hiparstencil/region"

// Displaced is a windowed grid: storage spans only box.Dimensions cells,
// addressed by global coordinates offset by box.Origin. A process never
// allocates the full simulation box, only the region it actually owns
// plus ghost width — grounded on original_source/src/storage/proxygrid.h's
// grid proxy that windows onto a sub-box. This is the storage type a
// Stepper owns directly; Grid is its backing array.
type Displaced[T any] struct {
	box   region.CoordBox
	inner *Grid[T]
}

// NewDisplaced allocates a Displaced grid windowed onto box.
func NewDisplaced[T any](box region.CoordBox) *Displaced[T] {
	return &Displaced[T]{box: box, inner: New[T](box.Dimensions)}
}

// Box returns the window this grid covers in global coordinates.
func (d *Displaced[T]) Box() region.CoordBox { return d.box }

func (d *Displaced[T]) local(c region.Coord) region.Coord {
	return c.Sub(d.box.Origin)
}

// At returns the cell at the global coordinate c, or the edge cell if c
// falls outside the window.
func (d *Displaced[T]) At(c region.Coord) T {
	return d.inner.At(d.local(c))
}

// Set writes the cell at the global coordinate c.
func (d *Displaced[T]) Set(c region.Coord, v T) {
	d.inner.Set(d.local(c), v)
}

// EdgeCell returns the value substituted for any out-of-window access.
func (d *Displaced[T]) EdgeCell() T { return d.inner.EdgeCell() }

// SetEdgeCell installs the value substituted for any out-of-window access.
func (d *Displaced[T]) SetEdgeCell(v T) { d.inner.SetEdgeCell(v) }

// GetStreak copies a streak's cells (given in global coordinates) into dst.
func (d *Displaced[T]) GetStreak(s region.Streak, dst []T) []T {
	local := region.Streak{Origin: d.local(s.Origin), EndX: s.EndX - s.Origin.X() + d.local(s.Origin).X()}
	return d.inner.GetStreak(local, dst)
}

// SetStreak writes vals into the streak given in global coordinates.
func (d *Displaced[T]) SetStreak(s region.Streak, vals []T) {
	local := region.Streak{Origin: d.local(s.Origin), EndX: s.EndX - s.Origin.X() + d.local(s.Origin).X()}
	d.inner.SetStreak(local, vals)
}

// EachInRegion calls fn for every coordinate/cell pair in r (given in
// global coordinates) that falls inside the window.
func (d *Displaced[T]) EachInRegion(r *region.Region, fn func(region.Coord, T)) {
	r.EachPoint(func(c region.Coord) bool {
		if !d.box.Contains(c) {
			return true
		}
		fn(c, d.At(c))
		return true
	})
}

// CopyFrom overwrites this grid's entire window from src, which must
// share the same box. Used by the Stepper to carry forward cells a
// nano-step's kernel passes did not touch before swapping buffers.
func (d *Displaced[T]) CopyFrom(src *Displaced[T]) {
	d.inner.CopyFrom(src.inner)
}

// Resize replaces the window, dropping all prior contents to zero.
func (d *Displaced[T]) Resize(box region.CoordBox) {
	d.box = box
	d.inner.Resize(box.Dimensions)
}
