// Package topology describes the static shape of the simulation lattice:
// its dimensionality and which axes wrap (torus) versus clip (cube), and
// resolves out-of-bounds grid accesses accordingly.
package topology

import "github.com/notargets/hiparstencil/region"

// Kind distinguishes the three topology families the spec names.
type Kind int

const (
	// Cube is a finite lattice with no wrap; out-of-bounds accesses hit
	// the grid's edge cell.
	Cube Kind = iota
	// Torus wraps every axis flagged in WrapAxes.
	Torus
	// Unstructured topologies have no lattice neighbor relation; shape
	// comes entirely from an Adjacency graph.
	Unstructured
)

// Topology is a static descriptor carrying the dimensionality and
// per-axis wrap behavior of the simulation lattice.
type Topology struct {
	Kind      Kind
	DimCount  int
	WrapAxes  []bool
	Adjacency region.Adjacency
}

// NewCube builds a non-wrapping topology of the given dimensionality.
func NewCube(dim int) Topology {
	return Topology{Kind: Cube, DimCount: dim, WrapAxes: make([]bool, dim)}
}

// NewTorus builds a topology that wraps on every axis.
func NewTorus(dim int) Topology {
	wrap := make([]bool, dim)
	for i := range wrap {
		wrap[i] = true
	}
	return Topology{Kind: Torus, DimCount: dim, WrapAxes: wrap}
}

// NewPartialTorus builds a topology that wraps only the given axes.
func NewPartialTorus(dim int, wrapAxes []bool) Topology {
	wrap := make([]bool, dim)
	copy(wrap, wrapAxes)
	return Topology{Kind: Torus, DimCount: dim, WrapAxes: wrap}
}

// NewUnstructured builds a topology whose neighbor relation is entirely
// defined by adj.
func NewUnstructured(dim int, adj region.Adjacency) Topology {
	return Topology{Kind: Unstructured, DimCount: dim, WrapAxes: make([]bool, dim), Adjacency: adj}
}

// Dim satisfies region.ExpansionTopology.
func (t Topology) Dim() int { return t.DimCount }

// Wraps satisfies region.ExpansionTopology.
func (t Topology) Wraps(axis int) bool {
	if axis < 0 || axis >= len(t.WrapAxes) {
		return false
	}
	return t.WrapAxes[axis]
}

// LocateResult reports the outcome of resolving a (possibly
// out-of-bounds) coordinate against a simulation box under this
// topology.
type LocateResult struct {
	// Coord is the resolved, in-bounds coordinate to actually read/write.
	// Only meaningful when UseEdgeCell is false.
	Coord region.Coord
	// UseEdgeCell is true when the access falls outside the box on a
	// non-wrapping axis and must read/write the grid's edge cell instead.
	UseEdgeCell bool
}

// Locate translates an access at coord against simBox into either a
// wrapped in-bounds coordinate, or a signal that the caller should fall
// back to the edge cell.
func (t Topology) Locate(simBox region.CoordBox, coord region.Coord) LocateResult {
	end := simBox.End()
	resolved := coord.Clone()
	for axis := 0; axis < t.DimCount; axis++ {
		if resolved[axis] >= simBox.Origin[axis] && resolved[axis] < end[axis] {
			continue
		}
		if !t.Wraps(axis) {
			return LocateResult{UseEdgeCell: true}
		}
		extent := simBox.Dimensions[axis]
		if extent <= 0 {
			return LocateResult{UseEdgeCell: true}
		}
		rel := (resolved[axis] - simBox.Origin[axis]) % extent
		if rel < 0 {
			rel += extent
		}
		resolved[axis] = simBox.Origin[axis] + rel
	}
	return LocateResult{Coord: resolved}
}
