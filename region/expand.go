package region

// ExpansionTopology is the minimal capability a topology must expose for
// Region.ExpandWithTopology: dimensionality and per-axis wrap behavior.
// Defined here (rather than imported from package topology) so that
// region has no dependency on topology; topology.Topology satisfies this
// interface structurally.
type ExpansionTopology interface {
	Dim() int
	Wraps(axis int) bool
}

// Adjacency describes a non-lattice neighbor relation for unstructured
// topologies. When supplied to ExpandWithTopology, dilation follows the
// adjacency graph instead of the D-dimensional Manhattan stencil.
type Adjacency interface {
	Neighbors(c Coord) []Coord
}

// ExpandWithTopology returns the Minkowski sum of r with the k-ball of the
// topology's unit stencil (the 2*D von Neumann neighbors), clipped to
// simBox on non-wrapping axes and wrapped modulo the axis extent on
// wrapping (torus) axes. This is what a process's own materialized data
// footprint can ever be: a process never holds cells outside the
// simulation area, so regions built from this (GetRegion, OwnExpandedRegion)
// never reach past the boundary — reads that would fall off a non-wrapping
// edge are resolved at grid-access time by topology.Locate's edge-cell
// substitution instead of by a ghost fetch. If adjacency is non-nil the
// dilation follows the adjacency graph instead of lattice neighbors.
func (r *Region) ExpandWithTopology(k int, simBox CoordBox, topo ExpansionTopology, adjacency Adjacency) *Region {
	return r.expandK(k, simBox, topo, adjacency, true)
}

// ExpandUnclipped is like ExpandWithTopology but never drops a point for
// falling outside simBox on a non-wrapping axis; only wrap folding applies.
// Proximity to a partition boundary is a purely geometric notion — a cell
// one step from a peer and a cell one step from the true simulation edge
// are equally "rim" — so the rim/inner-set classification in
// PartitionManager.fillOwnRegion is built on this unclipped expansion,
// satisfying expand(expand(a,i),j) = expand(a,i+j) for cube topology
// regardless of simBox, per the composition invariant.
func (r *Region) ExpandUnclipped(k int, simBox CoordBox, topo ExpansionTopology, adjacency Adjacency) *Region {
	return r.expandK(k, simBox, topo, adjacency, false)
}

func (r *Region) expandK(k int, simBox CoordBox, topo ExpansionTopology, adjacency Adjacency, clip bool) *Region {
	cur := r
	for step := 0; step < k; step++ {
		cur = cur.expandOneStep(simBox, topo, adjacency, clip)
	}
	return cur
}

func (r *Region) expandOneStep(simBox CoordBox, topo ExpansionTopology, adjacency Adjacency, clip bool) *Region {
	out := r.Clone()
	dim := r.dim
	if dim == 0 {
		dim = topo.Dim()
	}

	if adjacency != nil {
		r.EachPoint(func(c Coord) bool {
			for _, n := range adjacency.Neighbors(c) {
				out.InsertPoint(n)
			}
			return true
		})
		return out
	}

	end := simBox.End()
	r.EachPoint(func(c Coord) bool {
		for axis := 0; axis < dim; axis++ {
			for _, delta := range [2]int{-1, 1} {
				n := c.Clone()
				n[axis] += delta
				if ok := resolveAxis(n, axis, simBox, end, topo, clip); ok {
					out.InsertPoint(n)
				}
			}
		}
		return true
	})
	return out
}

// resolveAxis mutates n's axis component according to the topology's wrap
// flag. On a wrapping axis the coordinate always folds modulo the extent.
// On a non-wrapping axis, an in-bounds coordinate passes through unchanged;
// an out-of-bounds one is dropped (returns false) when clip is true, or
// passed through unchanged when clip is false.
func resolveAxis(n Coord, axis int, simBox CoordBox, end Coord, topo ExpansionTopology, clip bool) bool {
	if topo.Wraps(axis) {
		extent := simBox.Dimensions[axis]
		if extent <= 0 {
			return false
		}
		rel := (n[axis] - simBox.Origin[axis]) % extent
		if rel < 0 {
			rel += extent
		}
		n[axis] = simBox.Origin[axis] + rel
		return true
	}
	if n[axis] >= simBox.Origin[axis] && n[axis] < end[axis] {
		return true
	}
	return !clip
}
