package region_test

import (
	"testing"

	"github.com/notargets/hiparstencil/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rect(x0, y0, x1, y1 int) *region.Region {
	r := region.NewRegion(2)
	for y := y0; y < y1; y++ {
		r.Insert(region.NewStreak(region.NewCoord(x0, y), x1))
	}
	return r
}

func TestRegionRectangleAlgebra(t *testing.T) {
	r := rect(0, 0, 10, 10)
	s := rect(5, 5, 15, 15)

	assert.Equal(t, 100, r.Size())
	assert.Equal(t, 100, s.Size())

	inter := r.Intersect(s)
	assert.Equal(t, 25, inter.Size())

	union := r.Union(s)
	assert.Equal(t, 175, union.Size())

	diff := r.Difference(inter)
	assert.Equal(t, 75, diff.Size())
}

func TestRegionUnionIntersectionCardinality(t *testing.T) {
	r := rect(0, 0, 10, 10)
	s := rect(5, 5, 15, 15)
	assert.Equal(t, r.Size()+s.Size(), r.Union(s).Size()+r.Intersect(s).Size())
}

func TestRegionDifferenceViaIntersection(t *testing.T) {
	r := rect(0, 0, 10, 10)
	s := rect(5, 5, 15, 15)
	assert.Equal(t, r.Difference(s).Size(), r.Difference(r.Intersect(s)).Size())
}

func TestRegionSelfDifferenceIsEmpty(t *testing.T) {
	r := rect(0, 0, 10, 10)
	assert.True(t, r.Difference(r).Empty())
}

func TestRegionSelfIntersectUnionIsIdentity(t *testing.T) {
	r := rect(0, 0, 10, 10)
	assert.Equal(t, r.Size(), r.Intersect(r).Size())
	assert.Equal(t, r.Size(), r.Union(r).Size())
}

func TestRegionCanonicalFormMergesAdjacentStreaks(t *testing.T) {
	r := region.NewRegion(2)
	r.Insert(region.NewStreak(region.NewCoord(0, 0), 5))
	r.Insert(region.NewStreak(region.NewCoord(5, 0), 10))
	require.Len(t, r.Streaks(), 1)
	assert.Equal(t, 0, r.Streaks()[0].Origin.X())
	assert.Equal(t, 10, r.Streaks()[0].EndX)
}

func TestRegionCanonicalFormIsConstructionOrderIndependent(t *testing.T) {
	a := region.NewRegion(2)
	a.InsertPoint(region.NewCoord(3, 1))
	a.InsertPoint(region.NewCoord(1, 0))
	a.InsertPoint(region.NewCoord(2, 0))

	b := region.NewRegion(2)
	b.InsertPoint(region.NewCoord(2, 0))
	b.InsertPoint(region.NewCoord(3, 1))
	b.InsertPoint(region.NewCoord(1, 0))

	assert.Equal(t, a.Streaks(), b.Streaks())
}

func TestRegionIterationOrderIsLexicographicZYX(t *testing.T) {
	r := region.NewRegion(3)
	r.InsertPoint(region.NewCoord(5, 5, 1))
	r.InsertPoint(region.NewCoord(1, 1, 0))
	r.InsertPoint(region.NewCoord(9, 0, 0))

	streaks := r.Streaks()
	require.Len(t, streaks, 3)
	assert.Equal(t, 0, streaks[0].Origin.Z())
	assert.Equal(t, 0, streaks[1].Origin.Z())
	assert.Equal(t, 1, streaks[2].Origin.Z())
	assert.Equal(t, 0, streaks[0].Origin.Y())
	assert.Equal(t, 1, streaks[1].Origin.Y())
}

func TestExpandWithTopologyZeroIsIdentity(t *testing.T) {
	r := rect(2, 2, 8, 8)
	box := region.NewCoordBox(region.NewCoord(0, 0), region.NewCoord(20, 20))
	expanded := r.ExpandWithTopology(0, box, noWrap{dim: 2}, nil)
	assert.Equal(t, r.Size(), expanded.Size())
	assert.Equal(t, r.Streaks(), expanded.Streaks())
}

func TestExpandWithTopologyComposes(t *testing.T) {
	r := rect(5, 5, 6, 6)
	box := region.NewCoordBox(region.NewCoord(0, 0), region.NewCoord(20, 20))
	a := r.ExpandWithTopology(2, box, noWrap{dim: 2}, nil)
	b := r.ExpandWithTopology(1, box, noWrap{dim: 2}, nil).ExpandWithTopology(1, box, noWrap{dim: 2}, nil)
	assert.Equal(t, a.Size(), b.Size())
}

func TestExpandWithTopologyClipsAtBoundary(t *testing.T) {
	r := region.NewRegion(2)
	r.InsertPoint(region.NewCoord(0, 0))
	box := region.NewCoordBox(region.NewCoord(0, 0), region.NewCoord(5, 5))
	expanded := r.ExpandWithTopology(1, box, noWrap{dim: 2}, nil)
	// von Neumann neighborhood of (0,0) clipped to the box: (0,0),(1,0),(0,1)
	assert.Equal(t, 3, expanded.Size())
}

func TestExpandUnclippedKeepsOutOfBoxNeighbors(t *testing.T) {
	r := region.NewRegion(2)
	r.InsertPoint(region.NewCoord(0, 0))
	box := region.NewCoordBox(region.NewCoord(0, 0), region.NewCoord(5, 5))
	expanded := r.ExpandUnclipped(1, box, noWrap{dim: 2}, nil)
	// The full von Neumann neighborhood of (0,0) is present, including
	// the out-of-box (-1,0) and (0,-1): proximity to the true boundary
	// is rim geometry regardless of whether a peer exists there.
	assert.Equal(t, 5, expanded.Size())
	assert.True(t, containsPoint(expanded, region.NewCoord(-1, 0)))
	assert.True(t, containsPoint(expanded, region.NewCoord(0, -1)))
}

func TestExpandWithTopologyWrapsOnTorusAxis(t *testing.T) {
	r := region.NewRegion(2)
	r.InsertPoint(region.NewCoord(0, 0))
	box := region.NewCoordBox(region.NewCoord(0, 0), region.NewCoord(5, 5))
	expanded := r.ExpandWithTopology(1, box, allWrap{dim: 2}, nil)
	assert.True(t, containsPoint(expanded, region.NewCoord(4, 0)))
	assert.True(t, containsPoint(expanded, region.NewCoord(0, 4)))
}

func containsPoint(r *region.Region, c region.Coord) bool {
	found := false
	r.EachPoint(func(p region.Coord) bool {
		if p.Equal(c) {
			found = true
			return false
		}
		return true
	})
	return found
}

type noWrap struct{ dim int }

func (n noWrap) Dim() int       { return n.dim }
func (n noWrap) Wraps(int) bool { return false }

type allWrap struct{ dim int }

func (a allWrap) Dim() int       { return a.dim }
func (a allWrap) Wraps(int) bool { return true }
