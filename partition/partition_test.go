package partition_test

import (
	"testing"

	"github.com/notargets/hiparstencil/partition"
	"github.com/notargets/hiparstencil/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripingCoversWholeBoxExactlyOnce(t *testing.T) {
	box := region.NewCoordBox(region.NewCoord(0, 0), region.NewCoord(100, 1))
	p, err := partition.NewStriping(box, 0, []int{25, 25, 25, 25})
	require.NoError(t, err)

	union := region.NewRegion(2)
	total := 0
	for i := 0; i < 4; i++ {
		r := p.GetRegion(i)
		assert.Equal(t, 25, r.Size())
		total += r.Size()
		union = union.Union(r)
	}
	assert.Equal(t, 100, total)
	assert.Equal(t, 100, union.Size())
}

func TestStripingRejectsMismatchedWeights(t *testing.T) {
	box := region.NewCoordBox(region.NewCoord(0, 0), region.NewCoord(100, 1))
	_, err := partition.NewStriping(box, 0, []int{25, 25})
	assert.Error(t, err)
}

func TestBisectionCoversWholeBoxAndIsDisjoint(t *testing.T) {
	box := region.NewCoordBox(region.NewCoord(0, 0), region.NewCoord(30, 30))
	weights := make([]int, 9)
	for i := range weights {
		weights[i] = 100
	}
	p, err := partition.NewBisection(box, weights)
	require.NoError(t, err)

	union := region.NewRegion(2)
	total := 0
	for i := 0; i < 9; i++ {
		r := p.GetRegion(i)
		total += r.Size()
		union = union.Union(r)
	}
	assert.Equal(t, 900, total)
	assert.Equal(t, 900, union.Size())
}

func TestBisectionDisjointRegions(t *testing.T) {
	box := region.NewCoordBox(region.NewCoord(0, 0), region.NewCoord(16, 16))
	p, err := partition.NewBisection(box, []int{64, 64, 64, 64})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			inter := p.GetRegion(i).Intersect(p.GetRegion(j))
			assert.True(t, inter.Empty())
		}
	}
}

func TestUnstructuredCoversAndRespectsWeights(t *testing.T) {
	universe := region.NewRegion(1)
	for x := 0; x < 8; x++ {
		universe.InsertPoint(region.NewCoord(x))
	}
	adj := buildChainAdjacency(8)

	p, err := partition.NewUnstructured(universe, adj, []int{4, 4})
	require.NoError(t, err)

	total := p.GetRegion(0).Size() + p.GetRegion(1).Size()
	assert.Equal(t, 8, total)
	assert.True(t, p.GetRegion(0).Intersect(p.GetRegion(1)).Empty())
}

func buildChainAdjacency(n int) *partition.GraphAdjacency {
	edges := map[string][]region.Coord{}
	for x := 0; x < n; x++ {
		c := region.NewCoord(x)
		var neighbors []region.Coord
		if x > 0 {
			neighbors = append(neighbors, region.NewCoord(x-1))
		}
		if x < n-1 {
			neighbors = append(neighbors, region.NewCoord(x+1))
		}
		edges[partition.CoordKey(c)] = neighbors
	}
	return partition.NewGraphAdjacency(edges)
}
