package topology_test

import (
	"testing"

	"github.com/notargets/hiparstencil/region"
	"github.com/notargets/hiparstencil/topology"
	"github.com/stretchr/testify/assert"
)

func TestLocateCubeOutOfBoundsUsesEdgeCell(t *testing.T) {
	topo := topology.NewCube(2)
	box := region.NewCoordBox(region.NewCoord(0, 0), region.NewCoord(10, 10))
	res := topo.Locate(box, region.NewCoord(-1, 3))
	assert.True(t, res.UseEdgeCell)
}

func TestLocateCubeInBoundsPassesThrough(t *testing.T) {
	topo := topology.NewCube(2)
	box := region.NewCoordBox(region.NewCoord(0, 0), region.NewCoord(10, 10))
	res := topo.Locate(box, region.NewCoord(3, 4))
	assert.False(t, res.UseEdgeCell)
	assert.True(t, res.Coord.Equal(region.NewCoord(3, 4)))
}

func TestLocateTorusWraps(t *testing.T) {
	topo := topology.NewTorus(2)
	box := region.NewCoordBox(region.NewCoord(0, 0), region.NewCoord(10, 10))
	res := topo.Locate(box, region.NewCoord(-1, 11))
	assert.False(t, res.UseEdgeCell)
	assert.True(t, res.Coord.Equal(region.NewCoord(9, 1)))
}

func TestLocateTorusWrapRespectsOrigin(t *testing.T) {
	topo := topology.NewTorus(1)
	box := region.NewCoordBox(region.NewCoord(5), region.NewCoord(10))
	res := topo.Locate(box, region.NewCoord(4))
	assert.False(t, res.UseEdgeCell)
	assert.True(t, res.Coord.Equal(region.NewCoord(14)))
}
