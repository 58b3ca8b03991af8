package cell_test

import (
	"testing"

	"github.com/notargets/hiparstencil/cell"
	"github.com/notargets/hiparstencil/grid"
	"github.com/notargets/hiparstencil/region"
	"github.com/stretchr/testify/assert"
)

// heatCell is a 1-D three-point averaging stencil used only to exercise
// the Cell/Capabilities/NeighborhoodAccessor contract.
type heatCell float64

func (heatCell) Dim() int                { return 1 }
func (heatCell) WrapsAxis(axis int) bool { return false }
func (heatCell) StencilRadius() int      { return 1 }
func (heatCell) NanoStepsPerCycle() int  { return 1 }

func (c heatCell) Update(acc cell.NeighborhoodAccessor[heatCell], nanoStep int) heatCell {
	left := acc.At(region.NewCoord(-1))
	right := acc.At(region.NewCoord(1))
	return (left + c + right) / 3
}

// lifeCell additionally implements StreakUpdater, to exercise capability
// detection.
type lifeCell bool

func (lifeCell) Dim() int                { return 2 }
func (lifeCell) WrapsAxis(axis int) bool { return true }
func (lifeCell) StencilRadius() int      { return 1 }
func (lifeCell) NanoStepsPerCycle() int  { return 1 }

func (c lifeCell) Update(acc cell.NeighborhoodAccessor[lifeCell], nanoStep int) lifeCell {
	return c
}

func (c lifeCell) UpdateStreak(acc cell.NeighborhoodAccessor[lifeCell], nanoStep int, out []lifeCell) {
}

func TestCaptureReadsStaticFacts(t *testing.T) {
	var c heatCell
	caps := cell.Capture[heatCell](c)
	assert.Equal(t, 1, caps.Dim())
	assert.False(t, caps.HasTorusAxisN(0))
	assert.Equal(t, 1, caps.HasStencilRadiusR())
	assert.Equal(t, 1, caps.NanoStepsPerCycle())
	assert.False(t, caps.HasStreakUpdate())
}

func TestCaptureDetectsStreakUpdater(t *testing.T) {
	var c lifeCell
	caps := cell.Capture[lifeCell](c)
	assert.True(t, caps.HasTorusAxisN(0))
	assert.True(t, caps.HasTorusAxisN(1))
	assert.False(t, caps.HasTorusAxisN(2))
	assert.True(t, caps.HasStreakUpdate())
}

func TestGridAccessorResolvesOffsetsAgainstCenter(t *testing.T) {
	box := region.NewCoordBox(region.NewCoord(0), region.NewCoord(10))
	g := grid.NewDisplaced[heatCell](box)
	g.Set(region.NewCoord(4), heatCell(1.0))
	g.Set(region.NewCoord(5), heatCell(2.0))
	g.Set(region.NewCoord(6), heatCell(3.0))

	acc := cell.NewGridAccessor[heatCell](g, region.NewCoord(5), region.NewCoord(10))
	assert.Equal(t, heatCell(1.0), acc.At(region.NewCoord(-1)))
	assert.Equal(t, heatCell(2.0), acc.At(region.NewCoord(0)))
	assert.Equal(t, heatCell(3.0), acc.At(region.NewCoord(1)))

	updated := g.At(region.NewCoord(5)).Update(acc, 0)
	assert.InDelta(t, float64(2.0), float64(updated), 1e-9)
}

func TestGridAccessorRecenterReusesAllocation(t *testing.T) {
	box := region.NewCoordBox(region.NewCoord(0), region.NewCoord(10))
	g := grid.NewDisplaced[heatCell](box)
	g.Set(region.NewCoord(0), heatCell(10.0))
	g.Set(region.NewCoord(1), heatCell(20.0))

	acc := cell.NewGridAccessor[heatCell](g, region.NewCoord(0), region.NewCoord(10))
	acc.Recenter(region.NewCoord(1))
	assert.Equal(t, region.NewCoord(1), acc.Center())
	assert.Equal(t, heatCell(10.0), acc.At(region.NewCoord(-1)))
}
