package checkpoint_test

import (
	"bytes"
	"testing"

	"github.com/notargets/hiparstencil/checkpoint"
	"github.com/notargets/hiparstencil/grid"
	"github.com/notargets/hiparstencil/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTripsBitExact(t *testing.T) {
	box := region.NewCoordBox(region.NewCoord(0), region.NewCoord(10))
	g := grid.NewDisplaced[float64](box)

	owned := region.NewRegion(1)
	owned.Insert(region.NewStreak(region.NewCoord(0), 4))
	owned.Insert(region.NewStreak(region.NewCoord(6), 10))

	owned.Each(func(s region.Streak) bool {
		vals := make([]float64, s.Length())
		for i := range vals {
			vals[i] = float64(s.Origin.X() + i)
		}
		g.SetStreak(s, vals)
		return true
	})

	hdr := checkpoint.Header{
		GlobalDims: region.NewCoord(10),
		Step:       42,
		MaxSteps:   100,
		WireFormat: "float64",
	}

	var buf bytes.Buffer
	require.NoError(t, checkpoint.Save[float64](&buf, hdr, owned, g))

	loadedInto := grid.NewDisplaced[float64](box)
	gotHdr, gotRegion, err := checkpoint.Load[float64](&buf, loadedInto)
	require.NoError(t, err)

	assert.Equal(t, hdr, gotHdr)
	assert.Equal(t, owned.Size(), gotRegion.Size())

	owned.EachPoint(func(c region.Coord) bool {
		assert.Equal(t, g.At(c), loadedInto.At(c), "cell %v", c)
		return true
	})
}

func TestLoadRejectsTruncatedStream(t *testing.T) {
	box := region.NewCoordBox(region.NewCoord(0), region.NewCoord(4))
	g := grid.NewDisplaced[float64](box)
	owned := region.NewRegion(1)
	owned.Insert(region.NewStreak(region.NewCoord(0), 4))
	g.SetStreak(owned.Streaks()[0], []float64{1, 2, 3, 4})

	hdr := checkpoint.Header{GlobalDims: region.NewCoord(4), WireFormat: "float64"}

	var buf bytes.Buffer
	require.NoError(t, checkpoint.Save[float64](&buf, hdr, owned, g))

	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-2])
	_, _, err := checkpoint.Load[float64](truncated, grid.NewDisplaced[float64](box))
	assert.Error(t, err)
}
