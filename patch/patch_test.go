package patch_test

import (
	"context"
	"testing"

	"github.com/notargets/hiparstencil/grid"
	"github.com/notargets/hiparstencil/patch"
	"github.com/notargets/hiparstencil/patch/inproc"
	"github.com/notargets/hiparstencil/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowRegion(t *testing.T, lo, hi int) *region.Region {
	t.Helper()
	r := region.NewRegion(1)
	r.Insert(region.NewStreak(region.NewCoord(lo), hi))
	return r
}

func TestFingerprintIsDeterministicAndSensitiveToShape(t *testing.T) {
	a := rowRegion(t, 0, 5)
	b := rowRegion(t, 0, 5)
	c := rowRegion(t, 0, 6)

	assert.Equal(t, patch.Fingerprint(a), patch.Fingerprint(b))
	assert.NotEqual(t, patch.Fingerprint(a), patch.Fingerprint(c))
}

func TestSenderReceiverRoundTripOverInproc(t *testing.T) {
	tr := inproc.New(1)
	r := rowRegion(t, 2, 6)
	sched := patch.Schedule{FirstSync: 2, LastSync: patch.Forever, Stride: 2}

	sender := patch.NewSenderLink[float64](1, r, sched, tr, "rank0->rank1")
	receiver := patch.NewReceiverLink[float64](0, r, sched, tr, "rank0->rank1")

	src := grid.NewDisplaced[float64](region.NewCoordBox(region.NewCoord(0), region.NewCoord(10)))
	for i := 2; i < 6; i++ {
		src.Set(region.NewCoord(i), float64(i)*1.5)
	}
	dst := grid.NewDisplaced[float64](region.NewCoordBox(region.NewCoord(0), region.NewCoord(10)))

	ctx := context.Background()
	require.NoError(t, sender.PushRequest(ctx, 2))
	require.NoError(t, sender.Put(ctx, src, nil, region.NewCoord(10), 2))

	require.NoError(t, receiver.Get(ctx, dst, nil, region.NewCoord(10), 2, true))

	for i := 2; i < 6; i++ {
		assert.Equal(t, src.At(region.NewCoord(i)), dst.At(region.NewCoord(i)))
	}
	assert.Equal(t, uint64(4), sender.NextRequiredNanoStep())
}

func TestReceiverRejectsMismatchedFingerprint(t *testing.T) {
	tr := inproc.New(1)
	sendRegion := rowRegion(t, 0, 4)
	recvRegion := rowRegion(t, 0, 5)
	sched := patch.Schedule{FirstSync: 0, LastSync: patch.Forever, Stride: 1}

	sender := patch.NewSenderLink[int](1, sendRegion, sched, tr, "x")
	receiver := patch.NewReceiverLink[int](0, recvRegion, sched, tr, "x")

	src := grid.NewDisplaced[int](region.NewCoordBox(region.NewCoord(0), region.NewCoord(10)))
	dst := grid.NewDisplaced[int](region.NewCoordBox(region.NewCoord(0), region.NewCoord(10)))

	ctx := context.Background()
	require.NoError(t, sender.Put(ctx, src, nil, region.NewCoord(10), 0))
	err := receiver.Get(ctx, dst, nil, region.NewCoord(10), 0, true)
	require.Error(t, err)
}

func TestPushRequestRejectsOversubscribedSchedule(t *testing.T) {
	tr := inproc.New(1)
	r := rowRegion(t, 0, 4)
	sched := patch.Schedule{FirstSync: 4, LastSync: patch.Forever, Stride: 4}
	sender := patch.NewSenderLink[int](1, r, sched, tr, "x")

	ctx := context.Background()
	assert.Error(t, sender.PushRequest(ctx, 0))
	assert.NoError(t, sender.PushRequest(ctx, 4))
}
