package updategroup_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/notargets/hiparstencil/internal/errs"
	"github.com/notargets/hiparstencil/partition"
	"github.com/notargets/hiparstencil/patch"
	"github.com/notargets/hiparstencil/patch/inproc"
	"github.com/notargets/hiparstencil/region"
	"github.com/notargets/hiparstencil/topology"
	"github.com/notargets/hiparstencil/updategroup"
	"github.com/stretchr/testify/require"
)

// faultyTransport wraps an inproc.Transport and fails the Nth Send on a
// single linkKey, leaving every other link untouched.
type faultyTransport struct {
	*inproc.Transport
	failKey   string
	failCount int
	err       error

	mu    sync.Mutex
	calls int
}

func (t *faultyTransport) Send(ctx context.Context, linkKey string, payload []byte) error {
	if linkKey == t.failKey {
		t.mu.Lock()
		t.calls++
		n := t.calls
		t.mu.Unlock()
		if n == t.failCount {
			return t.err
		}
	}
	return t.Transport.Send(ctx, linkKey, payload)
}

// TestTransportFailureAbortsWithoutDeadlock exercises spec.md §8
// scenario 5: a send failure on rank 1's link to rank 2 at step 3 must
// surface as a fatal error naming peer=2, step=3, and every other rank
// must still return rather than hang forever blocked on a Get that will
// now never be satisfied.
func TestTransportFailureAbortsWithoutDeadlock(t *testing.T) {
	const width, ranks = 30, 3
	simArea := region.NewCoordBox(region.NewCoord(0), region.NewCoord(width))
	p, err := partition.NewStriping(simArea, 0, []int{10, 10, 10})
	require.NoError(t, err)

	injected := errors.New("injected link failure")
	transport := &faultyTransport{
		Transport: inproc.New(4),
		failKey:   updategroup.DefaultLinkKey(1, 2),
		failCount: 3,
		err:       injected,
	}

	done := make(chan error, 1)
	go func() {
		done <- updategroup.RunLocal(ranks, func(ctx context.Context, rank int, gather updategroup.AllGather) error {
			init := spikeInitializer{box: simArea, maxSteps: 10}
			ug, buildErr := updategroup.New[diffusionCell](
				simArea, p, topology.NewCube(1), rank, 1, init, gather,
				updategroup.Options[diffusionCell]{
					Transport: transport,
					LinkKey:   updategroup.DefaultLinkKey,
				},
			)
			if buildErr != nil {
				return buildErr
			}
			return ug.Run(ctx)
		})
	}()

	select {
	case runErr := <-done:
		require.Error(t, runErr)
		var te *errs.TransportError
		require.True(t, errors.As(runErr, &te), "expected a *errs.TransportError, got %v", runErr)
		require.Equal(t, 2, te.Peer)
		require.Equal(t, uint64(3), te.Step)
		require.Equal(t, "send", te.Op)
		require.ErrorIs(t, runErr, injected)
	case <-time.After(5 * time.Second):
		t.Fatal("RunLocal did not return: ranks deadlocked on the failed link")
	}
}

var _ patch.Transport = (*faultyTransport)(nil)
