package updategroup

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/hiparstencil/region"
)

// LocalAllGather is an in-process AllGather implementation for
// single-process multi-rank harnesses (test suites and the CLI's local
// run mode): every rank blocks on a shared barrier until all ranks have
// reported their own bounding box.
type LocalAllGather struct {
	mu      sync.Mutex
	cond    *sync.Cond
	boxes   []region.CoordBox
	arrived int
	epoch   int
}

// NewLocalAllGather builds a barrier for the given number of ranks.
func NewLocalAllGather(ranks int) *LocalAllGather {
	h := &LocalAllGather{boxes: make([]region.CoordBox, ranks)}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Gather implements AllGather: it is safe to call concurrently, once per
// rank, from each rank's own goroutine.
func (h *LocalAllGather) Gather(myRank int, own region.CoordBox) ([]region.CoordBox, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.boxes[myRank] = own
	h.arrived++
	epoch := h.epoch
	if h.arrived == len(h.boxes) {
		h.epoch++
		h.arrived = 0
		h.cond.Broadcast()
	} else {
		for epoch == h.epoch {
			h.cond.Wait()
		}
	}

	out := make([]region.CoordBox, len(h.boxes))
	copy(out, h.boxes)
	return out, nil
}

// DefaultLinkKey builds a transport link key from a from/to rank pair,
// suitable for both patch/inproc and patch/redistransport.
func DefaultLinkKey(from, to int) string {
	return rankKey(from) + "->" + rankKey(to)
}

func rankKey(rank int) string {
	return fmt.Sprintf("rank%d", rank)
}

// RunLocal builds and drives one UpdateGroup per rank in its own
// goroutine, using golang.org/x/sync/errgroup's WithContext form (the
// pack's own idiom for coordinated concurrent work with first-error
// cancellation) so a fatal error on any rank cancels the ctx passed to
// every other rank's build func, unblocking a sibling stuck in a
// blocking Get/Receive on a link that will now never complete rather
// than deadlocking the whole group (spec.md §7/§8 scenario 5). build is
// expected to construct an UpdateGroup for rank using gather for its
// all-gather step and call Run(ctx) on it.
func RunLocal(ranks int, build func(ctx context.Context, rank int, gather AllGather) error) error {
	gather := NewLocalAllGather(ranks)
	eg, ctx := errgroup.WithContext(context.Background())
	for r := 0; r < ranks; r++ {
		rank := r
		eg.Go(func() error {
			return build(ctx, rank, gather.Gather)
		})
	}
	return eg.Wait()
}
