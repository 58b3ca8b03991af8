// Package updategroup implements the Update Group façade (spec.md §4.7):
// composing a decomp.PartitionManager with a stepper.Stepper and the
// patch.SenderLink/ReceiverLink pairs implied by its ghost fragments, following
// original_source/src/parallelization/hiparsimulator/updategroup.h's
// construction order step for step.
package updategroup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/notargets/hiparstencil/cell"
	"github.com/notargets/hiparstencil/decomp"
	"github.com/notargets/hiparstencil/grid"
	"github.com/notargets/hiparstencil/metrics"
	"github.com/notargets/hiparstencil/partition"
	"github.com/notargets/hiparstencil/patch"
	"github.com/notargets/hiparstencil/region"
	"github.com/notargets/hiparstencil/stepper"
	"github.com/notargets/hiparstencil/topology"
)

// Initializer populates a process's grid before the first nano-step
// (spec.md §6's initializer contract).
type Initializer[T cell.Cell[T]] interface {
	GridBox() region.CoordBox
	StartStep() uint64
	MaxSteps() uint64
	Grid(target *grid.Displaced[T])
}

// AllGather collects every rank's own (unexpanded) bounding box, given
// this rank's own box — the collective spec.md §4.7 step 1 calls for
// ("all-gather own bounding box"). LocalAllGather provides an in-process
// implementation for single-process multi-rank harnesses.
type AllGather func(myRank int, own region.CoordBox) ([]region.CoordBox, error)

// LinkKey derives the transport key identifying the link between two
// ranks. The same function must be used by both endpoints of a link.
type LinkKey func(from, to int) string

// Options configures an UpdateGroup beyond the required partition/
// topology/rank/ghost-width quadruple.
type Options[T cell.Cell[T]] struct {
	Transport         patch.Transport
	LinkKey           LinkKey
	ExternalProviders []patch.Provider[T] // registered last, per spec.md §4.7 step 5
	InnerSetAccepters []patch.Accepter[T]
	// Logger receives Partition Manager and Stepper warnings; nil falls
	// back to slog.Default().
	Logger *slog.Logger
	// Metrics records nano-step duration, patch bytes, and dropped-peer
	// counts. A nil Recorder is a safe no-op.
	Metrics *metrics.Recorder
}

// UpdateGroup is the assembled per-process simulation unit: a
// PartitionManager, its Stepper, and the Patch Links the decomposition
// implies.
type UpdateGroup[T cell.Cell[T]] struct {
	pm            *decomp.PartitionManager
	st            *stepper.Stepper[T]
	senderLinks   []*patch.SenderLink[T]
	receiverLinks []*patch.ReceiverLink[T]
	maxNanoStep   uint64
}

// New assembles an UpdateGroup for myRank, following
// original_source/.../updategroup.h's construction order:
//  1. construct the Partition Manager, reset regions, all-gather own
//     bounding box, reset ghost zones;
//  2. build sender Patch Links from non-empty innerGhostFragments,
//     charge at (startStep*N+G, Forever, G), add to the ghost accepter
//     list;
//  3. construct the Stepper with the combined accepter list;
//  4. build receiver Patch Links from non-empty outerGhostFragments,
//     register as GHOST providers after Stepper construction;
//  5. register externally supplied providers last so they can override
//     link-based providers (e.g. replaying saved state).
func New[T cell.Cell[T]](
	simArea region.CoordBox,
	p partition.Partition,
	topo topology.Topology,
	myRank, ghostZoneWidth int,
	init Initializer[T],
	gather AllGather,
	opts Options[T],
) (*UpdateGroup[T], error) {
	var proto T
	n := uint64(proto.NanoStepsPerCycle())

	pm := decomp.New()
	if opts.Logger != nil {
		pm.SetLogger(opts.Logger)
	}
	if opts.Metrics != nil {
		pm.SetMetrics(opts.Metrics)
	}
	if err := pm.ResetRegions(simArea, p, topo, myRank, ghostZoneWidth); err != nil {
		return nil, err
	}

	ownBox := pm.OwnRegion(0).BoundingBox()
	boxes, err := gather(myRank, ownBox)
	if err != nil {
		return nil, fmt.Errorf("updategroup: all-gather bounding boxes: %w", err)
	}
	pm.ResetGhostZones(boxes)

	firstSync := init.StartStep()*n + uint64(ghostZoneWidth)
	sched := patch.Schedule{FirstSync: firstSync, LastSync: patch.Forever, Stride: uint64(ghostZoneWidth)}

	var ghostAccepters []patch.Accepter[T]
	var senderLinks []*patch.SenderLink[T]
	for _, peer := range sortedPeers(pm.InnerGhostFragments()) {
		frag := pm.InnerGhostFragments()[peer][ghostZoneWidth]
		if frag.Empty() {
			continue
		}
		link := patch.NewSenderLink[T](peer, frag, sched, opts.Transport, opts.LinkKey(myRank, peer))
		link.SetMetrics(opts.Metrics)
		senderLinks = append(senderLinks, link)
		ghostAccepters = append(ghostAccepters, link)
	}

	st, err := stepper.New[T](pm, stepper.Config[T]{
		GhostAccepters:    ghostAccepters,
		InnerSetAccepters: opts.InnerSetAccepters,
		Logger:            opts.Logger,
		Metrics:           opts.Metrics,
	}, init.StartStep()*n)
	if err != nil {
		return nil, err
	}

	var ghostProviders []patch.Provider[T]
	var receiverLinks []*patch.ReceiverLink[T]
	for _, peer := range sortedPeers(pm.OuterGhostFragments()) {
		frag := pm.OuterGhostFragments()[peer][ghostZoneWidth]
		if frag.Empty() {
			continue
		}
		link := patch.NewReceiverLink[T](peer, frag, sched, opts.Transport, opts.LinkKey(peer, myRank))
		link.SetMetrics(opts.Metrics)
		receiverLinks = append(receiverLinks, link)
		ghostProviders = append(ghostProviders, link)
	}
	ghostProviders = append(ghostProviders, opts.ExternalProviders...)

	// stepper.New already captured the GhostAccepters slice; the
	// receiver-side providers are appended to the live Stepper field
	// via AttachGhostProviders, mirroring updategroup.h's deferred
	// "receivers registered after construction" step.
	st.AttachGhostProviders(ghostProviders)

	init.Grid(st.Current())

	ug := &UpdateGroup[T]{
		pm:            pm,
		st:            st,
		senderLinks:   senderLinks,
		receiverLinks: receiverLinks,
		maxNanoStep:   init.MaxSteps() * n,
	}
	return ug, nil
}

// sortedPeers returns fragments' peer keys (excluding OUTGROUP) in
// ascending order, so link construction order is deterministic across
// runs regardless of Go's randomized map iteration.
func sortedPeers(fragments map[int][]*region.Region) []int {
	peers := make([]int, 0, len(fragments))
	for peer := range fragments {
		if peer == decomp.Outgroup {
			continue
		}
		peers = append(peers, peer)
	}
	sort.Ints(peers)
	return peers
}

// PartitionManager returns the Update Group's Partition Manager.
func (u *UpdateGroup[T]) PartitionManager() *decomp.PartitionManager { return u.pm }

// Stepper returns the Update Group's Stepper.
func (u *UpdateGroup[T]) Stepper() *stepper.Stepper[T] { return u.st }

// Run advances the stepper to its configured max nano-step count. ctx
// cancels any blocking ghost transport call this process is waiting on;
// RunLocal derives one cancelled group-wide on a sibling rank's fatal
// error, so one rank's transport failure never deadlocks the others
// (spec.md §7/§8 scenario 5).
func (u *UpdateGroup[T]) Run(ctx context.Context) error {
	return u.st.Run(ctx, u.maxNanoStep)
}
