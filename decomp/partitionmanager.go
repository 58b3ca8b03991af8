// Package decomp implements the Partition Manager: given a Partition and
// the local node index, it derives every region the Stepper needs (owned,
// expanded, rim, inner set, and inner/outer ghost fragments per peer).
// It performs pure geometry, no I/O, grounded on
// original_source/src/geometry/partitionmanager.h.
package decomp

import (
	"fmt"
	"log/slog"

	"github.com/notargets/hiparstencil/internal/errs"
	"github.com/notargets/hiparstencil/metrics"
	"github.com/notargets/hiparstencil/partition"
	"github.com/notargets/hiparstencil/region"
	"github.com/notargets/hiparstencil/topology"
)

// Outgroup is the pseudo-peer id used to key the fragment that belongs to
// no identified peer (halo with no owner at this decomposition level).
const Outgroup = -1

// PartitionManager maintains the Regions describing a node's subdomain
// and the inner/outer ghost regions used for halo synchronization with
// neighbors.
type PartitionManager struct {
	partition      partition.Partition
	simArea        region.CoordBox
	topo           topology.Topology
	myRank         int
	ghostZoneWidth int
	boundingBoxes  []region.CoordBox

	regions map[int][]*region.Region // node -> [expansion 0..G]

	outerGhostFragments map[int][]*region.Region // peer -> [0..G]
	innerGhostFragments map[int][]*region.Region // peer -> [0..G]

	ownRims        []*region.Region // [0..G]
	ownInnerSets   []*region.Region // [0..G]
	outerRim       *region.Region
	volatileKernel *region.Region
	innerRim       *region.Region

	logger  *slog.Logger
	metrics *metrics.Recorder
}

// New constructs an empty PartitionManager. Call ResetRegions before use.
func New() *PartitionManager {
	return &PartitionManager{logger: slog.Default()}
}

// SetLogger overrides the logger used for decomposition warnings
// (spec.md §7: a peer whose bounding box overlaps but whose computed
// fragments are empty in both directions is dropped and warned about,
// never treated as fatal). A nil logger falls back to slog.Default().
func (pm *PartitionManager) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	pm.logger = l
}

// SetMetrics attaches a Recorder that counts peers dropped during
// ResetGhostZones. A nil Recorder (the default) is a safe no-op.
func (pm *PartitionManager) SetMetrics(m *metrics.Recorder) {
	pm.metrics = m
}

// ResetRegions installs a new decomposition: the simulation area, the
// Partition describing ownership, the local rank, and the ghost zone
// width G (G >= 1). It performs no I/O.
func (pm *PartitionManager) ResetRegions(simArea region.CoordBox, p partition.Partition, topo topology.Topology, myRank, ghostZoneWidth int) error {
	if simArea.Empty() {
		return &errs.ConfigError{Component: "decomp", Reason: "simulation area is empty"}
	}
	if ghostZoneWidth < 1 {
		return &errs.ConfigError{Component: "decomp", Reason: fmt.Sprintf("ghostZoneWidth must be >= 1, got %d", ghostZoneWidth)}
	}
	weights := p.GetWeights()
	total := 0
	for _, w := range weights {
		total += w
	}
	if total != simArea.Size() {
		return &errs.ConfigError{Component: "decomp", Reason: fmt.Sprintf("partition weights sum to %d, simulation area has %d cells", total, simArea.Size())}
	}

	pm.partition = p
	pm.simArea = simArea
	pm.topo = topo
	pm.myRank = myRank
	pm.ghostZoneWidth = ghostZoneWidth
	pm.regions = map[int][]*region.Region{}
	pm.outerGhostFragments = map[int][]*region.Region{}
	pm.innerGhostFragments = map[int][]*region.Region{}

	pm.fillOwnRegion()
	return nil
}

// adjacency returns the partition's adjacency graph, or nil for lattice
// schemes.
func (pm *PartitionManager) adjacency() region.Adjacency {
	return pm.partition.GetAdjacency()
}

func (pm *PartitionManager) expand(r *region.Region, k int) *region.Region {
	return r.ExpandWithTopology(k, pm.simArea, pm.topo, pm.adjacency())
}

// expandUnclipped mirrors expand but never clips at the simulation
// boundary on non-wrapping axes; used for rim/inner-set classification,
// where proximity to the true domain edge must count the same as
// proximity to a peer (see fillOwnRegion).
func (pm *PartitionManager) expandUnclipped(r *region.Region, k int) *region.Region {
	return r.ExpandUnclipped(k, pm.simArea, pm.topo, pm.adjacency())
}

// fillRegion lazily materializes a node's region expansions 0..G.
func (pm *PartitionManager) fillRegion(node int) {
	if _, ok := pm.regions[node]; ok {
		return
	}
	expansions := make([]*region.Region, pm.ghostZoneWidth+1)
	expansions[0] = pm.partition.GetRegion(node)
	for i := 1; i <= pm.ghostZoneWidth; i++ {
		expansions[i] = pm.expand(expansions[i-1], 1)
	}
	pm.regions[node] = expansions
}

// GetRegion returns node's region expanded by expansionWidth steps,
// materializing it on demand.
func (pm *PartitionManager) GetRegion(node, expansionWidth int) *region.Region {
	pm.fillRegion(node)
	return pm.regions[node][expansionWidth]
}

// OwnRegion returns this process's region at the given expansion width
// (0 = unexpanded).
func (pm *PartitionManager) OwnRegion(expansionWidth int) *region.Region {
	return pm.GetRegion(pm.myRank, expansionWidth)
}

// OwnExpandedRegion returns OwnRegion(G).
func (pm *PartitionManager) OwnExpandedRegion() *region.Region {
	return pm.OwnRegion(pm.ghostZoneWidth)
}

// Rim returns rim[dist]. Rim(G) is the part of the owned region that lies
// within G steps of its surface (the non-owned or off-domain cells next to
// it); each lower dist expands Rim(dist+1) by one more unclipped step, so
// Rim(dist) for dist < G also reaches past the owned region.
func (pm *PartitionManager) Rim(dist int) *region.Region { return pm.ownRims[dist] }

// InnerSet returns the part of the owned region whose dist-step update
// does not depend on any non-owned cell.
func (pm *PartitionManager) InnerSet(dist int) *region.Region { return pm.ownInnerSets[dist] }

// GhostZoneWidth returns G.
func (pm *PartitionManager) GhostZoneWidth() int { return pm.ghostZoneWidth }

// OuterRim returns ownExpandedRegion - ownRegion: the union of all outer
// ghost fragments.
func (pm *PartitionManager) OuterRim() *region.Region { return pm.outerRim }

// VolatileKernel returns the cells in innerSet[G] that lie inside rim(0)
// — the band that may be overwritten while the outer ghost is still
// mid-exchange. See DESIGN.md for the resolution of spec.md §9's open
// question distinguishing this from InnerRim.
func (pm *PartitionManager) VolatileKernel() *region.Region { return pm.volatileKernel }

// InnerRim is innerSet[G-1] ∩ rim(0): the slightly larger band (one
// expansion step wider than VolatileKernel) needed to update the
// process's own rim.
func (pm *PartitionManager) InnerRim() *region.Region { return pm.innerRim }

// Rank returns the local node index.
func (pm *PartitionManager) Rank() int { return pm.myRank }

// Weights returns the partition's weight vector.
func (pm *PartitionManager) Weights() []int { return pm.partition.GetWeights() }

// SimulationArea returns the simulation box's dimensions.
func (pm *PartitionManager) SimulationArea() region.CoordBox { return pm.simArea }

// BoundingBoxes returns the per-rank bounding boxes installed by the last
// ResetGhostZones call.
func (pm *PartitionManager) BoundingBoxes() []region.CoordBox { return pm.boundingBoxes }

func (pm *PartitionManager) fillOwnRegion() {
	pm.fillRegion(pm.myRank)

	own := pm.OwnRegion(0)
	surface := pm.expandUnclipped(own, 1).Difference(own)
	kernel := own.Difference(pm.expandUnclipped(surface, pm.ghostZoneWidth))

	pm.outerRim = pm.OwnExpandedRegion().Difference(own)

	pm.ownRims = make([]*region.Region, pm.ghostZoneWidth+1)
	pm.ownInnerSets = make([]*region.Region, pm.ghostZoneWidth+1)

	pm.ownRims[pm.ghostZoneWidth] = own.Difference(kernel)
	for i := pm.ghostZoneWidth - 1; i >= 0; i-- {
		pm.ownRims[i] = pm.expandUnclipped(pm.ownRims[i+1], 1)
	}

	pm.ownInnerSets[0] = own
	minuend := pm.expandUnclipped(surface, 1)
	for i := 1; i <= pm.ghostZoneWidth; i++ {
		pm.ownInnerSets[i] = pm.ownInnerSets[i-1].Difference(minuend)
		minuend = pm.expandUnclipped(minuend, 1)
	}

	pm.volatileKernel = pm.ownInnerSets[pm.ghostZoneWidth].Intersect(pm.Rim(0))
	if pm.ghostZoneWidth >= 1 {
		pm.innerRim = pm.ownInnerSets[pm.ghostZoneWidth-1].Intersect(pm.Rim(0))
	} else {
		pm.innerRim = pm.volatileKernel
	}
}

// ResetGhostZones takes the per-rank bounding boxes gathered from every
// peer and, for each rank whose box intersects the local expanded region
// and whose regions actually share a ghost fragment, materializes the
// peer's region and records both fragment stacks. It also computes the
// OUTGROUP fragments: whatever halo remains after subtracting every
// identified peer's share.
func (pm *PartitionManager) ResetGhostZones(boundingBoxes []region.CoordBox) {
	pm.boundingBoxes = boundingBoxes
	ownBoundingBox := pm.OwnExpandedRegion().BoundingBox()

	for i, bbox := range boundingBoxes {
		if i == pm.myRank {
			continue
		}
		if !bbox.Intersects(ownBoundingBox) {
			continue
		}
		outerShare := pm.GetRegion(pm.myRank, pm.ghostZoneWidth).Intersect(pm.GetRegion(i, 0))
		innerShare := pm.GetRegion(i, pm.ghostZoneWidth).Intersect(pm.GetRegion(pm.myRank, 0))
		if outerShare.Empty() && innerShare.Empty() {
			warn := &errs.DecompositionWarning{
				Peer:   i,
				Reason: "bounding box overlaps own expanded region but computed fragments are empty in both directions",
			}
			pm.logWarning(warn)
			pm.metrics.IncDroppedPeer()
			continue
		}
		pm.intersect(i)
	}

	outer := pm.outerRim
	inner := pm.Rim(pm.ghostZoneWidth)
	for peer, fragments := range pm.outerGhostFragments {
		if peer == Outgroup {
			continue
		}
		outer = outer.Difference(fragments[pm.ghostZoneWidth])
	}
	for peer, fragments := range pm.innerGhostFragments {
		if peer == Outgroup {
			continue
		}
		inner = inner.Difference(fragments[pm.ghostZoneWidth])
	}

	outerOutgroup := make([]*region.Region, pm.ghostZoneWidth+1)
	innerOutgroup := make([]*region.Region, pm.ghostZoneWidth+1)
	for i := range outerOutgroup {
		outerOutgroup[i] = outer
		innerOutgroup[i] = inner
	}
	pm.outerGhostFragments[Outgroup] = outerOutgroup
	pm.innerGhostFragments[Outgroup] = innerOutgroup
}

func (pm *PartitionManager) logWarning(w *errs.DecompositionWarning) {
	logger := pm.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("decomposition warning", "peer", w.Peer, "reason", w.Reason)
}

func (pm *PartitionManager) intersect(node int) {
	outer := make([]*region.Region, pm.ghostZoneWidth+1)
	inner := make([]*region.Region, pm.ghostZoneWidth+1)
	for i := 0; i <= pm.ghostZoneWidth; i++ {
		outer[i] = pm.GetRegion(pm.myRank, i).Intersect(pm.GetRegion(node, 0))
		inner[i] = pm.GetRegion(pm.myRank, 0).Intersect(pm.GetRegion(node, i))
	}
	pm.outerGhostFragments[node] = outer
	pm.innerGhostFragments[node] = inner
}

// OuterGhostFragments returns peer -> [expansion 0..G] of cells this
// process reads from peer.
func (pm *PartitionManager) OuterGhostFragments() map[int][]*region.Region {
	return pm.outerGhostFragments
}

// InnerGhostFragments returns peer -> [expansion 0..G] of cells this
// process owns that peer reads.
func (pm *PartitionManager) InnerGhostFragments() map[int][]*region.Region {
	return pm.innerGhostFragments
}

// InnerOutgroupGhostFragment returns the innermost-side OUTGROUP
// fragment at full expansion G.
func (pm *PartitionManager) InnerOutgroupGhostFragment() *region.Region {
	frags, ok := pm.innerGhostFragments[Outgroup]
	if !ok {
		return region.NewRegion(pm.simArea.Dim())
	}
	return frags[pm.ghostZoneWidth]
}

// OuterOutgroupGhostFragment returns the outermost-side OUTGROUP
// fragment at full expansion G.
func (pm *PartitionManager) OuterOutgroupGhostFragment() *region.Region {
	frags, ok := pm.outerGhostFragments[Outgroup]
	if !ok {
		return region.NewRegion(pm.simArea.Dim())
	}
	return frags[pm.ghostZoneWidth]
}
