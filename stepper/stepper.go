// Package stepper implements the nano-step update cycle (spec.md §4.6):
// interleaving kernel updates over a process's inner-set and rim regions
// with ghost-zone exchange at step boundaries, plus INNER_SET observer
// dispatch scheduled through a min-heap keyed by nextRequiredNanoStep
// (spec.md §9's design note). Grounded on
// original_source/src/parallelization/hiparsimulator/updategroup.h's
// drive loop and the teacher's own device-memory CopyFrom idiom
// (runner/kernel_copy.go) for the current/next ping-pong buffers.
package stepper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/notargets/hiparstencil/cell"
	"github.com/notargets/hiparstencil/decomp"
	"github.com/notargets/hiparstencil/grid"
	"github.com/notargets/hiparstencil/internal/errs"
	"github.com/notargets/hiparstencil/metrics"
	"github.com/notargets/hiparstencil/patch"
	"github.com/notargets/hiparstencil/region"
)

// Config bundles the patch slots a Stepper is constructed with (spec.md
// §4.7 step 3: "construct the Stepper with the combined accepter list").
// GhostAccepters/GhostProviders drive halo exchange at step boundaries;
// InnerSetAccepters are user observers (writers/steerers) fired whenever
// their own schedule comes due.
type Config[T cell.Cell[T]] struct {
	GhostAccepters    []patch.Accepter[T]
	GhostProviders    []patch.Provider[T]
	InnerSetAccepters []patch.Accepter[T]
	// Logger receives warnings for detached observers (spec.md §7);
	// nil falls back to slog.Default().
	Logger *slog.Logger
	// Metrics records nano-step duration. A nil Recorder is a safe no-op.
	Metrics *metrics.Recorder
}

// Stepper drives one process's subdomain forward nano-step by nano-step.
// It owns its two grids exclusively (spec.md §4.6's Stepper state); links
// and observers never hold a grid reference, only a region and a
// transport handle (spec.md §9's cyclic-ownership design note).
type Stepper[T cell.Cell[T]] struct {
	pm   *decomp.PartitionManager
	caps cell.Capabilities

	current *grid.Displaced[T]
	next    *grid.Displaced[T]
	acc     *cell.GridAccessor[T]

	globalDims region.Coord
	validOwn   *region.Region

	ghostZoneWidth int
	nanoStep       uint64

	ghostAccepters    []patch.Accepter[T]
	ghostProviders    []patch.Provider[T]
	innerSetObservers *observerHeap[T]

	logger  *slog.Logger
	metrics *metrics.Recorder
}

// New constructs a Stepper over pm's decomposition. startNanoStep is the
// nano-step counter's initial value (normally startStep*N, see the
// updategroup package). Returns a *errs.ConfigError if the ghost zone
// width is narrower than the cell type's stencil radius.
func New[T cell.Cell[T]](pm *decomp.PartitionManager, cfg Config[T], startNanoStep uint64) (*Stepper[T], error) {
	var proto T
	caps := cell.Capture[T](proto)
	g := pm.GhostZoneWidth()
	if g < caps.HasStencilRadiusR() {
		return nil, &errs.ConfigError{
			Component: "stepper",
			Reason:    "ghost zone width is narrower than the cell type's stencil radius",
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	box := pm.OwnExpandedRegion().BoundingBox()
	s := &Stepper[T]{
		pm:                pm,
		caps:              caps,
		current:           grid.NewDisplaced[T](box),
		next:              grid.NewDisplaced[T](box),
		globalDims:        pm.SimulationArea().Dimensions,
		validOwn:          pm.OwnRegion(0),
		ghostZoneWidth:    g,
		nanoStep:          startNanoStep,
		ghostAccepters:    cfg.GhostAccepters,
		ghostProviders:    cfg.GhostProviders,
		innerSetObservers: newObserverHeap[T](),
		logger:            logger,
		metrics:           cfg.Metrics,
	}
	s.acc = cell.NewGridAccessor[T](s.current, make(region.Coord, s.globalDims.Dim()), s.globalDims)

	for _, a := range cfg.InnerSetAccepters {
		if err := a.PushRequest(context.Background(), a.NextRequiredNanoStep()); err != nil {
			return nil, err
		}
		s.innerSetObservers.push(a, a.NextRequiredNanoStep())
	}

	return s, nil
}

// AttachGhostProviders appends providers to the Stepper's GHOST provider
// list. Exists because spec.md §4.7 step 4 registers receiver links as
// GHOST providers only after the Stepper is constructed: the stepper's
// initial self-update populates the inner halo senders ship, and
// receivers only matter starting at the next sync.
func (s *Stepper[T]) AttachGhostProviders(providers []patch.Provider[T]) {
	s.ghostProviders = append(s.ghostProviders, providers...)
}

// Current returns the grid holding the process's state at the current
// nano-step, for an Initializer (spec.md §6) to populate before the
// first Step call.
func (s *Stepper[T]) Current() *grid.Displaced[T] { return s.current }

// NanoStep returns the current nano-step counter.
func (s *Stepper[T]) NanoStep() uint64 { return s.nanoStep }

// Step advances the stepper by one nano-step (spec.md §4.6's update
// cycle): at a sync point, the ghost drain first; then the inner-set
// pass and the rim pass; then the ghost feed when the next nano-step is
// a sync point; and finally dispatch of every INNER_SET observer due at
// this nano-step, whether or not it is a sync point. ctx governs any blocking
// ghost transport call; cancelling it (e.g. a sibling rank's fatal
// transport error) unblocks a drain waiting on a peer that will never
// send, rather than deadlocking the run (spec.md §7/§8 scenario 5).
func (s *Stepper[T]) Step(ctx context.Context) error {
	g := uint64(s.ghostZoneWidth)

	// Drain: a sync point's ghost data must be in current before this
	// nano-step's rim pass reads it, so this runs before the kernel
	// passes rather than after (the last outer-ghost exchange at
	// nanoStep must have landed by the time rim[G-1] is computed here).
	if s.nanoStep%g == 0 {
		for _, p := range s.ghostProviders {
			if !providerDue(p, s.nanoStep) {
				continue
			}
			if err := p.Get(ctx, s.current, s.validOwn, s.globalDims, s.nanoStep, true); err != nil {
				return err
			}
		}
	}

	start := time.Now()
	k := s.ghostZoneWidth - int(s.nanoStep%g) - 1
	s.next.CopyFrom(s.current)
	s.applyPass(s.pm.InnerSet(k))
	s.applyPass(s.pm.Rim(k))
	s.metrics.ObserveNanoStep(s.pm.Rank(), time.Since(start))

	// Feed: ship the inner ghost fragment just computed one nano-step
	// ahead of the sync point it serves, so every rank's send for that
	// point is already in flight (fire-and-forget, per spec.md §5)
	// before any rank's corresponding drain blocks on it.
	if syncPoint := s.nanoStep + 1; syncPoint%g == 0 {
		for _, a := range s.ghostAccepters {
			if a.NextRequiredNanoStep() != syncPoint {
				continue
			}
			if err := a.PushRequest(ctx, syncPoint); err != nil {
				return err
			}
			if err := a.Put(ctx, s.next, s.validOwn, s.globalDims, syncPoint); err != nil {
				return err
			}
		}
	}

	if err := s.fireInnerSetObservers(ctx); err != nil {
		return err
	}

	s.current, s.next = s.next, s.current
	s.acc = cell.NewGridAccessor[T](s.current, make(region.Coord, s.globalDims.Dim()), s.globalDims)
	s.nanoStep++
	return nil
}

// providerDue reports whether p expects service at step. Providers that
// don't track a schedule (an ExternalProvider with no internal cursor)
// are treated as always due at a boundary.
func providerDue(p any, step uint64) bool {
	if sr, ok := p.(interface{ NextRequiredNanoStep() uint64 }); ok {
		return sr.NextRequiredNanoStep() == step
	}
	return true
}

// Run advances the stepper until its nano-step counter reaches target,
// stopping immediately on the first error (spec.md §7: a transport error
// or kernel error aborts the stepper; partial work before the failing
// nano-step stands as-is).
func (s *Stepper[T]) Run(ctx context.Context, target uint64) error {
	for s.nanoStep < target {
		if err := s.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stepper[T]) applyPass(r *region.Region) {
	if r == nil || r.Empty() {
		return
	}
	nanoStep := int(s.nanoStep)
	r.Each(func(st region.Streak) bool {
		if s.caps.HasStreakUpdate() {
			s.applyStreak(st, nanoStep)
		} else {
			s.applyScalar(st, nanoStep)
		}
		return true
	})
}

func (s *Stepper[T]) applyStreak(st region.Streak, nanoStep int) {
	origin := st.Origin
	val := s.current.At(origin)
	su := any(val).(cell.StreakUpdater[T])
	s.acc.Recenter(origin)
	out := make([]T, st.Length())
	su.UpdateStreak(s.acc, nanoStep, out)
	s.next.SetStreak(st, out)
}

func (s *Stepper[T]) applyScalar(st region.Streak, nanoStep int) {
	c := st.Origin.Clone()
	for x := st.Origin.X(); x < st.EndX; x++ {
		c[0] = x
		val := s.current.At(c)
		s.acc.Recenter(c)
		s.next.Set(c, val.Update(s.acc, nanoStep))
	}
}

// fireInnerSetObservers dispatches every due INNER_SET observer. Per
// spec.md §7, an observer error is recovered by default: the observer
// is detached (not re-queued) and a warning is logged, and the run
// continues. An observer that returns an *errs.ObserverError with
// Critical set instead aborts the run.
func (s *Stepper[T]) fireInnerSetObservers(ctx context.Context) error {
	for s.innerSetObservers.Len() > 0 && s.innerSetObservers.peekNext() == s.nanoStep {
		entry := s.innerSetObservers.pop()
		critical, err := s.fireObserver(ctx, entry.accepter)
		switch {
		case err != nil && critical:
			return err
		case err != nil:
			// detached: swallow and do not re-queue
		default:
			s.innerSetObservers.push(entry.accepter, entry.accepter.NextRequiredNanoStep())
		}
	}
	return nil
}

func (s *Stepper[T]) fireObserver(ctx context.Context, a patch.Accepter[T]) (critical bool, err error) {
	step := s.nanoStep
	if err := a.PushRequest(ctx, step); err != nil {
		return s.observerFailed(step, err)
	}
	if err := a.Put(ctx, s.current, s.validOwn, s.globalDims, step); err != nil {
		return s.observerFailed(step, err)
	}
	return false, nil
}

func (s *Stepper[T]) observerFailed(step uint64, err error) (critical bool, outErr error) {
	var oe *errs.ObserverError
	if errors.As(err, &oe) && oe.Critical {
		return true, oe
	}
	s.logger.Warn("observer detached after error", "step", step, "err", err)
	return false, err
}
