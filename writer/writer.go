// Package writer implements the writer/steerer contract (spec.md §6):
// an INNER_SET patch.Accepter[T] whose callback fires after every
// nano-step matching its declared period, tagging the callback with the
// event that triggered it.
package writer

import (
	"context"
	"fmt"

	"github.com/notargets/hiparstencil/internal/errs"
	"github.com/notargets/hiparstencil/patch"
	"github.com/notargets/hiparstencil/region"
)

// Event classifies why a writer's callback fired.
type Event int

const (
	// EventInitialized marks the very first call, at step 0.
	EventInitialized Event = iota
	// EventPeriodic marks an ordinary period-boundary call.
	EventPeriodic
	// EventAllDone marks the final call, at the simulation's last step.
	EventAllDone
)

func (e Event) String() string {
	switch e {
	case EventInitialized:
		return "initialized"
	case EventAllDone:
		return "allDone"
	default:
		return "periodic"
	}
}

// Callback receives the grid as of step, the region it is valid over,
// the global lattice dimensions, the step itself, the event that
// triggered the call, and lastCall — true exactly once, on the final
// call of the simulation (spec.md §8 scenario 6).
type Callback[T any] func(g patch.GridReader[T], validRegion *region.Region, globalDims region.Coord, step uint64, event Event, lastCall bool)

// PeriodicWriter is the reference Writer/Steerer: an INNER_SET
// patch.Accepter[T] invoked every period nano-steps, from step 0
// through maxSteps inclusive. A writer attached with maxSteps == 0 runs
// indefinitely (never issues EventAllDone).
type PeriodicWriter[T any] struct {
	name     string
	period   uint64
	maxSteps uint64
	cb       Callback[T]

	next     uint64
	detached bool
	critical bool
}

// NewPeriodicWriter builds a PeriodicWriter firing cb every period
// nano-steps starting at step 0, through maxSteps. name identifies the
// writer in logged/wrapped errors. A callback panic is recovered and
// returned from Put as an *errs.ObserverError; if the writer is critical
// (set via MarkCritical) that error aborts the simulation instead of
// detaching the writer.
func NewPeriodicWriter[T any](name string, period, maxSteps uint64, cb Callback[T]) *PeriodicWriter[T] {
	return &PeriodicWriter[T]{name: name, period: period, maxSteps: maxSteps, cb: cb}
}

// MarkCritical overrides spec.md §7's default recovery policy: a callback
// panic in this writer aborts the run instead of detaching it.
func (w *PeriodicWriter[T]) MarkCritical() *PeriodicWriter[T] {
	w.critical = true
	return w
}

// PushRequest implements patch.Accepter[T].
func (w *PeriodicWriter[T]) PushRequest(_ context.Context, step uint64) error {
	if w.detached {
		return fmt.Errorf("writer %s: detached, cannot service step %d", w.name, step)
	}
	if step < w.next {
		return fmt.Errorf("writer %s: oversubscribed schedule: step %d before next required step %d", w.name, step, w.next)
	}
	return nil
}

// Put implements patch.Accepter[T]: it classifies the event for step
// and invokes the configured callback.
func (w *PeriodicWriter[T]) Put(_ context.Context, g patch.GridReader[T], validRegion *region.Region, globalDims region.Coord, step uint64) (err error) {
	lastCall := w.maxSteps > 0 && step >= w.maxSteps
	event := EventPeriodic
	switch {
	case step == 0:
		event = EventInitialized
	case lastCall:
		event = EventAllDone
	}

	defer func() {
		if r := recover(); r != nil {
			err = &errs.ObserverError{Observer: w.name, Step: step, Critical: w.critical, Err: fmt.Errorf("callback panic: %v", r)}
		}
	}()
	w.cb(g, validRegion, globalDims, step, event, lastCall)

	if lastCall {
		w.detached = true
		return nil
	}
	w.next += w.period
	return nil
}

// NextRequiredNanoStep implements patch.Accepter[T]. Once detached
// (its final call has fired), it reports an unreachable step so the
// Stepper's observer heap never selects it again.
func (w *PeriodicWriter[T]) NextRequiredNanoStep() uint64 {
	if w.detached {
		return ^uint64(0)
	}
	return w.next
}
