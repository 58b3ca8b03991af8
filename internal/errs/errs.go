// Package errs defines the structured error taxonomy shared across the
// simulator: configuration errors are rejected at construction,
// decomposition warnings are logged and tolerated, transport errors are
// fatal mid-run, and observer errors are recovered by default.
package errs

import "fmt"

// ConfigError reports a rejected construction-time configuration: weights
// that do not cover the simulation box, a ghost zone narrower than the
// stencil radius, or an empty simulation area.
type ConfigError struct {
	Component string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Component, e.Reason)
}

// DecompositionWarning reports a tolerated inconsistency in ghost zone
// bookkeeping: a peer's bounding box overlapped the local expanded region,
// but the computed fragments were empty in both directions. The peer is
// dropped rather than treated as fatal, since bounding boxes are a coarse
// over-approximation of the true region.
type DecompositionWarning struct {
	Peer   int
	Reason string
}

func (e *DecompositionWarning) Error() string {
	return fmt.Sprintf("decomposition warning: peer %d dropped: %s", e.Peer, e.Reason)
}

// TransportError reports a fatal failure exchanging a patch with a peer:
// a send failed, or a receive returned a short or mismatched payload. The
// Stepper surfaces the first one of these as a terminal error.
type TransportError struct {
	Peer int
	Step uint64
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: peer=%d step=%d op=%s: %v", e.Peer, e.Step, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ObserverError reports a writer/steerer callback failure. By default this
// is recovered: the observer is detached and the simulation continues. An
// observer marked Critical instead aborts the run.
type ObserverError struct {
	Observer string
	Step     uint64
	Critical bool
	Err      error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("observer error: %s at step %d: %v", e.Observer, e.Step, e.Err)
}

func (e *ObserverError) Unwrap() error { return e.Err }
