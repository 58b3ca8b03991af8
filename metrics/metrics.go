// Package metrics wires the simulator's observability surface to
// Prometheus, grounded on
// aretw0-trellis/examples/structured-logging/main.go's
// CounterVec/HistogramVec/MustRegister pattern. This is ambient
// observability, not the load-balancing metrics spec.md §1's Non-goals
// excludes: nano-step duration, patch bytes sent/received, and dropped
// peers during decomposition.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the metrics sink the stepper, patch links, and Partition
// Manager report through. A nil *Recorder is a valid no-op sink, so
// every call site can accept one unconditionally without an extra
// "metrics enabled" branch.
type Recorder struct {
	nanoStepDuration *prometheus.HistogramVec
	patchBytesSent   *prometheus.CounterVec
	patchBytesRecv   *prometheus.CounterVec
	droppedPeers     prometheus.Counter
}

// New builds a Recorder and registers its collectors against reg (pass
// prometheus.NewRegistry() for an isolated test registry, or
// prometheus.DefaultRegisterer to expose the process's default
// /metrics handler via promhttp).
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		nanoStepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "hiparstencil_nano_step_duration_seconds",
			Help: "Duration of one nano-step's inner-set and rim kernel passes, by rank.",
		}, []string{"rank"}),
		patchBytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hiparstencil_patch_bytes_sent_total",
			Help: "Bytes sent over patch links, by peer rank.",
		}, []string{"peer"}),
		patchBytesRecv: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hiparstencil_patch_bytes_received_total",
			Help: "Bytes received over patch links, by peer rank.",
		}, []string{"peer"}),
		droppedPeers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hiparstencil_dropped_peers_total",
			Help: "Peers dropped during ghost-zone decomposition because their computed fragments were empty.",
		}),
	}
	reg.MustRegister(r.nanoStepDuration, r.patchBytesSent, r.patchBytesRecv, r.droppedPeers)
	return r
}

// ObserveNanoStep records how long rank's nano-step took.
func (r *Recorder) ObserveNanoStep(rank int, d time.Duration) {
	if r == nil {
		return
	}
	r.nanoStepDuration.WithLabelValues(strconv.Itoa(rank)).Observe(d.Seconds())
}

// AddBytesSent records n bytes shipped to peer.
func (r *Recorder) AddBytesSent(peer int, n int) {
	if r == nil {
		return
	}
	r.patchBytesSent.WithLabelValues(strconv.Itoa(peer)).Add(float64(n))
}

// AddBytesReceived records n bytes received from peer.
func (r *Recorder) AddBytesReceived(peer int, n int) {
	if r == nil {
		return
	}
	r.patchBytesRecv.WithLabelValues(strconv.Itoa(peer)).Add(float64(n))
}

// IncDroppedPeer records one peer dropped during ghost-zone decomposition.
func (r *Recorder) IncDroppedPeer() {
	if r == nil {
		return
	}
	r.droppedPeers.Inc()
}
