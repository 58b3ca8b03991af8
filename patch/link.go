package patch

import (
	"context"
	"fmt"

	"github.com/notargets/hiparstencil/internal/errs"
	"github.com/notargets/hiparstencil/metrics"
	"github.com/notargets/hiparstencil/region"
)

// scheduleCursor tracks the next step a Schedule requires service at,
// and rejects service requests that arrive after that step has passed
// (spec.md §4.6: "oversubscribed schedules... must be rejected at
// pushRequest").
type scheduleCursor struct {
	sched Schedule
	next  uint64
}

func newScheduleCursor(s Schedule) *scheduleCursor {
	return &scheduleCursor{sched: s, next: s.FirstSync}
}

func (c *scheduleCursor) pushRequest(step uint64) error {
	if step < c.next {
		return fmt.Errorf("patch: oversubscribed schedule: step %d requested before next required step %d", step, c.next)
	}
	return nil
}

func (c *scheduleCursor) nextRequiredNanoStep() uint64 { return c.next }

func (c *scheduleCursor) advance(step uint64) {
	if step != c.next {
		return
	}
	if c.sched.LastSync != Forever && c.next >= c.sched.LastSync {
		return
	}
	stride := c.sched.Stride
	if stride == 0 {
		stride = 1
	}
	c.next += stride
}

// SenderLink is the sending half of a Patch Link (spec.md §4.5):
// implements Accepter[T] by serializing region's cells, in canonical
// streak order, into the wire format and shipping them to peerRank
// over transport.
type SenderLink[T any] struct {
	peerRank    int
	region      *region.Region
	fingerprint uint64
	transport   Transport
	linkKey     string
	cursor      *scheduleCursor
	metrics     *metrics.Recorder
}

// NewSenderLink builds a SenderLink shipping region's cells to peerRank
// over transport, charged per sched.
func NewSenderLink[T any](peerRank int, r *region.Region, sched Schedule, transport Transport, linkKey string) *SenderLink[T] {
	return &SenderLink[T]{
		peerRank:    peerRank,
		region:      r,
		fingerprint: Fingerprint(r),
		transport:   transport,
		linkKey:     linkKey,
		cursor:      newScheduleCursor(sched),
	}
}

// SetMetrics attaches a Recorder counting bytes shipped over this link.
// A nil Recorder (the default) is a safe no-op.
func (l *SenderLink[T]) SetMetrics(m *metrics.Recorder) { l.metrics = m }

// PeerRank returns the rank this link sends to.
func (l *SenderLink[T]) PeerRank() int { return l.peerRank }

// Region returns the region this link ships.
func (l *SenderLink[T]) Region() *region.Region { return l.region }

// PushRequest implements Accepter[T].
func (l *SenderLink[T]) PushRequest(_ context.Context, step uint64) error {
	return l.cursor.pushRequest(step)
}

// NextRequiredNanoStep implements Accepter[T].
func (l *SenderLink[T]) NextRequiredNanoStep() uint64 { return l.cursor.nextRequiredNanoStep() }

// Put implements Accepter[T]: it reads this link's region out of g and
// ships it to the peer.
func (l *SenderLink[T]) Put(ctx context.Context, g GridReader[T], validRegion *region.Region, globalDims region.Coord, step uint64) error {
	var payload []T
	l.region.Each(func(s region.Streak) bool {
		payload = append(payload, g.GetStreak(s, nil)...)
		return true
	})
	msg := wireMessage[T]{
		Step:              step,
		PeerRank:          uint32(l.peerRank),
		RegionFingerprint: l.fingerprint,
		NCells:            uint32(len(payload)),
		Payload:           payload,
	}
	b, err := encodeMessage(msg)
	if err != nil {
		return &errs.TransportError{Peer: l.peerRank, Step: step, Op: "encode", Err: err}
	}
	if err := l.transport.Send(ctx, l.linkKey, b); err != nil {
		return &errs.TransportError{Peer: l.peerRank, Step: step, Op: "send", Err: err}
	}
	l.metrics.AddBytesSent(l.peerRank, len(b))
	l.cursor.advance(step)
	return nil
}

// ReceiverLink is the receiving half of a Patch Link (spec.md §4.5):
// implements Provider[T] by blocking for the next message on transport
// and writing its payload into the region it expects.
type ReceiverLink[T any] struct {
	peerRank    int
	region      *region.Region
	fingerprint uint64
	transport   Transport
	linkKey     string
	cursor      *scheduleCursor
	metrics     *metrics.Recorder
}

// NewReceiverLink builds a ReceiverLink expecting region's cells from
// peerRank over transport, charged per sched.
func NewReceiverLink[T any](peerRank int, r *region.Region, sched Schedule, transport Transport, linkKey string) *ReceiverLink[T] {
	return &ReceiverLink[T]{
		peerRank:    peerRank,
		region:      r,
		fingerprint: Fingerprint(r),
		transport:   transport,
		linkKey:     linkKey,
		cursor:      newScheduleCursor(sched),
	}
}

// SetMetrics attaches a Recorder counting bytes received over this link.
// A nil Recorder (the default) is a safe no-op.
func (l *ReceiverLink[T]) SetMetrics(m *metrics.Recorder) { l.metrics = m }

// PeerRank returns the rank this link receives from.
func (l *ReceiverLink[T]) PeerRank() int { return l.peerRank }

// Region returns the region this link expects.
func (l *ReceiverLink[T]) Region() *region.Region { return l.region }

// PushRequest implements the scheduling half of Provider's contract,
// mirroring Accepter so the Stepper can treat link registration
// uniformly; see stepper.Stepper.
func (l *ReceiverLink[T]) PushRequest(_ context.Context, step uint64) error {
	return l.cursor.pushRequest(step)
}

// NextRequiredNanoStep mirrors Accepter's method for the receive side.
func (l *ReceiverLink[T]) NextRequiredNanoStep() uint64 { return l.cursor.nextRequiredNanoStep() }

// Get implements Provider[T]: it blocks for the next message on
// transport, validates its fingerprint against this link's expected
// region, and writes the payload into g. wait is not consulted: Get
// always blocks on transport's Receive.
func (l *ReceiverLink[T]) Get(ctx context.Context, g GridWriter[T], validRegion *region.Region, globalDims region.Coord, step uint64, wait bool) error {
	b, err := l.transport.Receive(ctx, l.linkKey)
	if err != nil {
		return &errs.TransportError{Peer: l.peerRank, Step: step, Op: "receive", Err: err}
	}
	msg, err := decodeMessage[T](b)
	if err != nil {
		return &errs.TransportError{Peer: l.peerRank, Step: step, Op: "decode", Err: err}
	}
	if msg.RegionFingerprint != l.fingerprint {
		return &errs.TransportError{
			Peer: l.peerRank, Step: step, Op: "verify",
			Err: fmt.Errorf("region fingerprint mismatch: got %x want %x", msg.RegionFingerprint, l.fingerprint),
		}
	}
	if int(msg.NCells) != len(msg.Payload) {
		return &errs.TransportError{
			Peer: l.peerRank, Step: step, Op: "verify",
			Err: fmt.Errorf("short payload: header declares %d cells, got %d", msg.NCells, len(msg.Payload)),
		}
	}
	offset := 0
	l.region.Each(func(s region.Streak) bool {
		n := s.Length()
		g.SetStreak(s, msg.Payload[offset:offset+n])
		offset += n
		return true
	})
	l.metrics.AddBytesReceived(l.peerRank, len(b))
	l.cursor.advance(step)
	return nil
}
