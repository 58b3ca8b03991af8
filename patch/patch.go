// Package patch implements the Patch Accepter/Provider/Link contract
// (spec.md §4.5): the unit of data motion between a Stepper and either a
// peer process's matching Link or an external observer such as a writer.
// Grounded on original_source/src/parallelization/hiparsimulator's
// ghost-zone synchronization via sender/receiver patch pairs charged on
// a fixed step schedule.
package patch

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/notargets/hiparstencil/region"
)

// Forever marks a Schedule with no LastSync bound.
const Forever = ^uint64(0)

// Schedule charges a Link with the steps at which it fires:
// {FirstSync + k*Stride : k ∈ ℕ, <= LastSync}, per spec.md §4.5.
type Schedule struct {
	FirstSync uint64
	LastSync  uint64
	Stride    uint64
}

// GridReader is the read side of the grid a SenderLink/INNER_SET
// accepter copies cells out of. Satisfied by *grid.Displaced[T].
type GridReader[T any] interface {
	GetStreak(s region.Streak, dst []T) []T
}

// GridWriter is the write side of the grid a ReceiverLink copies cells
// into. Satisfied by *grid.Displaced[T].
type GridWriter[T any] interface {
	SetStreak(s region.Streak, vals []T)
}

// Accepter consumes a patch of cells from a grid once it has been
// updated to a given step (spec.md §4.5). Implemented by SenderLink and
// by writer/steerer observers (package writer).
type Accepter[T any] interface {
	// PushRequest records that the stepper will call Put at step.
	// Returns an error if step lies before the next required step
	// (spec.md §4.6's oversubscribed-schedule failure case).
	PushRequest(ctx context.Context, step uint64) error
	// Put is called after validRegion of g has been updated to step;
	// the accepter copies/ships the cells of its configured region. ctx
	// governs any blocking transport call and is cancelled group-wide
	// the moment any rank hits a fatal transport error (spec.md §7's
	// "no deadlock" requirement).
	Put(ctx context.Context, g GridReader[T], validRegion *region.Region, globalDims region.Coord, step uint64) error
	// NextRequiredNanoStep is the next step at which the stepper must
	// call Put.
	NextRequiredNanoStep() uint64
}

// Provider fills a grid with cells of its configured region (spec.md
// §4.5). Implemented by ReceiverLink.
type Provider[T any] interface {
	// Get fills g with this provider's region, blocking for data if
	// wait is true. ctx cancels the blocking wait.
	Get(ctx context.Context, g GridWriter[T], validRegion *region.Region, globalDims region.Coord, step uint64, wait bool) error
}

// wireMessage is the on-the-wire patch message (spec.md §6): step, peer
// rank, a fingerprint of the region the payload covers, the cell count,
// and the payload itself in canonical streak order.
type wireMessage[T any] struct {
	Step              uint64
	PeerRank          uint32
	RegionFingerprint uint64
	NCells            uint32
	Payload           []T
}

// Fingerprint computes a deterministic hash of a region's streak
// sequence, used only for debug assertions: a receiver validates an
// incoming message's fingerprint equals its own expected fragment's.
func Fingerprint(r *region.Region) uint64 {
	h := xxhash.New()
	var scratch [8]byte
	r.Each(func(s region.Streak) bool {
		for _, v := range s.Origin {
			binary.LittleEndian.PutUint64(scratch[:], uint64(int64(v)))
			h.Write(scratch[:])
		}
		binary.LittleEndian.PutUint64(scratch[:], uint64(int64(s.EndX)))
		h.Write(scratch[:])
		return true
	})
	return h.Sum64()
}

func encodeMessage[T any](m wireMessage[T]) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("patch: encode message: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeMessage[T any](b []byte) (wireMessage[T], error) {
	var m wireMessage[T]
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&m); err != nil {
		return m, fmt.Errorf("patch: decode message: %w", err)
	}
	return m, nil
}
