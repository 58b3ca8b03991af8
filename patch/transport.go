package patch

import "context"

// Transport is the pluggable physical wire transport spec.md describes:
// "specified only by its send/receive contract." It moves opaque,
// already-encoded message bytes between one sender and one receiver,
// reliably and in FIFO order per linkKey (spec.md §5's "messages on one
// link between the same pair of processes are delivered in the order
// they were sent"). Encoding/decoding is Link's job, not Transport's.
type Transport interface {
	// Send ships payload on the link named linkKey.
	Send(ctx context.Context, linkKey string, payload []byte) error
	// Receive blocks until the next payload on linkKey is available.
	Receive(ctx context.Context, linkKey string) ([]byte, error)
}
