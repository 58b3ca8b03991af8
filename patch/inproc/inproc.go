// Package inproc implements patch.Transport over Go channels, for
// single-process multi-rank test harnesses and the example CLI (spec.md
// §2.7/SPEC_FULL.md §2.7): every process in the harness runs in its own
// goroutine and links address each other by the same linkKey strings a
// real multi-process deployment would use with redistransport.
package inproc

import (
	"context"
	"sync"
)

// Transport is a channel-based patch.Transport: every linkKey gets its
// own buffered channel, created lazily on first use. Go's channel
// semantics give FIFO-per-key delivery for free.
type Transport struct {
	mu      sync.Mutex
	chans   map[string]chan []byte
	bufSize int
}

// New builds an inproc Transport. bufSize bounds how many messages may
// be in flight on a single link before Send blocks.
func New(bufSize int) *Transport {
	return &Transport{chans: make(map[string]chan []byte), bufSize: bufSize}
}

func (t *Transport) channel(linkKey string) chan []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.chans[linkKey]
	if !ok {
		ch = make(chan []byte, t.bufSize)
		t.chans[linkKey] = ch
	}
	return ch
}

// Send implements patch.Transport.
func (t *Transport) Send(ctx context.Context, linkKey string, payload []byte) error {
	select {
	case t.channel(linkKey) <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive implements patch.Transport.
func (t *Transport) Receive(ctx context.Context, linkKey string) ([]byte, error) {
	select {
	case b := <-t.channel(linkKey):
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
