// Package redistransport implements patch.Transport over Redis lists:
// Send is RPUSH, Receive is BLPOP, which gives the "reliable, FIFO-
// ordered per pair of processes" guarantee spec.md §5 requires for free
// from Redis list semantics, grounded on the teacher pack's go-redis
// store adapters (e.g. a Redis-backed key/value store using
// github.com/redis/go-redis/v9's functional-options constructor
// pattern).
package redistransport

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Transport is a Redis-list-backed patch.Transport.
type Transport struct {
	client       *redis.Client
	prefix       string
	blockTimeout time.Duration
}

// Option configures a Transport.
type Option func(*Transport)

// WithPrefix overrides the default "hiparstencil:link:" key prefix.
func WithPrefix(prefix string) Option {
	return func(t *Transport) { t.prefix = prefix }
}

// WithBlockTimeout bounds how long Receive waits for a message before
// returning an error. Zero (the default) blocks indefinitely, matching
// spec.md §5's "get blocks until the matching message is available."
func WithBlockTimeout(d time.Duration) Option {
	return func(t *Transport) { t.blockTimeout = d }
}

// New builds a Transport over an existing Redis client.
func New(client *redis.Client, opts ...Option) *Transport {
	t := &Transport{client: client, prefix: "hiparstencil:link:"}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) key(linkKey string) string { return t.prefix + linkKey }

// Send implements patch.Transport via RPUSH.
func (t *Transport) Send(ctx context.Context, linkKey string, payload []byte) error {
	if err := t.client.RPush(ctx, t.key(linkKey), payload).Err(); err != nil {
		return fmt.Errorf("redistransport: rpush %s: %w", linkKey, err)
	}
	return nil
}

// Receive implements patch.Transport via BLPOP.
func (t *Transport) Receive(ctx context.Context, linkKey string) ([]byte, error) {
	res, err := t.client.BLPop(ctx, t.blockTimeout, t.key(linkKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("redistransport: blpop %s: %w", linkKey, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("redistransport: blpop %s: unexpected reply shape %v", linkKey, res)
	}
	return []byte(res[1]), nil
}
