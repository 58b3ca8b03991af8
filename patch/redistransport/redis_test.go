package redistransport_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/notargets/hiparstencil/patch/redistransport"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T) *redistransport.Transport {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return redistransport.New(client, redistransport.WithBlockTimeout(time.Second))
}

func TestRedisTransportSendReceiveRoundTrip(t *testing.T) {
	tr := newTestTransport(t)
	ctx := context.Background()

	require.NoError(t, tr.Send(ctx, "rank0->rank1", []byte{1, 2, 3}))

	got, err := tr.Receive(ctx, "rank0->rank1")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)
}

func TestRedisTransportFIFOOrder(t *testing.T) {
	tr := newTestTransport(t)
	ctx := context.Background()

	require.NoError(t, tr.Send(ctx, "k", []byte("a")))
	require.NoError(t, tr.Send(ctx, "k", []byte("b")))

	first, err := tr.Receive(ctx, "k")
	require.NoError(t, err)
	second, err := tr.Receive(ctx, "k")
	require.NoError(t, err)

	require.Equal(t, "a", string(first))
	require.Equal(t, "b", string(second))
}

func TestRedisTransportReceiveTimesOutWithoutData(t *testing.T) {
	tr := newTestTransport(t)
	ctx := context.Background()

	_, err := tr.Receive(ctx, "empty")
	require.Error(t, err)
}
