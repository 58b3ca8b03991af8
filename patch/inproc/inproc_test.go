package inproc_test

import (
	"context"
	"testing"

	"github.com/notargets/hiparstencil/patch/inproc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInprocDeliversFIFOPerLink(t *testing.T) {
	tr := inproc.New(4)
	ctx := context.Background()

	require.NoError(t, tr.Send(ctx, "a->b", []byte("first")))
	require.NoError(t, tr.Send(ctx, "a->b", []byte("second")))

	got1, err := tr.Receive(ctx, "a->b")
	require.NoError(t, err)
	got2, err := tr.Receive(ctx, "a->b")
	require.NoError(t, err)

	assert.Equal(t, "first", string(got1))
	assert.Equal(t, "second", string(got2))
}

func TestInprocLinksAreIndependent(t *testing.T) {
	tr := inproc.New(1)
	ctx := context.Background()

	require.NoError(t, tr.Send(ctx, "a->b", []byte("ab")))
	require.NoError(t, tr.Send(ctx, "c->d", []byte("cd")))

	got, err := tr.Receive(ctx, "c->d")
	require.NoError(t, err)
	assert.Equal(t, "cd", string(got))
}

func TestInprocReceiveCancelledByContext(t *testing.T) {
	tr := inproc.New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Receive(ctx, "never-sent")
	assert.ErrorIs(t, err, context.Canceled)
}
