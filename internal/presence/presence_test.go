package presence_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/remiges-tech/ingestworker/internal/presence"
)

func newTestRegistry(t *testing.T, workerID string) *presence.Registry {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return presence.New(client, workerID)
}

func TestRegisterAndPeerCount(t *testing.T) {
	reg := newTestRegistry(t, "worker-1")
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx))
	require.NoError(t, reg.Heartbeat(ctx))

	n, ok := reg.PeerCount(ctx)
	require.True(t, ok)
	require.Equal(t, 1, n)
}

func TestDeregisterRemovesWorker(t *testing.T) {
	reg := newTestRegistry(t, "worker-1")
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx))
	require.NoError(t, reg.Heartbeat(ctx))
	require.NoError(t, reg.Deregister(ctx))

	n, ok := reg.PeerCount(ctx)
	require.True(t, ok)
	require.Equal(t, 0, n)
}

func TestPeerCountExcludesRegisteredWithoutHeartbeat(t *testing.T) {
	reg := newTestRegistry(t, "worker-1")
	ctx := context.Background()

	// registered but never heartbeated (e.g. crashed before the first beat)
	require.NoError(t, reg.Register(ctx))

	n, ok := reg.PeerCount(ctx)
	require.True(t, ok)
	require.Equal(t, 0, n)
}

func TestNilClientDisablesPresence(t *testing.T) {
	reg := presence.New(nil, "worker-1")
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx))
	require.NoError(t, reg.Heartbeat(ctx))
	require.NoError(t, reg.Deregister(ctx))

	n, ok := reg.PeerCount(ctx)
	require.False(t, ok)
	require.Equal(t, 0, n)
}
