package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLock_ExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)

	first := NewRedisLock(client, "runs", time.Minute)
	second := NewRedisLock(client, "runs", time.Minute)

	require.NoError(t, first.Acquire(ctx))
	assert.True(t, mr.Exists("runs"))

	err := second.Acquire(ctx)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists("runs"))

	require.NoError(t, second.Acquire(ctx))
	require.NoError(t, second.Release(ctx))
}

func TestRedisLock_ReleaseChecksToken(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)

	l := NewRedisLock(client, "runs", time.Minute)
	require.NoError(t, l.Acquire(ctx))

	// another holder took over after expiry
	mr.Set("runs", "someone-else")

	err := l.Release(ctx)
	assert.True(t, errors.Is(err, ErrLockNotHeld))
	got, _ := mr.Get("runs")
	assert.Equal(t, "someone-else", got)
}

func TestRedisLock_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)

	crashed := NewRedisLock(client, "runs", time.Minute)
	require.NoError(t, crashed.Acquire(ctx))

	mr.FastForward(2 * time.Minute)

	next := NewRedisLock(client, "runs", time.Minute)
	require.NoError(t, next.Acquire(ctx))
}

func TestRedisLock_Extend(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)

	l := NewRedisLock(client, "runs", time.Minute)
	assert.ErrorIs(t, l.Extend(ctx), ErrLockNotHeld)

	require.NoError(t, l.Acquire(ctx))
	mr.FastForward(50 * time.Second)
	require.NoError(t, l.Extend(ctx))
	mr.FastForward(50 * time.Second)

	assert.True(t, mr.Exists("runs"))
}

func TestRedisLock_ReleaseWithoutAcquire(t *testing.T) {
	_, client := newTestClient(t)
	l := NewRedisLock(client, "", 0)

	assert.Equal(t, DefaultKey, l.Key())
	assert.ErrorIs(t, l.Release(context.Background()), ErrLockNotHeld)
}

func TestRedisLock_ServerDown(t *testing.T) {
	mr, client := newTestClient(t)
	mr.Close()

	err := NewRedisLock(client, "runs", time.Minute).Acquire(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)
}
