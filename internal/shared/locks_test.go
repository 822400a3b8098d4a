package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestLockerExcludesSecondCaller(t *testing.T) {
	client, mr := newTestRedis(t)
	locker := NewLocker(client, time.Second)
	ctx := context.Background()
	key := RequestLockKey(12)
	assert.Equal(t, "requests:12:decide:lock", key)

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, key)
	assert.ErrorIs(t, err, ErrLockHeld)

	release()
	assert.False(t, mr.Exists(key))

	release2, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	release2()
}

func TestLockerExpires(t *testing.T) {
	client, mr := newTestRedis(t)
	locker := NewLocker(client, time.Second)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	release, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)
	release()
}

func TestIdempotencyStoreRejectsReplay(t *testing.T) {
	client, mr := newTestRedis(t)
	store := NewIdempotencyStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "key-1", "requests:create"))
	assert.ErrorIs(t, store.CheckAndInsert(ctx, "key-1", "requests:create"), ErrIdempotencyConflict)
	require.NoError(t, store.CheckAndInsert(ctx, "key-1", "other"))

	require.NoError(t, store.Delete(ctx, "key-1", "requests:create"))
	require.NoError(t, store.CheckAndInsert(ctx, "key-1", "requests:create"))

	mr.FastForward(2 * time.Minute)
	require.NoError(t, store.CheckAndInsert(ctx, "key-1", "requests:create"))

	assert.Error(t, store.CheckAndInsert(ctx, "", "requests:create"))
}
