package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdempotencyCache(t *testing.T) (*IdempotencyCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewIdempotencyCache(client), s
}

func TestIdempotencyCache_FirstReserveWins(t *testing.T) {
	cache, s := newIdempotencyCache(t)
	ctx := context.Background()
	key := "deposit:2f1c9a2e:key-001"

	cached, acquired, err := cache.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Nil(t, cached)
	assert.True(t, s.Exists("idempotency:"+key))

	cached, acquired, err = cache.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired, "a pending key is not handed out twice")
	assert.Nil(t, cached)
}

func TestIdempotencyCache_ReplaysStoredResult(t *testing.T) {
	cache, s := newIdempotencyCache(t)
	ctx := context.Background()
	key := "deposit:2f1c9a2e:key-002"
	value := []byte(`{"transaction":{"status":"completed"}}`)

	_, acquired, err := cache.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, cache.Store(ctx, key, value, time.Hour))

	cached, acquired, err := cache.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Equal(t, value, cached)
	assert.Equal(t, time.Hour, s.TTL("idempotency:"+key))
}

func TestIdempotencyCache_ReleaseAllowsRetry(t *testing.T) {
	cache, _ := newIdempotencyCache(t)
	ctx := context.Background()
	key := "deposit:2f1c9a2e:key-003"

	_, acquired, err := cache.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, cache.Release(ctx, key))

	_, acquired, err = cache.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestIdempotencyCache_ReleaseKeepsStoredResult(t *testing.T) {
	cache, _ := newIdempotencyCache(t)
	ctx := context.Background()
	key := "deposit:2f1c9a2e:key-004"

	require.NoError(t, cache.Store(ctx, key, []byte("done"), time.Hour))
	require.NoError(t, cache.Release(ctx, key))

	cached, acquired, err := cache.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Equal(t, []byte("done"), cached)
}

func TestIdempotencyCache_ReservationExpires(t *testing.T) {
	cache, s := newIdempotencyCache(t)
	ctx := context.Background()
	key := "deposit:2f1c9a2e:key-005"

	_, acquired, err := cache.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	s.FastForward(2 * time.Minute)

	_, acquired, err = cache.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired, "an abandoned reservation frees itself")
}

func TestIdempotencyCache_RedisDown(t *testing.T) {
	cache, s := newIdempotencyCache(t)
	s.Close()

	_, _, err := cache.Reserve(context.Background(), "deposit:x:y", time.Minute)
	assert.Error(t, err)
}
