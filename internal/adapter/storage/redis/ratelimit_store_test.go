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

func TestRateLimitStore_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewRateLimitStore(client)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			result, err := store.Allow(ctx, "auth:10.0.0.1", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "request %d should be allowed", i)
			assert.Equal(t, int64(3), result.Limit)
			assert.Equal(t, 3-i, result.Remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		result, err := store.Allow(ctx, "auth:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, int64(0), result.Remaining)
	})

	t.Run("different keys are independent", func(t *testing.T) {
		result, err := store.Allow(ctx, "auth:10.0.0.2", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(4), result.Remaining)
	})

	t.Run("new window resets the counter", func(t *testing.T) {
		key := "orders:user-1"
		_, err := store.Allow(ctx, key, 1, time.Minute)
		require.NoError(t, err)

		result, err := store.Allow(ctx, key, 1, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)

		now = now.Add(61 * time.Second)
		mr.FastForward(61 * time.Second)

		result, err = store.Allow(ctx, key, 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("reset time is the end of the window", func(t *testing.T) {
		result, err := store.Allow(ctx, "payments:user-2", 10, 15*time.Minute)
		require.NoError(t, err)
		assert.True(t, result.ResetAt.After(now))
		assert.False(t, result.ResetAt.After(now.Add(15*time.Minute)))
		assert.Equal(t, result.ResetAt.Sub(now), result.RetryAfter(now))
	})

	t.Run("counter keys carry a ttl", func(t *testing.T) {
		_, err := store.Allow(ctx, "global:10.0.0.9", 100, time.Minute)
		require.NoError(t, err)
		for _, k := range mr.Keys() {
			assert.Greater(t, mr.TTL(k), time.Duration(0), "key %s has no ttl", k)
		}
	})
}

func TestRateLimitResult_RetryAfterFloor(t *testing.T) {
	now := time.Now()
	r := &RateLimitResult{ResetAt: now.Add(100 * time.Millisecond)}
	assert.Equal(t, time.Second, r.RetryAfter(now))
}
