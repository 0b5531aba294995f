package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// pendingMarker occupies a reserved key until its result is stored.
const pendingMarker = "\x00pending"

// IdempotencyCache implements ports.IdempotencyCache. A key moves from
// absent to pending (Reserve) to holding the serialized result (Store);
// Release drops a pending reservation so the client can retry.
type IdempotencyCache struct {
	client goredis.UniversalClient
}

func NewIdempotencyCache(client goredis.UniversalClient) *IdempotencyCache {
	return &IdempotencyCache{client: client}
}

// Reserve claims key for ttl. It returns acquired=true for the first caller,
// the stored result once one exists, and neither while the key is pending.
func (c *IdempotencyCache) Reserve(ctx context.Context, key string, ttl time.Duration) ([]byte, bool, error) {
	k := idempotencyPrefix + key

	// The key can expire between SETNX and GET; one retry covers that.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := c.client.SetNX(ctx, k, pendingMarker, ttl).Result()
		if err != nil {
			return nil, false, fmt.Errorf("redis idempotency reserve: %w", err)
		}
		if ok {
			return nil, true, nil
		}

		val, err := c.client.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
			continue
		case err != nil:
			return nil, false, fmt.Errorf("redis idempotency get: %w", err)
		case string(val) == pendingMarker:
			return nil, false, nil
		default:
			return val, false, nil
		}
	}
	return nil, false, nil
}

// Store replaces the reservation with the result for ttl.
func (c *IdempotencyCache) Store(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, idempotencyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency store: %w", err)
	}
	return nil
}

// Release removes a pending reservation. A stored result is left in place.
func (c *IdempotencyCache) Release(ctx context.Context, key string) error {
	err := c.client.Watch(ctx, func(tx *goredis.Tx) error {
		k := idempotencyPrefix + key
		val, err := tx.Get(ctx, k).Result()
		if errors.Is(err, goredis.Nil) || (err == nil && val != pendingMarker) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, k)
			return nil
		})
		return err
	}, idempotencyPrefix+key)
	if err != nil {
		return fmt.Errorf("redis idempotency release: %w", err)
	}
	return nil
}
