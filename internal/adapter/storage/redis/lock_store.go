package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// LockStore implements ports.LockStore with SET NX keys. A lock expires on
// its own after ttl if the holder never releases it.
type LockStore struct {
	client goredis.UniversalClient
}

func NewLockStore(client goredis.UniversalClient) *LockStore {
	return &LockStore{client: client}
}

// Acquire returns true when the caller now holds key.
func (s *LockStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetArgs(ctx, lockPrefix+key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis lock acquire: %w", err)
	}
	return result == "OK", nil
}

func (s *LockStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, lockPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis lock release: %w", err)
	}
	return nil
}
