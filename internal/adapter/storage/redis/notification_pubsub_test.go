package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"recharge-store/internal/adapter/storage/redis"
	"recharge-store/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationPubSub_DeliversToOwner(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	ps := redis.NewNotificationPubSub(client, zerolog.Nop())
	ctx := context.Background()
	owner := uuid.New()
	other := uuid.New()

	stream, cancel, err := ps.Subscribe(ctx, owner)
	require.NoError(t, err)
	defer cancel()

	otherStream, cancelOther, err := ps.Subscribe(ctx, other)
	require.NoError(t, err)
	defer cancelOther()

	n := &domain.Notification{
		ID:      uuid.New(),
		UserID:  owner,
		Type:    domain.NotificationOrder,
		Title:   "Order delivered",
		Message: "Delivered to player 12345",
	}
	require.NoError(t, ps.Publish(ctx, n))

	select {
	case raw := <-stream:
		var event struct {
			Type string              `json:"type"`
			Data domain.Notification `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &event))
		assert.Equal(t, redis.EventNotificationNew, event.Type)
		assert.Equal(t, n.ID, event.Data.ID)
		assert.Equal(t, "Order delivered", event.Data.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("owner did not receive notification")
	}

	select {
	case raw := <-otherStream:
		t.Fatalf("unexpected event for another user: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotificationPubSub_CancelClosesStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	ps := redis.NewNotificationPubSub(client, zerolog.Nop())
	stream, cancel, err := ps.Subscribe(context.Background(), uuid.New())
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-stream:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream was not closed")
	}
}
