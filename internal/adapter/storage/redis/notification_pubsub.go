package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"recharge-store/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventNotificationNew is the event type pushed to stream clients.
const EventNotificationNew = "notification:new"

// streamBuffer bounds how far a slow client may lag before events are dropped.
const streamBuffer = 16

type notificationEvent struct {
	Type string               `json:"type"`
	Data *domain.Notification `json:"data"`
}

// NotificationPubSub fans notifications out to every API instance through
// one Redis channel per user.
type NotificationPubSub struct {
	client goredis.UniversalClient
	log    zerolog.Logger
}

func NewNotificationPubSub(client goredis.UniversalClient, log zerolog.Logger) *NotificationPubSub {
	return &NotificationPubSub{client: client, log: log}
}

func channelFor(userID uuid.UUID) string {
	return notificationPrefix + userID.String()
}

// Publish implements ports.RealtimePublisher.
func (p *NotificationPubSub) Publish(ctx context.Context, n *domain.Notification) error {
	payload, err := json.Marshal(notificationEvent{Type: EventNotificationNew, Data: n})
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}
	if err := p.client.Publish(ctx, channelFor(n.UserID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish notification: %w", err)
	}
	return nil
}

// Subscribe implements ports.RealtimeSubscriber. The channel is closed after
// the returned cancel function runs or ctx ends.
func (p *NotificationPubSub) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan []byte, func(), error) {
	pubsub := p.client.Subscribe(ctx, channelFor(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis subscribe notifications: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []byte, streamBuffer)
	in := pubsub.Channel()

	go func() {
		defer close(out)
		defer pubsub.Close() //nolint:errcheck
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					p.log.Warn().Str("user_id", userID.String()).Msg("Notification stream is full, dropping event")
				}
			}
		}
	}()

	return out, cancel, nil
}
