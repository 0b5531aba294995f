package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus represents the state of a fulfillment task.
type DeliveryStatus string

const (
	DeliveryStatusQueued  DeliveryStatus = "queued"
	DeliveryStatusRunning DeliveryStatus = "running"
	DeliveryStatusDone    DeliveryStatus = "done"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// DeliveryRetryIntervals defines the backoff between failed delivery attempts.
var DeliveryRetryIntervals = []time.Duration{
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
}

// DeliveryTask is a durable request to fulfil a paid auto-delivery order.
type DeliveryTask struct {
	ID        uuid.UUID      `json:"id"`
	OrderID   uuid.UUID      `json:"order_id"`
	Status    DeliveryStatus `json:"status"`
	Attempts  int            `json:"attempts"`
	RunAt     time.Time      `json:"run_at"`
	LastError *string        `json:"last_error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewDeliveryTask schedules delivery of orderID at runAt.
func NewDeliveryTask(orderID uuid.UUID, runAt, now time.Time) *DeliveryTask {
	return &DeliveryTask{
		ID:        uuid.New(),
		OrderID:   orderID,
		Status:    DeliveryStatusQueued,
		RunAt:     runAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NextRetryDelay returns the backoff after the given number of attempts.
func NextRetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > len(DeliveryRetryIntervals) {
		return DeliveryRetryIntervals[len(DeliveryRetryIntervals)-1]
	}
	return DeliveryRetryIntervals[attempts-1]
}
