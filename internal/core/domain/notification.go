package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationRetention is how long notifications are kept after creation.
const NotificationRetention = 90 * 24 * time.Hour

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
	NotificationOrder   NotificationType = "order"
	NotificationPayment NotificationType = "payment"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError, NotificationOrder, NotificationPayment:
		return true
	}
	return false
}

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

func (p NotificationPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// RelatedModel names the kind of entity a notification points at.
type RelatedModel string

const (
	RelatedOrder   RelatedModel = "order"
	RelatedPayment RelatedModel = "payment"
	RelatedUser    RelatedModel = "user"
	RelatedSystem  RelatedModel = "system"
	RelatedWallet  RelatedModel = "wallet"
)

// Notification is an append-only message addressed to one user.
type Notification struct {
	ID           uuid.UUID            `json:"id"`
	UserID       uuid.UUID            `json:"user_id"`
	Title        string               `json:"title"`
	Message      string               `json:"message"`
	Type         NotificationType     `json:"type"`
	Priority     NotificationPriority `json:"priority"`
	RelatedModel RelatedModel         `json:"related_model,omitempty"`
	RelatedID    *uuid.UUID           `json:"related_id,omitempty"`
	IsRead       bool                 `json:"is_read"`
	ReadAt       *time.Time           `json:"read_at,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// ExpiresAt returns when the notification becomes eligible for the retention sweep.
func (n *Notification) ExpiresAt() time.Time {
	return n.CreatedAt.Add(NotificationRetention)
}
