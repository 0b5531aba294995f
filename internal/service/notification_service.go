package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/internal/metrics"
	"recharge-store/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	maxTitleLen   = 200
	maxMessageLen = 1000
)

// NotificationServiceImpl implements ports.NotificationService.
type NotificationServiceImpl struct {
	repo       ports.NotificationRepository
	publisher  ports.RealtimePublisher
	subscriber ports.RealtimeSubscriber
	retention  time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// NewNotificationService creates a new NotificationServiceImpl. publisher
// and subscriber may be nil when realtime delivery is not wired.
func NewNotificationService(
	repo ports.NotificationRepository,
	publisher ports.RealtimePublisher,
	subscriber ports.RealtimeSubscriber,
	retention time.Duration,
	log zerolog.Logger,
) *NotificationServiceImpl {
	if retention <= 0 {
		retention = domain.NotificationRetention
	}
	return &NotificationServiceImpl{
		repo:       repo,
		publisher:  publisher,
		subscriber: subscriber,
		retention:  retention,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Notify appends a notification and pushes it to connected clients.
func (s *NotificationServiceImpl) Notify(ctx context.Context, req ports.NotifyRequest) (*domain.Notification, error) {
	title := strings.TrimSpace(req.Title)
	message := strings.TrimSpace(req.Message)
	switch {
	case req.UserID == uuid.Nil:
		return nil, apperror.Validation("user_id is required")
	case title == "" || len(title) > maxTitleLen:
		return nil, apperror.Validation(fmt.Sprintf("title must be 1-%d characters", maxTitleLen))
	case message == "" || len(message) > maxMessageLen:
		return nil, apperror.Validation(fmt.Sprintf("message must be 1-%d characters", maxMessageLen))
	}
	if req.Type == "" {
		req.Type = domain.NotificationInfo
	}
	if !req.Type.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown notification type %q", req.Type))
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityMedium
	}
	if !req.Priority.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown priority %q", req.Priority))
	}

	n := &domain.Notification{
		ID:           uuid.New(),
		UserID:       req.UserID,
		Title:        title,
		Message:      message,
		Type:         req.Type,
		Priority:     req.Priority,
		RelatedModel: req.RelatedModel,
		RelatedID:    req.RelatedID,
		CreatedAt:    s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create notification: %w", err))
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, n); err != nil {
			s.log.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("realtime publish failed")
		}
	}
	return n, nil
}

func (s *NotificationServiceImpl) List(ctx context.Context, userID uuid.UUID, filter ports.NotificationFilter) (*ports.NotificationPage, error) {
	filter.PageRequest = filter.PageRequest.Normalize(defaultPageLimit, maxPageLimit)

	items, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list notifications: %w", err))
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count unread: %w", err))
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return &ports.NotificationPage{Items: items, Total: total, UnreadCount: unread, Page: filter.PageRequest}, nil
}

// MarkRead marks one of the user's notifications read. Ids owned by other
// users are reported as not found.
func (s *NotificationServiceImpl) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	ok, err := s.repo.MarkRead(ctx, userID, id, s.now())
	if err != nil {
		return apperror.InternalError(fmt.Errorf("mark read: %w", err))
	}
	if !ok {
		return apperror.ErrNotFound("notification")
	}
	return nil
}

func (s *NotificationServiceImpl) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("mark all read: %w", err))
	}
	return n, nil
}

func (s *NotificationServiceImpl) Delete(ctx context.Context, userID, id uuid.UUID) error {
	ok, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("delete notification: %w", err))
	}
	if !ok {
		return apperror.ErrNotFound("notification")
	}
	return nil
}

// Subscribe opens the user's realtime stream.
func (s *NotificationServiceImpl) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan []byte, func(), error) {
	if s.subscriber == nil {
		return nil, nil, apperror.ErrServiceUnavailable("Realtime notifications")
	}
	ch, cancel, err := s.subscriber.Subscribe(ctx, userID)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("subscribe: %w", err))
	}
	return ch, cancel, nil
}

// Sweep deletes notifications past the retention window.
func (s *NotificationServiceImpl) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("sweep notifications: %w", err))
	}
	metrics.NotificationsSwept.Add(float64(n))
	if n > 0 {
		s.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("expired notifications swept")
	}
	return n, nil
}

// RunSweeper sweeps on every tick until ctx is cancelled.
func (s *NotificationServiceImpl) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("notification sweep failed")
			}
		}
	}
}
