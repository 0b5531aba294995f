package postgres

import (
	"context"
	"fmt"
	"time"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"

	"github.com/google/uuid"
)

const notificationColumns = `id, user_id, title, message, type, priority, related_model, related_id,
	is_read, read_at, created_at`

// NotificationRepo implements ports.NotificationRepository.
type NotificationRepo struct {
	pool Pool
}

func NewNotificationRepo(pool Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	query := `INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.Priority, n.RelatedModel, n.RelatedID,
		n.IsRead, n.ReadAt, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// List returns a user's notifications, newest first.
func (r *NotificationRepo) List(ctx context.Context, userID uuid.UUID, filter ports.NotificationFilter) ([]domain.Notification, int64, error) {
	where := "WHERE user_id = $1"
	if filter.UnreadOnly {
		where += " AND NOT is_read"
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM notifications "+where, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications ` + where +
		` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, userID, filter.Limit, filter.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var items []domain.Notification
	for rows.Next() {
		n := domain.Notification{}
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Priority, &n.RelatedModel, &n.RelatedID,
			&n.IsRead, &n.ReadAt, &n.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan notification row: %w", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notification rows: %w", err)
	}
	return items, total, nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// MarkRead flags one notification owned by userID. Marking an already read
// notification leaves read_at untouched and still reports found.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2`

	tag, err := r.pool.Exec(ctx, query, id, userID, at)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = $2 WHERE user_id = $1 AND NOT is_read`, userID, at)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepo) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete notification: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteOlderThan removes notifications created before cutoff.
func (r *NotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
