package postgres

import (
	"context"
	"testing"
	"time"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepo_List_UnreadOnly(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewNotificationRepo(mock)
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM notifications WHERE user_id = \\$1 AND NOT is_read").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM notifications WHERE user_id = \\$1 AND NOT is_read ORDER BY created_at DESC").
		WithArgs(userID, 20, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "title", "message", "type", "priority",
			"related_model", "related_id", "is_read", "read_at", "created_at"}).
			AddRow(uuid.New(), userID, "Deposit received", "100 SAR added", domain.NotificationSuccess,
				domain.PriorityMedium, domain.RelatedWallet, (*uuid.UUID)(nil), false, (*time.Time)(nil), now))

	items, total, err := repo.List(context.Background(), userID, ports.NotificationFilter{
		UnreadOnly:  true,
		PageRequest: ports.PageRequest{Page: 1, Limit: 20},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, domain.NotificationSuccess, items[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepo_MarkRead_ScopedToOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewNotificationRepo(mock)
	owner, stranger, id := uuid.New(), uuid.New(), uuid.New()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE notifications SET is_read = TRUE .+ WHERE id = \\$1 AND user_id = \\$2").
		WithArgs(id, stranger, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("UPDATE notifications SET is_read = TRUE .+ WHERE id = \\$1 AND user_id = \\$2").
		WithArgs(id, owner, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	found, err := repo.MarkRead(context.Background(), stranger, id, at)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.MarkRead(context.Background(), owner, id, at)
	require.NoError(t, err)
	assert.True(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepo_DeleteOlderThan(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewNotificationRepo(mock)
	cutoff := time.Now().UTC().Add(-domain.NotificationRetention)

	mock.ExpectExec("DELETE FROM notifications WHERE created_at < \\$1").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
