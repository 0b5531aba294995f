package postgres

import (
	"context"
	"testing"
	"time"

	"recharge-store/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryTaskRepo_Enqueue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDeliveryTaskRepo(mock)
	now := time.Now().UTC()
	task := domain.NewDeliveryTask(uuid.New(), now.Add(3*time.Second), now)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO delivery_tasks .+ ON CONFLICT \\(order_id\\) DO NOTHING").
		WithArgs(task.ID, task.OrderID, domain.DeliveryStatusQueued, 0, task.RunAt, task.LastError,
			task.CreatedAt, task.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Enqueue(context.Background(), dbTx, task))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryTaskRepo_ClaimDue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDeliveryTaskRepo(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)
	taskID, orderID := uuid.New(), uuid.New()

	mock.ExpectQuery("UPDATE delivery_tasks SET status = 'running', attempts = attempts \\+ 1 .+ FOR UPDATE SKIP LOCKED .+ RETURNING").
		WithArgs(now, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_id", "status", "attempts", "run_at", "last_error",
			"created_at", "updated_at"}).
			AddRow(taskID, orderID, domain.DeliveryStatusRunning, 1, now, (*string)(nil), now, now))

	tasks, err := repo.ClaimDue(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, orderID, tasks[0].OrderID)
	assert.Equal(t, 1, tasks[0].Attempts)
	assert.Equal(t, domain.DeliveryStatusRunning, tasks[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryTaskRepo_RequeueStale(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDeliveryTaskRepo(mock)
	cutoff := time.Now().UTC().Add(-5 * time.Minute)

	mock.ExpectExec("UPDATE delivery_tasks SET status = 'queued' .+ WHERE status = 'running' AND updated_at < \\$1").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := repo.RequeueStale(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
