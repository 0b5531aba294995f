package postgres

import (
	"context"
	"fmt"
	"time"

	"recharge-store/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const deliveryColumns = `id, order_id, status, attempts, run_at, last_error, created_at, updated_at`

// DeliveryTaskRepo implements ports.DeliveryTaskRepository as a table-backed queue.
type DeliveryTaskRepo struct {
	pool Pool
}

func NewDeliveryTaskRepo(pool Pool) *DeliveryTaskRepo {
	return &DeliveryTaskRepo{pool: pool}
}

// Enqueue inserts a task, normally in the transaction that marks its order paid.
func (r *DeliveryTaskRepo) Enqueue(ctx context.Context, tx pgx.Tx, t *domain.DeliveryTask) error {
	query := `INSERT INTO delivery_tasks (` + deliveryColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (order_id) DO NOTHING`

	_, err := on(r.pool, tx).Exec(ctx, query,
		t.ID, t.OrderID, t.Status, t.Attempts, t.RunAt, t.LastError, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("enqueue delivery task: %w", err)
	}
	return nil
}

// ClaimDue moves up to limit due tasks to running and bumps their attempt
// counter. SKIP LOCKED lets several workers poll the same table.
func (r *DeliveryTaskRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.DeliveryTask, error) {
	query := `UPDATE delivery_tasks SET status = 'running', attempts = attempts + 1, updated_at = $1
		WHERE id IN (
			SELECT id FROM delivery_tasks
			WHERE status = 'queued' AND run_at <= $1
			ORDER BY run_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + deliveryColumns

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim delivery tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.DeliveryTask
	for rows.Next() {
		t := domain.DeliveryTask{}
		if err := rows.Scan(&t.ID, &t.OrderID, &t.Status, &t.Attempts, &t.RunAt, &t.LastError,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery tasks: %w", err)
	}
	return tasks, nil
}

func (r *DeliveryTaskRepo) Complete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := on(r.pool, tx).Exec(ctx,
		`UPDATE delivery_tasks SET status = 'done', last_error = NULL, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("complete delivery task: %w", err)
	}
	return nil
}

// Reschedule returns a failed attempt to the queue at runAt.
func (r *DeliveryTaskRepo) Reschedule(ctx context.Context, id uuid.UUID, runAt time.Time, lastErr string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE delivery_tasks SET status = 'queued', run_at = $2, last_error = $3, updated_at = NOW() WHERE id = $1`,
		id, runAt, lastErr)
	if err != nil {
		return fmt.Errorf("reschedule delivery task: %w", err)
	}
	return nil
}

func (r *DeliveryTaskRepo) Fail(ctx context.Context, tx pgx.Tx, id uuid.UUID, lastErr string) error {
	_, err := on(r.pool, tx).Exec(ctx,
		`UPDATE delivery_tasks SET status = 'failed', last_error = $2, updated_at = NOW() WHERE id = $1`, id, lastErr)
	if err != nil {
		return fmt.Errorf("fail delivery task: %w", err)
	}
	return nil
}

// RequeueStale recovers tasks left running by a worker that died mid-attempt.
func (r *DeliveryTaskRepo) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE delivery_tasks SET status = 'queued', updated_at = NOW() WHERE status = 'running' AND updated_at < $1`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("requeue stale delivery tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}
