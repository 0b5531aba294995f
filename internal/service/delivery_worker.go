package service

import (
	"context"
	"fmt"
	"time"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/internal/metrics"

	"github.com/rs/zerolog"
)

// DeliveryConfig tunes the fulfillment worker.
type DeliveryConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	StaleAfter   time.Duration
}

// DeliveryWorker drains the delivery task queue. Each task moves its order
// from pending to processing, then to completed or, after MaxAttempts
// failures, to failed.
type DeliveryWorker struct {
	tasks       ports.DeliveryTaskRepository
	orderRepo   ports.OrderRepository
	productRepo ports.ProductRepository
	fulfiller   ports.Fulfiller
	transactor  ports.DBTransactor
	notifier    ports.Notifier
	cfg         DeliveryConfig
	log         zerolog.Logger
	now         func() time.Time
}

// NewDeliveryWorker creates a new DeliveryWorker.
func NewDeliveryWorker(
	tasks ports.DeliveryTaskRepository,
	orderRepo ports.OrderRepository,
	productRepo ports.ProductRepository,
	fulfiller ports.Fulfiller,
	transactor ports.DBTransactor,
	notifier ports.Notifier,
	cfg DeliveryConfig,
	log zerolog.Logger,
) *DeliveryWorker {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &DeliveryWorker{
		tasks:       tasks,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		fulfiller:   fulfiller,
		transactor:  transactor,
		notifier:    notifier,
		cfg:         cfg,
		log:         log.With().Str("component", "delivery_worker").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run requeues tasks abandoned by a previous process and then polls until
// ctx is cancelled.
func (w *DeliveryWorker) Run(ctx context.Context) {
	if n, err := w.RequeueStale(ctx); err != nil {
		w.log.Error().Err(err).Msg("failed to requeue stale deliveries")
	} else if n > 0 {
		w.log.Info().Int64("count", n).Msg("requeued stale deliveries")
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.log.Info().Dur("poll_interval", w.cfg.PollInterval).Msg("delivery worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("delivery worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				w.log.Error().Err(err).Msg("delivery poll failed")
			}
		}
	}
}

// RequeueStale returns running tasks older than StaleAfter to the queue.
func (w *DeliveryWorker) RequeueStale(ctx context.Context) (int64, error) {
	return w.tasks.RequeueStale(ctx, w.now().Add(-w.cfg.StaleAfter))
}

// RunOnce claims one batch of due tasks and processes them. It returns the
// number of tasks claimed.
func (w *DeliveryWorker) RunOnce(ctx context.Context) (int, error) {
	tasks, err := w.tasks.ClaimDue(ctx, w.now(), w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claim tasks: %w", err)
	}
	for i := range tasks {
		if err := w.process(ctx, &tasks[i]); err != nil {
			w.log.Error().Err(err).
				Str("task_id", tasks[i].ID.String()).
				Str("order_id", tasks[i].OrderID.String()).
				Msg("delivery task errored")
		}
	}
	return len(tasks), nil
}

func (w *DeliveryWorker) process(ctx context.Context, task *domain.DeliveryTask) error {
	order, err := w.start(ctx, task)
	if err != nil {
		return w.retry(ctx, task, err)
	}
	if order == nil {
		return nil
	}

	product, err := w.productRepo.GetByID(ctx, order.ProductID)
	if err != nil {
		return w.retry(ctx, task, fmt.Errorf("get product: %w", err))
	}

	data, err := w.fulfiller.Deliver(ctx, order, product)
	if err != nil {
		return w.retry(ctx, task, err)
	}
	return w.finish(ctx, task, domain.OrderStatusCompleted, &data, "")
}

// deliverable reports whether o is still paid and open.
func deliverable(o *domain.Order) bool {
	return !o.IsClosed() && o.PaymentStatus == domain.PaymentStatusPaid
}

// start locks the order and moves it to processing. It returns nil, with
// the task closed, when the order is gone, refunded or otherwise closed.
func (w *DeliveryWorker) start(ctx context.Context, task *domain.DeliveryTask) (*domain.Order, error) {
	dbTx, err := w.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := w.orderRepo.GetByIDForUpdate(ctx, dbTx, task.OrderID)
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	switch {
	case order == nil:
		err = w.tasks.Fail(ctx, dbTx, task.ID, "order not found")
	case !deliverable(order):
		w.log.Info().Str("order_id", order.ID.String()).Str("status", string(order.Status)).
			Msg("skipping delivery for closed or unpaid order")
		err = w.tasks.Complete(ctx, dbTx, task.ID)
	case order.Status == domain.OrderStatusPending:
		order.Status = domain.OrderStatusProcessing
		order.UpdatedAt = w.now()
		if err := w.orderRepo.Update(ctx, dbTx, order); err != nil {
			return nil, fmt.Errorf("mark processing: %w", err)
		}
	}
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	if order == nil || !deliverable(order) {
		return nil, nil
	}
	return order, nil
}

// retry reschedules a failed attempt or, once attempts are exhausted,
// fails the task and the order together.
func (w *DeliveryWorker) retry(ctx context.Context, task *domain.DeliveryTask, cause error) error {
	if task.Attempts >= w.cfg.MaxAttempts {
		return w.finish(ctx, task, domain.OrderStatusFailed, nil, cause.Error())
	}

	delay := domain.NextRetryDelay(task.Attempts)
	metrics.Deliveries.WithLabelValues(metrics.ResultRetry).Inc()
	w.log.Warn().Err(cause).
		Str("order_id", task.OrderID.String()).
		Int("attempt", task.Attempts).
		Dur("retry_in", delay).
		Msg("delivery attempt failed")
	return w.tasks.Reschedule(ctx, task.ID, w.now().Add(delay), cause.Error())
}

// finish re-reads the order under its row lock, writes the terminal status
// and closes the task in one transaction. An order refunded or closed while
// the attempt ran is left as it is.
func (w *DeliveryWorker) finish(ctx context.Context, task *domain.DeliveryTask, status domain.OrderStatus, data *string, lastErr string) error {
	dbTx, err := w.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := w.orderRepo.GetByIDForUpdate(ctx, dbTx, task.OrderID)
	if err != nil {
		return fmt.Errorf("lock order: %w", err)
	}
	if order == nil {
		metrics.Deliveries.WithLabelValues(metrics.ResultFailed).Inc()
		if err := w.tasks.Fail(ctx, dbTx, task.ID, "order not found"); err != nil {
			return err
		}
		return dbTx.Commit(ctx)
	}
	if !deliverable(order) {
		w.log.Warn().Str("order_id", order.ID.String()).
			Str("status", string(order.Status)).
			Str("payment_status", string(order.PaymentStatus)).
			Msg("order changed during delivery, leaving it untouched")
		if err := w.tasks.Complete(ctx, dbTx, task.ID); err != nil {
			return err
		}
		return dbTx.Commit(ctx)
	}

	order.Status = status
	if data != nil {
		order.DeliveryData = data
	}
	order.UpdatedAt = w.now()
	if err := w.orderRepo.Update(ctx, dbTx, order); err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	if status == domain.OrderStatusCompleted {
		err = w.tasks.Complete(ctx, dbTx, task.ID)
	} else {
		err = w.tasks.Fail(ctx, dbTx, task.ID, lastErr)
	}
	if err != nil {
		return err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	req := ports.NotifyRequest{
		UserID:       order.UserID,
		RelatedModel: domain.RelatedOrder,
		RelatedID:    &order.ID,
		Priority:     domain.PriorityHigh,
	}
	if status == domain.OrderStatusCompleted {
		metrics.Deliveries.WithLabelValues(metrics.ResultSuccess).Inc()
		w.log.Info().Str("order_id", order.ID.String()).Int("attempt", task.Attempts).Msg("order delivered")
		req.Title, req.Type = "Order delivered", domain.NotificationSuccess
		req.Message = fmt.Sprintf("Order %s has been delivered to game account %s", order.OrderNumber, order.GameID)
	} else {
		metrics.Deliveries.WithLabelValues(metrics.ResultFailed).Inc()
		w.log.Error().Str("order_id", order.ID.String()).Str("last_error", lastErr).Msg("order delivery failed")
		req.Title, req.Type = "Delivery failed", domain.NotificationError
		req.Message = fmt.Sprintf("We could not deliver order %s. Our team has been notified.", order.OrderNumber)
	}
	notifyQuietly(ctx, w.notifier, w.log, req)
	return nil
}
