package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type deliveryTestDeps struct {
	worker      *DeliveryWorker
	tasks       *mocks.MockDeliveryTaskRepository
	orderRepo   *mocks.MockOrderRepository
	productRepo *mocks.MockProductRepository
	fulfiller   *mocks.MockFulfiller
	transactor  *mocks.MockDBTransactor
	notifier    *mocks.MockNotifier
}

func setupDeliveryWorker(t *testing.T) *deliveryTestDeps {
	ctrl := gomock.NewController(t)
	d := &deliveryTestDeps{
		tasks:       mocks.NewMockDeliveryTaskRepository(ctrl),
		orderRepo:   mocks.NewMockOrderRepository(ctrl),
		productRepo: mocks.NewMockProductRepository(ctrl),
		fulfiller:   mocks.NewMockFulfiller(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		notifier:    mocks.NewMockNotifier(ctrl),
	}
	d.worker = NewDeliveryWorker(d.tasks, d.orderRepo, d.productRepo, d.fulfiller, d.transactor, d.notifier,
		DeliveryConfig{PollInterval: 10 * time.Millisecond, BatchSize: 5, MaxAttempts: 3, StaleAfter: time.Minute},
		zerolog.Nop())
	d.worker.now = fixedClock
	return d
}

func paidOrder() *domain.Order {
	o := pendingOrder(uuid.New(), "35")
	o.PaymentStatus = domain.PaymentStatusPaid
	return o
}

func TestDeliveryWorker_DeliversPaidOrder(t *testing.T) {
	d := setupDeliveryWorker(t)
	ctx := context.Background()
	startTx, finishTx := &mockTx{}, &mockTx{}
	order := paidOrder()
	product := testProduct(domain.ProductStatusActive)
	task := *domain.NewDeliveryTask(order.ID, fixedNow, fixedNow)
	task.Attempts = 1

	var statuses []domain.OrderStatus
	d.tasks.EXPECT().ClaimDue(ctx, fixedNow, 5).Return([]domain.DeliveryTask{task}, nil)
	gomock.InOrder(
		d.transactor.EXPECT().Begin(ctx).Return(startTx, nil),
		d.transactor.EXPECT().Begin(ctx).Return(finishTx, nil),
	)
	d.orderRepo.EXPECT().GetByIDForUpdate(ctx, gomock.Any(), order.ID).Return(order, nil).Times(2)
	d.orderRepo.EXPECT().Update(ctx, gomock.Any(), order).DoAndReturn(func(_ context.Context, _ pgx.Tx, o *domain.Order) error {
		statuses = append(statuses, o.Status)
		return nil
	}).Times(2)
	d.productRepo.EXPECT().GetByID(ctx, order.ProductID).Return(product, nil)
	d.fulfiller.EXPECT().Deliver(ctx, order, product).Return("Delivered to player 5123456789", nil)
	d.tasks.EXPECT().Complete(ctx, finishTx, task.ID).Return(nil)
	d.notifier.EXPECT().Notify(ctx, gomock.Any()).Return(&domain.Notification{}, nil)

	n, err := d.worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, startTx.committed)
	assert.True(t, finishTx.committed)
	assert.Equal(t, []domain.OrderStatus{domain.OrderStatusProcessing, domain.OrderStatusCompleted}, statuses)
	require.NotNil(t, order.DeliveryData)
	assert.Equal(t, "Delivered to player 5123456789", *order.DeliveryData)
}

func TestDeliveryWorker_RetriesWithBackoff(t *testing.T) {
	d := setupDeliveryWorker(t)
	ctx := context.Background()
	tx := &mockTx{}
	order := paidOrder()
	order.Status = domain.OrderStatusProcessing
	task := *domain.NewDeliveryTask(order.ID, fixedNow, fixedNow)
	task.Attempts = 2

	d.tasks.EXPECT().ClaimDue(ctx, fixedNow, 5).Return([]domain.DeliveryTask{task}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.orderRepo.EXPECT().GetByIDForUpdate(ctx, tx, order.ID).Return(order, nil)
	d.productRepo.EXPECT().GetByID(ctx, order.ProductID).Return(nil, nil)
	d.fulfiller.EXPECT().Deliver(ctx, order, nil).Return("", errors.New("provider busy"))
	d.tasks.EXPECT().Reschedule(ctx, task.ID, fixedNow.Add(30*time.Second), "provider busy").Return(nil)

	_, err := d.worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.Equal(t, domain.OrderStatusProcessing, order.Status)
}

func TestDeliveryWorker_FailsOrderAfterMaxAttempts(t *testing.T) {
	d := setupDeliveryWorker(t)
	ctx := context.Background()
	startTx, finishTx := &mockTx{}, &mockTx{}
	order := paidOrder()
	order.Status = domain.OrderStatusProcessing
	task := *domain.NewDeliveryTask(order.ID, fixedNow, fixedNow)
	task.Attempts = 3

	d.tasks.EXPECT().ClaimDue(ctx, fixedNow, 5).Return([]domain.DeliveryTask{task}, nil)
	gomock.InOrder(
		d.transactor.EXPECT().Begin(ctx).Return(startTx, nil),
		d.transactor.EXPECT().Begin(ctx).Return(finishTx, nil),
	)
	d.orderRepo.EXPECT().GetByIDForUpdate(ctx, gomock.Any(), order.ID).Return(order, nil).Times(2)
	d.productRepo.EXPECT().GetByID(ctx, order.ProductID).Return(nil, nil)
	d.fulfiller.EXPECT().Deliver(ctx, order, nil).Return("", errors.New("provider down"))
	d.orderRepo.EXPECT().Update(ctx, finishTx, order).Return(nil)
	d.tasks.EXPECT().Fail(ctx, finishTx, task.ID, "provider down").Return(nil)
	d.notifier.EXPECT().Notify(ctx, gomock.Any()).Return(&domain.Notification{}, nil)

	_, err := d.worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, finishTx.committed)
	assert.Equal(t, domain.OrderStatusFailed, order.Status)
}

func TestDeliveryWorker_SkipsRefundedOrder(t *testing.T) {
	d := setupDeliveryWorker(t)
	ctx := context.Background()
	tx := &mockTx{}
	order := paidOrder()
	order.Status = domain.OrderStatusRefunded
	order.PaymentStatus = domain.PaymentStatusRefunded
	task := *domain.NewDeliveryTask(order.ID, fixedNow, fixedNow)

	d.tasks.EXPECT().ClaimDue(ctx, fixedNow, 5).Return([]domain.DeliveryTask{task}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.orderRepo.EXPECT().GetByIDForUpdate(ctx, tx, order.ID).Return(order, nil)
	d.tasks.EXPECT().Complete(ctx, tx, task.ID).Return(nil)

	_, err := d.worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, tx.committed)
}

func TestDeliveryWorker_RefundDuringDeliveryIsKept(t *testing.T) {
	d := setupDeliveryWorker(t)
	ctx := context.Background()
	startTx, finishTx := &mockTx{}, &mockTx{}
	order := paidOrder()
	product := testProduct(domain.ProductStatusActive)
	task := *domain.NewDeliveryTask(order.ID, fixedNow, fixedNow)
	task.Attempts = 1

	// the row as an admin refund leaves it while the fulfiller is running
	refunded := *order
	refunded.Status = domain.OrderStatusRefunded
	refunded.PaymentStatus = domain.PaymentStatusRefunded

	d.tasks.EXPECT().ClaimDue(ctx, fixedNow, 5).Return([]domain.DeliveryTask{task}, nil)
	gomock.InOrder(
		d.transactor.EXPECT().Begin(ctx).Return(startTx, nil),
		d.orderRepo.EXPECT().GetByIDForUpdate(ctx, startTx, order.ID).Return(order, nil),
		d.orderRepo.EXPECT().Update(ctx, startTx, order).Return(nil),
		d.productRepo.EXPECT().GetByID(ctx, order.ProductID).Return(product, nil),
		d.fulfiller.EXPECT().Deliver(ctx, order, product).Return("Delivered to player 5123456789", nil),
		d.transactor.EXPECT().Begin(ctx).Return(finishTx, nil),
		d.orderRepo.EXPECT().GetByIDForUpdate(ctx, finishTx, order.ID).Return(&refunded, nil),
		d.tasks.EXPECT().Complete(ctx, finishTx, task.ID).Return(nil),
	)

	_, err := d.worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, finishTx.committed)
	assert.Equal(t, domain.OrderStatusRefunded, refunded.Status)
	assert.Equal(t, domain.PaymentStatusRefunded, refunded.PaymentStatus)
	assert.Nil(t, refunded.DeliveryData)
}

func TestDeliveryWorker_MissingOrderFailsTask(t *testing.T) {
	d := setupDeliveryWorker(t)
	ctx := context.Background()
	tx := &mockTx{}
	task := *domain.NewDeliveryTask(uuid.New(), fixedNow, fixedNow)

	d.tasks.EXPECT().ClaimDue(ctx, fixedNow, 5).Return([]domain.DeliveryTask{task}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.orderRepo.EXPECT().GetByIDForUpdate(ctx, tx, task.OrderID).Return(nil, nil)
	d.tasks.EXPECT().Fail(ctx, tx, task.ID, "order not found").Return(nil)

	_, err := d.worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, tx.committed)
}

func TestDeliveryWorker_RunRequeuesStaleAndStops(t *testing.T) {
	d := setupDeliveryWorker(t)
	ctx, cancel := context.WithCancel(context.Background())

	d.tasks.EXPECT().RequeueStale(gomock.Any(), fixedNow.Add(-time.Minute)).Return(int64(2), nil)
	d.tasks.EXPECT().ClaimDue(gomock.Any(), fixedNow, 5).DoAndReturn(func(context.Context, time.Time, int) ([]domain.DeliveryTask, error) {
		cancel()
		return nil, nil
	}).MinTimes(1)

	done := make(chan struct{})
	go func() {
		d.worker.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
