package service

import (
	"context"
	"fmt"
	"time"

	"recharge-store/internal/adapter/gateway"
	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/internal/metrics"
	"recharge-store/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// PaymentConfig tunes order payment.
type PaymentConfig struct {
	LockTTL       time.Duration // lifetime of the per-order payment lock
	DeliveryDelay time.Duration // wait before an auto-delivery task becomes due
}

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	orderRepo    ports.OrderRepository
	productRepo  ports.ProductRepository
	deliveryRepo ports.DeliveryTaskRepository
	ledger       ports.Ledger
	gateway      ports.PaymentGateway
	locks        ports.LockStore
	transactor   ports.DBTransactor
	notifier     ports.Notifier
	cfg          PaymentConfig
	log          zerolog.Logger
	now          func() time.Time
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	orderRepo ports.OrderRepository,
	productRepo ports.ProductRepository,
	deliveryRepo ports.DeliveryTaskRepository,
	ledger ports.Ledger,
	gw ports.PaymentGateway,
	locks ports.LockStore,
	transactor ports.DBTransactor,
	notifier ports.Notifier,
	cfg PaymentConfig,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		deliveryRepo: deliveryRepo,
		ledger:       ledger,
		gateway:      gw,
		locks:        locks,
		transactor:   transactor,
		notifier:     notifier,
		cfg:          cfg,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func paymentLockKey(orderID uuid.UUID) string {
	return "order-payment:" + orderID.String()
}

// ProcessPayment pays an order from the wallet or through the gateway.
// Attempts on one order are serialized by a Redis lock and the order row lock.
func (s *PaymentServiceImpl) ProcessPayment(ctx context.Context, req ports.ProcessPaymentRequest) (*ports.PaymentResult, error) {
	key := paymentLockKey(req.OrderID)
	acquired, err := s.locks.Acquire(ctx, key, s.cfg.LockTTL)
	switch {
	case err != nil:
		// The row lock below still serializes attempts.
		s.log.Warn().Err(err).Str("order_id", req.OrderID.String()).Msg("payment lock unavailable")
	case !acquired:
		return nil, apperror.ErrPaymentInProgress()
	default:
		defer func() {
			if err := s.locks.Release(context.WithoutCancel(ctx), key); err != nil {
				s.log.Warn().Err(err).Str("order_id", req.OrderID.String()).Msg("failed to release payment lock")
			}
		}()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := s.orderRepo.GetByIDForUpdate(ctx, dbTx, req.OrderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order == nil || order.UserID != req.UserID {
		return nil, apperror.ErrNotFound("order")
	}
	if !order.CanPay() {
		return nil, apperror.ErrOrderNotPayable()
	}
	if req.ExpectedTotal != nil && !req.ExpectedTotal.Equal(order.TotalAmount) {
		return nil, apperror.ErrInvalidAmount("Payment amount does not match the order total")
	}

	method := req.PaymentMethod
	if method == "" {
		method = order.PaymentMethod
	}
	now := s.now()
	result := &ports.PaymentResult{Order: order}

	switch {
	case order.TotalAmount.IsZero():
		// Fully discounted orders have nothing to collect.
		order.MarkPaid(method, domain.NewReferenceID("FREE", now), now)
	case method == domain.PaymentMethodWallet:
		posted, err := s.ledger.Post(ctx, dbTx, ports.LedgerEntry{
			UserID:        order.UserID,
			Amount:        order.TotalAmount,
			Type:          domain.TransactionTypePayment,
			PaymentMethod: domain.PaymentMethodWallet,
			Description:   "Payment for order " + order.OrderNumber,
			OrderID:       &order.ID,
			ReferenceID:   domain.NewReferenceID("PAY", now),
		})
		if err != nil {
			metrics.Payments.WithLabelValues(metrics.PaymentMethodLabel(method), metrics.ResultDeclined).Inc()
			return nil, err
		}
		order.MarkPaid(method, posted.Transaction.ReferenceID, now)
		result.Transaction = posted.Transaction
		result.NewBalance = &posted.Wallet.Balance
	default:
		charge, err := s.gateway.Charge(ctx, ports.ChargeRequest{
			Purpose:     gateway.PurposeOrder,
			UserID:      order.UserID,
			Amount:      order.TotalAmount,
			Method:      method,
			Reference:   order.OrderNumber,
			PaymentData: req.PaymentData,
		})
		if err != nil {
			metrics.Payments.WithLabelValues(metrics.PaymentMethodLabel(method), metrics.ResultFailed).Inc()
			return nil, apperror.ErrGatewayUnavailable(err)
		}
		if !charge.Approved {
			return nil, s.recordDecline(ctx, dbTx, order, method, now)
		}
		order.MarkPaid(method, charge.TransactionID, now)
	}

	if err := s.scheduleDelivery(ctx, dbTx, order, now); err != nil {
		return nil, err
	}
	if err := s.orderRepo.Update(ctx, dbTx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update order: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	metrics.Payments.WithLabelValues(metrics.PaymentMethodLabel(method), metrics.ResultSuccess).Inc()

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("method", method).
		Str("amount", order.TotalAmount.StringFixed(2)).
		Msg("order paid")

	notifyQuietly(ctx, s.notifier, s.log, ports.NotifyRequest{
		UserID:       order.UserID,
		Title:        "Payment successful",
		Message:      fmt.Sprintf("Payment of %s for order %s was received", order.TotalAmount.StringFixed(2), order.OrderNumber),
		Type:         domain.NotificationPayment,
		Priority:     domain.PriorityHigh,
		RelatedModel: domain.RelatedPayment,
		RelatedID:    &order.ID,
	})

	return result, nil
}

// recordDecline persists payment_status=failed so the order stays
// retryable, then returns the decline error.
func (s *PaymentServiceImpl) recordDecline(ctx context.Context, tx pgx.Tx, order *domain.Order, method string, now time.Time) error {
	metrics.Payments.WithLabelValues(metrics.PaymentMethodLabel(method), metrics.ResultDeclined).Inc()

	order.PaymentStatus = domain.PaymentStatusFailed
	order.PaymentMethod = method
	order.UpdatedAt = now
	if err := s.orderRepo.Update(ctx, tx, order); err != nil {
		return apperror.InternalError(fmt.Errorf("record declined payment: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("order_id", order.ID.String()).Str("method", method).Msg("order payment declined")
	notifyQuietly(ctx, s.notifier, s.log, ports.NotifyRequest{
		UserID:       order.UserID,
		Title:        "Payment failed",
		Message:      fmt.Sprintf("Payment for order %s was declined. You can try again.", order.OrderNumber),
		Type:         domain.NotificationError,
		Priority:     domain.PriorityHigh,
		RelatedModel: domain.RelatedPayment,
		RelatedID:    &order.ID,
	})
	return apperror.ErrPaymentDeclined()
}

// scheduleDelivery enqueues fulfillment for auto-delivery products.
func (s *PaymentServiceImpl) scheduleDelivery(ctx context.Context, tx pgx.Tx, order *domain.Order, now time.Time) error {
	product, err := s.productRepo.GetByID(ctx, order.ProductID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get product: %w", err))
	}
	if product == nil || !product.AutoDelivery {
		return nil
	}
	task := domain.NewDeliveryTask(order.ID, now.Add(s.cfg.DeliveryDelay), now)
	if err := s.deliveryRepo.Enqueue(ctx, tx, task); err != nil {
		return apperror.InternalError(fmt.Errorf("enqueue delivery: %w", err))
	}
	return nil
}
