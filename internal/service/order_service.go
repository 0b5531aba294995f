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
	"github.com/shopspring/decimal"
)

const maxOrderQuantity = 100

// OrderServiceImpl implements ports.OrderService.
type OrderServiceImpl struct {
	orderRepo   ports.OrderRepository
	productRepo ports.ProductRepository
	couponRepo  ports.CouponRepository
	ledger      ports.Ledger
	transactor  ports.DBTransactor
	notifier    ports.Notifier
	log         zerolog.Logger
	now         func() time.Time
}

// NewOrderService creates a new OrderServiceImpl.
func NewOrderService(
	orderRepo ports.OrderRepository,
	productRepo ports.ProductRepository,
	couponRepo ports.CouponRepository,
	ledger ports.Ledger,
	transactor ports.DBTransactor,
	notifier ports.Notifier,
	log zerolog.Logger,
) *OrderServiceImpl {
	return &OrderServiceImpl{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		couponRepo:  couponRepo,
		ledger:      ledger,
		transactor:  transactor,
		notifier:    notifier,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder prices an order and persists it as pending. A coupon is
// redeemed in the same transaction as the order insert.
func (s *OrderServiceImpl) CreateOrder(ctx context.Context, req ports.CreateOrderRequest) (*domain.Order, error) {
	req.GameID = strings.TrimSpace(req.GameID)
	switch {
	case req.Quantity < 1 || req.Quantity > maxOrderQuantity:
		return nil, apperror.Validation(fmt.Sprintf("quantity must be between 1 and %d", maxOrderQuantity))
	case req.GameID == "":
		return nil, apperror.Validation("game_id is required")
	case strings.TrimSpace(req.PaymentMethod) == "":
		return nil, apperror.Validation("payment_method is required")
	}

	product, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get product: %w", err))
	}
	if product == nil {
		return nil, apperror.ErrNotFound("product")
	}
	if !product.IsActive() {
		return nil, apperror.ErrProductUnavailable()
	}

	now := s.now()
	subtotal := product.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))
	order := &domain.Order{
		ID:             uuid.New(),
		OrderNumber:    domain.NewOrderNumber(now),
		UserID:         req.UserID,
		ProductID:      product.ID,
		ProductName:    product.Name,
		Quantity:       req.Quantity,
		UnitPrice:      product.Price,
		Subtotal:       subtotal,
		DiscountAmount: decimal.Zero,
		TotalAmount:    subtotal,
		GameID:         req.GameID,
		Status:         domain.OrderStatusPending,
		PaymentStatus:  domain.PaymentStatusPending,
		PaymentMethod:  strings.TrimSpace(req.PaymentMethod),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var coupon *domain.Coupon
	if code := domain.NormalizeCouponCode(req.CouponCode); code != "" {
		coupon, err = s.couponRepo.GetByCode(ctx, code)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get coupon: %w", err))
		}
		if coupon == nil {
			return nil, apperror.ErrInvalidCoupon()
		}
		discount, err := quoteCoupon(coupon, subtotal, product.Category, now)
		if err != nil {
			return nil, err
		}
		order.DiscountAmount = discount.Discount
		order.TotalAmount = discount.FinalAmount
		order.CouponCode = &coupon.Code
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if coupon != nil {
		redeemed, err := s.couponRepo.Redeem(ctx, dbTx, coupon.ID, now)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("redeem coupon: %w", err))
		}
		if !redeemed {
			return nil, apperror.ErrInvalidCoupon()
		}
	}

	if err := s.orderRepo.Create(ctx, dbTx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create order: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	metrics.OrdersCreated.Inc()

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("user_id", order.UserID.String()).
		Str("total", order.TotalAmount.StringFixed(2)).
		Msg("order created")

	notifyQuietly(ctx, s.notifier, s.log, ports.NotifyRequest{
		UserID:       order.UserID,
		Title:        "Order created",
		Message:      fmt.Sprintf("Order %s for %s is awaiting payment", order.OrderNumber, product.Name),
		Type:         domain.NotificationOrder,
		Priority:     domain.PriorityMedium,
		RelatedModel: domain.RelatedOrder,
		RelatedID:    &order.ID,
	})

	return order, nil
}

// GetOrder returns an order visible to actor. Other users' orders read as
// forbidden; staff may read any order.
func (s *OrderServiceImpl) GetOrder(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if !actor.CanAccess(order.UserID) && !actor.IsStaff() {
		return nil, apperror.ErrForbidden()
	}
	return order, nil
}

func (s *OrderServiceImpl) ListOrders(ctx context.Context, filter ports.OrderFilter) (*ports.OrderPage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown order status %q", filter.Status))
	}
	filter.PageRequest = filter.PageRequest.Normalize(defaultPageLimit, maxPageLimit)

	items, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list orders: %w", err))
	}
	return &ports.OrderPage{Items: items, Total: total, Page: filter.PageRequest}, nil
}

// AdminUpdateOrder overrides status and delivery data without any
// transition checks.
func (s *OrderServiceImpl) AdminUpdateOrder(ctx context.Context, req ports.AdminUpdateOrderRequest) (*domain.Order, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown order status %q", *req.Status))
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
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}

	previous := order.Status
	if req.Status != nil {
		order.Status = *req.Status
	}
	if req.DeliveryData != nil {
		order.DeliveryData = req.DeliveryData
	}
	order.UpdatedAt = s.now()

	if err := s.orderRepo.Update(ctx, dbTx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update order: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("from", string(previous)).
		Str("to", string(order.Status)).
		Msg("order updated by staff")

	if order.Status != previous {
		notifyQuietly(ctx, s.notifier, s.log, ports.NotifyRequest{
			UserID:       order.UserID,
			Title:        "Order updated",
			Message:      fmt.Sprintf("Order %s is now %s", order.OrderNumber, order.Status),
			Type:         domain.NotificationOrder,
			Priority:     domain.PriorityMedium,
			RelatedModel: domain.RelatedOrder,
			RelatedID:    &order.ID,
		})
	}
	return order, nil
}

// RefundOrder credits the order total back to the buyer's wallet and marks
// the order refunded, atomically.
func (s *OrderServiceImpl) RefundOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := s.orderRepo.GetByIDForUpdate(ctx, dbTx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if order.PaymentStatus != domain.PaymentStatusPaid || order.Status == domain.OrderStatusRefunded {
		return nil, apperror.ErrOrderNotRefundable()
	}

	now := s.now()
	if order.TotalAmount.IsPositive() {
		if _, err := s.ledger.Post(ctx, dbTx, ports.LedgerEntry{
			UserID:      order.UserID,
			Amount:      order.TotalAmount,
			Type:        domain.TransactionTypeRefund,
			Description: "Refund for order " + order.OrderNumber,
			OrderID:     &order.ID,
			ReferenceID: domain.NewReferenceID("RFD", now),
		}); err != nil {
			return nil, err
		}
	}

	order.Status = domain.OrderStatusRefunded
	order.PaymentStatus = domain.PaymentStatusRefunded
	order.UpdatedAt = now
	if err := s.orderRepo.Update(ctx, dbTx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update order: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	metrics.Refunds.Inc()

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("amount", order.TotalAmount.StringFixed(2)).
		Msg("order refunded")

	notifyQuietly(ctx, s.notifier, s.log, ports.NotifyRequest{
		UserID:       order.UserID,
		Title:        "Order refunded",
		Message:      fmt.Sprintf("%s has been returned to your wallet for order %s", order.TotalAmount.StringFixed(2), order.OrderNumber),
		Type:         domain.NotificationPayment,
		Priority:     domain.PriorityHigh,
		RelatedModel: domain.RelatedOrder,
		RelatedID:    &order.ID,
	})

	return order, nil
}
