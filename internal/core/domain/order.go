package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusFailed, OrderStatusRefunded:
		return true
	}
	return false
}

// PaymentStatus is tracked independently from OrderStatus.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentMethodWallet pays an order from the user's wallet balance.
const PaymentMethodWallet = "wallet"

// Order is a purchase of a catalog product delivered to a game account.
type Order struct {
	ID             uuid.UUID       `json:"id"`
	OrderNumber    string          `json:"order_number"`
	UserID         uuid.UUID       `json:"user_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	ProductName    string          `json:"product_name,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CouponCode     *string         `json:"coupon_code,omitempty"`
	GameID         string          `json:"game_id"`
	Status         OrderStatus     `json:"status"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	PaymentMethod  string          `json:"payment_method"`
	TransactionID  *string         `json:"transaction_id,omitempty"`
	DeliveryData   *string         `json:"delivery_data,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CanPay reports whether a payment attempt is allowed. Orders whose previous
// attempt failed may be retried.
func (o *Order) CanPay() bool {
	return o.Status == OrderStatusPending &&
		(o.PaymentStatus == PaymentStatusPending || o.PaymentStatus == PaymentStatusFailed)
}

// IsClosed reports whether fulfillment reached a final state.
func (o *Order) IsClosed() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusFailed || o.Status == OrderStatusRefunded
}

// MarkPaid records a successful payment.
func (o *Order) MarkPaid(method, transactionRef string, now time.Time) {
	o.PaymentStatus = PaymentStatusPaid
	o.PaymentMethod = method
	o.TransactionID = &transactionRef
	o.UpdatedAt = now
}

// NewOrderNumber builds a unique, sortable order number.
func NewOrderNumber(now time.Time) string {
	return NewReferenceID("ORD", now)
}
