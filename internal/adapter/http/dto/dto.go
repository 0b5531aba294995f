package dto

import (
	"time"

	"recharge-store/internal/core/domain"

	"github.com/shopspring/decimal"
)

// ---- Auth ----

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128" sanitize:"-"`
	Phone    string `json:"phone" binding:"omitempty,phone_sa"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt int64        `json:"expires_at"` // Unix timestamp
	User      *domain.User `json:"user"`
}

// UpdateProfileRequest carries optional profile changes.
type UpdateProfileRequest struct {
	Username *string `json:"username" binding:"omitempty,min=3,max=30"`
	Phone    *string `json:"phone" binding:"omitempty,phone_sa"`
}

// ---- Wallet ----

// DepositRequest is the request body for a wallet deposit.
type DepositRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"required,gt=0"`
	PaymentMethod string          `json:"payment_method" binding:"required,max=50"`
}

// WithdrawRequest is the request body for a withdrawal request.
type WithdrawRequest struct {
	Amount      decimal.Decimal   `json:"amount" binding:"required,gt=0"`
	BankDetails map[string]string `json:"bank_details" binding:"required,min=1"`
}

// WalletPaymentRequest pays an order from the wallet.
type WalletPaymentRequest struct {
	OrderID string          `json:"order_id" binding:"required,uuid"`
	Amount  decimal.Decimal `json:"amount" binding:"required,gt=0"`
}

// WalletBalanceResponse is the response for a balance query.
type WalletBalanceResponse struct {
	Balance        decimal.Decimal `json:"balance"`
	TotalDeposited decimal.Decimal `json:"total_deposited"`
	TotalWithdrawn decimal.Decimal `json:"total_withdrawn"`
	Currency       string          `json:"currency"`
}

// DepositResponse is returned after a successful deposit.
type DepositResponse struct {
	NewBalance  decimal.Decimal     `json:"new_balance"`
	Transaction *domain.Transaction `json:"transaction"`
}

// WalletPaymentResponse is returned after a successful wallet payment.
type WalletPaymentResponse struct {
	NewBalance  decimal.Decimal     `json:"new_balance"`
	Order       *domain.Order       `json:"order"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

// TransactionQuery filters ledger listings.
type TransactionQuery struct {
	Type   string `form:"type" binding:"omitempty,oneof=deposit withdrawal payment refund bonus"`
	Status string `form:"status" binding:"omitempty,oneof=pending completed failed cancelled"`
	PageQuery
}

// TransactionDetailResponse is the staff view of a transaction.
type TransactionDetailResponse struct {
	Transaction *domain.Transaction `json:"transaction"`
	BankDetails map[string]string   `json:"bank_details,omitempty"`
}

// ReviewTransactionRequest moves a pending transaction to a final status.
type ReviewTransactionRequest struct {
	Status string `json:"status" binding:"required,oneof=completed failed cancelled"`
	Note   string `json:"note" binding:"max=500" sanitize:"html"`
}

// ---- Orders & payments ----

// CreateOrderRequest is the request body for placing an order.
type CreateOrderRequest struct {
	ProductID     string `json:"product_id" binding:"required,uuid"`
	Quantity      int    `json:"quantity" binding:"required,min=1,max=100"`
	GameID        string `json:"game_id" binding:"required,max=100"`
	PaymentMethod string `json:"payment_method" binding:"required,max=50"`
	CouponCode    string `json:"coupon_code" binding:"omitempty,max=50,coupon_code"`
}

// ProcessPaymentRequest pays an order through the payment gateway.
type ProcessPaymentRequest struct {
	OrderID       string            `json:"order_id" binding:"required,uuid"`
	PaymentMethod string            `json:"payment_method" binding:"omitempty,max=50"`
	PaymentData   map[string]string `json:"payment_data"`
}

// OrderQuery filters order listings.
type OrderQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=pending processing completed failed refunded"`
	PageQuery
}

// AdminUpdateOrderRequest overrides order fields.
type AdminUpdateOrderRequest struct {
	Status       *string `json:"status" binding:"omitempty,oneof=pending processing completed failed refunded"`
	DeliveryData *string `json:"delivery_data" binding:"omitempty,max=2000"`
}

// ---- Catalog ----

// ProductQuery filters catalog listings.
type ProductQuery struct {
	Category string `form:"category" binding:"omitempty,oneof=games apps gift_cards"`
	Search   string `form:"search" binding:"max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=active inactive"`
	PageQuery
}

// ProductRequest carries product fields for create and update.
type ProductRequest struct {
	Name         string          `json:"name" binding:"required,max=200" sanitize:"html"`
	Description  string          `json:"description" binding:"max=2000" sanitize:"html"`
	Category     string          `json:"category" binding:"required,oneof=games apps gift_cards"`
	GameName     string          `json:"game_name" binding:"max=100"`
	GameID       string          `json:"game_id" binding:"max=100"`
	Price        decimal.Decimal `json:"price" binding:"required,gt=0"`
	Currency     string          `json:"currency" binding:"omitempty,len=3"`
	Stock        int             `json:"stock" binding:"min=0"`
	Image        string          `json:"image" binding:"omitempty,safe_url"`
	AutoDelivery *bool           `json:"auto_delivery"`
	DeliveryTime string          `json:"delivery_time" binding:"max=50"`
	Status       string          `json:"status" binding:"omitempty,oneof=active inactive"`
}

// ---- Coupons ----

// ValidateCouponRequest previews a coupon against an amount.
type ValidateCouponRequest struct {
	Code     string          `json:"code" binding:"required,max=50"`
	Amount   decimal.Decimal `json:"amount" binding:"required,gt=0"`
	Category string          `json:"category" binding:"omitempty,oneof=games apps gift_cards"`
}

// CouponValidationResponse is the preview result.
type CouponValidationResponse struct {
	Coupon      *domain.Coupon  `json:"coupon"`
	Discount    decimal.Decimal `json:"discount"`
	FinalAmount decimal.Decimal `json:"final_amount"`
}

// CouponRequest carries coupon fields for create and update.
type CouponRequest struct {
	Code                 string           `json:"code" binding:"required,min=3,max=50,coupon_code"`
	Description          string           `json:"description" binding:"max=500" sanitize:"html"`
	DiscountType         string           `json:"discount_type" binding:"required,oneof=percentage fixed"`
	DiscountValue        decimal.Decimal  `json:"discount_value" binding:"required,gt=0"`
	MinimumAmount        decimal.Decimal  `json:"minimum_amount" binding:"gte=0"`
	MaximumDiscount      *decimal.Decimal `json:"maximum_discount" binding:"omitempty,gt=0"`
	UsageLimit           int              `json:"usage_limit" binding:"min=0"`
	ValidFrom            time.Time        `json:"valid_from" binding:"required"`
	ValidUntil           time.Time        `json:"valid_until" binding:"required,gtfield=ValidFrom"`
	IsActive             *bool            `json:"is_active"`
	ApplicableCategories []string         `json:"applicable_categories" binding:"omitempty,dive,oneof=all games apps gift_cards"`
}

// ---- Notifications ----

// NotificationQuery filters notification listings.
type NotificationQuery struct {
	UnreadOnly bool `form:"unread_only"`
	PageQuery
}

// NotificationListResponse adds the unread count to a page of notifications.
type NotificationListResponse struct {
	Page[domain.Notification]
	UnreadCount int64 `json:"unread_count"`
}

// AdminNotificationRequest sends a notification to one user.
type AdminNotificationRequest struct {
	UserID   string `json:"user_id" binding:"required,uuid"`
	Title    string `json:"title" binding:"required,max=200" sanitize:"html"`
	Message  string `json:"message" binding:"required,max=1000" sanitize:"html"`
	Type     string `json:"type" binding:"omitempty,oneof=info success warning error order payment"`
	Priority string `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
}

// ---- Admin ----

// UserQuery filters user listings.
type UserQuery struct {
	Search string `form:"search" binding:"max=100"`
	PageQuery
}

// UserStatusRequest activates or deactivates an account.
type UserStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// UserRoleRequest changes an account's role.
type UserRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user admin moderator"`
}

// ReportQuery selects a reporting window. Dates are YYYY-MM-DD or RFC 3339.
type ReportQuery struct {
	Start string `form:"start" json:"start"`
	End   string `form:"end" json:"end"`
}

// ExportResponse describes an exported report file.
type ExportResponse struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	Rows     int    `json:"rows"`
}

// ---- Pagination ----

// PageQuery is the common page/limit query string.
type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Page wraps a paginated listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPage builds a Page and computes the page count. A nil items slice is
// rendered as an empty JSON array.
func NewPage[T any](items []T, total int64, page, pageSize int) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Page[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
