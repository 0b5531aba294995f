package ports

import (
	"context"
	"time"

	"recharge-store/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// EncryptionService provides AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// HashService provides password hashing using Argon2id.
type HashService interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

// TokenService provides JWT token generation and validation.
type TokenService interface {
	Generate(userID uuid.UUID, role domain.UserRole) (string, time.Time, error)
	Validate(tokenStr string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID    uuid.UUID
	Role      domain.UserRole
	ExpiresAt time.Time
}

// IdempotencyCache replays results for retried requests. Reserve claims key
// for the first caller; later callers receive the stored result, or
// acquired=false with no result while the first caller is still working.
type IdempotencyCache interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (cached []byte, acquired bool, err error)
	Store(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// LockStore provides short-lived distributed locks.
type LockStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RealtimePublisher pushes notifications to connected clients.
type RealtimePublisher interface {
	Publish(ctx context.Context, n *domain.Notification) error
}

// RealtimeSubscriber delivers a user's notification stream. The returned
// function releases the subscription.
type RealtimeSubscriber interface {
	Subscribe(ctx context.Context, userID uuid.UUID) (<-chan []byte, func(), error)
}

// ReportStore persists exported report files and returns their location.
type ReportStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// ChargeRequest is sent to a payment provider.
type ChargeRequest struct {
	Purpose     string // "deposit" or "order"
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Method      string
	Reference   string
	PaymentData map[string]string
}

// ChargeResult is the provider's verdict.
type ChargeResult struct {
	Approved      bool
	TransactionID string
	Message       string
}

// PaymentGateway charges a payment method.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// Fulfiller delivers a paid order to the player and returns delivery data.
type Fulfiller interface {
	Deliver(ctx context.Context, order *domain.Order, product *domain.Product) (string, error)
}

// ---- Auth ----

// RegisterRequest is the input for user registration.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	Phone    string
}

// LoginRequest is the input for login.
type LoginRequest struct {
	Email    string
	Password string
}

// UpdateProfileRequest carries optional profile changes.
type UpdateProfileRequest struct {
	Username *string
	Phone    *string
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// AuthService handles registration, login and identity lookup.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResult, error)
	Authenticate(ctx context.Context, token string) (*domain.User, error)
	Me(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*domain.User, error)
}

// UserAdminService manages accounts on behalf of staff.
type UserAdminService interface {
	ListUsers(ctx context.Context, filter UserFilter) (*UserPage, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*domain.User, error)
	SetRole(ctx context.Context, id uuid.UUID, role domain.UserRole) (*domain.User, error)
	PromoteByEmail(ctx context.Context, email string, role domain.UserRole) (*domain.User, error)
}

// UserPage is a page of users.
type UserPage struct {
	Items []domain.User
	Total int64
	Page  PageRequest
}

// ---- Ledger ----

// LedgerEntry describes a completed balance mutation posted inside a DB transaction.
type LedgerEntry struct {
	UserID        uuid.UUID
	Amount        decimal.Decimal
	Type          domain.TransactionType
	PaymentMethod string
	Description   string
	OrderID       *uuid.UUID
	ReferenceID   string
	Metadata      map[string]string
}

// LedgerResult is the wallet state after a posted entry.
type LedgerResult struct {
	Wallet      *domain.Wallet      `json:"wallet"`
	Transaction *domain.Transaction `json:"transaction"`
}

// Ledger posts balance mutations inside a caller-owned transaction.
type Ledger interface {
	Post(ctx context.Context, tx pgx.Tx, entry LedgerEntry) (*LedgerResult, error)
}

// DepositRequest is the input for a wallet deposit.
type DepositRequest struct {
	UserID         uuid.UUID
	Amount         decimal.Decimal
	PaymentMethod  string
	IdempotencyKey string
}

// WithdrawalRequest is the input for a withdrawal request.
type WithdrawalRequest struct {
	UserID      uuid.UUID
	Amount      decimal.Decimal
	BankDetails map[string]string
}

// ReviewTransactionRequest moves a pending transaction to a final status.
type ReviewTransactionRequest struct {
	TransactionID uuid.UUID
	Status        domain.TransactionStatus
	ReviewerID    uuid.UUID
	Note          string
}

// TransactionPage is a page of ledger entries.
type TransactionPage struct {
	Items []domain.Transaction
	Total int64
	Page  PageRequest
}

// TransactionDetail is the staff view of a transaction.
type TransactionDetail struct {
	Transaction *domain.Transaction
	BankDetails map[string]string
}

// LedgerService exposes wallet operations.
type LedgerService interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	Deposit(ctx context.Context, req DepositRequest) (*LedgerResult, error)
	RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (*domain.Transaction, error)
	ReviewTransaction(ctx context.Context, req ReviewTransactionRequest) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) (*TransactionPage, error)
	RevealTransaction(ctx context.Context, id uuid.UUID) (*TransactionDetail, error)
}

// ---- Orders & payments ----

// CreateOrderRequest is the input for placing an order.
type CreateOrderRequest struct {
	UserID        uuid.UUID
	ProductID     uuid.UUID
	Quantity      int
	GameID        string
	PaymentMethod string
	CouponCode    string
}

// AdminUpdateOrderRequest overrides order fields.
type AdminUpdateOrderRequest struct {
	OrderID      uuid.UUID
	Status       *domain.OrderStatus
	DeliveryData *string
}

// OrderPage is a page of orders.
type OrderPage struct {
	Items []domain.Order
	Total int64
	Page  PageRequest
}

// OrderService manages the order lifecycle.
type OrderService interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) (*OrderPage, error)
	AdminUpdateOrder(ctx context.Context, req AdminUpdateOrderRequest) (*domain.Order, error)
	RefundOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
}

// ProcessPaymentRequest is the input for paying an order.
type ProcessPaymentRequest struct {
	UserID        uuid.UUID
	OrderID       uuid.UUID
	PaymentMethod string           // overrides the method chosen at order time
	ExpectedTotal *decimal.Decimal // when set, must equal the order total
	PaymentData   map[string]string
}

// PaymentResult is the outcome of a successful payment.
type PaymentResult struct {
	Order       *domain.Order
	Transaction *domain.Transaction // set for wallet payments
	NewBalance  *decimal.Decimal    // set for wallet payments
}

// PaymentService pays orders.
type PaymentService interface {
	ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*PaymentResult, error)
}

// ---- Catalog ----

// ProductInput carries product fields for create and update.
type ProductInput struct {
	Name         string
	Description  string
	Category     domain.ProductCategory
	GameName     string
	GameID       string
	Price        decimal.Decimal
	Currency     string
	Stock        int
	Image        string
	AutoDelivery bool
	DeliveryTime string
	Status       domain.ProductStatus
}

// ProductPage is a page of products.
type ProductPage struct {
	Items []domain.Product
	Total int64
	Page  PageRequest
}

// CatalogService manages products.
type CatalogService interface {
	ListProducts(ctx context.Context, filter ProductFilter) (*ProductPage, error)
	GetProduct(ctx context.Context, id uuid.UUID, includeInactive bool) (*domain.Product, error)
	CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (*domain.Product, error)
	DeactivateProduct(ctx context.Context, id uuid.UUID) error
}

// ---- Coupons ----

// ValidateCouponRequest previews a coupon against an amount.
type ValidateCouponRequest struct {
	Code     string
	Amount   decimal.Decimal
	Category domain.ProductCategory
}

// CouponQuote is the preview result.
type CouponQuote struct {
	Coupon   *domain.Coupon
	Discount domain.Discount
}

// CouponInput carries coupon fields for create and update.
type CouponInput struct {
	Code                 string
	Description          string
	DiscountType         domain.DiscountType
	DiscountValue        decimal.Decimal
	MinimumAmount        decimal.Decimal
	MaximumDiscount      *decimal.Decimal
	UsageLimit           int
	ValidFrom            time.Time
	ValidUntil           time.Time
	IsActive             bool
	ApplicableCategories []string
	CreatedBy            *uuid.UUID
}

// CouponPage is a page of coupons.
type CouponPage struct {
	Items []domain.Coupon
	Total int64
	Page  PageRequest
}

// CouponService validates and manages coupons.
type CouponService interface {
	Validate(ctx context.Context, req ValidateCouponRequest) (*CouponQuote, error)
	Create(ctx context.Context, in CouponInput) (*domain.Coupon, error)
	Update(ctx context.Context, id uuid.UUID, in CouponInput) (*domain.Coupon, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page PageRequest) (*CouponPage, error)
}

// ---- Notifications ----

// NotifyRequest is the input for creating a notification.
type NotifyRequest struct {
	UserID       uuid.UUID
	Title        string
	Message      string
	Type         domain.NotificationType
	Priority     domain.NotificationPriority
	RelatedModel domain.RelatedModel
	RelatedID    *uuid.UUID
}

// Notifier appends notifications. Failures never abort the caller's operation.
type Notifier interface {
	Notify(ctx context.Context, req NotifyRequest) (*domain.Notification, error)
}

// NotificationPage is a page of notifications plus the unread count.
type NotificationPage struct {
	Items       []domain.Notification
	Total       int64
	UnreadCount int64
	Page        PageRequest
}

// NotificationService manages a user's notifications.
type NotificationService interface {
	Notifier
	List(ctx context.Context, userID uuid.UUID, filter NotificationFilter) (*NotificationPage, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	Subscribe(ctx context.Context, userID uuid.UUID) (<-chan []byte, func(), error)
	Sweep(ctx context.Context) (int64, error)
}

// ---- Reporting ----

// ExportResult describes an exported report file.
type ExportResult struct {
	Key      string
	Location string
	Rows     int
}

// ReportingService provides read-side dashboards.
type ReportingService interface {
	DashboardStats(ctx context.Context) (*domain.DashboardStats, error)
	SalesReport(ctx context.Context, r domain.DateRange) (*domain.SalesReport, error)
	UserStats(ctx context.Context, actor domain.Actor, userID uuid.UUID) (*domain.UserStats, error)
	ExportSalesReport(ctx context.Context, r domain.DateRange) (*ExportResult, error)
}

// AuditService records audit trail entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
