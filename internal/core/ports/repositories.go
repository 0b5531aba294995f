package ports

import (
	"context"
	"errors"
	"time"

	"recharge-store/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

// ErrAlreadyExists is returned by repositories when a unique constraint is violated.
var ErrAlreadyExists = errors.New("already exists")

// ErrNegativeBalance is returned when the database balance CHECK rejects a write.
var ErrNegativeBalance = errors.New("balance would become negative")

// Repository methods that accept a pgx.Tx run inside that transaction.
// A nil tx runs the statement directly on the pool.

// DBTransactor abstracts starting a database transaction.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PageRequest is a 1-based page request.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps the page request to sane values.
func (p PageRequest) Normalize(defaultLimit, maxLimit int) PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Offset returns the SQL offset for the page.
func (p PageRequest) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// UserFilter narrows user listings.
type UserFilter struct {
	Search string // matches username or email
	PageRequest
}

// UserRepository defines data access for users.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, u *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (emailTaken, usernameTaken bool, err error)
	UpdateProfile(ctx context.Context, u *domain.User) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SetWalletBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetRole(ctx context.Context, id uuid.UUID, role domain.UserRole) error
	List(ctx context.Context, filter UserFilter) ([]domain.User, int64, error)
}

// WalletRepository defines data access for wallets.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetOrCreate(ctx context.Context, userID uuid.UUID, currency string) (*domain.Wallet, error)
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
	Update(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error
}

// TransactionFilter narrows ledger listings.
type TransactionFilter struct {
	UserID *uuid.UUID
	Type   domain.TransactionType
	Status domain.TransactionStatus
	PageRequest
}

// TransactionRepository defines data access for ledger entries.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	SumPendingWithdrawals(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (decimal.Decimal, error)
	List(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, int64, error)
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	UserID *uuid.UUID
	Status domain.OrderStatus
	PageRequest
}

// OrderRepository defines data access for orders.
type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, o *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error)
	Update(ctx context.Context, tx pgx.Tx, o *domain.Order) error
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int64, error)
}

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	Category domain.ProductCategory
	Status   domain.ProductStatus
	Search   string
	PageRequest
}

// ProductRepository defines data access for the catalog.
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int64, error)
}

// CouponRepository defines data access for coupons.
type CouponRepository interface {
	Create(ctx context.Context, c *domain.Coupon) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error)
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	Update(ctx context.Context, c *domain.Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page PageRequest) ([]domain.Coupon, int64, error)
	// Redeem atomically increments used_count if the coupon is still valid at now.
	Redeem(ctx context.Context, tx pgx.Tx, id uuid.UUID, now time.Time) (bool, error)
}

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	UnreadOnly bool
	PageRequest
}

// NotificationRepository defines data access for notifications. Every
// mutation is scoped to the owning user.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	List(ctx context.Context, userID uuid.UUID, filter NotificationFilter) ([]domain.Notification, int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	Delete(ctx context.Context, userID, id uuid.UUID) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// DeliveryTaskRepository is the durable fulfillment queue.
type DeliveryTaskRepository interface {
	Enqueue(ctx context.Context, tx pgx.Tx, t *domain.DeliveryTask) error
	// ClaimDue marks up to limit due queued tasks as running and returns them.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.DeliveryTask, error)
	Complete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	Reschedule(ctx context.Context, id uuid.UUID, runAt time.Time, lastErr string) error
	Fail(ctx context.Context, tx pgx.Tx, id uuid.UUID, lastErr string) error
	// RequeueStale returns running tasks last touched before cutoff to the queue.
	RequeueStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// ReportRepository runs read-side aggregations.
type ReportRepository interface {
	CountUsers(ctx context.Context) (int64, error)
	CountProducts(ctx context.Context) (int64, error)
	OrderTotals(ctx context.Context) (total, pending int64, revenue decimal.Decimal, err error)
	AggregateOrders(ctx context.Context, r domain.DateRange) (*domain.OrderAggregate, error)
	CountNewUsers(ctx context.Context, r domain.DateRange) (int64, error)
	DailySales(ctx context.Context, r domain.DateRange) ([]domain.DailySales, error)
	TopProducts(ctx context.Context, r domain.DateRange, limit int) ([]domain.TopProduct, error)
	UserStats(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error)
}
