package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, order_number, user_id, product_id, product_name, quantity, unit_price, subtotal,
	discount_amount, total_amount, coupon_code, game_id, status, payment_status, payment_method,
	transaction_id, delivery_data, created_at, updated_at`

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	pool Pool
}

func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

func (r *OrderRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := on(r.pool, tx).Exec(ctx, query,
		o.ID, o.OrderNumber, o.UserID, o.ProductID, o.ProductName, o.Quantity, o.UnitPrice, o.Subtotal,
		o.DiscountAmount, o.TotalAmount, o.CouponCode, o.GameID, o.Status, o.PaymentStatus, o.PaymentMethod,
		o.TransactionID, o.DeliveryData, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", mapPgError(err))
	}
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate locks the order row until tx ends.
// This MUST be called within a transaction.
func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return scanOrder(tx.QueryRow(ctx, query, id))
}

// Update persists the mutable lifecycle fields of an order.
func (r *OrderRepo) Update(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	query := `UPDATE orders SET status = $1, payment_status = $2, payment_method = $3,
		transaction_id = $4, delivery_data = $5, updated_at = $6 WHERE id = $7`

	tag, err := on(r.pool, tx).Exec(ctx, query,
		o.Status, o.PaymentStatus, o.PaymentMethod, o.TransactionID, o.DeliveryData, o.UpdatedAt, o.ID)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", o.ID)
	}
	return nil
}

// List returns a page of orders, newest first.
func (r *OrderRepo) List(ctx context.Context, filter ports.OrderFilter) ([]domain.Order, int64, error) {
	var conditions []string
	var args []any

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, total, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.ProductID, &o.ProductName, &o.Quantity, &o.UnitPrice, &o.Subtotal,
		&o.DiscountAmount, &o.TotalAmount, &o.CouponCode, &o.GameID, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.TransactionID, &o.DeliveryData, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}
