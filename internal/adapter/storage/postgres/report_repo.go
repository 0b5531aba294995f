package postgres

import (
	"context"
	"fmt"
	"time"

	"recharge-store/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportRepo implements ports.ReportRepository with read-only aggregate queries.
type ReportRepo struct {
	pool Pool
}

func NewReportRepo(pool Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

func (r *ReportRepo) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *ReportRepo) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// OrderTotals returns all-time order count, pending count and completed revenue.
func (r *ReportRepo) OrderTotals(ctx context.Context) (int64, int64, decimal.Decimal, error) {
	query := `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'pending'),
		COALESCE(SUM(total_amount) FILTER (WHERE status = 'completed'), 0)
		FROM orders`

	var total, pending int64
	var revenue decimal.Decimal
	if err := r.pool.QueryRow(ctx, query).Scan(&total, &pending, &revenue); err != nil {
		return 0, 0, decimal.Zero, fmt.Errorf("order totals: %w", err)
	}
	return total, pending, revenue, nil
}

// AggregateOrders summarises orders created inside the range.
func (r *ReportRepo) AggregateOrders(ctx context.Context, rng domain.DateRange) (*domain.OrderAggregate, error) {
	query := `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'completed'),
		COUNT(*) FILTER (WHERE payment_status IN ('paid', 'refunded')),
		COALESCE(SUM(total_amount) FILTER (WHERE status = 'completed'), 0)
		FROM orders WHERE created_at >= $1 AND created_at <= $2`

	agg := &domain.OrderAggregate{}
	err := r.pool.QueryRow(ctx, query, rng.Start, rng.End).Scan(
		&agg.TotalOrders, &agg.CompletedOrders, &agg.PaidOrders, &agg.CompletedSales)
	if err != nil {
		return nil, fmt.Errorf("aggregate orders: %w", err)
	}
	return agg, nil
}

func (r *ReportRepo) CountNewUsers(ctx context.Context, rng domain.DateRange) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE created_at >= $1 AND created_at <= $2`, rng.Start, rng.End).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count new users: %w", err)
	}
	return n, nil
}

// DailySales buckets completed orders by UTC day. Days without sales are absent.
func (r *ReportRepo) DailySales(ctx context.Context, rng domain.DateRange) ([]domain.DailySales, error) {
	query := `SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day,
		COALESCE(SUM(total_amount), 0), COUNT(*)
		FROM orders
		WHERE status = 'completed' AND created_at >= $1 AND created_at <= $2
		GROUP BY day ORDER BY day`

	rows, err := r.pool.Query(ctx, query, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}
	defer rows.Close()

	var out []domain.DailySales
	for rows.Next() {
		var day time.Time
		d := domain.DailySales{}
		if err := rows.Scan(&day, &d.Amount, &d.Orders); err != nil {
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}
		d.Date = day.Format(time.DateOnly)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily sales: %w", err)
	}
	return out, nil
}

// TopProducts ranks products by completed order count inside the range.
func (r *ReportRepo) TopProducts(ctx context.Context, rng domain.DateRange, limit int) ([]domain.TopProduct, error) {
	query := `SELECT o.product_id, p.name, COUNT(*) AS sales, COALESCE(SUM(o.total_amount), 0)
		FROM orders o JOIN products p ON p.id = o.product_id
		WHERE o.status = 'completed' AND o.created_at >= $1 AND o.created_at <= $2
		GROUP BY o.product_id, p.name
		ORDER BY sales DESC, p.name ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, rng.Start, rng.End, limit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	var out []domain.TopProduct
	for rows.Next() {
		p := domain.TopProduct{}
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Sales, &p.Revenue); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top products: %w", err)
	}
	return out, nil
}

// UserStats summarises a single user's order history.
func (r *ReportRepo) UserStats(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	query := `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'completed'),
		COUNT(*) FILTER (WHERE status = 'pending'),
		COALESCE(SUM(total_amount) FILTER (WHERE payment_status = 'paid'), 0)
		FROM orders WHERE user_id = $1`

	s := &domain.UserStats{}
	if err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.TotalOrders, &s.CompletedOrders, &s.PendingOrders, &s.TotalSpent); err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	return s, nil
}
