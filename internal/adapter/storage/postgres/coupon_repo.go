package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const couponColumns = `id, code, description, discount_type, discount_value, minimum_amount, maximum_discount,
	usage_limit, used_count, valid_from, valid_until, is_active, applicable_categories, created_by,
	created_at, updated_at`

// CouponRepo implements ports.CouponRepository.
type CouponRepo struct {
	pool Pool
}

func NewCouponRepo(pool Pool) *CouponRepo {
	return &CouponRepo{pool: pool}
}

// Create inserts a coupon. A duplicate code yields ports.ErrAlreadyExists.
func (r *CouponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	query := `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.Code, c.Description, c.DiscountType, c.DiscountValue, c.MinimumAmount, c.MaximumDiscount,
		c.UsageLimit, c.UsedCount, c.ValidFrom, c.ValidUntil, c.IsActive, c.ApplicableCategories, c.CreatedBy,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert coupon: %w", mapPgError(err))
	}
	return nil
}

func (r *CouponRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`
	return scanCoupon(r.pool.QueryRow(ctx, query, id))
}

// GetByCode looks a coupon up by its normalized code.
func (r *CouponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`
	return scanCoupon(r.pool.QueryRow(ctx, query, domain.NormalizeCouponCode(code)))
}

func (r *CouponRepo) Update(ctx context.Context, c *domain.Coupon) error {
	query := `UPDATE coupons SET code = $1, description = $2, discount_type = $3, discount_value = $4,
		minimum_amount = $5, maximum_discount = $6, usage_limit = $7, valid_from = $8, valid_until = $9,
		is_active = $10, applicable_categories = $11, updated_at = $12 WHERE id = $13`

	tag, err := r.pool.Exec(ctx, query,
		c.Code, c.Description, c.DiscountType, c.DiscountValue,
		c.MinimumAmount, c.MaximumDiscount, c.UsageLimit, c.ValidFrom, c.ValidUntil,
		c.IsActive, c.ApplicableCategories, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update coupon: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("coupon not found: %s", c.ID)
	}
	return nil
}

func (r *CouponRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM coupons WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	return nil
}

func (r *CouponRepo) List(ctx context.Context, page ports.PageRequest) ([]domain.Coupon, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM coupons").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count coupons: %w", err)
	}

	query := `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []domain.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, 0, err
		}
		coupons = append(coupons, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate coupon rows: %w", err)
	}
	return coupons, total, nil
}

// Redeem consumes one use of the coupon. The guarded UPDATE makes concurrent
// redemptions unable to push used_count past usage_limit; false means the
// coupon was no longer valid.
func (r *CouponRepo) Redeem(ctx context.Context, tx pgx.Tx, id uuid.UUID, now time.Time) (bool, error) {
	query := `UPDATE coupons SET used_count = used_count + 1, updated_at = $2
		WHERE id = $1 AND is_active AND used_count < usage_limit AND valid_from <= $2 AND valid_until >= $2`

	tag, err := on(r.pool, tx).Exec(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("redeem coupon: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanCoupon(row pgx.Row) (*domain.Coupon, error) {
	c := &domain.Coupon{}
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &c.DiscountType, &c.DiscountValue, &c.MinimumAmount, &c.MaximumDiscount,
		&c.UsageLimit, &c.UsedCount, &c.ValidFrom, &c.ValidUntil, &c.IsActive, &c.ApplicableCategories, &c.CreatedBy,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan coupon: %w", err)
	}
	return c, nil
}
