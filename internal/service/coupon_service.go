package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CouponServiceImpl implements ports.CouponService.
type CouponServiceImpl struct {
	repo ports.CouponRepository
	log  zerolog.Logger
	now  func() time.Time
}

// NewCouponService creates a new CouponServiceImpl.
func NewCouponService(repo ports.CouponRepository, log zerolog.Logger) *CouponServiceImpl {
	return &CouponServiceImpl{
		repo: repo,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Validate previews a coupon against amount without redeeming it.
func (s *CouponServiceImpl) Validate(ctx context.Context, req ports.ValidateCouponRequest) (*ports.CouponQuote, error) {
	code := domain.NormalizeCouponCode(req.Code)
	if code == "" {
		return nil, apperror.Validation("coupon code is required")
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount("Amount must be positive")
	}

	coupon, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get coupon: %w", err))
	}
	if coupon == nil {
		return nil, apperror.ErrNotFound("coupon")
	}

	discount, err := quoteCoupon(coupon, req.Amount, req.Category, s.now())
	if err != nil {
		return nil, err
	}
	return &ports.CouponQuote{Coupon: coupon, Discount: discount}, nil
}

func (s *CouponServiceImpl) Create(ctx context.Context, in ports.CouponInput) (*domain.Coupon, error) {
	if err := validateCouponInput(in); err != nil {
		return nil, err
	}

	now := s.now()
	c := &domain.Coupon{ID: uuid.New(), CreatedBy: in.CreatedBy, CreatedAt: now}
	applyCouponInput(c, in, now)

	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ports.ErrAlreadyExists) {
			return nil, apperror.ErrCouponExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create coupon: %w", err))
	}

	s.log.Info().Str("coupon_id", c.ID.String()).Str("code", c.Code).Msg("coupon created")
	return c, nil
}

func (s *CouponServiceImpl) Update(ctx context.Context, id uuid.UUID, in ports.CouponInput) (*domain.Coupon, error) {
	if err := validateCouponInput(in); err != nil {
		return nil, err
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get coupon: %w", err))
	}
	if c == nil {
		return nil, apperror.ErrNotFound("coupon")
	}

	applyCouponInput(c, in, s.now())
	if err := s.repo.Update(ctx, c); err != nil {
		if errors.Is(err, ports.ErrAlreadyExists) {
			return nil, apperror.ErrCouponExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("update coupon: %w", err))
	}
	return c, nil
}

func (s *CouponServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get coupon: %w", err))
	}
	if c == nil {
		return apperror.ErrNotFound("coupon")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperror.InternalError(fmt.Errorf("delete coupon: %w", err))
	}
	s.log.Info().Str("coupon_id", id.String()).Str("code", c.Code).Msg("coupon deleted")
	return nil
}

func (s *CouponServiceImpl) List(ctx context.Context, page ports.PageRequest) (*ports.CouponPage, error) {
	page = page.Normalize(defaultPageLimit, maxPageLimit)
	items, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list coupons: %w", err))
	}
	return &ports.CouponPage{Items: items, Total: total, Page: page}, nil
}

// quoteCoupon applies a coupon and maps domain failures to API errors.
func quoteCoupon(c *domain.Coupon, amount decimal.Decimal, category domain.ProductCategory, now time.Time) (domain.Discount, error) {
	if category != "" && !c.AppliesTo(category) {
		return domain.Discount{}, apperror.ErrCouponNotApplicable()
	}
	discount, err := c.ApplyDiscount(amount, now)
	switch {
	case err == nil:
		return discount, nil
	case errors.Is(err, domain.ErrCouponMinimumNotMet):
		return domain.Discount{}, apperror.ErrCouponMinimumNotMet()
	case errors.Is(err, domain.ErrCouponInvalid):
		return domain.Discount{}, apperror.ErrInvalidCoupon()
	default:
		return domain.Discount{}, apperror.InternalError(err)
	}
}

func validateCouponInput(in ports.CouponInput) error {
	if domain.NormalizeCouponCode(in.Code) == "" {
		return apperror.Validation("code is required")
	}
	switch in.DiscountType {
	case domain.DiscountPercentage:
		if in.DiscountValue.GreaterThan(hundredPercent) {
			return apperror.Validation("percentage discount cannot exceed 100")
		}
	case domain.DiscountFixed:
	default:
		return apperror.Validation("discount_type must be percentage or fixed")
	}
	if !in.DiscountValue.IsPositive() {
		return apperror.Validation("discount_value must be positive")
	}
	if in.MinimumAmount.IsNegative() {
		return apperror.Validation("minimum_amount cannot be negative")
	}
	if in.MaximumDiscount != nil && !in.MaximumDiscount.IsPositive() {
		return apperror.Validation("maximum_discount must be positive")
	}
	if in.UsageLimit < 1 {
		return apperror.Validation("usage_limit must be at least 1")
	}
	if !in.ValidUntil.After(in.ValidFrom) {
		return apperror.Validation("valid_until must be after valid_from")
	}
	for _, cat := range in.ApplicableCategories {
		if cat != domain.CategoryAll && !domain.ProductCategory(cat).Valid() {
			return apperror.Validation(fmt.Sprintf("unknown category %q", cat))
		}
	}
	return nil
}

var hundredPercent = decimal.NewFromInt(100)

func applyCouponInput(c *domain.Coupon, in ports.CouponInput, now time.Time) {
	c.Code = domain.NormalizeCouponCode(in.Code)
	c.Description = strings.TrimSpace(in.Description)
	c.DiscountType = in.DiscountType
	c.DiscountValue = in.DiscountValue
	c.MinimumAmount = in.MinimumAmount
	c.MaximumDiscount = in.MaximumDiscount
	c.UsageLimit = in.UsageLimit
	c.ValidFrom = in.ValidFrom.UTC()
	c.ValidUntil = in.ValidUntil.UTC()
	c.IsActive = in.IsActive
	c.ApplicableCategories = in.ApplicableCategories
	if len(c.ApplicableCategories) == 0 {
		c.ApplicableCategories = []string{domain.CategoryAll}
	}
	c.UpdatedAt = now
}
