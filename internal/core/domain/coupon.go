package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType selects how a coupon's value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// CategoryAll makes a coupon applicable to every product category.
const CategoryAll = "all"

var (
	ErrCouponInvalid       = errors.New("coupon is not valid")
	ErrCouponMinimumNotMet = errors.New("amount below coupon minimum")
	ErrCouponNotApplicable = errors.New("coupon does not apply to category")
)

var hundred = decimal.NewFromInt(100)

// Coupon is a time and usage bounded discount code.
type Coupon struct {
	ID                   uuid.UUID        `json:"id"`
	Code                 string           `json:"code"`
	Description          string           `json:"description,omitempty"`
	DiscountType         DiscountType     `json:"discount_type"`
	DiscountValue        decimal.Decimal  `json:"discount_value"`
	MinimumAmount        decimal.Decimal  `json:"minimum_amount"`
	MaximumDiscount      *decimal.Decimal `json:"maximum_discount,omitempty"`
	UsageLimit           int              `json:"usage_limit"`
	UsedCount            int              `json:"used_count"`
	ValidFrom            time.Time        `json:"valid_from"`
	ValidUntil           time.Time        `json:"valid_until"`
	IsActive             bool             `json:"is_active"`
	ApplicableCategories []string         `json:"applicable_categories"`
	CreatedBy            *uuid.UUID       `json:"created_by,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// Discount is the outcome of applying a coupon to an amount.
type Discount struct {
	Discount    decimal.Decimal `json:"discount"`
	FinalAmount decimal.Decimal `json:"final_amount"`
}

// NormalizeCouponCode trims and upper-cases a code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValid is true iff the coupon is active, under its usage limit and inside its window.
func (c *Coupon) IsValid(now time.Time) bool {
	return c.IsActive &&
		c.UsedCount < c.UsageLimit &&
		!now.Before(c.ValidFrom) &&
		!now.After(c.ValidUntil)
}

// AppliesTo reports whether the coupon covers products in category.
func (c *Coupon) AppliesTo(category ProductCategory) bool {
	if len(c.ApplicableCategories) == 0 {
		return true
	}
	for _, cat := range c.ApplicableCategories {
		if cat == CategoryAll || cat == string(category) {
			return true
		}
	}
	return false
}

// ApplyDiscount computes the discount for amount. It never mutates UsedCount.
func (c *Coupon) ApplyDiscount(amount decimal.Decimal, now time.Time) (Discount, error) {
	if !c.IsValid(now) {
		return Discount{}, ErrCouponInvalid
	}
	if amount.LessThan(c.MinimumAmount) {
		return Discount{}, ErrCouponMinimumNotMet
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		discount = amount.Mul(c.DiscountValue).Div(hundred).Round(2)
		if c.MaximumDiscount != nil && discount.GreaterThan(*c.MaximumDiscount) {
			discount = *c.MaximumDiscount
		}
	case DiscountFixed:
		discount = c.DiscountValue
	default:
		return Discount{}, ErrCouponInvalid
	}

	if discount.GreaterThan(amount) {
		discount = amount
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	return Discount{
		Discount:    discount,
		FinalAmount: amount.Sub(discount),
	}, nil
}
