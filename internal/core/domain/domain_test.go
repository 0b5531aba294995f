package domain

import (
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestWallet_Apply(t *testing.T) {
	tests := []struct {
		name          string
		balance       string
		amount        string
		op            LedgerOperation
		wantErr       error
		wantBalance   string
		wantDeposited string
		wantWithdrawn string
	}{
		{"deposit", "0", "100", OpDeposit, nil, "100", "100", "0"},
		{"withdraw", "100", "60", OpWithdraw, nil, "40", "0", "60"},
		{"withdraw exact", "60", "60", OpWithdraw, nil, "0", "0", "60"},
		{"withdraw over balance", "50", "60", OpWithdraw, ErrInsufficientFunds, "50", "0", "0"},
		{"payment", "100", "30.50", OpPayment, nil, "69.5", "0", "0"},
		{"payment over balance", "10", "10.01", OpPayment, ErrInsufficientFunds, "10", "0", "0"},
		{"refund", "10", "5", OpRefund, nil, "15", "0", "0"},
		{"bonus", "0", "25", OpBonus, nil, "25", "0", "0"},
		{"zero amount", "10", "0", OpDeposit, ErrNonPositiveAmount, "10", "0", "0"},
		{"negative amount", "10", "-5", OpPayment, ErrNonPositiveAmount, "10", "0", "0"},
		{"unknown op", "10", "5", LedgerOperation("steal"), ErrUnknownOperation, "10", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWallet(uuid.New(), "", time.Now())
			w.Balance = dec(tt.balance)

			before, after, err := w.Apply(dec(tt.amount), tt.op)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, before.Equal(after))
			} else {
				require.NoError(t, err)
				assert.True(t, before.Equal(dec(tt.balance)))
				assert.True(t, after.Equal(dec(tt.wantBalance)))
			}
			assert.True(t, w.Balance.Equal(dec(tt.wantBalance)), "balance %s", w.Balance)
			assert.True(t, w.TotalDeposited.Equal(dec(tt.wantDeposited)))
			assert.True(t, w.TotalWithdrawn.Equal(dec(tt.wantWithdrawn)))
		})
	}
}

func TestWallet_BalanceNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	ops := []LedgerOperation{OpDeposit, OpWithdraw, OpPayment, OpRefund}
	w := NewWallet(uuid.New(), "SAR", time.Now())

	for i := 0; i < 2000; i++ {
		amount := decimal.NewFromInt(int64(rng.IntN(500) + 1)).Div(decimal.NewFromInt(4))
		op := ops[rng.IntN(len(ops))]
		before := w.Balance

		_, _, err := w.Apply(amount, op)
		if err != nil {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
			assert.True(t, w.Balance.Equal(before), "failed debit must leave balance unchanged")
		}
		require.False(t, w.Balance.IsNegative(), "balance went negative after %s %s", op, amount)
	}
}

func TestNewWallet_DefaultCurrency(t *testing.T) {
	w := NewWallet(uuid.New(), "", time.Now())
	assert.Equal(t, DefaultCurrency, w.Currency)
	assert.True(t, w.Balance.IsZero())
}

func TestTransaction_IsBalanced(t *testing.T) {
	tests := []struct {
		name   string
		txType TransactionType
		before string
		after  string
		amount string
		want   bool
	}{
		{"deposit credit", TransactionTypeDeposit, "0", "100", "100", true},
		{"deposit wrong direction", TransactionTypeDeposit, "100", "0", "100", false},
		{"withdrawal debit", TransactionTypeWithdrawal, "100", "40", "60", true},
		{"payment debit", TransactionTypePayment, "100", "70", "30", true},
		{"refund credit", TransactionTypeRefund, "70", "100", "30", true},
		{"bonus mismatch", TransactionTypeBonus, "0", "10", "5", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &Transaction{Type: tt.txType, BalanceBefore: dec(tt.before), BalanceAfter: dec(tt.after), Amount: dec(tt.amount)}
			assert.Equal(t, tt.want, tx.IsBalanced())
		})
	}
}

func TestTransaction_IsTerminal(t *testing.T) {
	tests := []struct {
		status TransactionStatus
		want   bool
	}{
		{TransactionStatusPending, false},
		{TransactionStatusCompleted, true},
		{TransactionStatusFailed, true},
		{TransactionStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			tx := &Transaction{Status: tt.status}
			assert.Equal(t, tt.want, tx.IsTerminal())
		})
	}
}

func TestTransactionType_Operation(t *testing.T) {
	assert.Equal(t, OpWithdraw, TransactionTypeWithdrawal.Operation())
	assert.Equal(t, OpDeposit, TransactionTypeDeposit.Operation())
	assert.True(t, TransactionTypeBonus.Valid())
	assert.False(t, TransactionType("chargeback").Valid())
}

func TestNewReferenceID(t *testing.T) {
	now := time.UnixMilli(1718000000000)
	a := NewReferenceID("TXN", now)
	b := NewReferenceID("TXN", now)

	assert.True(t, strings.HasPrefix(a, "TXN1718000000000"))
	assert.Len(t, a, len("TXN1718000000000")+6)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(NewOrderNumber(now), "ORD"))
}

func TestOrder_CanPay(t *testing.T) {
	tests := []struct {
		name    string
		status  OrderStatus
		payment PaymentStatus
		want    bool
	}{
		{"fresh order", OrderStatusPending, PaymentStatusPending, true},
		{"retry after failure", OrderStatusPending, PaymentStatusFailed, true},
		{"already paid", OrderStatusPending, PaymentStatusPaid, false},
		{"refunded", OrderStatusRefunded, PaymentStatusRefunded, false},
		{"admin failed", OrderStatusFailed, PaymentStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Status: tt.status, PaymentStatus: tt.payment}
			assert.Equal(t, tt.want, o.CanPay())
		})
	}
}

func TestOrder_MarkPaid(t *testing.T) {
	o := &Order{Status: OrderStatusPending, PaymentStatus: PaymentStatusPending}
	now := time.Now()
	o.MarkPaid("credit_card", "PAY123", now)

	assert.Equal(t, PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, OrderStatusPending, o.Status, "payment must not change fulfillment status")
	require.NotNil(t, o.TransactionID)
	assert.Equal(t, "PAY123", *o.TransactionID)
}

func validCoupon(now time.Time) *Coupon {
	return &Coupon{
		Code:          "SAVE20",
		DiscountType:  DiscountFixed,
		DiscountValue: dec("20"),
		MinimumAmount: dec("50"),
		UsageLimit:    10,
		ValidFrom:     now.Add(-time.Hour),
		ValidUntil:    now.Add(time.Hour),
		IsActive:      true,
	}
}

func TestCoupon_IsValid(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		mutate func(c *Coupon)
		want   bool
	}{
		{"valid", func(c *Coupon) {}, true},
		{"inactive", func(c *Coupon) { c.IsActive = false }, false},
		{"usage exhausted", func(c *Coupon) { c.UsedCount = 10 }, false},
		{"usage over limit", func(c *Coupon) { c.UsedCount = 11 }, false},
		{"not yet valid", func(c *Coupon) { c.ValidFrom = now.Add(time.Minute) }, false},
		{"expired", func(c *Coupon) { c.ValidUntil = now.Add(-time.Minute) }, false},
		{"window edge", func(c *Coupon) { c.ValidUntil = now }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCoupon(now)
			tt.mutate(c)
			assert.Equal(t, tt.want, c.IsValid(now))
		})
	}
}

func TestCoupon_ApplyDiscount_Fixed(t *testing.T) {
	now := time.Now()
	c := validCoupon(now)

	_, err := c.ApplyDiscount(dec("40"), now)
	assert.ErrorIs(t, err, ErrCouponMinimumNotMet)

	d, err := c.ApplyDiscount(dec("100"), now)
	require.NoError(t, err)
	assert.True(t, d.Discount.Equal(dec("20")))
	assert.True(t, d.FinalAmount.Equal(dec("80")))
	assert.Equal(t, 0, c.UsedCount, "applying must not redeem")
}

func TestCoupon_ApplyDiscount_FixedCappedAtAmount(t *testing.T) {
	now := time.Now()
	c := validCoupon(now)
	c.DiscountValue = dec("75")

	d, err := c.ApplyDiscount(dec("60"), now)
	require.NoError(t, err)
	assert.True(t, d.Discount.Equal(dec("60")))
	assert.True(t, d.FinalAmount.IsZero())
}

func TestCoupon_ApplyDiscount_Percentage(t *testing.T) {
	now := time.Now()
	maxDiscount := dec("15")
	c := validCoupon(now)
	c.DiscountType = DiscountPercentage
	c.DiscountValue = dec("10")
	c.MinimumAmount = decimal.Zero

	d, err := c.ApplyDiscount(dec("99.99"), now)
	require.NoError(t, err)
	assert.True(t, d.Discount.Equal(dec("10")), "10%% of 99.99 rounds to 10.00, got %s", d.Discount)

	c.MaximumDiscount = &maxDiscount
	d, err = c.ApplyDiscount(dec("500"), now)
	require.NoError(t, err)
	assert.True(t, d.Discount.Equal(maxDiscount))
	assert.True(t, d.FinalAmount.Equal(dec("485")))
}

func TestCoupon_ApplyDiscount_PercentageBounds(t *testing.T) {
	now := time.Now()
	maxDiscount := dec("25")
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 500; i++ {
		c := validCoupon(now)
		c.DiscountType = DiscountPercentage
		c.DiscountValue = decimal.NewFromInt(int64(rng.IntN(150) + 1))
		c.MinimumAmount = decimal.Zero
		c.MaximumDiscount = &maxDiscount
		amount := decimal.NewFromInt(int64(rng.IntN(20000) + 1)).Div(decimal.NewFromInt(100))

		d, err := c.ApplyDiscount(amount, now)
		require.NoError(t, err)
		assert.False(t, d.Discount.GreaterThan(maxDiscount))
		assert.False(t, d.Discount.GreaterThan(amount))
		assert.False(t, d.FinalAmount.IsNegative())
	}
}

func TestCoupon_ApplyDiscount_Invalid(t *testing.T) {
	now := time.Now()
	c := validCoupon(now)
	c.UsedCount = c.UsageLimit

	_, err := c.ApplyDiscount(dec("100"), now)
	assert.ErrorIs(t, err, ErrCouponInvalid)
}

func TestCoupon_AppliesTo(t *testing.T) {
	c := &Coupon{}
	assert.True(t, c.AppliesTo(CategoryGames))

	c.ApplicableCategories = []string{"apps"}
	assert.True(t, c.AppliesTo(CategoryApps))
	assert.False(t, c.AppliesTo(CategoryGames))

	c.ApplicableCategories = []string{CategoryAll}
	assert.True(t, c.AppliesTo(CategoryGiftCards))
}

func TestNormalizeCouponCode(t *testing.T) {
	assert.Equal(t, "WELCOME10", NormalizeCouponCode("  welcome10 "))
}

func TestActor(t *testing.T) {
	owner := uuid.New()
	user := Actor{UserID: owner, Role: RoleUser}
	admin := Actor{UserID: uuid.New(), Role: RoleAdmin}
	mod := Actor{UserID: uuid.New(), Role: RoleModerator}

	assert.True(t, user.CanAccess(owner))
	assert.False(t, mod.CanAccess(owner))
	assert.True(t, admin.CanAccess(owner))
	assert.True(t, mod.IsStaff())
	assert.False(t, user.IsStaff())
}

func TestDateRange_Previous(t *testing.T) {
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	r := DateRange{Start: end.AddDate(0, 0, -30), End: end}
	prev := r.Previous()

	assert.Equal(t, r.Start, prev.End)
	assert.Equal(t, r.End.Sub(r.Start), prev.End.Sub(prev.Start))
}

func TestNextRetryDelay(t *testing.T) {
	assert.Equal(t, 5*time.Second, NextRetryDelay(0))
	assert.Equal(t, 5*time.Second, NextRetryDelay(1))
	assert.Equal(t, 2*time.Minute, NextRetryDelay(3))
	assert.Equal(t, 10*time.Minute, NextRetryDelay(99))
}

func TestNotification_ExpiresAt(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	n := &Notification{CreatedAt: created}
	assert.Equal(t, created.AddDate(0, 0, 90), n.ExpiresAt())
}
