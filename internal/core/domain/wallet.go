package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used for wallets and products without an explicit currency.
const DefaultCurrency = "SAR"

// LedgerOperation is a balance mutation applied to a wallet.
type LedgerOperation string

const (
	OpDeposit  LedgerOperation = "deposit"
	OpWithdraw LedgerOperation = "withdraw"
	OpPayment  LedgerOperation = "payment"
	OpRefund   LedgerOperation = "refund"
	OpBonus    LedgerOperation = "bonus"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrUnknownOperation  = errors.New("unknown ledger operation")
)

// Wallet holds the authoritative balance of one user.
type Wallet struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Balance        decimal.Decimal `json:"balance"`
	TotalDeposited decimal.Decimal `json:"total_deposited"`
	TotalWithdrawn decimal.Decimal `json:"total_withdrawn"`
	Currency       string          `json:"currency"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewWallet returns an empty wallet for userID.
func NewWallet(userID uuid.UUID, currency string, now time.Time) *Wallet {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Wallet{
		ID:             uuid.New(),
		UserID:         userID,
		Balance:        decimal.Zero,
		TotalDeposited: decimal.Zero,
		TotalWithdrawn: decimal.Zero,
		Currency:       currency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Apply mutates the wallet for op and returns the balance before and after.
// Debits that would take the balance below zero fail with ErrInsufficientFunds
// and leave the wallet unchanged.
func (w *Wallet) Apply(amount decimal.Decimal, op LedgerOperation) (before, after decimal.Decimal, err error) {
	if !amount.IsPositive() {
		return w.Balance, w.Balance, ErrNonPositiveAmount
	}
	before = w.Balance

	switch op {
	case OpDeposit:
		w.Balance = w.Balance.Add(amount)
		w.TotalDeposited = w.TotalDeposited.Add(amount)
	case OpWithdraw:
		if w.Balance.LessThan(amount) {
			return before, before, ErrInsufficientFunds
		}
		w.Balance = w.Balance.Sub(amount)
		w.TotalWithdrawn = w.TotalWithdrawn.Add(amount)
	case OpPayment:
		if w.Balance.LessThan(amount) {
			return before, before, ErrInsufficientFunds
		}
		w.Balance = w.Balance.Sub(amount)
	case OpRefund, OpBonus:
		w.Balance = w.Balance.Add(amount)
	default:
		return before, before, ErrUnknownOperation
	}

	return before, w.Balance, nil
}
