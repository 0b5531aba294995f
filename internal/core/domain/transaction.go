package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypePayment    TransactionType = "payment"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeBonus      TransactionType = "bonus"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	_, ok := transactionOps[t]
	return ok
}

// Operation returns the ledger operation a transaction of this type applies.
func (t TransactionType) Operation() LedgerOperation {
	return transactionOps[t]
}

// IsCredit reports whether the type adds to the balance.
func (t TransactionType) IsCredit() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeRefund || t == TransactionTypeBonus
}

var transactionOps = map[TransactionType]LedgerOperation{
	TransactionTypeDeposit:    OpDeposit,
	TransactionTypeWithdrawal: OpWithdraw,
	TransactionTypePayment:    OpPayment,
	TransactionTypeRefund:     OpRefund,
	TransactionTypeBonus:      OpBonus,
}

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled:
		return true
	}
	return false
}

// Transaction is a ledger entry recording one balance mutation attempt.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	UserID        uuid.UUID         `json:"user_id"`
	WalletID      uuid.UUID         `json:"wallet_id"`
	OrderID       *uuid.UUID        `json:"order_id,omitempty"`
	Type          TransactionType   `json:"type"`
	Amount        decimal.Decimal   `json:"amount"`
	BalanceBefore decimal.Decimal   `json:"balance_before"`
	BalanceAfter  decimal.Decimal   `json:"balance_after"`
	Status        TransactionStatus `json:"status"`
	ReferenceID   string            `json:"reference_id"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	Description   string            `json:"description,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusFailed ||
		t.Status == TransactionStatusCancelled
}

// IsBalanced reports whether BalanceAfter equals BalanceBefore plus or minus
// Amount in the direction implied by Type.
func (t *Transaction) IsBalanced() bool {
	if t.Type.IsCredit() {
		return t.BalanceAfter.Equal(t.BalanceBefore.Add(t.Amount))
	}
	return t.BalanceAfter.Equal(t.BalanceBefore.Sub(t.Amount))
}

// NewReferenceID builds a human-readable unique reference such as TXN1718000000000A1B2C3.
func NewReferenceID(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s%d%s", prefix, now.UnixMilli(), suffix)
}
