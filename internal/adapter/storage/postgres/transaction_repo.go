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
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, user_id, wallet_id, order_id, type, amount, balance_before, balance_after,
	status, reference_id, payment_method, description, metadata, created_at, updated_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a ledger entry, normally inside the transaction that moved the balance.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := on(r.pool, tx).Exec(ctx, query,
		t.ID, t.UserID, t.WalletID, t.OrderID, t.Type, t.Amount, t.BalanceBefore, t.BalanceAfter,
		t.Status, t.ReferenceID, t.PaymentMethod, t.Description, t.Metadata, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", mapPgError(err))
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate locks a transaction row for a status change.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return scanTransaction(tx.QueryRow(ctx, query, id))
}

// UpdateStatus persists status, balance snapshot and metadata of a reviewed entry.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `UPDATE transactions SET status = $1, balance_before = $2, balance_after = $3,
		metadata = $4, updated_at = $5 WHERE id = $6`

	tag, err := on(r.pool, tx).Exec(ctx, query,
		t.Status, t.BalanceBefore, t.BalanceAfter, t.Metadata, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", t.ID)
	}
	return nil
}

// SumPendingWithdrawals totals the withdrawals still awaiting review for a user.
func (r *TransactionRepo) SumPendingWithdrawals(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE user_id = $1 AND type = 'withdrawal' AND status = 'pending'`

	var sum decimal.Decimal
	if err := on(r.pool, tx).QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum pending withdrawals: %w", err)
	}
	return sum, nil
}

// List fetches transactions with filtering and pagination, newest first.
func (r *TransactionRepo) List(ctx context.Context, filter ports.TransactionFilter) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *filter.UserID)
		argIdx++
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, filter.Type)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM transactions "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.WalletID, &t.OrderID, &t.Type, &t.Amount, &t.BalanceBefore, &t.BalanceAfter,
		&t.Status, &t.ReferenceID, &t.PaymentMethod, &t.Description, &t.Metadata, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}
