package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recharge-store/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, user_id, balance, total_deposited, total_withdrawn, currency, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (` + walletColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := on(r.pool, tx).Exec(ctx, query,
		w.ID, w.UserID, w.Balance, w.TotalDeposited, w.TotalWithdrawn,
		w.Currency, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", mapPgError(err))
	}
	return nil
}

// GetByUserID fetches a user's wallet without locking.
func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, userID))
}

// GetOrCreate returns the user's wallet, creating an empty one on first access.
func (r *WalletRepo) GetOrCreate(ctx context.Context, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	w := domain.NewWallet(userID, currency, time.Now().UTC())
	query := `INSERT INTO wallets (` + walletColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.UserID, w.Balance, w.TotalDeposited, w.TotalWithdrawn,
		w.Currency, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}
	return r.GetByUserID(ctx, userID)
}

// GetByUserIDForUpdate fetches a wallet with a row lock held until tx ends.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("get wallet for update: %w", err)
	}
	return w, nil
}

// Update writes balance and running totals. The balance CHECK surfaces as
// ports.ErrNegativeBalance.
func (r *WalletRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `UPDATE wallets SET balance = $1, total_deposited = $2, total_withdrawn = $3, updated_at = $4
		WHERE id = $5`

	tag, err := on(r.pool, tx).Exec(ctx, query, w.Balance, w.TotalDeposited, w.TotalWithdrawn, w.UpdatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update wallet: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.UserID, &w.Balance, &w.TotalDeposited, &w.TotalWithdrawn,
		&w.Currency, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}
