package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const userColumns = `id, username, email, password_hash, phone, wallet_balance, role,
	is_active, is_verified, last_login_at, created_at, updated_at`

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create inserts a new user. A duplicate email or username yields ports.ErrAlreadyExists.
func (r *UserRepo) Create(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := on(r.pool, tx).Exec(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Phone, u.WalletBalance, u.Role,
		u.IsActive, u.IsVerified, u.LastLoginAt, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", mapPgError(err))
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail looks a user up by lower-cased email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, strings.ToLower(email)))
}

// ExistsByEmailOrUsername reports which of the two identifiers is already taken.
func (r *UserRepo) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, bool, error) {
	query := `SELECT
		EXISTS(SELECT 1 FROM users WHERE email = $1),
		EXISTS(SELECT 1 FROM users WHERE username = $2)`

	var emailTaken, usernameTaken bool
	if err := r.pool.QueryRow(ctx, query, strings.ToLower(email), username).Scan(&emailTaken, &usernameTaken); err != nil {
		return false, false, fmt.Errorf("check user exists: %w", err)
	}
	return emailTaken, usernameTaken, nil
}

// UpdateProfile persists the editable profile fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, u *domain.User) error {
	query := `UPDATE users SET username = $1, phone = $2, updated_at = $3 WHERE id = $4`

	tag, err := r.pool.Exec(ctx, query, u.Username, u.Phone, u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("update user profile: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", u.ID)
	}
	return nil
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// SetWalletBalance refreshes the cached balance on the user row. It runs in the
// same transaction as the wallet mutation it mirrors.
func (r *UserRepo) SetWalletBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE users SET wallet_balance = $1, updated_at = NOW() WHERE id = $2`

	if _, err := on(r.pool, tx).Exec(ctx, query, balance, id); err != nil {
		return fmt.Errorf("set wallet balance: %w", err)
	}
	return nil
}

func (r *UserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

func (r *UserRepo) SetRole(ctx context.Context, id uuid.UUID, role domain.UserRole) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`, role, id)
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// List returns a page of users, newest first.
func (r *UserRepo) List(ctx context.Context, filter ports.UserFilter) ([]domain.User, int64, error) {
	where := ""
	var args []any
	if filter.Search != "" {
		where = "WHERE username ILIKE $1 OR email ILIKE $1"
		args = append(args, "%"+filter.Search+"%")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, total, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Phone, &u.WalletBalance, &u.Role,
		&u.IsActive, &u.IsVerified, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
