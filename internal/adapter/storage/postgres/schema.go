package postgres

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Migrations returns the schema statements in execution order. Every
// statement is idempotent so Migrate can run on each start.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id             UUID PRIMARY KEY,
			username       VARCHAR(30) NOT NULL UNIQUE,
			email          VARCHAR(255) NOT NULL UNIQUE,
			password_hash  TEXT NOT NULL,
			phone          VARCHAR(20) NOT NULL DEFAULT '',
			wallet_balance NUMERIC(14,2) NOT NULL DEFAULT 0,
			role           VARCHAR(16) NOT NULL DEFAULT 'user',
			is_active      BOOLEAN NOT NULL DEFAULT TRUE,
			is_verified    BOOLEAN NOT NULL DEFAULT FALSE,
			last_login_at  TIMESTAMPTZ,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at)`,

		`CREATE TABLE IF NOT EXISTS wallets (
			id              UUID PRIMARY KEY,
			user_id         UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
			balance         NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			total_deposited NUMERIC(14,2) NOT NULL DEFAULT 0,
			total_withdrawn NUMERIC(14,2) NOT NULL DEFAULT 0,
			currency        VARCHAR(3) NOT NULL DEFAULT 'SAR',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS products (
			id            UUID PRIMARY KEY,
			name          VARCHAR(200) NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			category      VARCHAR(20) NOT NULL,
			game_name     VARCHAR(100) NOT NULL DEFAULT '',
			game_id       VARCHAR(100) NOT NULL DEFAULT '',
			price         NUMERIC(14,2) NOT NULL CHECK (price >= 0),
			currency      VARCHAR(3) NOT NULL DEFAULT 'SAR',
			stock         INTEGER NOT NULL DEFAULT 0,
			image         TEXT NOT NULL DEFAULT '',
			auto_delivery BOOLEAN NOT NULL DEFAULT FALSE,
			delivery_time VARCHAR(50) NOT NULL DEFAULT '',
			status        VARCHAR(16) NOT NULL DEFAULT 'active',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_category_status ON products(category, status)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id              UUID PRIMARY KEY,
			order_number    VARCHAR(40) NOT NULL UNIQUE,
			user_id         UUID NOT NULL REFERENCES users(id),
			product_id      UUID NOT NULL REFERENCES products(id),
			product_name    VARCHAR(200) NOT NULL DEFAULT '',
			quantity        INTEGER NOT NULL CHECK (quantity > 0),
			unit_price      NUMERIC(14,2) NOT NULL,
			subtotal        NUMERIC(14,2) NOT NULL,
			discount_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
			total_amount    NUMERIC(14,2) NOT NULL CHECK (total_amount >= 0),
			coupon_code     VARCHAR(50),
			game_id         VARCHAR(100) NOT NULL,
			status          VARCHAR(16) NOT NULL DEFAULT 'pending',
			payment_status  VARCHAR(16) NOT NULL DEFAULT 'pending',
			payment_method  VARCHAR(32) NOT NULL DEFAULT '',
			transaction_id  VARCHAR(64),
			delivery_data   TEXT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id             UUID PRIMARY KEY,
			user_id        UUID NOT NULL REFERENCES users(id),
			wallet_id      UUID NOT NULL REFERENCES wallets(id),
			order_id       UUID REFERENCES orders(id),
			type           VARCHAR(16) NOT NULL,
			amount         NUMERIC(14,2) NOT NULL CHECK (amount > 0),
			balance_before NUMERIC(14,2) NOT NULL,
			balance_after  NUMERIC(14,2) NOT NULL,
			status         VARCHAR(16) NOT NULL,
			reference_id   VARCHAR(64) NOT NULL UNIQUE,
			payment_method VARCHAR(32) NOT NULL DEFAULT '',
			description    TEXT NOT NULL DEFAULT '',
			metadata       JSONB,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_pending_withdrawals ON transactions(user_id) WHERE type = 'withdrawal' AND status = 'pending'`,

		`CREATE TABLE IF NOT EXISTS coupons (
			id                    UUID PRIMARY KEY,
			code                  VARCHAR(50) NOT NULL UNIQUE,
			description           TEXT NOT NULL DEFAULT '',
			discount_type         VARCHAR(16) NOT NULL,
			discount_value        NUMERIC(14,2) NOT NULL CHECK (discount_value >= 0),
			minimum_amount        NUMERIC(14,2) NOT NULL DEFAULT 0,
			maximum_discount      NUMERIC(14,2),
			usage_limit           INTEGER NOT NULL,
			used_count            INTEGER NOT NULL DEFAULT 0,
			valid_from            TIMESTAMPTZ NOT NULL,
			valid_until           TIMESTAMPTZ NOT NULL,
			is_active             BOOLEAN NOT NULL DEFAULT TRUE,
			applicable_categories TEXT[] NOT NULL DEFAULT '{}',
			created_by            UUID,
			created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (used_count <= usage_limit)
		)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id            UUID PRIMARY KEY,
			user_id       UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title         VARCHAR(100) NOT NULL,
			message       VARCHAR(500) NOT NULL,
			type          VARCHAR(16) NOT NULL,
			priority      VARCHAR(16) NOT NULL,
			related_model VARCHAR(16) NOT NULL DEFAULT '',
			related_id    UUID,
			is_read       BOOLEAN NOT NULL DEFAULT FALSE,
			read_at       TIMESTAMPTZ,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at)`,

		`CREATE TABLE IF NOT EXISTS delivery_tasks (
			id         UUID PRIMARY KEY,
			order_id   UUID NOT NULL UNIQUE REFERENCES orders(id),
			status     VARCHAR(16) NOT NULL DEFAULT 'queued',
			attempts   INTEGER NOT NULL DEFAULT 0,
			run_at     TIMESTAMPTZ NOT NULL,
			last_error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_tasks_due ON delivery_tasks(run_at) WHERE status = 'queued'`,

		`CREATE TABLE IF NOT EXISTS audit_logs (
			id            UUID PRIMARY KEY,
			user_id       UUID,
			action        VARCHAR(50) NOT NULL,
			resource_type VARCHAR(50) NOT NULL,
			resource_id   VARCHAR(100) NOT NULL DEFAULT '',
			details       TEXT NOT NULL DEFAULT '',
			ip_address    VARCHAR(64) NOT NULL DEFAULT '',
			user_agent    TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_user_created ON audit_logs(user_id, created_at DESC)`,
	}
}

// Migrate applies the schema inside a single transaction.
func Migrate(ctx context.Context, pool Pool, log zerolog.Logger) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stmts := Migrations()
	for i, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}

	log.Info().Int("statements", len(stmts)).Msg("Database schema is up to date")
	return nil
}
