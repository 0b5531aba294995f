package postgres

import (
	"errors"

	"recharge-store/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// mapPgError translates constraint violations into port-level sentinels.
func mapPgError(err error) error {
	switch {
	case isPgCode(err, pgUniqueViolation):
		return ports.ErrAlreadyExists
	case isPgCode(err, pgCheckViolation):
		return ports.ErrNegativeBalance
	}
	return err
}
