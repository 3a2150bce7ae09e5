package database

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mwhitfield/sentinel/internal/models"
)

// MapPostgresError translates driver errors into the error taxonomy the
// decision paths understand. Connectivity problems map to ErrNetwork so
// callers can fail open; constraint rejections map to ErrBackend.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return models.ErrNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrNetwork
	}

	if pgErr, ok := err.(*pgconn.PgError); ok {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrConflict
		case "23503": // foreign_key_violation
			return models.ErrBackend
		case "23502": // not_null_violation
			return models.ErrBackend
		case "23514": // check_violation
			return models.ErrBackend
		}
	}

	return err
}

func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}
