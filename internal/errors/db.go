package errors

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapDBError maps database errors to AppError instances:
//   - context deadline/cancel → Transient
//   - pgx.ErrNoRows / sql.ErrNoRows equivalents → NotFound
//   - unique violations → Conflict
//   - check / not-null violations → Validation
//
// Unrecognized errors pass through unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &AppError{Code: ErrCodeTransient, Message: "database request interrupted", Cause: err}
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return &AppError{Code: ErrCodeNotFound, Message: "resource not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return &AppError{Code: ErrCodeConflict, Message: "resource already exists", Cause: err}
		case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
			return &AppError{Code: ErrCodeValidation, Message: "invalid data", Cause: err}
		case pgerrcode.ConnectionException, pgerrcode.ConnectionDoesNotExist,
			pgerrcode.ConnectionFailure, pgerrcode.TooManyConnections:
			return &AppError{Code: ErrCodeTransient, Message: "database unavailable", Cause: err}
		}
	}

	return err
}
