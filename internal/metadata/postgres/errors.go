package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jwkim/schemadoc/internal/errs"
)

// PostgreSQL SQLSTATE codes relevant to introspection.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrQueryCanceled         = "57014"
	pgErrUndefinedTable        = "42P01"
	pgErrInsufficientPrivilege = "42501"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(
			classifySQLState(pgErr.Code),
			fmt.Sprintf("%s: %s", msg, pgErr.Message),
			err,
		)
	}

	// Anything without a SQLSTATE is a connection-level problem
	// (TLS, network, handshake).
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifySQLState maps SQLSTATE codes to ErrKind.
func classifySQLState(code string) errs.ErrKind {
	switch code {
	case pgErrQueryCanceled:
		return errs.ErrKindTimeout
	case pgErrUndefinedTable:
		return errs.ErrKindNotFound
	case pgErrInsufficientPrivilege:
		return errs.ErrKindPermissionDenied
	}
	if len(code) >= 2 {
		switch code[:2] {
		case "08": // connection exceptions
			return errs.ErrKindConnectionFailed
		case "28": // invalid authorization
			return errs.ErrKindPermissionDenied
		case "42": // syntax or access rule violations
			return errs.ErrKindQueryFailed
		}
	}
	return errs.ErrKindQueryFailed
}
