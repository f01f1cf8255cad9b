package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/jwkim/schemadoc/internal/errs"
)

// mapError translates go-sql-driver/mysql errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(
			classifyMySQLCode(mysqlErr.Number),
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message),
			err,
		)
	}

	// Driver-level errors with no MySQL code are connection problems
	// (broken pipe, bad handshake, …).
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifyMySQLCode maps MySQL server error numbers to ErrKind.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case 1045: // access denied for user
		return errs.ErrKindPermissionDenied
	case 1142, 1143, 1227: // command/column access denied, privilege required
		return errs.ErrKindPermissionDenied
	case 1040, 1046, 1049, 1203: // too many connections, no db selected, unknown db
		return errs.ErrKindConnectionFailed
	case 1146: // table doesn't exist
		return errs.ErrKindNotFound
	case 1054, 1064: // unknown column, syntax error
		return errs.ErrKindQueryFailed
	default:
		return errs.ErrKindQueryFailed
	}
}
