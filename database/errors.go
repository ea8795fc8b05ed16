package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
	"github.com/mbolis/quick-apply/apperr"
)

// Classify turns a driver or database/sql error into an apperr kind.
// Already classified errors pass through with op attached.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != apperr.KindUnknown {
		return apperr.Wrap(apperr.KindUnknown, op, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
			// the busy timeout ran out waiting for the write lock
			return &apperr.Error{Kind: apperr.KindStorage, Op: op, Msg: "storage busy", Err: err}
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return apperr.Conflict(op, err)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return &apperr.Error{Kind: apperr.KindNotFound, Op: op, Msg: "referenced record does not exist", Err: err}
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &apperr.Error{Kind: apperr.KindStorage, Op: op, Msg: "operation canceled", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &apperr.Error{Kind: apperr.KindStorage, Op: op, Msg: "storage timeout", Err: err}
	case errors.Is(err, sql.ErrTxDone), errors.Is(err, sql.ErrConnDone):
		return apperr.Storage(op, err)
	}
	return apperr.Storage(op, err)
}
