package translate

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/kitedata/kite/internal/dberr"
)

// Convert is the backstop applied to every error leaving a unit of work.
// Pure classification, no I/O:
//
//   - errors already in the data layer's taxonomy pass through unchanged,
//     so retry layers never see nested wrapping;
//   - database/sql and driver failures become SQLError;
//   - anything else is wrapped as ExternalError.
//
// Nothing is ever swallowed.
func Convert(message string, err error) error {
	if err == nil {
		return nil
	}
	if dberr.IsDomain(err) {
		return err
	}

	if message == "" {
		message = err.Error()
	}

	if isSQLFailure(err) {
		return &dberr.SQLError{Message: message, Err: err}
	}

	return &dberr.ExternalError{Message: message, Err: err}
}

func isSQLFailure(err error) bool {
	if errors.Is(err, sql.ErrTxDone) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, sql.ErrNoRows) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return true
	}
	var coder resultCoder
	if errors.As(err, &coder) {
		return true
	}

	// Context cancellation aborts the transaction; the statement failure it
	// surfaces as is still a SQL-layer condition.
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
