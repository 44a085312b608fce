// Package translate turns raw driver errors into the typed taxonomy of
// package dberr. Each supported driver has its own classifier; anything a
// classifier cannot place falls through to a generic conversion that still
// preserves the original message and SQL text.
package translate

import (
	"github.com/kitedata/kite/internal/catalog"
	"github.com/kitedata/kite/internal/dberr"
)

// SQLContext carries a failing statement's raw error plus the execution
// context the session layer knows about. The translator only consumes it.
type SQLContext struct {
	Err        error
	SQL        string
	EntityName string
	EntityID   string
	Message    string
}

// Translator classifies one driver's errors.
type Translator interface {
	Translate(ctx SQLContext) error
}

// ForDriver returns the translator for a driver name. Unknown drivers are a
// programming error: translation must never silently degrade.
func ForDriver(driver string, cat *catalog.Catalog) (Translator, error) {
	switch driver {
	case "postgres":
		return &postgresTranslator{catalog: cat}, nil
	case "sqlite":
		return &sqliteTranslator{catalog: cat}, nil
	default:
		return nil, dberr.Programmingf("no error translator for driver %q", driver)
	}
}

// ConstraintName extracts the violated-constraint name from a raw driver
// error. Returns "" when the error is not a recognized driver exception or
// carries no name; never fails.
func ConstraintName(driver string, err error) string {
	switch driver {
	case "postgres":
		return postgresConstraintName(err)
	case "sqlite":
		return sqliteConstraintName(err)
	default:
		return ""
	}
}

// nonspecific is the shared fallback for errors no vendor branch matched.
func nonspecific(ctx SQLContext) error {
	msg := ctx.Message
	if msg == "" && ctx.Err != nil {
		msg = ctx.Err.Error()
	}
	return &dberr.SQLError{
		Message: msg,
		SQL:     ctx.SQL,
		Err:     ctx.Err,
	}
}
