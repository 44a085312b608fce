// Package dberr defines the closed error taxonomy surfaced by the data
// layer. Constraint violations carry their classification as a field rather
// than as a subtype, so callers can match exhaustively on the kind.
package dberr

import (
	"errors"
	"fmt"

	"github.com/kitedata/kite/internal/domain"
)

// ConstraintError reports a database integrity-constraint violation. The
// original driver message and SQL statement are always preserved for
// diagnostics; Kind is the normalized classification.
type ConstraintError struct {
	Kind           domain.ConstraintKind
	Message        string
	EntityName     string
	EntityID       string
	SQL            string
	ConstraintName string
	ExtraInfo      string
}

func (e *ConstraintError) Error() string {
	if e.ConstraintName != "" {
		return fmt.Sprintf("%s constraint %q violated: %s", e.Kind, e.ConstraintName, e.Message)
	}
	return fmt.Sprintf("%s constraint violated: %s", e.Kind, e.Message)
}

// StaleObjectError reports an optimistic-concurrency conflict: the entity's
// in-memory version no longer matches the persisted one.
type StaleObjectError struct {
	EntityName string
	EntityID   string
}

func (e *StaleObjectError) Error() string {
	return fmt.Sprintf("%s %q was changed by another transaction", e.EntityName, e.EntityID)
}

// SQLError is an opaque SQL-statement failure. It preserves the statement
// text and wraps the driver error.
type SQLError struct {
	Message string
	SQL     string
	Err     error
}

func (e *SQLError) Error() string {
	if e.SQL != "" {
		return fmt.Sprintf("%s [sql: %s]", e.Message, e.SQL)
	}
	return e.Message
}

func (e *SQLError) Unwrap() error { return e.Err }

// ExternalError is the last-resort wrapper for failures that did not
// originate in the data layer.
type ExternalError struct {
	Message string
	Err     error
}

func (e *ExternalError) Error() string { return e.Message }

func (e *ExternalError) Unwrap() error { return e.Err }

// ProgrammingError reports a caller bug or missing configuration. It is
// non-retryable and must never be mistaken for a data error.
type ProgrammingError struct {
	Message string
}

func (e *ProgrammingError) Error() string { return e.Message }

// Programmingf builds a ProgrammingError from a format string.
func Programmingf(format string, args ...any) *ProgrammingError {
	return &ProgrammingError{Message: fmt.Sprintf(format, args...)}
}

// AsConstraint unwraps err to a ConstraintError if it is one.
func AsConstraint(err error) (*ConstraintError, bool) {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsConstraint reports whether err is a constraint violation of the given kind.
func IsConstraint(err error, kind domain.ConstraintKind) bool {
	ce, ok := AsConstraint(err)
	return ok && ce.Kind == kind
}

// IsDomain reports whether err already belongs to the data layer's taxonomy.
// Such errors pass through conversion unchanged; nothing double-wraps them.
func IsDomain(err error) bool {
	var (
		ce *ConstraintError
		se *StaleObjectError
		qe *SQLError
		xe *ExternalError
		pe *ProgrammingError
	)
	return errors.As(err, &ce) ||
		errors.As(err, &se) ||
		errors.As(err, &qe) ||
		errors.As(err, &xe) ||
		errors.As(err, &pe)
}
