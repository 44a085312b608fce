package translate

import (
	"errors"
	"strings"

	"github.com/kitedata/kite/internal/catalog"
	"github.com/kitedata/kite/internal/dberr"
	"github.com/kitedata/kite/internal/domain"
)

// SQLite result codes for integrity-constraint violations. The base code is
// SQLITE_CONSTRAINT; the extended codes narrow the constraint class.
const (
	sqliteConstraint           = 19
	sqliteConstraintCheck      = 275  // SQLITE_CONSTRAINT_CHECK
	sqliteConstraintForeignKey = 787  // SQLITE_CONSTRAINT_FOREIGNKEY
	sqliteConstraintNotNull    = 1299 // SQLITE_CONSTRAINT_NOTNULL
	sqliteConstraintPrimaryKey = 1555 // SQLITE_CONSTRAINT_PRIMARYKEY
	sqliteConstraintUnique     = 2067 // SQLITE_CONSTRAINT_UNIQUE
)

// resultCoder is the surface of modernc.org/sqlite's error type the
// translator needs. Matching on the interface keeps classification testable
// without constructing driver internals.
type resultCoder interface {
	Code() int
	Error() string
}

// sqliteTranslator classifies by extended result code, with the message
// prefix as fallback when only the base constraint code is reported.
type sqliteTranslator struct {
	catalog *catalog.Catalog
}

func (t *sqliteTranslator) Translate(ctx SQLContext) error {
	var coder resultCoder
	if !errors.As(ctx.Err, &coder) {
		return nonspecific(ctx)
	}

	code := coder.Code()
	if code&0xff != sqliteConstraint {
		return nonspecific(ctx)
	}

	msg := coder.Error()
	var kind domain.ConstraintKind
	switch code {
	case sqliteConstraintPrimaryKey:
		kind = domain.ConstraintPrimaryKey
	case sqliteConstraintUnique:
		kind = domain.ConstraintUnique
	case sqliteConstraintForeignKey:
		kind = domain.ConstraintForeignKey
	case sqliteConstraintNotNull:
		kind = domain.ConstraintNotNull
	case sqliteConstraintCheck:
		kind = domain.ConstraintCheck
	default:
		kind = kindFromMessage(msg)
	}
	if kind == domain.ConstraintUnknown {
		return nonspecific(ctx)
	}

	name := sqliteConstraintName(ctx.Err)

	// SQLite reports "table.column" rather than a constraint name for key
	// violations; the catalog resolves it when a named entry exists.
	if t.catalog != nil && name != "" {
		if meta, ok := t.catalog.ByName(name); ok && kind == domain.ConstraintUnique && meta.Kind == domain.ConstraintPrimaryKey {
			kind = domain.ConstraintPrimaryKey
		}
	}

	return &dberr.ConstraintError{
		Kind:           kind,
		Message:        msg,
		EntityName:     ctx.EntityName,
		EntityID:       ctx.EntityID,
		SQL:            ctx.SQL,
		ConstraintName: name,
	}
}

func kindFromMessage(msg string) domain.ConstraintKind {
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return domain.ConstraintUnique
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return domain.ConstraintNotNull
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return domain.ConstraintForeignKey
	case strings.Contains(msg, "CHECK constraint failed"):
		return domain.ConstraintCheck
	default:
		return domain.ConstraintUnknown
	}
}

// sqliteConstraintName parses the identifier after "constraint failed:" in
// an SQLite error message. Foreign key violations carry no identifier.
func sqliteConstraintName(err error) string {
	var coder resultCoder
	if !errors.As(err, &coder) {
		return ""
	}
	msg := coder.Error()
	const marker = "constraint failed: "
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	name := strings.TrimSpace(msg[i+len(marker):])
	// Trim the trailing result-code annotation some drivers append.
	if j := strings.Index(name, " ("); j > 0 {
		name = name[:j]
	}
	return name
}
