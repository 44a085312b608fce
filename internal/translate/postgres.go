package translate

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/kitedata/kite/internal/catalog"
	"github.com/kitedata/kite/internal/dberr"
	"github.com/kitedata/kite/internal/domain"
)

// PostgreSQL SQLSTATE codes for integrity-constraint violations.
const (
	pgUniqueViolation     = "23505"
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// postgresTranslator classifies by SQLSTATE first, then disambiguates
// duplicate-key errors between PRIMARY KEY and UNIQUE using the catalog.
type postgresTranslator struct {
	catalog *catalog.Catalog
}

func (t *postgresTranslator) Translate(ctx SQLContext) error {
	var pqErr *pq.Error
	if !errors.As(ctx.Err, &pqErr) {
		return nonspecific(ctx)
	}

	name := postgresConstraintName(ctx.Err)

	var kind domain.ConstraintKind
	switch string(pqErr.Code) {
	case pgUniqueViolation:
		// Without catalog data a duplicate key defaults to UNIQUE rather
		// than guessing PRIMARY KEY.
		kind = domain.ConstraintUnique
		if t.catalog != nil && name != "" {
			if meta, ok := t.catalog.ByName(name); ok && meta.Kind == domain.ConstraintPrimaryKey {
				kind = domain.ConstraintPrimaryKey
			}
		}
	case pgNotNullViolation:
		kind = domain.ConstraintNotNull
	case pgForeignKeyViolation:
		kind = domain.ConstraintForeignKey
	case pgCheckViolation:
		kind = domain.ConstraintCheck
	default:
		return nonspecific(ctx)
	}

	return &dberr.ConstraintError{
		Kind:           kind,
		Message:        pqErr.Message,
		EntityName:     ctx.EntityName,
		EntityID:       ctx.EntityID,
		SQL:            ctx.SQL,
		ConstraintName: name,
		ExtraInfo:      postgresExtraInfo(pqErr),
	}
}

// postgresConstraintName pulls the violated-constraint name out of a pq
// error. Not-null violations carry no constraint name, only the column.
func postgresConstraintName(err error) string {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return ""
	}
	if pqErr.Constraint != "" {
		return pqErr.Constraint
	}
	if string(pqErr.Code) == pgNotNullViolation {
		return pqErr.Column
	}
	return ""
}

func postgresExtraInfo(pqErr *pq.Error) string {
	var parts []string
	if pqErr.Severity != "" {
		parts = append(parts, pqErr.Severity)
	}
	if pqErr.Detail != "" {
		parts = append(parts, pqErr.Detail)
	}
	return strings.Join(parts, ": ")
}
