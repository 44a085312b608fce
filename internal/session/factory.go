// Package session provides the transactional unit of work. Every write runs
// inside a session: constraint violations come back as typed errors and
// audited changes produce audit rows in the same transaction.
package session

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kitedata/kite/internal/audit"
	"github.com/kitedata/kite/internal/catalog"
	"github.com/kitedata/kite/internal/domain"
	"github.com/kitedata/kite/internal/translate"
)

var tracer = otel.Tracer("kite-session")

// Factory owns the long-lived pieces of the data layer: the pool, the
// constraint catalog, the vendor error translator and the audit policy. One
// factory serves many concurrent units of work.
type Factory struct {
	db         *sql.DB
	driver     string
	catalog    *catalog.Catalog
	translator translate.Translator
	resolver   *audit.Resolver
	listener   *audit.Listener
}

// NewFactory wires a factory for an open pool.
func NewFactory(db *sql.DB, driver string) (*Factory, error) {
	cat := catalog.New(driver)
	translator, err := translate.ForDriver(driver, cat)
	if err != nil {
		return nil, err
	}

	resolver := audit.NewResolver()
	return &Factory{
		db:         db,
		driver:     driver,
		catalog:    cat,
		translator: translator,
		resolver:   resolver,
		listener:   audit.NewListener(resolver),
	}, nil
}

// Resolver exposes the audit policy registry for composition-time setup.
func (f *Factory) Resolver() *audit.Resolver {
	return f.resolver
}

// Initialize builds the constraint catalog through the factory's own pool.
// Optional: Do initializes lazily before the first unit of work.
func (f *Factory) Initialize(ctx context.Context) error {
	return translate.Convert("initializing constraint catalog", f.catalog.InitializeDB(ctx, f.db))
}

// Ping verifies the underlying pool is reachable.
func (f *Factory) Ping(ctx context.Context) error {
	return f.db.PingContext(ctx)
}

// Constraints returns the catalog contents.
func (f *Factory) Constraints() []domain.ConstraintMetadata {
	return f.catalog.All()
}

// Do runs fn inside one transaction. The transaction commits when fn returns
// nil and rolls back otherwise; audit rows written during the unit of work
// share its fate. Every error leaving Do has passed through the session
// translator, so callers only ever see the typed taxonomy.
func (f *Factory) Do(ctx context.Context, fn func(s *Session) error) error {
	ctx, span := tracer.Start(ctx, "session.do")
	defer span.End()
	span.SetAttributes(attribute.String("db.driver", f.driver))

	// Catalog initialization happens before any translation that consults it.
	if err := f.catalog.InitializeDB(ctx, f.db); err != nil {
		return translate.Convert("initializing constraint catalog", err)
	}

	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return translate.Convert("beginning transaction", err)
	}

	s := &Session{
		tx:        tx,
		factory:   f,
		snapshots: make(map[snapshotKey][]any),
	}

	if err := fn(s); err != nil {
		tx.Rollback()
		return translate.Convert("executing unit of work", err)
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return translate.Convert("committing transaction", err)
	}
	return nil
}

// AuditTrail returns the audit records for one entity, oldest first. Runs
// outside any unit of work.
func (f *Factory) AuditTrail(ctx context.Context, entityName, entityID string) ([]*domain.AuditRecord, error) {
	query := `
		SELECT id, entry_type, entity_name, entity_id, property_name,
		       old_value, new_value, created_by, created_at
		FROM audit_log
		WHERE entity_name = ? AND entity_id = ?
		ORDER BY created_at, id
	`

	rows, err := f.db.QueryContext(ctx, rebind(f.driver, query), entityName, entityID)
	if err != nil {
		return nil, translate.Convert("querying audit trail", err)
	}
	defer rows.Close()

	var records []*domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		if err := rows.Scan(
			&rec.ID, &rec.EntryType, &rec.EntityName, &rec.EntityID,
			&rec.PropertyName, &rec.OldValue, &rec.NewValue,
			&rec.CreatedBy, &rec.CreatedAt,
		); err != nil {
			return nil, translate.Convert("scanning audit trail", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translate.Convert("reading audit trail", err)
	}

	return records, nil
}
