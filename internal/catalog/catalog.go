// Package catalog loads and caches schema-constraint metadata per database.
// The catalog is built once by a single metadata query and is read-only
// afterward; a new instance is required to see new constraints.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kitedata/kite/internal/dberr"
	"github.com/kitedata/kite/internal/domain"
)

var tracer = otel.Tracer("kite-catalog")

// Introspector executes the vendor-specific metadata query for one driver.
type Introspector interface {
	Constraints(ctx context.Context, db *sql.DB) ([]domain.ConstraintMetadata, error)
}

// IntrospectorFor returns the introspector for a driver name.
func IntrospectorFor(driver string) (Introspector, error) {
	switch driver {
	case "postgres":
		return postgresIntrospector{}, nil
	case "sqlite":
		return sqliteIntrospector{}, nil
	default:
		return nil, dberr.Programmingf("no constraint introspector for driver %q", driver)
	}
}

// Catalog owns a constraintName -> ConstraintMetadata mapping. Initialization
// is single-flight: the first caller pays the cost of the metadata query,
// later calls are no-ops. Reads after initialization need no locking.
type Catalog struct {
	driver    string
	namedDSNs map[string]string
	intro     Introspector

	mu     sync.Mutex
	loaded bool
	byName map[string]domain.ConstraintMetadata
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithNamedDSNs supplies the lookup table for the "dsn_name" connection
// property.
func WithNamedDSNs(named map[string]string) Option {
	return func(c *Catalog) { c.namedDSNs = named }
}

// WithIntrospector overrides the driver-selected introspector.
func WithIntrospector(in Introspector) Option {
	return func(c *Catalog) { c.intro = in }
}

// New creates an uninitialized catalog for the given driver.
func New(driver string, opts ...Option) *Catalog {
	c := &Catalog{driver: driver}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize resolves a connection from the given properties, runs the
// metadata query and caches the result. Idempotent: while cached data exists
// subsequent calls perform no query. An unresolvable provider or connection
// is a programming error, not a data error.
func (c *Catalog) Initialize(ctx context.Context, props domain.ConnectionProperties) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}

	driver := c.driver
	if d, ok := props[domain.PropDriver]; ok && d != "" {
		driver = d
	}
	dsn, err := c.resolveDSN(driver, props)
	if err != nil {
		return err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return dberr.Programmingf("opening %s connection for constraint catalog: %v", driver, err)
	}
	defer db.Close()

	return c.loadLocked(ctx, driver, db)
}

// InitializeDB builds the catalog through an already-open pool. Used by the
// session factory so catalog introspection shares the pool it serves.
func (c *Catalog) InitializeDB(ctx context.Context, db *sql.DB) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	return c.loadLocked(ctx, c.driver, db)
}

func (c *Catalog) loadLocked(ctx context.Context, driver string, db *sql.DB) error {
	ctx, span := tracer.Start(ctx, "catalog.initialize")
	defer span.End()
	span.SetAttributes(attribute.String("db.driver", driver))

	intro := c.intro
	if intro == nil {
		var err error
		intro, err = IntrospectorFor(driver)
		if err != nil {
			return err
		}
	}

	constraints, err := intro.Constraints(ctx, db)
	if err != nil {
		return fmt.Errorf("loading constraint catalog: %w", err)
	}

	// Zero rows is an empty catalog, not an error.
	byName := make(map[string]domain.ConstraintMetadata, len(constraints))
	for _, meta := range constraints {
		byName[meta.ConstraintName] = meta
	}
	c.byName = byName
	c.loaded = true

	slog.Debug("constraint catalog initialized",
		"driver", driver,
		"constraints", len(byName),
	)
	return nil
}

func (c *Catalog) resolveDSN(driver string, props domain.ConnectionProperties) (string, error) {
	if dsn, ok := props[domain.PropDSN]; ok && dsn != "" {
		return dsn, nil
	}
	if name, ok := props[domain.PropDSNName]; ok && name != "" {
		dsn, ok := c.namedDSNs[name]
		if !ok {
			return "", dberr.Programmingf("named connection string %q is not configured", name)
		}
		return dsn, nil
	}
	switch driver {
	case "sqlite":
		return "file:kite.db", nil
	case "postgres":
		return "host=localhost port=5432 dbname=kite sslmode=disable", nil
	default:
		return "", dberr.Programmingf("no connection string resolvable for driver %q", driver)
	}
}

// ByName returns the metadata for a constraint name. Lookup is exact and
// case-sensitive.
func (c *Catalog) ByName(name string) (domain.ConstraintMetadata, bool) {
	c.mu.Lock()
	byName := c.byName
	c.mu.Unlock()
	meta, ok := byName[name]
	return meta, ok
}

// All returns every known constraint. Empty, never nil, when uninitialized.
func (c *Catalog) All() []domain.ConstraintMetadata {
	c.mu.Lock()
	byName := c.byName
	c.mu.Unlock()

	all := make([]domain.ConstraintMetadata, 0, len(byName))
	for _, meta := range byName {
		all = append(all, meta)
	}
	return all
}
