package translate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"github.com/kitedata/kite/internal/catalog"
	"github.com/kitedata/kite/internal/dberr"
	"github.com/kitedata/kite/internal/domain"
)

// staticIntrospector serves a fixed constraint set without touching a database.
type staticIntrospector struct {
	constraints []domain.ConstraintMetadata
}

func (s staticIntrospector) Constraints(ctx context.Context, db *sql.DB) ([]domain.ConstraintMetadata, error) {
	return s.constraints, nil
}

func loadedCatalog(t *testing.T, constraints ...domain.ConstraintMetadata) *catalog.Catalog {
	t.Helper()
	cat := catalog.New("postgres", catalog.WithIntrospector(staticIntrospector{constraints}))
	if err := cat.InitializeDB(context.Background(), nil); err != nil {
		t.Fatalf("catalog init failed: %v", err)
	}
	return cat
}

func TestPostgresTranslateUniqueViolation(t *testing.T) {
	cat := loadedCatalog(t, domain.ConstraintMetadata{
		ConstraintName: "UQ_User_Name",
		TableName:      "users",
		TableSchema:    "public",
		Kind:           domain.ConstraintUnique,
	})
	tr, err := ForDriver("postgres", cat)
	if err != nil {
		t.Fatalf("ForDriver failed: %v", err)
	}

	raw := &pq.Error{
		Severity:   "ERROR",
		Code:       "23505",
		Message:    `duplicate key value violates unique constraint "UQ_User_Name"`,
		Detail:     "Key (name)=(acme) already exists.",
		Constraint: "UQ_User_Name",
	}
	converted := tr.Translate(SQLContext{
		Err:        raw,
		SQL:        "INSERT INTO users (name) VALUES ($1)",
		EntityName: "User",
		EntityID:   "42",
	})

	ce, ok := dberr.AsConstraint(converted)
	if !ok {
		t.Fatalf("expected ConstraintError, got %T: %v", converted, converted)
	}
	if ce.Kind != domain.ConstraintUnique {
		t.Errorf("expected UNIQUE, got %s", ce.Kind)
	}
	if ce.ConstraintName != "UQ_User_Name" {
		t.Errorf("expected constraint UQ_User_Name, got %q", ce.ConstraintName)
	}
	if ce.EntityName != "User" || ce.EntityID != "42" {
		t.Errorf("entity context lost: %q %q", ce.EntityName, ce.EntityID)
	}
	if ce.SQL == "" {
		t.Error("SQL text lost in translation")
	}
	if ce.ExtraInfo != "ERROR: Key (name)=(acme) already exists." {
		t.Errorf("unexpected extra info %q", ce.ExtraInfo)
	}
}

// A duplicate-key error classifies as PRIMARY KEY or UNIQUE depending on the
// catalog's kind for the violated constraint; the two are mutually exclusive.
func TestPostgresPrimaryKeyVersusUnique(t *testing.T) {
	cat := loadedCatalog(t,
		domain.ConstraintMetadata{ConstraintName: "pk_users", Kind: domain.ConstraintPrimaryKey},
		domain.ConstraintMetadata{ConstraintName: "uq_users_name", Kind: domain.ConstraintUnique},
	)
	tr, _ := ForDriver("postgres", cat)

	cases := []struct {
		constraint string
		want       domain.ConstraintKind
	}{
		{"pk_users", domain.ConstraintPrimaryKey},
		{"uq_users_name", domain.ConstraintUnique},
		// Absent catalog data the translator must not guess PRIMARY KEY.
		{"uq_unlisted", domain.ConstraintUnique},
	}

	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			converted := tr.Translate(SQLContext{Err: &pq.Error{
				Code:       "23505",
				Message:    "duplicate key value",
				Constraint: tc.constraint,
			}})
			ce, ok := dberr.AsConstraint(converted)
			if !ok {
				t.Fatalf("expected ConstraintError, got %T", converted)
			}
			if ce.Kind != tc.want {
				t.Errorf("expected %s, got %s", tc.want, ce.Kind)
			}
			other := domain.ConstraintPrimaryKey
			if tc.want == domain.ConstraintPrimaryKey {
				other = domain.ConstraintUnique
			}
			if ce.Kind == other {
				t.Error("PRIMARY KEY and UNIQUE classifications overlap")
			}
		})
	}
}

func TestPostgresTranslateByCode(t *testing.T) {
	tr, _ := ForDriver("postgres", loadedCatalog(t))

	cases := []struct {
		name string
		err  *pq.Error
		want domain.ConstraintKind
	}{
		{"not null", &pq.Error{Code: "23502", Message: "null value in column", Column: "name"}, domain.ConstraintNotNull},
		{"foreign key", &pq.Error{Code: "23503", Message: "violates foreign key", Constraint: "fk_users_company"}, domain.ConstraintForeignKey},
		{"check", &pq.Error{Code: "23514", Message: "violates check constraint", Constraint: "ck_users_age"}, domain.ConstraintCheck},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ce, ok := dberr.AsConstraint(tr.Translate(SQLContext{Err: tc.err}))
			if !ok {
				t.Fatal("expected ConstraintError")
			}
			if ce.Kind != tc.want {
				t.Errorf("expected %s, got %s", tc.want, ce.Kind)
			}
		})
	}
}

func TestPostgresNotNullUsesColumnName(t *testing.T) {
	name := postgresConstraintName(&pq.Error{Code: "23502", Column: "name"})
	if name != "name" {
		t.Errorf("expected column name fallback, got %q", name)
	}
}

func TestPostgresNonSpecificFallback(t *testing.T) {
	tr, _ := ForDriver("postgres", loadedCatalog(t))

	cases := []struct {
		name string
		err  error
	}{
		{"non-driver error", errors.New("broken pipe")},
		{"unmatched code", &pq.Error{Code: "42601", Message: "syntax error"}},
		{"wrapped non-driver", fmt.Errorf("flush: %w", errors.New("boom"))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			converted := tr.Translate(SQLContext{Err: tc.err, SQL: "SELECT 1", Message: "statement failed"})
			var se *dberr.SQLError
			if !errors.As(converted, &se) {
				t.Fatalf("expected SQLError fallback, got %T: %v", converted, converted)
			}
			if se.SQL != "SELECT 1" {
				t.Error("fallback lost the SQL text")
			}
			if !errors.Is(converted, tc.err) {
				t.Error("fallback lost the original error")
			}
		})
	}
}

func TestConstraintNameUnknownDriver(t *testing.T) {
	if got := ConstraintName("oracle", errors.New("x")); got != "" {
		t.Errorf("expected empty name for unknown driver, got %q", got)
	}
}
