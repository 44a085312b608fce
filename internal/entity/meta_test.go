package entity

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kitedata/kite/internal/dberr"
)

type company struct {
	ID      string `db:"id"`
	Name    string `db:"name"`
	Country string
	Version int64 `db:"version"`
	Scratch string `db:"-"`

	hidden string
}

type invoiceLine struct {
	ID     string
	Amount float64
}

func (invoiceLine) TableName() string { return "invoice_lines" }

type noID struct {
	Name string
}

func TestMetaOf(t *testing.T) {
	m, err := MetaOf(&company{})
	if err != nil {
		t.Fatalf("MetaOf failed: %v", err)
	}

	if m.Name != "company" {
		t.Errorf("unexpected entity name %q", m.Name)
	}
	if m.Table != "companys" {
		t.Errorf("expected derived table name companys, got %q", m.Table)
	}
	if got := m.PropertyNames(); !reflect.DeepEqual(got, []string{"Name", "Country"}) {
		t.Errorf("unexpected property names %v", got)
	}
	if got := m.Columns(); !reflect.DeepEqual(got, []string{"name", "country"}) {
		t.Errorf("unexpected columns %v", got)
	}
	if m.ID.Column != "id" {
		t.Errorf("expected id column, got %q", m.ID.Column)
	}
	if m.Version == nil || m.Version.Column != "version" {
		t.Error("version field not detected")
	}
}

func TestMetaTablerOverride(t *testing.T) {
	m, err := MetaOf(invoiceLine{})
	if err != nil {
		t.Fatalf("MetaOf failed: %v", err)
	}
	if m.Table != "invoice_lines" {
		t.Errorf("expected TableName override, got %q", m.Table)
	}
}

func TestMetaCached(t *testing.T) {
	m1, _ := MetaOf(&company{})
	m2, _ := MetaOf(company{})
	if m1 != m2 {
		t.Error("expected pointer-identical cached metadata")
	}
}

func TestStateAlignment(t *testing.T) {
	c := &company{ID: "c1", Name: "acme", Country: "NL", Version: 3}
	m, _ := MetaOf(c)

	state := m.State(c)
	names := m.PropertyNames()
	if len(state) != len(names) {
		t.Fatalf("state length %d != names length %d", len(state), len(names))
	}
	if state[0] != "acme" || state[1] != "NL" {
		t.Errorf("state misaligned: %v", state)
	}

	if id := m.IDValue(c); id != "c1" {
		t.Errorf("expected id c1, got %v", id)
	}
	if v, ok := m.VersionValue(c); !ok || v != 3 {
		t.Errorf("expected version 3, got %v %v", v, ok)
	}
}

func TestBumpVersion(t *testing.T) {
	c := &company{Version: 1}
	m, _ := MetaOf(c)

	if err := m.BumpVersion(c); err != nil {
		t.Fatalf("BumpVersion failed: %v", err)
	}
	if c.Version != 2 {
		t.Errorf("expected version 2, got %d", c.Version)
	}

	if err := m.BumpVersion(company{}); err == nil {
		t.Error("expected error bumping version of a non-pointer")
	}
}

func TestMetaOfRejectsNonStructs(t *testing.T) {
	for _, v := range []any{42, "x", nil, []string{"a"}} {
		if _, err := MetaOf(v); err == nil {
			t.Errorf("expected error for %T", v)
		}
	}

	_, err := MetaOf(noID{})
	var pe *dberr.ProgrammingError
	if !errors.As(err, &pe) {
		t.Errorf("expected ProgrammingError for entity without ID, got %v", err)
	}
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"Company":     "company",
		"CompanyID":   "company_id",
		"AuditRecord": "audit_record",
		"name":        "name",
	}
	for in, want := range cases {
		if got := snakeCase(in); got != want {
			t.Errorf("snakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
