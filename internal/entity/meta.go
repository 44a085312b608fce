// Package entity maps Go structs onto tables and positional state vectors.
// Metadata is computed once per type by reflection and cached for the
// process lifetime; racing recomputation is harmless because the result is a
// pure function of the type.
package entity

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/kitedata/kite/internal/dberr"
)

// Tabler overrides the table name derived from the type name.
type Tabler interface {
	TableName() string
}

// Field is one persisted, writable property of an entity.
type Field struct {
	Name   string
	Column string
	index  int
}

// Meta describes how one entity type is persisted. Fields excludes the
// identifier and version columns; those are addressed separately.
type Meta struct {
	Type    reflect.Type
	Name    string
	Table   string
	Fields  []Field
	ID      Field
	Version *Field

	names []string
}

var metaCache sync.Map // reflect.Type -> *Meta

// MetaOf resolves the persistence metadata for an entity value, which must
// be a struct or pointer to struct with an ID field.
func MetaOf(v any) (*Meta, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, dberr.Programmingf("entity must be a struct, got %T", v)
	}

	if cached, ok := metaCache.Load(t); ok {
		return cached.(*Meta), nil
	}

	m, err := buildMeta(t)
	if err != nil {
		return nil, err
	}
	actual, _ := metaCache.LoadOrStore(t, m)
	return actual.(*Meta), nil
}

func buildMeta(t reflect.Type) (*Meta, error) {
	m := &Meta{
		Type:  t,
		Name:  t.Name(),
		Table: snakeCase(t.Name()) + "s",
	}
	if tabler, ok := reflect.New(t).Interface().(Tabler); ok {
		m.Table = tabler.TableName()
	}

	hasID := false
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("db")
		if tag == "-" {
			continue
		}
		column := tag
		if column == "" {
			column = snakeCase(sf.Name)
		}

		f := Field{Name: sf.Name, Column: column, index: i}
		switch {
		case sf.Name == "ID" || column == "id":
			m.ID = f
			hasID = true
		case sf.Name == "Version" || column == "version":
			v := f
			m.Version = &v
		default:
			m.Fields = append(m.Fields, f)
			m.names = append(m.names, f.Name)
		}
	}
	if !hasID {
		return nil, dberr.Programmingf("entity type %s has no ID field", t.Name())
	}
	return m, nil
}

// PropertyNames returns the writable property names, positionally aligned
// with State.
func (m *Meta) PropertyNames() []string {
	return m.names
}

// Columns returns the column names aligned with State.
func (m *Meta) Columns() []string {
	cols := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = f.Column
	}
	return cols
}

// State extracts the positional state vector of an entity value.
func (m *Meta) State(v any) []any {
	rv := structValue(v)
	state := make([]any, len(m.Fields))
	for i, f := range m.Fields {
		state[i] = rv.Field(f.index).Interface()
	}
	return state
}

// IDValue returns the identifier value of an entity.
func (m *Meta) IDValue(v any) any {
	return structValue(v).Field(m.ID.index).Interface()
}

// VersionValue returns the optimistic-lock version, if the type has one.
func (m *Meta) VersionValue(v any) (int64, bool) {
	if m.Version == nil {
		return 0, false
	}
	return structValue(v).Field(m.Version.index).Int(), true
}

// ScanTargets returns scan destinations for a row laid out as
// id, fields..., version (when the type is versioned). v must be a pointer
// to struct.
func (m *Meta) ScanTargets(v any) ([]any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return nil, dberr.Programmingf("scan target must be a struct pointer, got %T", v)
	}
	sv := rv.Elem()

	targets := make([]any, 0, len(m.Fields)+2)
	targets = append(targets, sv.Field(m.ID.index).Addr().Interface())
	for _, f := range m.Fields {
		targets = append(targets, sv.Field(f.index).Addr().Interface())
	}
	if m.Version != nil {
		targets = append(targets, sv.Field(m.Version.index).Addr().Interface())
	}
	return targets, nil
}

// BumpVersion increments the version field in place. The entity must be
// addressable (a pointer).
func (m *Meta) BumpVersion(v any) error {
	if m.Version == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer {
		return dberr.Programmingf("cannot bump version of non-pointer %T", v)
	}
	field := rv.Elem().Field(m.Version.index)
	field.SetInt(field.Int() + 1)
	return nil
}

func structValue(v any) reflect.Value {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	return rv
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && !unicode.IsUpper(runes[i-1])
			nextLower := i+1 < len(runes) && !unicode.IsUpper(runes[i+1])
			if i > 0 && (prevLower || nextLower) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
