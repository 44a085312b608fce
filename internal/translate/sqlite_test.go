package translate

import (
	"errors"
	"testing"

	"github.com/kitedata/kite/internal/dberr"
	"github.com/kitedata/kite/internal/domain"
)

// fakeSQLiteError mimics the driver's error surface: a result code plus the
// formatted message.
type fakeSQLiteError struct {
	code int
	msg  string
}

func (e *fakeSQLiteError) Code() int     { return e.code }
func (e *fakeSQLiteError) Error() string { return e.msg }

func TestSQLiteTranslateByExtendedCode(t *testing.T) {
	tr, err := ForDriver("sqlite", loadedCatalog(t))
	if err != nil {
		t.Fatalf("ForDriver failed: %v", err)
	}

	cases := []struct {
		name     string
		err      *fakeSQLiteError
		want     domain.ConstraintKind
		wantName string
	}{
		{
			"unique",
			&fakeSQLiteError{2067, "UNIQUE constraint failed: users.name"},
			domain.ConstraintUnique,
			"users.name",
		},
		{
			"primary key",
			&fakeSQLiteError{1555, "UNIQUE constraint failed: users.id"},
			domain.ConstraintPrimaryKey,
			"users.id",
		},
		{
			"not null",
			&fakeSQLiteError{1299, "NOT NULL constraint failed: users.name"},
			domain.ConstraintNotNull,
			"users.name",
		},
		{
			"check",
			&fakeSQLiteError{275, "CHECK constraint failed: ck_users_age"},
			domain.ConstraintCheck,
			"ck_users_age",
		},
		{
			"foreign key carries no name",
			&fakeSQLiteError{787, "FOREIGN KEY constraint failed"},
			domain.ConstraintForeignKey,
			"",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			converted := tr.Translate(SQLContext{Err: tc.err, EntityName: "User", EntityID: "7"})
			ce, ok := dberr.AsConstraint(converted)
			if !ok {
				t.Fatalf("expected ConstraintError, got %T: %v", converted, converted)
			}
			if ce.Kind != tc.want {
				t.Errorf("expected %s, got %s", tc.want, ce.Kind)
			}
			if ce.ConstraintName != tc.wantName {
				t.Errorf("expected name %q, got %q", tc.wantName, ce.ConstraintName)
			}
			if ce.Message != tc.err.msg {
				t.Error("driver message lost in translation")
			}
		})
	}
}

func TestSQLiteBaseCodeFallsBackToMessage(t *testing.T) {
	tr, _ := ForDriver("sqlite", loadedCatalog(t))

	converted := tr.Translate(SQLContext{
		Err: &fakeSQLiteError{19, "UNIQUE constraint failed: users.name"},
	})
	if !dberr.IsConstraint(converted, domain.ConstraintUnique) {
		t.Errorf("expected UNIQUE from message sniffing, got %v", converted)
	}
}

func TestSQLiteNonConstraintCode(t *testing.T) {
	tr, _ := ForDriver("sqlite", loadedCatalog(t))

	converted := tr.Translate(SQLContext{
		Err: &fakeSQLiteError{5, "database is locked"},
		SQL: "UPDATE users SET name = ?",
	})
	var se *dberr.SQLError
	if !errors.As(converted, &se) {
		t.Fatalf("expected SQLError for busy database, got %T", converted)
	}
	if se.SQL == "" {
		t.Error("SQL text lost")
	}
}

func TestSQLiteConstraintNameParsing(t *testing.T) {
	cases := []struct {
		msg  string
		want string
	}{
		{"UNIQUE constraint failed: users.name", "users.name"},
		{"CHECK constraint failed: ck_age (275)", "ck_age"},
		{"FOREIGN KEY constraint failed", ""},
		{"no marker here", ""},
	}
	for _, tc := range cases {
		got := sqliteConstraintName(&fakeSQLiteError{19, tc.msg})
		if got != tc.want {
			t.Errorf("sqliteConstraintName(%q) = %q, want %q", tc.msg, got, tc.want)
		}
	}
}

func TestForDriverUnknown(t *testing.T) {
	_, err := ForDriver("oracle", nil)
	var pe *dberr.ProgrammingError
	if !errors.As(err, &pe) {
		t.Errorf("expected ProgrammingError for unknown driver, got %T: %v", err, err)
	}
}
