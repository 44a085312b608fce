package dberr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/kitedata/kite/internal/domain"
)

func TestConstraintErrorMatching(t *testing.T) {
	err := error(&ConstraintError{
		Kind:           domain.ConstraintUnique,
		Message:        "duplicate key value",
		ConstraintName: "UQ_User_Name",
	})

	ce, ok := AsConstraint(err)
	if !ok {
		t.Fatal("AsConstraint failed for a ConstraintError")
	}
	if ce.ConstraintName != "UQ_User_Name" {
		t.Errorf("expected constraint UQ_User_Name, got %q", ce.ConstraintName)
	}

	if !IsConstraint(err, domain.ConstraintUnique) {
		t.Error("IsConstraint(Unique) = false")
	}
	if IsConstraint(err, domain.ConstraintPrimaryKey) {
		t.Error("IsConstraint(PrimaryKey) matched a unique violation")
	}
}

func TestConstraintErrorWrapped(t *testing.T) {
	inner := &ConstraintError{Kind: domain.ConstraintForeignKey, Message: "fk"}
	wrapped := fmt.Errorf("saving company: %w", inner)

	if !IsConstraint(wrapped, domain.ConstraintForeignKey) {
		t.Error("wrapped constraint error not matched")
	}
	if !IsDomain(wrapped) {
		t.Error("wrapped constraint error not recognized as domain error")
	}
}

func TestIsDomain(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"constraint", &ConstraintError{Kind: domain.ConstraintCheck}, true},
		{"stale", &StaleObjectError{EntityName: "Company", EntityID: "1"}, true},
		{"sql", &SQLError{Message: "syntax error"}, true},
		{"external", &ExternalError{Message: "boom"}, true},
		{"programming", Programmingf("missing %s", "dsn"), true},
		{"plain", errors.New("plain"), false},
		{"nil", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDomain(tc.err); got != tc.want {
				t.Errorf("IsDomain() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSQLErrorPreservesStatement(t *testing.T) {
	cause := errors.New("driver: bad connection")
	err := &SQLError{Message: "insert failed", SQL: "INSERT INTO companies ...", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("SQLError does not unwrap to its cause")
	}
	msg := err.Error()
	if msg == "" || msg == "insert failed" {
		t.Errorf("expected SQL text in message, got %q", msg)
	}
}
