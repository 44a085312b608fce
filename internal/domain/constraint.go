// Package domain defines the core types and configuration for Kite.
package domain

// ConstraintKind is the closed classification of a database integrity
// constraint. Vendor-specific type literals map onto this enum.
type ConstraintKind string

const (
	ConstraintPrimaryKey ConstraintKind = "PRIMARY KEY"
	ConstraintUnique     ConstraintKind = "UNIQUE"
	ConstraintForeignKey ConstraintKind = "FOREIGN KEY"
	ConstraintCheck      ConstraintKind = "CHECK"
	ConstraintNotNull    ConstraintKind = "NOT NULL"
	ConstraintUnknown    ConstraintKind = "UNKNOWN"
)

// ParseConstraintKind maps a vendor constraint-type literal to a
// ConstraintKind. Unrecognized literals map to ConstraintUnknown; this never
// fails, so a new vendor literal can't break catalog loading.
func ParseConstraintKind(literal string) ConstraintKind {
	switch literal {
	case "PRIMARY KEY":
		return ConstraintPrimaryKey
	case "UNIQUE":
		return ConstraintUnique
	case "FOREIGN KEY":
		return ConstraintForeignKey
	case "CHECK":
		return ConstraintCheck
	case "NOT NULL":
		return ConstraintNotNull
	default:
		return ConstraintUnknown
	}
}

// ConstraintMetadata describes one schema constraint. Identity is the
// constraint name alone, case-sensitive.
type ConstraintMetadata struct {
	ConstraintName string         `json:"constraintName"`
	TableName      string         `json:"tableName"`
	TableSchema    string         `json:"tableSchema"`
	Kind           ConstraintKind `json:"kind"`
}
