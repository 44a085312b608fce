package catalog

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/kitedata/kite/internal/domain"
)

// postgresIntrospector loads constraint metadata from information_schema.
type postgresIntrospector struct{}

const postgresConstraintQuery = `
	SELECT tc.constraint_name, tc.table_name, tc.table_schema, tc.constraint_type
	FROM information_schema.table_constraints tc
	WHERE tc.constraint_schema NOT IN ('information_schema', 'pg_catalog')
	ORDER BY tc.constraint_name
`

func (postgresIntrospector) Constraints(ctx context.Context, db *sql.DB) ([]domain.ConstraintMetadata, error) {
	// One short read-committed transaction around the single metadata query.
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, postgresConstraintQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var constraints []domain.ConstraintMetadata
	for rows.Next() {
		var name, table, schema, typeLiteral string
		if err := rows.Scan(&name, &table, &schema, &typeLiteral); err != nil {
			return nil, err
		}
		constraints = append(constraints, domain.ConstraintMetadata{
			ConstraintName: name,
			TableName:      table,
			TableSchema:    schema,
			Kind:           domain.ParseConstraintKind(typeLiteral),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return constraints, nil
}
