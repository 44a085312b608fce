package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kitedata/kite/internal/domain"
)

// sqliteIntrospector builds constraint metadata from sqlite_master and the
// index pragmas. SQLite keeps no first-class constraint rows, so names are
// taken from the backing indexes where they exist and synthesized otherwise.
type sqliteIntrospector struct{}

func (sqliteIntrospector) Constraints(ctx context.Context, db *sql.DB) ([]domain.ConstraintMetadata, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tables, err := listTables(ctx, tx)
	if err != nil {
		return nil, err
	}

	var constraints []domain.ConstraintMetadata
	for _, table := range tables {
		tcs, err := tableConstraints(ctx, tx, table)
		if err != nil {
			return nil, err
		}
		constraints = append(constraints, tcs...)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return constraints, nil
}

func listTables(ctx context.Context, tx *sql.Tx) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// backingIndex is one index row from PRAGMA index_list that backs a
// constraint.
type backingIndex struct {
	name string
	kind domain.ConstraintKind
}

func tableConstraints(ctx context.Context, tx *sql.Tx, table string) ([]domain.ConstraintMetadata, error) {
	var constraints []domain.ConstraintMetadata

	indexes, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%q)", table))
	if err != nil {
		return nil, err
	}
	defer indexes.Close()

	var backing []backingIndex
	sawPrimaryKey := false
	for indexes.Next() {
		var (
			seq     int
			name    string
			unique  bool
			origin  string
			partial bool
		)
		if err := indexes.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, err
		}

		var kind domain.ConstraintKind
		switch {
		case origin == "pk":
			sawPrimaryKey = true
			kind = domain.ConstraintPrimaryKey
		case origin == "u":
			kind = domain.ConstraintUnique
		case unique:
			// A unique index with no constraint row behind it still enforces
			// uniqueness; treat it as a UNIQUE constraint.
			kind = domain.ConstraintUnique
		default:
			continue
		}
		backing = append(backing, backingIndex{name: name, kind: kind})
	}
	if err := indexes.Err(); err != nil {
		return nil, err
	}

	for _, idx := range backing {
		name := idx.name
		// Declared PRIMARY KEY and UNIQUE constraints lose their names to
		// autoindexes; register them under the table.column form the driver
		// reports in violation messages so lookups resolve.
		if strings.HasPrefix(name, "sqlite_autoindex_") {
			cols, err := indexColumns(ctx, tx, name)
			if err != nil {
				return nil, err
			}
			if len(cols) > 0 {
				qualified := make([]string, len(cols))
				for i, col := range cols {
					qualified[i] = table + "." + col
				}
				name = strings.Join(qualified, ", ")
			}
		}
		constraints = append(constraints, metaFor(name, table, idx.kind))
	}

	// Integer primary keys alias the rowid and get no backing index.
	if !sawPrimaryKey {
		hasPK, err := hasRowidPrimaryKey(ctx, tx, table)
		if err != nil {
			return nil, err
		}
		if hasPK {
			constraints = append(constraints, metaFor("pk_"+table, table, domain.ConstraintPrimaryKey))
		}
	}

	fks, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", table))
	if err != nil {
		return nil, err
	}
	defer fks.Close()

	seen := map[int]bool{}
	for fks.Next() {
		var (
			id, seq                   int
			refTable, from, to        sql.NullString
			onUpdate, onDelete, match sql.NullString
		)
		if err := fks.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		// SQLite foreign keys are unnamed; synthesize a stable name.
		constraints = append(constraints, metaFor(fmt.Sprintf("fk_%s_%d", table, id), table, domain.ConstraintForeignKey))
	}
	if err := fks.Err(); err != nil {
		return nil, err
	}

	return constraints, nil
}

func indexColumns(ctx context.Context, tx *sql.Tx, index string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%q)", index))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno, cid int
			name       sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		if name.Valid {
			cols = append(cols, name.String)
		}
	}
	return cols, rows.Err()
}

func hasRowidPrimaryKey(ctx context.Context, tx *sql.Tx, table string) (bool, error) {
	cols, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return false, err
	}
	defer cols.Close()

	for cols.Next() {
		var (
			cid        int
			name, typ  string
			notNull    bool
			defaultVal sql.NullString
			pk         int
		)
		if err := cols.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return false, err
		}
		if pk > 0 {
			return true, nil
		}
	}
	return false, cols.Err()
}

func metaFor(name, table string, kind domain.ConstraintKind) domain.ConstraintMetadata {
	return domain.ConstraintMetadata{
		ConstraintName: name,
		TableName:      table,
		TableSchema:    "main",
		Kind:           kind,
	}
}
