package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tenantry/tenantdb/internal/store"
)

// Queryer is the minimal read contract catalog introspection needs. It is
// satisfied by store.Conn, *store.Scope and the DBQueryer adapter.
type Queryer interface {
	FetchAll(ctx context.Context, query string, args ...any) ([]store.Row, error)
}

// DBQueryer adapts a *sql.DB pool to the Queryer interface so a registry can
// introspect the catalog without a dedicated session.
type DBQueryer struct {
	DB *sql.DB
}

// FetchAll implements Queryer over the pool.
func (q DBQueryer) FetchAll(ctx context.Context, query string, args ...any) ([]store.Row, error) {
	rows, err := q.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.MapQueryError(err)
	}
	defer func() { _ = rows.Close() }()

	var result []store.Row
	cols, err := rows.Columns()
	if err != nil {
		return nil, store.MapQueryError(err)
	}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, store.MapQueryError(err)
		}
		row := make(store.Row, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, store.MapQueryError(err)
	}
	return result, nil
}

// CatalogSource loads table descriptors from the engine's own catalog
// (information_schema and pg_enum).
type CatalogSource struct {
	q Queryer
}

var _ Source = (*CatalogSource)(nil)

// NewCatalogSource builds a catalog source over any Queryer.
func NewCatalogSource(q Queryer) *CatalogSource {
	return &CatalogSource{q: q}
}

// NewCatalogSourceDB builds a catalog source over a connection pool.
func NewCatalogSourceDB(db *sql.DB) *CatalogSource {
	return &CatalogSource{q: DBQueryer{DB: db}}
}

const columnsQuery = `
	SELECT column_name, data_type, udt_name, is_nullable,
	       column_default, character_maximum_length
	FROM information_schema.columns
	WHERE table_schema = $1 AND table_name = $2
	ORDER BY ordinal_position`

const primaryKeysQuery = `
	SELECT kcu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
	  ON tc.constraint_name = kcu.constraint_name
	 AND tc.table_schema = kcu.table_schema
	WHERE tc.constraint_type = 'PRIMARY KEY'
	  AND tc.table_schema = $1
	  AND tc.table_name = $2
	ORDER BY kcu.ordinal_position`

const foreignKeysQuery = `
	SELECT kcu.column_name,
	       ccu.table_schema AS foreign_table_schema,
	       ccu.table_name   AS foreign_table_name,
	       ccu.column_name  AS foreign_column_name
	FROM information_schema.table_constraints AS tc
	JOIN information_schema.key_column_usage AS kcu
	  ON tc.constraint_name = kcu.constraint_name
	 AND tc.table_schema = kcu.table_schema
	JOIN information_schema.constraint_column_usage AS ccu
	  ON ccu.constraint_name = tc.constraint_name
	 AND ccu.table_schema = tc.table_schema
	WHERE tc.constraint_type = 'FOREIGN KEY'
	  AND tc.table_schema = $1
	  AND tc.table_name = $2`

const enumValuesQuery = `
	SELECT e.enumlabel
	FROM pg_type t
	JOIN pg_enum e ON t.oid = e.enumtypid
	WHERE t.typname = $1
	ORDER BY e.enumsortorder`

// LoadTable implements Source by querying the catalog for the table's
// columns, primary keys, foreign keys and enum vocabularies.
func (s *CatalogSource) LoadTable(ctx context.Context, schemaName, tableName string) (*Table, error) {
	colRows, err := s.q.FetchAll(ctx, columnsQuery, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog introspection failed for %s.%s: %v",
			store.ErrSchema, schemaName, tableName, err)
	}
	if len(colRows) == 0 {
		return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, schemaName, tableName)
	}

	columns := make([]Column, 0, len(colRows))
	for _, row := range colRows {
		col := Column{
			Name:     asString(row["column_name"]),
			DataType: asString(row["data_type"]),
			Nullable: asString(row["is_nullable"]) == "YES",
		}
		if def, ok := row["column_default"]; ok && def != nil {
			col.Default = asString(def)
			col.HasDefault = true
		}
		if ml, ok := row["character_maximum_length"]; ok && ml != nil {
			col.MaxLength = asInt(ml)
		}

		col.Type = CategoryOf(col.DataType)
		if col.Type == Unknown && asString(row["data_type"]) == "USER-DEFINED" {
			// User-defined types are usually enums; load the vocabulary.
			enum, err := s.loadEnumValues(ctx, asString(row["udt_name"]))
			if err != nil {
				return nil, err
			}
			if len(enum) > 0 {
				col.Type = Text
				col.Enum = enum
			}
		}

		columns = append(columns, col)
	}

	table := NewTable(schemaName, tableName, columns)

	pkRows, err := s.q.FetchAll(ctx, primaryKeysQuery, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("%w: primary key introspection failed for %s.%s: %v",
			store.ErrSchema, schemaName, tableName, err)
	}
	for _, row := range pkRows {
		table.PrimaryKeys = append(table.PrimaryKeys, asString(row["column_name"]))
	}

	fkRows, err := s.q.FetchAll(ctx, foreignKeysQuery, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("%w: foreign key introspection failed for %s.%s: %v",
			store.ErrSchema, schemaName, tableName, err)
	}
	for _, row := range fkRows {
		col := asString(row["column_name"])
		table.ForeignKeys[col] = ForeignKey{
			Column:    col,
			RefSchema: asString(row["foreign_table_schema"]),
			RefTable:  asString(row["foreign_table_name"]),
			RefColumn: asString(row["foreign_column_name"]),
		}
	}

	return table, nil
}

func (s *CatalogSource) loadEnumValues(ctx context.Context, udtName string) ([]string, error) {
	if udtName == "" {
		return nil, nil
	}
	rows, err := s.q.FetchAll(ctx, enumValuesQuery, udtName)
	if err != nil {
		return nil, fmt.Errorf("%w: enum introspection failed for type %s: %v",
			store.ErrSchema, udtName, err)
	}
	values := make([]string, 0, len(rows))
	for _, row := range rows {
		values = append(values, asString(row["enumlabel"]))
	}
	return values, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
