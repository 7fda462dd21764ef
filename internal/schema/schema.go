// Package schema maintains a cached, authoritative view of table structure
// used for column-name resolution, insert validation and mock data
// generation.
package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tenantry/tenantdb/internal/store"
)

// ErrTableNotFound is returned when a requested table does not exist in the
// schema source. It wraps store.ErrSchema so callers can match either.
var ErrTableNotFound = fmt.Errorf("%w: table not found", store.ErrSchema)

// Category is the declared type category of a column, collapsing the
// engine's concrete type names into the groups the generator and validator
// care about.
type Category int

const (
	Unknown Category = iota
	Text
	Integer
	Float
	Boolean
	Timestamp
	Date
	Time
	UUID
	JSON
	Array
)

// String returns the lowercase category name.
func (c Category) String() string {
	switch c {
	case Text:
		return "text"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Boolean:
		return "boolean"
	case Timestamp:
		return "timestamp"
	case Date:
		return "date"
	case Time:
		return "time"
	case UUID:
		return "uuid"
	case JSON:
		return "json"
	case Array:
		return "array"
	default:
		return "unknown"
	}
}

// CategoryOf maps a declared Postgres type name to its Category.
func CategoryOf(dataType string) Category {
	dt := strings.ToLower(strings.TrimSpace(dataType))

	if dt == "array" || strings.HasSuffix(dt, "[]") {
		return Array
	}

	switch {
	case dt == "uuid":
		return UUID
	case dt == "boolean" || dt == "bool":
		return Boolean
	case dt == "json" || dt == "jsonb":
		return JSON
	case dt == "date":
		return Date
	case strings.HasPrefix(dt, "time "), dt == "time", strings.HasPrefix(dt, "time("):
		return Time
	case strings.HasPrefix(dt, "timestamp"), dt == "timestamptz":
		return Timestamp
	case dt == "integer", dt == "int", dt == "int2", dt == "int4", dt == "int8",
		dt == "smallint", dt == "bigint", dt == "serial", dt == "smallserial", dt == "bigserial":
		return Integer
	case dt == "numeric", dt == "decimal", dt == "real", dt == "float", dt == "float4",
		dt == "float8", dt == "double precision", dt == "money":
		return Float
	case strings.HasPrefix(dt, "character"), strings.HasPrefix(dt, "varchar"),
		dt == "text", dt == "char", dt == "name", dt == "citext", dt == "bpchar":
		return Text
	default:
		return Unknown
	}
}

// Column describes one table column. Immutable once loaded.
type Column struct {
	Name     string
	DataType string // declared type as reported by the source
	Type     Category
	Nullable bool

	// Default holds the declared default expression; HasDefault
	// distinguishes "no default" from "default is an empty string".
	Default    string
	HasDefault bool

	// MaxLength is the declared character length limit, or 0 when none.
	MaxLength int

	// Enum lists the allowed values when the column has a controlled
	// vocabulary (an enum type); empty otherwise.
	Enum []string
}

// AutoGenerated reports whether the column's default makes the engine
// generate the value (sequences and uuid defaults).
func (c Column) AutoGenerated() bool {
	if !c.HasDefault {
		return false
	}
	def := strings.ToLower(c.Default)
	return strings.Contains(def, "nextval") ||
		strings.Contains(def, "gen_random_uuid") ||
		strings.Contains(def, "uuid_generate")
}

// ForeignKey records a column referencing another table's column.
type ForeignKey struct {
	Column    string
	RefSchema string
	RefTable  string
	RefColumn string
}

// Table describes one table's structure: ordered columns, primary key
// columns and foreign key relationships. Column names are unique within a
// table.
type Table struct {
	Schema      string
	Name        string
	Columns     []Column
	PrimaryKeys []string
	ForeignKeys map[string]ForeignKey

	byName map[string]int
}

// NewTable builds a Table and its column index.
func NewTable(schemaName, tableName string, columns []Column) *Table {
	t := &Table{
		Schema:      schemaName,
		Name:        tableName,
		Columns:     columns,
		ForeignKeys: make(map[string]ForeignKey),
		byName:      make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		t.byName[col.Name] = i
	}
	return t
}

// QualifiedName returns the schema-qualified table name.
func (t *Table) QualifiedName() string {
	return t.Schema + "." + t.Name
}

// Column returns the column with the given (exact) name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// Source loads table descriptors from some backing store: the database
// catalog for live connections, or a parsed DDL dump for offline use.
type Source interface {
	LoadTable(ctx context.Context, schemaName, tableName string) (*Table, error)
}

// IsNotFound reports whether err indicates a missing schema or table.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTableNotFound)
}
