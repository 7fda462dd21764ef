// Package mockgen produces type- and constraint-consistent synthetic rows
// from schema registry metadata, so tests can run against realistic data
// without a live database.
package mockgen

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tenantry/tenantdb/internal/schema"
	"github.com/tenantry/tenantdb/internal/store"
)

const lowercase = "abcdefghijklmnopqrstuvwxyz"

var (
	namePrefixes   = []string{"Test", "Mock", "Sample", "Demo", "Example"}
	statusValues   = []string{"active", "inactive", "pending", "completed"}
	emailDomains   = []string{"example.com", "test.org", "mock.net", "sample.io"}
	urlPathChoices = []string{"home", "about", "contact", "product", "service"}
)

// Relation describes how child rows relate to a parent row in
// GenerateRelatedRows.
type Relation struct {
	// Schema of the child table; defaults to the parent's schema.
	Schema string

	// Count of child rows per parent row; defaults to 1.
	Count int

	// FKColumn is the child column holding the parent's primary key value;
	// defaults to "<parent_table>_id".
	FKColumn string
}

// RelatedRows is one generated parent row together with its child rows,
// keyed by child table name.
type RelatedRows struct {
	Parent   store.Row
	Children map[string][]store.Row
}

// Generator synthesizes rows that satisfy a table's declared types,
// nullability and length constraints. Safe for concurrent use.
type Generator struct {
	registry *schema.Registry
	logger   *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New builds a generator over the given registry seeded from entropy.
func New(registry *schema.Registry, logger *slog.Logger) *Generator {
	return NewSeeded(registry, logger, rand.Uint64(), rand.Uint64())
}

// NewSeeded builds a generator with a fixed seed, for reproducible tests.
func NewSeeded(registry *schema.Registry, logger *slog.Logger, seed1, seed2 uint64) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		registry: registry,
		logger:   logger.With(slog.String("component", "mock_generator")),
		rng:      rand.New(rand.NewPCG(seed1, seed2)),
	}
}

// GenerateRow produces one synthetic row for (schema, table). Values in
// overrides are used as-is; columns with auto-generated defaults are
// omitted so the engine (or caller) fills them; every other column gets a
// value consistent with its type category and constraints. NOT NULL columns
// without a default always receive a non-nil value.
func (g *Generator) GenerateRow(ctx context.Context, schemaName, tableName string, overrides store.Row) (store.Row, error) {
	table, err := g.registry.Table(ctx, schemaName, tableName)
	if err != nil {
		return nil, err
	}

	row := make(store.Row, len(table.Columns))
	for k, v := range overrides {
		row[k] = v
	}

	for _, col := range table.Columns {
		if _, ok := row[col.Name]; ok {
			continue
		}
		if col.AutoGenerated() {
			continue
		}
		row[col.Name] = g.value(col, table)
	}

	return row, nil
}

// GenerateRows produces count rows, each seeded with a copy of base.
func (g *Generator) GenerateRows(ctx context.Context, schemaName, tableName string, count int, base store.Row) ([]store.Row, error) {
	rows := make([]store.Row, 0, count)
	for i := 0; i < count; i++ {
		overrides := make(store.Row, len(base))
		for k, v := range base {
			overrides[k] = v
		}
		row, err := g.GenerateRow(ctx, schemaName, tableName, overrides)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GenerateRelatedRows produces count parent rows and, for each, the
// configured number of child rows per relation, with every child's foreign
// key column set to its parent's primary key value. No reference generated
// in one call dangles: the parent's primary key is always populated, even
// when the column carries an auto-generated default.
func (g *Generator) GenerateRelatedRows(ctx context.Context, schemaName, tableName string, relations map[string]Relation, count int) ([]RelatedRows, error) {
	table, err := g.registry.Table(ctx, schemaName, tableName)
	if err != nil {
		return nil, err
	}

	pkColumn := "id"
	if len(table.PrimaryKeys) > 0 {
		pkColumn = table.PrimaryKeys[0]
	}

	result := make([]RelatedRows, 0, count)
	for i := 0; i < count; i++ {
		parent, err := g.GenerateRow(ctx, schemaName, tableName, nil)
		if err != nil {
			return nil, err
		}

		pkValue, ok := parent[pkColumn]
		if !ok || pkValue == nil {
			// The primary key was skipped (auto-generated default) or the
			// table has no usable key; children still need a concrete value.
			pkValue = g.primaryKeyValue(table, pkColumn)
			parent[pkColumn] = pkValue
		}

		children := make(map[string][]store.Row, len(relations))
		for childTable, rel := range relations {
			childSchema := rel.Schema
			if childSchema == "" {
				childSchema = schemaName
			}
			childCount := rel.Count
			if childCount <= 0 {
				childCount = 1
			}
			fkColumn := rel.FKColumn
			if fkColumn == "" {
				fkColumn = g.relationFKColumn(ctx, childSchema, childTable, schemaName, tableName, pkColumn)
			}

			rows, err := g.GenerateRows(ctx, childSchema, childTable, childCount, store.Row{fkColumn: pkValue})
			if err != nil {
				return nil, err
			}
			children[childTable] = rows
		}

		result = append(result, RelatedRows{Parent: parent, Children: children})
	}

	return result, nil
}

// relationFKColumn resolves the child column that should carry the parent's
// key: the child's declared foreign key to the parent first, then a column
// named after the parent's primary key, then the <table>_id convention.
func (g *Generator) relationFKColumn(ctx context.Context, childSchema, childTable, parentSchema, parentTable, pkColumn string) string {
	child, err := g.registry.Table(ctx, childSchema, childTable)
	if err == nil {
		for _, fk := range child.ForeignKeys {
			if fk.RefSchema == parentSchema && fk.RefTable == parentTable {
				return fk.Column
			}
		}
		if _, ok := child.Column(pkColumn); ok {
			return pkColumn
		}
	}
	return parentTable + "_id"
}

// primaryKeyValue synthesizes a parent key value matching the key column's
// category.
func (g *Generator) primaryKeyValue(table *schema.Table, pkColumn string) any {
	if col, ok := table.Column(pkColumn); ok {
		switch col.Type {
		case schema.UUID:
			return uuid.NewString()
		case schema.Text:
			return fmt.Sprintf("mock-%s-%d", pkColumn, g.intn(9000)+1000)
		}
	}
	return int64(g.intn(9000) + 1000)
}

// value synthesizes a column value, preferring name hints over bare type
// category the way fixture data usually reads.
func (g *Generator) value(col schema.Column, table *schema.Table) any {
	if len(col.Enum) > 0 {
		return col.Enum[g.intn(len(col.Enum))]
	}

	name := strings.ToLower(col.Name)

	if fk, ok := table.ForeignKeys[col.Name]; ok {
		// Standalone rows get a reference-shaped value; related-row
		// generation overrides this with a real parent key.
		if col.Type == schema.UUID {
			return uuid.NewString()
		}
		if col.Type == schema.Integer {
			return int64(g.intn(9000) + 1000)
		}
		return g.bounded(fmt.Sprintf("mock-%s-ref-%d", fk.RefTable, g.intn(9000)+1000), col.MaxLength)
	}

	if name == "id" || strings.HasSuffix(name, "_id") {
		if col.Type == schema.UUID {
			return uuid.NewString()
		}
		if col.Type == schema.Integer {
			return int64(g.intn(9000) + 1000)
		}
	}

	switch {
	case strings.Contains(name, "email") && col.Type == schema.Text:
		return g.bounded(fmt.Sprintf("mock.user.%d@%s", g.intn(9000)+1000, emailDomains[g.intn(len(emailDomains))]), col.MaxLength)
	case (strings.Contains(name, "url") || strings.Contains(name, "link") || strings.Contains(name, "website")) && col.Type == schema.Text:
		return g.bounded(fmt.Sprintf("https://%s/%s", emailDomains[g.intn(len(emailDomains))], urlPathChoices[g.intn(len(urlPathChoices))]), col.MaxLength)
	case strings.Contains(name, "status") && col.Type == schema.Text:
		return g.bounded(statusValues[g.intn(len(statusValues))], col.MaxLength)
	case strings.Contains(name, "name") && col.Type == schema.Text:
		return g.bounded(fmt.Sprintf("%s %s", namePrefixes[g.intn(len(namePrefixes))], col.Name), col.MaxLength)
	}

	switch col.Type {
	case schema.Integer:
		return int64(g.intn(1000) + 1)
	case schema.Float:
		return float64(g.intn(100000)) / 100.0
	case schema.Boolean:
		return g.intn(2) == 0
	case schema.Timestamp:
		return time.Now().UTC()
	case schema.Date:
		return time.Now().UTC().Format("2006-01-02")
	case schema.Time:
		return time.Now().UTC().Format("15:04:05")
	case schema.UUID:
		return uuid.NewString()
	case schema.JSON:
		return map[string]any{
			"mock":   true,
			"field":  "mock-" + col.Name,
			"value":  g.intn(100) + 1,
			"active": g.intn(2) == 0,
		}
	case schema.Array:
		return []any{g.intn(100), g.intn(100)}
	case schema.Text, schema.Unknown:
		return g.textValue(col)
	default:
		return g.textValue(col)
	}
}

// textValue builds a bounded random string respecting MaxLength.
func (g *Generator) textValue(col schema.Column) string {
	base := "mock-" + col.Name + "-"
	max := col.MaxLength
	if max <= 0 || max > 50 {
		max = 50
	}
	if len(base) >= max {
		return g.randomString(max)
	}
	return base + g.randomString(max-len(base))
}

func (g *Generator) bounded(s string, maxLength int) string {
	if maxLength > 0 && len(s) > maxLength {
		return s[:maxLength]
	}
	return s
}

func (g *Generator) randomString(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	g.mu.Lock()
	for i := range b {
		b[i] = lowercase[g.rng.IntN(len(lowercase))]
	}
	g.mu.Unlock()
	return string(b)
}

func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.IntN(n)
}
