package mockgen

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tenantry/tenantdb/internal/store"
)

// tableRefPattern pulls the first table reference out of the common
// single-statement query forms. Best-effort on purpose: subqueries, CTEs and
// multi-statement batches are not handled.
var tableRefPattern = regexp.MustCompile(`(?i)(?:from|insert\s+into|update|delete\s+from)\s+([a-zA-Z0-9_."]+)`)

// ExtractTable returns the (schema, table) referenced by a query, defaulting
// the schema to "public" when the reference is unqualified.
func ExtractTable(query string) (string, string, error) {
	normalized := strings.Join(strings.Fields(query), " ")
	m := tableRefPattern.FindStringSubmatch(normalized)
	if m == nil {
		return "", "", fmt.Errorf("could not extract table reference from query")
	}
	ref := strings.ReplaceAll(m[1], `"`, "")
	if i := strings.Index(ref, "."); i >= 0 {
		return ref[:i], ref[i+1:], nil
	}
	return "public", ref, nil
}

// GenerateQueryResult produces rowCount mock rows shaped like the table the
// query references. A rowCount of 0 picks a small random count.
func (g *Generator) GenerateQueryResult(ctx context.Context, query string, rowCount int) ([]store.Row, error) {
	schemaName, tableName, err := ExtractTable(query)
	if err != nil {
		return nil, err
	}
	if rowCount <= 0 {
		rowCount = g.intn(5) + 1
	}
	return g.GenerateRows(ctx, schemaName, tableName, rowCount, nil)
}

// MockConn implements store.Conn entirely from schema metadata: queries
// return generated rows, writes report success, and transaction control is
// tracked in memory. It lets scope-based code run with the connection
// provider substituted away.
type MockConn struct {
	gen *Generator

	inTx     bool
	closed   bool
	executed []string
}

var _ store.Conn = (*MockConn)(nil)

// NewMockConn builds a mock connection over the given generator.
func NewMockConn(gen *Generator) *MockConn {
	return &MockConn{gen: gen}
}

// Executed returns the statements issued so far, in order.
func (c *MockConn) Executed() []string {
	out := make([]string, len(c.executed))
	copy(out, c.executed)
	return out
}

// InTransaction reports whether a Begin is pending Commit/Rollback.
func (c *MockConn) InTransaction() bool {
	return c.inTx
}

// Execute records the statement and reports one affected row.
func (c *MockConn) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	if c.closed {
		return 0, fmt.Errorf("%w: mock connection is closed", store.ErrConnection)
	}
	c.executed = append(c.executed, query)
	return 1, nil
}

// FetchOne generates a single row shaped like the referenced table.
func (c *MockConn) FetchOne(ctx context.Context, query string, args ...any) (store.Row, error) {
	rows, err := c.fetch(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// FetchAll generates rows shaped like the referenced table.
func (c *MockConn) FetchAll(ctx context.Context, query string, args ...any) ([]store.Row, error) {
	return c.fetch(ctx, query, 0)
}

func (c *MockConn) fetch(ctx context.Context, query string, rowCount int) ([]store.Row, error) {
	if c.closed {
		return nil, fmt.Errorf("%w: mock connection is closed", store.ErrConnection)
	}
	c.executed = append(c.executed, query)
	rows, err := c.gen.GenerateQueryResult(ctx, query, rowCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrQuery, err)
	}
	return rows, nil
}

// Begin marks a transaction open.
func (c *MockConn) Begin(_ context.Context) error {
	c.inTx = true
	c.executed = append(c.executed, "BEGIN")
	return nil
}

// Commit marks the transaction closed.
func (c *MockConn) Commit(_ context.Context) error {
	c.inTx = false
	c.executed = append(c.executed, "COMMIT")
	return nil
}

// Rollback marks the transaction closed.
func (c *MockConn) Rollback(_ context.Context) error {
	c.inTx = false
	c.executed = append(c.executed, "ROLLBACK")
	return nil
}

// Close marks the connection unusable.
func (c *MockConn) Close() error {
	c.closed = true
	return nil
}
