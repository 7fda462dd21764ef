// Package store provides the connection provider abstraction and the
// savepoint-aware transaction scope used throughout the access layer.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx database/sql driver
)

// Row is a single result row keyed by column name. Column order from the
// query is applied while scanning; lookup is by name.
type Row map[string]any

// Conn is the connection provider contract consumed by the transaction
// scope. It is implemented by SQLConn for live Postgres sessions and by
// mockgen.MockConn for schema-only test runs.
type Conn interface {
	// Execute runs a statement that returns no rows and reports the number
	// of rows affected.
	Execute(ctx context.Context, query string, args ...any) (int64, error)

	// FetchOne runs a query and returns the first row, or nil if the result
	// set is empty.
	FetchOne(ctx context.Context, query string, args ...any) (Row, error)

	// FetchAll runs a query and returns every row.
	FetchAll(ctx context.Context, query string, args ...any) ([]Row, error)

	// Begin, Commit and Rollback control the session's explicit transaction.
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// Close releases the underlying session.
	Close() error
}

// PoolConfig carries connection pool tuning for OpenPool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig mirrors the pool settings used by the diagnostics server
// when no explicit configuration is supplied.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// OpenPool establishes a pgx-backed connection pool and verifies it with a
// ping. Returns ErrConnection-wrapped errors on failure.
func OpenPool(ctx context.Context, dsn string, pc PoolConfig) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: no connection string provided", ErrConnection)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrConnection, err)
	}

	db.SetMaxOpenConns(pc.MaxOpenConns)
	db.SetMaxIdleConns(pc.MaxIdleConns)
	db.SetConnMaxLifetime(pc.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", ErrConnection, err)
	}

	return db, nil
}

// SQLConn implements Conn over a dedicated database/sql session. Transaction
// control statements are issued on the session itself so savepoints and
// statements share one connection in program order.
type SQLConn struct {
	conn *sql.Conn

	// db is non-nil only when the SQLConn opened its own pool via Connect,
	// in which case Close tears the pool down as well.
	db *sql.DB
}

var _ Conn = (*SQLConn)(nil)

// NewSQLConn wraps a dedicated session checked out of a caller-managed pool.
// The caller remains responsible for the pool's lifetime.
func NewSQLConn(conn *sql.Conn) *SQLConn {
	return &SQLConn{conn: conn}
}

// Connect opens a self-owned pool for the given DSN and checks out one
// session. Closing the returned SQLConn closes the pool too.
func Connect(ctx context.Context, dsn string) (*SQLConn, error) {
	db, err := OpenPool(ctx, dsn, DefaultPoolConfig())
	if err != nil {
		return nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to acquire connection: %v", ErrConnection, err)
	}

	return &SQLConn{conn: conn, db: db}, nil
}

// Acquire checks a dedicated session out of an existing pool. The returned
// SQLConn closes only the session, not the pool.
func Acquire(ctx context.Context, db *sql.DB) (*SQLConn, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to acquire connection: %v", ErrConnection, err)
	}
	return &SQLConn{conn: conn}, nil
}

// Execute implements Conn.Execute.
func (c *SQLConn) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, MapQueryError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// Not every statement reports affected rows; treat that as zero.
		return 0, nil
	}
	return affected, nil
}

// FetchOne implements Conn.FetchOne. A query with no matching rows returns
// (nil, nil).
func (c *SQLConn) FetchOne(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapQueryError(err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, MapQueryError(err)
		}
		return nil, nil
	}

	row, err := scanRow(rows)
	if err != nil {
		return nil, MapQueryError(err)
	}
	return row, nil
}

// FetchAll implements Conn.FetchAll.
func (c *SQLConn) FetchAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapQueryError(err)
	}
	defer func() { _ = rows.Close() }()

	var result []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, MapQueryError(err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, MapQueryError(err)
	}
	return result, nil
}

// Begin starts an explicit transaction on the session, suspending
// autocommit until Commit or Rollback.
func (c *SQLConn) Begin(ctx context.Context) error {
	if _, err := c.conn.ExecContext(ctx, "BEGIN"); err != nil {
		return MapQueryError(err)
	}
	return nil
}

// Commit commits the session's open transaction.
func (c *SQLConn) Commit(ctx context.Context) error {
	if _, err := c.conn.ExecContext(ctx, "COMMIT"); err != nil {
		return MapQueryError(err)
	}
	return nil
}

// Rollback aborts the session's open transaction.
func (c *SQLConn) Rollback(ctx context.Context) error {
	if _, err := c.conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		return MapQueryError(err)
	}
	return nil
}

// Close returns the session to its pool, closing the pool as well when this
// SQLConn opened it.
func (c *SQLConn) Close() error {
	err := c.conn.Close()
	if c.db != nil {
		if dbErr := c.db.Close(); err == nil {
			err = dbErr
		}
	}
	return err
}

// scanRow reads the current row of rows into a name-keyed map. Byte slices
// are converted to strings so text columns are directly comparable.
func scanRow(rows *sql.Rows) (Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(Row, len(cols))
	for i, col := range cols {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[col] = v
	}
	return row, nil
}
