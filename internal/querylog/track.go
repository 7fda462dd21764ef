package querylog

import (
	"context"
	"time"

	"github.com/tenantry/tenantdb/internal/store"
)

// Track measures the wall-clock duration of fn and logs the query against
// the given logger regardless of fn's outcome. The caller passes its logger
// explicitly; Track never creates or attaches one behind the caller's back.
func Track(l *Logger, query string, params []any, fn func() error) error {
	start := time.Now()
	err := fn()
	l.Log(query, params, time.Since(start))
	return err
}

// Instrument wraps a connection so every statement executed through it is
// timed and recorded by the logger. The wrapped connection's behavior and
// errors pass through untouched.
func Instrument(conn store.Conn, l *Logger) store.Conn {
	return &instrumentedConn{conn: conn, logger: l}
}

type instrumentedConn struct {
	conn   store.Conn
	logger *Logger
}

var _ store.Conn = (*instrumentedConn)(nil)

func (c *instrumentedConn) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	start := time.Now()
	affected, err := c.conn.Execute(ctx, query, args...)
	c.logger.Log(query, args, time.Since(start))
	return affected, err
}

func (c *instrumentedConn) FetchOne(ctx context.Context, query string, args ...any) (store.Row, error) {
	start := time.Now()
	row, err := c.conn.FetchOne(ctx, query, args...)
	c.logger.Log(query, args, time.Since(start))
	return row, err
}

func (c *instrumentedConn) FetchAll(ctx context.Context, query string, args ...any) ([]store.Row, error) {
	start := time.Now()
	rows, err := c.conn.FetchAll(ctx, query, args...)
	c.logger.Log(query, args, time.Since(start))
	return rows, err
}

func (c *instrumentedConn) Begin(ctx context.Context) error    { return c.conn.Begin(ctx) }
func (c *instrumentedConn) Commit(ctx context.Context) error   { return c.conn.Commit(ctx) }
func (c *instrumentedConn) Rollback(ctx context.Context) error { return c.conn.Rollback(ctx) }
func (c *instrumentedConn) Close() error                       { return c.conn.Close() }
