package store

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/tenantry/tenantdb/internal/platform/logger"
)

// savepointNamePattern restricts savepoint names to plain identifiers since
// they are interpolated into SAVEPOINT statements.
var savepointNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Scope is a unit of work bound to exactly one connection. All statements
// executed through it belong to a single transaction that is committed or
// rolled back when the scope ends. At most one scope may be active per
// connection at a time; that exclusivity is the caller's responsibility.
type Scope struct {
	conn       Conn
	ownsConn   bool
	savepoints []string
	open       bool
	logger     *slog.Logger
}

// Begin starts a transaction scope on a caller-supplied connection. The
// connection stays open after the scope ends.
func Begin(ctx context.Context, conn Conn) (*Scope, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: no connection supplied and no connection string available", ErrConnection)
	}
	return beginScope(ctx, conn, false)
}

// BeginDSN opens a connection for the given DSN and starts a transaction
// scope that owns it; the connection is closed when the scope ends.
func BeginDSN(ctx context.Context, dsn string) (*Scope, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: no connection supplied and no connection string available", ErrConnection)
	}
	conn, err := Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	scope, err := beginScope(ctx, conn, true)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return scope, nil
}

func beginScope(ctx context.Context, conn Conn, ownsConn bool) (*Scope, error) {
	log := logger.FromContext(ctx).With(slog.String("component", "tx_scope"))

	if err := conn.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	log.Debug("transaction scope opened", slog.Bool("owns_connection", ownsConn))

	return &Scope{
		conn:     conn,
		ownsConn: ownsConn,
		open:     true,
		logger:   log,
	}, nil
}

// Conn exposes the scope's underlying connection for callers that need to
// pass it to collaborators (e.g. catalog introspection inside the scope).
func (s *Scope) Conn() Conn {
	return s.conn
}

// Savepoints returns a copy of the active savepoint stack in creation order.
func (s *Scope) Savepoints() []string {
	out := make([]string, len(s.savepoints))
	copy(out, s.savepoints)
	return out
}

// Savepoint issues a named savepoint and pushes it onto the stack. An empty
// name generates one from the current stack depth (sp_<n>), skipping ahead
// if a pop left that name already taken. Returns the resolved name.
func (s *Scope) Savepoint(ctx context.Context, name string) (string, error) {
	if !s.open {
		return "", ErrScopeClosed
	}

	if name == "" {
		n := len(s.savepoints)
		name = fmt.Sprintf("sp_%d", n)
		for s.contains(name) {
			n++
			name = fmt.Sprintf("sp_%d", n)
		}
	} else if !savepointNamePattern.MatchString(name) {
		return "", fmt.Errorf("invalid savepoint name %q", name)
	}

	s.logger.Debug("creating savepoint", slog.String("savepoint", name))
	if _, err := s.conn.Execute(ctx, "SAVEPOINT "+name); err != nil {
		return "", err
	}

	s.savepoints = append(s.savepoints, name)
	return name, nil
}

// RollbackTo rolls the transaction back to the named savepoint, defaulting
// to the most recently created one when name is empty. Savepoints created
// after the target become invalid and are pruned from the stack; the target
// itself stays usable, matching the engine's semantics.
func (s *Scope) RollbackTo(ctx context.Context, name string) error {
	if !s.open {
		return ErrScopeClosed
	}
	if len(s.savepoints) == 0 {
		return ErrNoSavepoints
	}

	idx := len(s.savepoints) - 1
	if name == "" {
		name = s.savepoints[idx]
	} else {
		idx = s.indexOf(name)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrSavepointNotFound, name)
		}
	}

	s.logger.Debug("rolling back to savepoint", slog.String("savepoint", name))
	if _, err := s.conn.Execute(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
		return err
	}

	// Savepoints established after the target were destroyed by the engine.
	s.savepoints = s.savepoints[:idx+1]
	return nil
}

// Release releases the named savepoint, defaulting to the most recently
// created one, and removes it from the stack.
func (s *Scope) Release(ctx context.Context, name string) error {
	if !s.open {
		return ErrScopeClosed
	}
	if len(s.savepoints) == 0 {
		return ErrNoSavepoints
	}

	idx := len(s.savepoints) - 1
	if name == "" {
		name = s.savepoints[idx]
	} else {
		idx = s.indexOf(name)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrSavepointNotFound, name)
		}
	}

	s.logger.Debug("releasing savepoint", slog.String("savepoint", name))
	if _, err := s.conn.Execute(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return err
	}

	s.savepoints = append(s.savepoints[:idx], s.savepoints[idx+1:]...)
	return nil
}

// Execute runs a statement inside the scope's transaction.
func (s *Scope) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	if !s.open {
		return 0, ErrScopeClosed
	}
	return s.conn.Execute(ctx, query, args...)
}

// FetchOne runs a query inside the scope and returns the first row, or nil
// when the result set is empty.
func (s *Scope) FetchOne(ctx context.Context, query string, args ...any) (Row, error) {
	if !s.open {
		return nil, ErrScopeClosed
	}
	return s.conn.FetchOne(ctx, query, args...)
}

// FetchAll runs a query inside the scope and returns every row.
func (s *Scope) FetchAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	if !s.open {
		return nil, ErrScopeClosed
	}
	return s.conn.FetchAll(ctx, query, args...)
}

// Commit commits the transaction and ends the scope, closing a self-opened
// connection.
func (s *Scope) Commit(ctx context.Context) error {
	if !s.open {
		return ErrScopeClosed
	}
	s.open = false
	s.savepoints = nil

	err := s.conn.Commit(ctx)
	if closeErr := s.closeOwnedConn(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Debug("transaction scope committed")
	return nil
}

// Rollback aborts the transaction and ends the scope, closing a self-opened
// connection.
func (s *Scope) Rollback(ctx context.Context) error {
	if !s.open {
		return ErrScopeClosed
	}
	s.open = false
	s.savepoints = nil

	err := s.conn.Rollback(ctx)
	if closeErr := s.closeOwnedConn(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	s.logger.Debug("transaction scope rolled back")
	return nil
}

// Close rolls back the scope if it is still open. It is safe to defer
// alongside explicit Commit/Rollback calls.
func (s *Scope) Close(ctx context.Context) error {
	if !s.open {
		return nil
	}
	return s.Rollback(ctx)
}

func (s *Scope) closeOwnedConn() error {
	if !s.ownsConn {
		return nil
	}
	return s.conn.Close()
}

func (s *Scope) contains(name string) bool {
	return s.indexOf(name) >= 0
}

func (s *Scope) indexOf(name string) int {
	for i, sp := range s.savepoints {
		if sp == name {
			return i
		}
	}
	return -1
}
