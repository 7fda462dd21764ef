package store

import (
	"context"
	"log/slog"

	"github.com/tenantry/tenantdb/internal/platform/logger"
)

// ScopeFn is a function that executes within a transaction scope. The scope
// is committed if the function returns nil, or rolled back if it returns an
// error or panics.
type ScopeFn func(ctx context.Context, scope *Scope) error

// WithScope executes fn inside a transaction scope on the given connection.
// On a nil return the transaction is committed; on error or panic it is
// rolled back and the original failure propagates unchanged. A failure
// during rollback is logged but never replaces the primary error.
func WithScope(ctx context.Context, conn Conn, fn ScopeFn) error {
	scope, err := Begin(ctx, conn)
	if err != nil {
		return err
	}
	return runScoped(ctx, scope, fn, false)
}

// WithScopeDSN is WithScope over a self-opened connection, closed when the
// scope ends.
func WithScopeDSN(ctx context.Context, dsn string, fn ScopeFn) error {
	scope, err := BeginDSN(ctx, dsn)
	if err != nil {
		return err
	}
	return runScoped(ctx, scope, fn, false)
}

// WithRollback executes fn inside a transaction scope that is always rolled
// back, success or not. This is the test-harness entry point: writes made by
// fn are visible inside the scope but never persist, and a failing assertion
// (error or panic) takes the same cleanup path as success.
func WithRollback(ctx context.Context, conn Conn, fn ScopeFn) error {
	scope, err := Begin(ctx, conn)
	if err != nil {
		return err
	}
	return runScoped(ctx, scope, fn, true)
}

func runScoped(ctx context.Context, scope *Scope, fn ScopeFn, alwaysRollback bool) error {
	log := logger.FromContext(ctx)

	defer func() {
		if p := recover(); p != nil {
			if rbErr := scope.Rollback(ctx); rbErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", rbErr.Error()),
					slog.Any("panic", p))
			} else {
				log.Error("rolled back transaction after panic",
					slog.Any("panic", p))
			}
			// Re-panic so the caller observes the original failure.
			panic(p)
		}
	}()

	err := fn(ctx, scope)
	if err != nil || alwaysRollback {
		if rbErr := scope.Rollback(ctx); rbErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rbErr.Error()))
		}
		// The body's error propagates unchanged; rollback failures are
		// logged above but never mask it.
		return err
	}

	return scope.Commit(ctx)
}
