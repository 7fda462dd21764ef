package logger

import (
	"context"
	"log/slog"
)

// contextKey is an unexported type used for logger storage in contexts,
// preventing collisions with keys defined in other packages.
type contextKey struct{}

// WithLogger returns a copy of ctx carrying the given logger.
// Downstream code retrieves it with FromContext, so request- or
// test-scoped attributes travel with the context.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

// FromContext returns the logger stored in ctx, or the process default
// logger if none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return slog.Default()
}

// FromContextOrDefault returns the logger stored in ctx, falling back to
// the provided default rather than the process default. The fallback may
// be nil, in which case the process default is used.
func FromContextOrDefault(ctx context.Context, def *slog.Logger) *slog.Logger {
	if log, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	if def != nil {
		return def
	}
	return slog.Default()
}
