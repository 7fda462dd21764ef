package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Common errors returned by the store layer.
var (
	// ErrConnection is returned when the underlying connection cannot be
	// acquired or used (no DSN available, open or ping failure).
	ErrConnection = errors.New("connection error")

	// ErrQuery is returned when the underlying engine rejects a statement
	// (syntax error, constraint violation, etc.).
	ErrQuery = errors.New("query error")

	// ErrSchema is returned when a requested schema or table does not exist
	// or catalog introspection fails.
	ErrSchema = errors.New("schema error")

	// ErrNoSavepoints is returned by savepoint operations when the scope's
	// savepoint stack is empty.
	ErrNoSavepoints = errors.New("no savepoints available")

	// ErrSavepointNotFound is returned when a named savepoint is not present
	// in the scope's active savepoint stack.
	ErrSavepointNotFound = errors.New("savepoint not found")

	// ErrScopeClosed is returned when an operation is attempted on a scope
	// that has already committed or rolled back.
	ErrScopeClosed = errors.New("transaction scope is closed")
)

// PostgreSQL error codes used for mapping engine errors to friendlier detail.
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
	notNullViolationCode    = "23502"
	undefinedTableCode      = "42P01"
)

// MapQueryError maps a database error to a store error wrapping ErrQuery
// (or ErrSchema for missing relations). It preserves the original error so
// callers can still reach driver detail via errors.As.
func MapQueryError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		// Absence of rows is not a failure in this layer; fetch helpers
		// translate it to a nil row before reaching here.
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%w: unique violation (%s): %w", ErrQuery, pgErr.ConstraintName, err)
		case foreignKeyViolationCode:
			return fmt.Errorf("%w: foreign key violation (%s): %w", ErrQuery, pgErr.ConstraintName, err)
		case checkViolationCode:
			return fmt.Errorf("%w: check constraint violation (%s): %w", ErrQuery, pgErr.ConstraintName, err)
		case notNullViolationCode:
			return fmt.Errorf("%w: not null violation (%s): %w", ErrQuery, pgErr.ColumnName, err)
		case undefinedTableCode:
			return fmt.Errorf("%w: relation does not exist: %w", ErrSchema, err)
		}
	}

	return fmt.Errorf("%w: %w", ErrQuery, err)
}

// IsUniqueViolation checks if the given error is a PostgreSQL unique
// constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// IsForeignKeyViolation checks if the given error is a PostgreSQL foreign key
// constraint violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolationCode
}

// IsNotNullViolation checks if the given error is a PostgreSQL not null
// constraint violation.
func IsNotNullViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == notNullViolationCode
}
