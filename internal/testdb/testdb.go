// Package testdb provides utilities for database-backed tests: DSN
// discovery, fixture migrations and scope-per-test isolation.
package testdb

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/tenantry/tenantdb/internal/store"
)

// EnvDatabaseURL is the environment variable naming the test database.
const EnvDatabaseURL = "TENANTDB_TEST_DB_URL"

// URL returns the test database DSN, skipping the test when it is not set so
// unit-only runs stay green without a database.
func URL(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv(EnvDatabaseURL)
	if dsn == "" {
		t.Skipf("skipping: %s not set", EnvDatabaseURL)
	}
	return dsn
}

// Open opens a pooled connection to the test database and registers cleanup.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := store.OpenPool(ctx, URL(t), store.DefaultPoolConfig())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// MustMigrate applies the goose migrations in dir to the test database so
// fixture tables exist before tests run.
func MustMigrate(t *testing.T, db *sql.DB, dir string) {
	t.Helper()

	if err := goose.SetDialect("postgres"); err != nil {
		t.Fatalf("failed to set goose dialect: %v", err)
	}
	if err := goose.Up(db, dir); err != nil {
		t.Fatalf("failed to apply migrations from %s: %v", dir, err)
	}
}

// WithScope runs fn inside a transaction scope that is rolled back after fn
// returns, failed or not, so tests never persist writes. Panics from fn are
// re-raised after rollback.
func WithScope(t *testing.T, db *sql.DB, fn func(t *testing.T, scope *store.Scope)) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := store.Acquire(ctx, db)
	if err != nil {
		t.Fatalf("failed to acquire connection: %v", err)
	}
	defer func() { _ = conn.Close() }()

	scope, err := store.Begin(ctx, conn)
	if err != nil {
		t.Fatalf("failed to begin transaction scope: %v", err)
	}

	defer func() {
		if r := recover(); r != nil {
			if err := scope.Close(ctx); err != nil {
				t.Logf("warning: failed to roll back scope after panic: %v", err)
			}
			panic(r)
		}
		if err := scope.Close(ctx); err != nil {
			t.Logf("warning: failed to roll back scope: %v", err)
		}
	}()

	fn(t, scope)
}
