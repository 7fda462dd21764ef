package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory connection provider recording every call so
// scope behavior can be asserted without a database.
type fakeConn struct {
	executed   []string
	begun      int
	committed  int
	rolledBack int
	closed     int

	execErr     error
	rollbackErr error

	fetchOneRow  Row
	fetchAllRows []Row
}

func (c *fakeConn) Execute(_ context.Context, query string, _ ...any) (int64, error) {
	if c.execErr != nil {
		return 0, c.execErr
	}
	c.executed = append(c.executed, query)
	return 1, nil
}

func (c *fakeConn) FetchOne(_ context.Context, query string, _ ...any) (Row, error) {
	c.executed = append(c.executed, query)
	return c.fetchOneRow, nil
}

func (c *fakeConn) FetchAll(_ context.Context, query string, _ ...any) ([]Row, error) {
	c.executed = append(c.executed, query)
	return c.fetchAllRows, nil
}

func (c *fakeConn) Begin(context.Context) error {
	c.begun++
	return nil
}

func (c *fakeConn) Commit(context.Context) error {
	c.committed++
	return nil
}

func (c *fakeConn) Rollback(context.Context) error {
	c.rolledBack++
	return c.rollbackErr
}

func (c *fakeConn) Close() error {
	c.closed++
	return nil
}

func TestBegin_NilConn(t *testing.T) {
	t.Parallel()

	_, err := Begin(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestBeginDSN_EmptyDSN(t *testing.T) {
	t.Parallel()

	_, err := BeginDSN(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestScope_CommitEndsScope(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := &fakeConn{}
	scope, err := Begin(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 1, conn.begun)

	_, err = scope.Execute(ctx, "INSERT INTO public.users (name) VALUES ($1)", "a")
	require.NoError(t, err)

	require.NoError(t, scope.Commit(ctx))
	assert.Equal(t, 1, conn.committed)
	assert.Equal(t, 0, conn.closed, "caller-supplied connection must stay open")

	// The scope is single-use.
	_, err = scope.Execute(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrScopeClosed)
	assert.ErrorIs(t, scope.Commit(ctx), ErrScopeClosed)
}

func TestScope_CloseRollsBackOpenScope(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := &fakeConn{}
	scope, err := Begin(ctx, conn)
	require.NoError(t, err)

	require.NoError(t, scope.Close(ctx))
	assert.Equal(t, 1, conn.rolledBack)

	// Close after the scope ended is a no-op.
	require.NoError(t, scope.Close(ctx))
	assert.Equal(t, 1, conn.rolledBack)
}

func TestScope_SavepointDefaultNamesUnique(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := &fakeConn{}
	scope, err := Begin(ctx, conn)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		name, err := scope.Savepoint(ctx, "")
		require.NoError(t, err)
		assert.False(t, seen[name], "default savepoint name %q reused", name)
		seen[name] = true
	}
	assert.Equal(t, []string{"sp_0", "sp_1", "sp_2", "sp_3", "sp_4"}, scope.Savepoints())

	// Releasing from the middle must not let a future default name collide.
	require.NoError(t, scope.Release(ctx, "sp_0"))
	name, err := scope.Savepoint(ctx, "")
	require.NoError(t, err)
	assert.False(t, seen[name], "default savepoint name %q reused after release", name)
}

func TestScope_SavepointExecutesStatement(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := &fakeConn{}
	scope, err := Begin(ctx, conn)
	require.NoError(t, err)

	name, err := scope.Savepoint(ctx, "checkpoint")
	require.NoError(t, err)
	assert.Equal(t, "checkpoint", name)
	assert.Contains(t, conn.executed, "SAVEPOINT checkpoint")
}

func TestScope_SavepointRejectsInvalidName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	scope, err := Begin(ctx, &fakeConn{})
	require.NoError(t, err)

	_, err = scope.Savepoint(ctx, "bad name; DROP TABLE")
	require.Error(t, err)
}

func TestScope_RollbackToDefaultsToMostRecent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := &fakeConn{}
	scope, err := Begin(ctx, conn)
	require.NoError(t, err)

	_, err = scope.Savepoint(ctx, "first")
	require.NoError(t, err)
	_, err = scope.Savepoint(ctx, "second")
	require.NoError(t, err)

	require.NoError(t, scope.RollbackTo(ctx, ""))
	assert.Contains(t, conn.executed, "ROLLBACK TO SAVEPOINT second")
	// The target stays usable.
	assert.Equal(t, []string{"first", "second"}, scope.Savepoints())
}

func TestScope_RollbackToSavepoint_PrunesLaterSavepoints(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := &fakeConn{}
	scope, err := Begin(ctx, conn)
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c"} {
		_, err := scope.Savepoint(ctx, name)
		require.NoError(t, err)
	}

	require.NoError(t, scope.RollbackTo(ctx, "a"))
	assert.Equal(t, []string{"a"}, scope.Savepoints())

	// Savepoints created after the target are gone for rollback and release.
	err = scope.RollbackTo(ctx, "b")
	assert.ErrorIs(t, err, ErrSavepointNotFound)
	err = scope.Release(ctx, "c")
	assert.ErrorIs(t, err, ErrSavepointNotFound)

	// The target itself can be rolled back to again.
	require.NoError(t, scope.RollbackTo(ctx, "a"))
}

func TestScope_SavepointErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	scope, err := Begin(ctx, &fakeConn{})
	require.NoError(t, err)

	assert.ErrorIs(t, scope.RollbackTo(ctx, ""), ErrNoSavepoints)
	assert.ErrorIs(t, scope.Release(ctx, ""), ErrNoSavepoints)

	_, err = scope.Savepoint(ctx, "present")
	require.NoError(t, err)

	assert.ErrorIs(t, scope.RollbackTo(ctx, "absent"), ErrSavepointNotFound)
	assert.ErrorIs(t, scope.Release(ctx, "absent"), ErrSavepointNotFound)
}

func TestScope_ReleasePopsStack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := &fakeConn{}
	scope, err := Begin(ctx, conn)
	require.NoError(t, err)

	_, err = scope.Savepoint(ctx, "a")
	require.NoError(t, err)
	_, err = scope.Savepoint(ctx, "b")
	require.NoError(t, err)

	// Default release is the most recent.
	require.NoError(t, scope.Release(ctx, ""))
	assert.Contains(t, conn.executed, "RELEASE SAVEPOINT b")
	assert.Equal(t, []string{"a"}, scope.Savepoints())

	require.NoError(t, scope.Release(ctx, "a"))
	assert.ErrorIs(t, scope.Release(ctx, "a"), ErrNoSavepoints)
}

func TestWithScope_CommitsOnSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := &fakeConn{}
	err := WithScope(ctx, conn, func(ctx context.Context, scope *Scope) error {
		_, err := scope.Execute(ctx, "INSERT INTO public.users (name) VALUES ($1)", "a")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, conn.committed)
	assert.Equal(t, 0, conn.rolledBack)
}

func TestWithScope_RollsBackOnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := &fakeConn{}
	wantErr := errors.New("body failed")
	err := WithScope(ctx, conn, func(context.Context, *Scope) error {
		return wantErr
	})
	// The original error propagates unchanged.
	assert.Equal(t, wantErr, err)
	assert.Equal(t, 0, conn.committed)
	assert.Equal(t, 1, conn.rolledBack)
}

func TestWithScope_RollbackFailureNeverMasksOriginalError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := &fakeConn{rollbackErr: errors.New("rollback broke")}
	wantErr := errors.New("body failed")
	err := WithScope(ctx, conn, func(context.Context, *Scope) error {
		return wantErr
	})
	assert.Equal(t, wantErr, err)
}

func TestWithScope_RollsBackOnPanic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := &fakeConn{}
	require.Panics(t, func() {
		_ = WithScope(ctx, conn, func(context.Context, *Scope) error {
			panic("boom")
		})
	})
	assert.Equal(t, 0, conn.committed)
	assert.Equal(t, 1, conn.rolledBack)
}

func TestWithRollback_AlwaysRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := &fakeConn{}
	err := WithRollback(ctx, conn, func(ctx context.Context, scope *Scope) error {
		_, err := scope.Execute(ctx, "INSERT INTO public.users (name) VALUES ($1)", "a")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 0, conn.committed)
	assert.Equal(t, 1, conn.rolledBack)
}

func TestScope_ExecuteWrapsQueryError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := &fakeConn{}
	scope, err := Begin(ctx, conn)
	require.NoError(t, err)

	conn.execErr = fmt.Errorf("%w: syntax error", ErrQuery)
	_, err = scope.Execute(ctx, "SELEC 1")
	assert.ErrorIs(t, err, ErrQuery)
}

func TestScope_FetchDelegates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := &fakeConn{
		fetchOneRow:  Row{"id": int64(1)},
		fetchAllRows: []Row{{"id": int64(1)}, {"id": int64(2)}},
	}
	scope, err := Begin(ctx, conn)
	require.NoError(t, err)

	row, err := scope.FetchOne(ctx, "SELECT * FROM public.users WHERE id = $1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row["id"])

	rows, err := scope.FetchAll(ctx, "SELECT * FROM public.users")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestScope_StatementAndSavepointOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	conn := &fakeConn{}
	scope, err := Begin(ctx, conn)
	require.NoError(t, err)

	_, err = scope.Execute(ctx, "INSERT INTO public.users (name) VALUES ('a')")
	require.NoError(t, err)
	_, err = scope.Savepoint(ctx, "after_insert")
	require.NoError(t, err)
	_, err = scope.Execute(ctx, "INSERT INTO public.users (name) VALUES ('b')")
	require.NoError(t, err)
	require.NoError(t, scope.RollbackTo(ctx, "after_insert"))

	joined := strings.Join(conn.executed, " | ")
	first := strings.Index(joined, "VALUES ('a')")
	sp := strings.Index(joined, "SAVEPOINT after_insert")
	second := strings.Index(joined, "VALUES ('b')")
	rb := strings.Index(joined, "ROLLBACK TO SAVEPOINT after_insert")
	assert.True(t, first < sp && sp < second && second < rb,
		"statements must not reorder across savepoint boundaries: %s", joined)
}
