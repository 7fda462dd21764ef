package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantry/tenantdb/internal/querylog"
	"github.com/tenantry/tenantdb/internal/schema"
)

const diagDDL = `
CREATE TABLE public.users (
    user_id serial PRIMARY KEY,
    email character varying(255) NOT NULL
);
`

func newTestServer(t *testing.T) (*httptest.Server, *querylog.Logger, *schema.Registry) {
	t.Helper()

	src, err := schema.ParseDDL(diagDDL)
	require.NoError(t, err)
	registry := schema.NewRegistry(src, nil)

	queryLog := querylog.New(50*time.Millisecond, nil)
	handler := NewDiagnosticsHandler(queryLog, registry, nil)

	srv := httptest.NewServer(NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, queryLog, registry
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQueryLogStats(t *testing.T) {
	t.Parallel()

	srv, queryLog, _ := newTestServer(t)
	queryLog.Log("SELECT * FROM users", nil, 10*time.Millisecond)
	queryLog.Log("SELECT * FROM users", nil, 80*time.Millisecond)

	resp, err := http.Get(srv.URL + "/debug/querylog/stats")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var stats querylog.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 1, stats.SlowQueryCount)
	assert.Equal(t, 2, stats.TableAccess["users"])
}

func TestQueryLogEntries(t *testing.T) {
	t.Parallel()

	srv, queryLog, _ := newTestServer(t)
	queryLog.Log("SELECT * FROM users WHERE user_id = $1", []any{1}, 5*time.Millisecond)

	resp, err := http.Get(srv.URL + "/debug/querylog/entries")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Entries []struct {
			Query string `json:"query"`
		} `json:"entries"`
		Stats querylog.Stats `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	require.Len(t, doc.Entries, 1)
	assert.Equal(t, "SELECT * FROM users WHERE user_id = $1", doc.Entries[0].Query)
	assert.Equal(t, 1, doc.Stats.Count)
}

func TestInvalidateSchema(t *testing.T) {
	t.Parallel()

	srv, _, registry := newTestServer(t)

	_, err := registry.Table(context.Background(), "public", "users")
	require.NoError(t, err)
	require.Equal(t, 1, registry.CachedTables())

	resp, err := http.Post(srv.URL+"/debug/schema/invalidate?schema=public&table=users", "", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["invalidated"])
	assert.Equal(t, float64(0), body["cached"])
	assert.Equal(t, 0, registry.CachedTables())
}

func TestInvalidateSchema_TableWithoutSchema(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/debug/schema/invalidate?table=users", "", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.Error)
}

func TestInvalidateSchema_FullCacheClear(t *testing.T) {
	t.Parallel()

	srv, _, registry := newTestServer(t)

	_, err := registry.Table(context.Background(), "public", "users")
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/debug/schema/invalidate", "", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, registry.CachedTables())
}
