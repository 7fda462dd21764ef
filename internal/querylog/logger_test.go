package querylog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedLogger() *Logger {
	l := New(50*time.Millisecond, nil)
	l.Log("SELECT * FROM users", nil, 10*time.Millisecond)
	l.Log("SELECT * FROM users WHERE user_id = $1", []any{1}, 20*time.Millisecond)
	l.Log("INSERT INTO posts (title) VALUES ($1)", []any{"hi"}, 30*time.Millisecond)
	l.Log("UPDATE users SET email = $1", []any{"a@b.io"}, 100*time.Millisecond)
	return l
}

func TestLog_RecordsEntries(t *testing.T) {
	t.Parallel()

	l := loadedLogger()
	entries := l.Entries()
	require.Len(t, entries, 4)

	assert.Equal(t, "SELECT * FROM users", entries[0].Query)
	assert.Equal(t, []any{1}, entries[1].Params)
	assert.Equal(t, 30*time.Millisecond, entries[2].Duration)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestTableAccess_CountsPerTable(t *testing.T) {
	t.Parallel()

	l := loadedLogger()
	access := l.TableAccess()

	assert.Equal(t, 3, access["users"])
	assert.Equal(t, 1, access["posts"])
}

func TestExtractTables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  []string
	}{
		{"SELECT * FROM users", []string{"users"}},
		{"select u.* from users u join posts p on p.user_id = u.user_id", []string{"users"}},
		{"INSERT INTO audit.events (kind) VALUES ($1)", []string{"audit.events"}},
		{"UPDATE inventory SET qty = 0", []string{"inventory"}},
		{"DELETE FROM sessions", []string{"sessions"}},
		{`SELECT * FROM "Users"`, []string{"users"}},
		{"SELECT 1", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractTables(tt.query), "query %q", tt.query)
	}
}

func TestSlowQueries(t *testing.T) {
	t.Parallel()

	l := loadedLogger()

	slow := l.SlowQueries(0)
	require.Len(t, slow, 1)
	assert.Equal(t, 100*time.Millisecond, slow[0].Duration)

	slow = l.SlowQueries(25 * time.Millisecond)
	assert.Len(t, slow, 2)
}

func TestStats(t *testing.T) {
	t.Parallel()

	stats := loadedLogger().Stats()

	assert.Equal(t, 4, stats.Count)
	assert.Equal(t, 1, stats.SlowQueryCount)
	assert.Equal(t, 3, stats.TableAccess["users"])

	perf := stats.Performance
	assert.InDelta(t, 160.0, perf.TotalMS, 0.001)
	assert.InDelta(t, 40.0, perf.AvgMS, 0.001)
	assert.InDelta(t, 25.0, perf.MedianMS, 0.001)
	assert.InDelta(t, 100.0, perf.P95MS, 0.001)
	assert.InDelta(t, 10.0, perf.MinMS, 0.001)
	assert.InDelta(t, 100.0, perf.MaxMS, 0.001)
}

func TestStats_Empty(t *testing.T) {
	t.Parallel()

	stats := New(50*time.Millisecond, nil).Stats()

	assert.Equal(t, 0, stats.Count)
	assert.Equal(t, 0, stats.SlowQueryCount)
	assert.Empty(t, stats.TableAccess)
	assert.Zero(t, stats.Performance)
}

func TestStats_SingleEntry(t *testing.T) {
	t.Parallel()

	l := New(50*time.Millisecond, nil)
	l.Log("SELECT * FROM users", nil, 12*time.Millisecond)

	perf := l.Stats().Performance
	assert.InDelta(t, 12.0, perf.MedianMS, 0.001)
	assert.InDelta(t, 12.0, perf.P95MS, 0.001)
	assert.InDelta(t, 12.0, perf.MinMS, 0.001)
	assert.InDelta(t, 12.0, perf.MaxMS, 0.001)
}

func TestEntries_ReturnsCopy(t *testing.T) {
	t.Parallel()

	l := loadedLogger()
	entries := l.Entries()
	entries[0].Query = "mutated"

	assert.Equal(t, "SELECT * FROM users", l.Entries()[0].Query)
}

func TestFormatParams(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", formatParams(nil))
	assert.Equal(t, "[]", formatParams([]any{}))
	assert.Equal(t, "[1 a@b.io true]", formatParams([]any{1, "a@b.io", true}))
}
