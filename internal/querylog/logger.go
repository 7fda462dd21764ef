// Package querylog records executed queries with parameters and timing,
// accumulates per-table access counters and summary statistics, and exports
// the log for offline analysis. Logging is passive: it never alters query
// results or transaction outcome.
package querylog

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Entry is one recorded query execution. Immutable once appended.
type Entry struct {
	Query     string
	Params    []any
	Duration  time.Duration
	Timestamp time.Time
}

// Table extraction heuristics for access accounting. Keyword-driven and
// best-effort: subqueries, CTEs and multi-statement batches are not handled.
var (
	selectTablePattern = regexp.MustCompile(`(?i)from\s+([a-zA-Z0-9_."]+)`)
	insertTablePattern = regexp.MustCompile(`(?i)insert\s+into\s+([a-zA-Z0-9_."]+)`)
	updateTablePattern = regexp.MustCompile(`(?i)update\s+([a-zA-Z0-9_."]+)`)
	deleteTablePattern = regexp.MustCompile(`(?i)delete\s+from\s+([a-zA-Z0-9_."]+)`)
)

// Logger accumulates query log entries and table-access counters. Appends
// and reads are synchronized, so one Logger may be shared across concurrent
// operations.
type Logger struct {
	slowThreshold time.Duration
	log           *slog.Logger

	mu          sync.Mutex
	entries     []Entry
	tableAccess map[string]int
}

// New builds a query logger. Queries slower than slowThreshold are counted
// as slow and emit a warning log. If log is nil the default logger is used.
func New(slowThreshold time.Duration, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{
		slowThreshold: slowThreshold,
		log:           log.With(slog.String("component", "query_logger")),
		tableAccess:   make(map[string]int),
	}
}

// SlowThreshold returns the configured slow-query threshold.
func (l *Logger) SlowThreshold() time.Duration {
	return l.slowThreshold
}

// Log appends an entry for the given query. Slow queries emit a
// warning-level notification; Log itself never fails or blocks on I/O.
func (l *Logger) Log(query string, params []any, duration time.Duration) {
	entry := Entry{
		Query:     query,
		Params:    params,
		Duration:  duration,
		Timestamp: time.Now(),
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	for _, table := range extractTables(query) {
		l.tableAccess[table]++
	}
	l.mu.Unlock()

	if duration > l.slowThreshold {
		l.log.Warn("slow query detected",
			slog.String("query", query),
			slog.Float64("duration_ms", durationMS(duration)),
			slog.Float64("threshold_ms", durationMS(l.slowThreshold)))
	}
}

// Entries returns a copy of the recorded entries in log order.
func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// SlowQueries returns the entries slower than threshold; a zero threshold
// uses the logger's configured one.
func (l *Logger) SlowQueries(threshold time.Duration) []Entry {
	if threshold == 0 {
		threshold = l.slowThreshold
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	var slow []Entry
	for _, e := range l.entries {
		if e.Duration > threshold {
			slow = append(slow, e)
		}
	}
	return slow
}

// TableAccess returns a copy of the per-table access counters.
func (l *Logger) TableAccess() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.tableAccess))
	for k, v := range l.tableAccess {
		out[k] = v
	}
	return out
}

// extractTables pulls the table names a statement touches out of the common
// keyword positions, normalized to lowercase with quotes stripped.
func extractTables(query string) []string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))

	seen := make(map[string]bool)
	var tables []string
	for _, pattern := range []*regexp.Regexp{
		selectTablePattern, insertTablePattern, updateTablePattern, deleteTablePattern,
	} {
		for _, m := range pattern.FindAllStringSubmatch(normalized, -1) {
			table := strings.ReplaceAll(m[1], `"`, "")
			if !seen[table] {
				seen[table] = true
				tables = append(tables, table)
			}
		}
	}
	return tables
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// formatParams renders bound parameters for CSV export and log lines.
func formatParams(params []any) string {
	if params == nil {
		return ""
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprint(p)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
