package schema

import (
	"context"
	"log/slog"
	"sync"
)

// Registry is the single cached view of table structure shared by the mock
// generator, insert validation and column resolution. Descriptors are loaded
// from the configured Source on first request and cached for the process
// lifetime unless explicitly invalidated.
//
// The cache is read-mostly: lookups take a read lock, loads and
// invalidations take the write lock, so a reader never observes a
// half-updated descriptor.
type Registry struct {
	source Source
	logger *slog.Logger

	mu     sync.RWMutex
	tables map[string]*Table
}

// NewRegistry builds a registry over the given source. If logger is nil the
// default logger is used.
func NewRegistry(source Source, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		source: source,
		logger: logger.With(slog.String("component", "schema_registry")),
		tables: make(map[string]*Table),
	}
}

func cacheKey(schemaName, tableName string) string {
	return schemaName + "." + tableName
}

// Table returns the descriptor for (schema, table), loading and caching it
// on first access. Returns ErrTableNotFound when the table does not exist.
func (r *Registry) Table(ctx context.Context, schemaName, tableName string) (*Table, error) {
	key := cacheKey(schemaName, tableName)

	r.mu.RLock()
	table, ok := r.tables[key]
	r.mu.RUnlock()
	if ok {
		return table, nil
	}

	loaded, err := r.source.LoadTable(ctx, schemaName, tableName)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another goroutine may have loaded it while we were; keep the first.
	if existing, ok := r.tables[key]; ok {
		return existing, nil
	}
	r.tables[key] = loaded
	r.logger.Debug("table descriptor cached",
		slog.String("table", key),
		slog.Int("columns", len(loaded.Columns)))
	return loaded, nil
}

// ResolveColumn turns a caller-supplied column name into the table's
// canonical column name using fuzzy matching: exact, then case-insensitive,
// then singular/plural, then snake_case/camelCase normalization. Failure is
// a *ColumnMatchError carrying ranked suggestions.
func (r *Registry) ResolveColumn(ctx context.Context, schemaName, tableName, candidate string) (string, error) {
	table, err := r.Table(ctx, schemaName, tableName)
	if err != nil {
		return "", err
	}

	resolved, err := MatchColumn(candidate, table.ColumnNames(), false)
	if err != nil {
		// Rebuild with table identity so the message names where the
		// lookup failed.
		return "", NewColumnMatchError(candidate, schemaName, tableName, table.ColumnNames())
	}
	return resolved, nil
}

// Invalidate drops cached descriptors so the next access reloads them. With
// both arguments it drops one table; with only a schema it drops every table
// in that schema; with neither it clears the whole cache.
func (r *Registry) Invalidate(schemaName, tableName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case schemaName != "" && tableName != "":
		delete(r.tables, cacheKey(schemaName, tableName))
	case schemaName != "":
		for key, table := range r.tables {
			if table.Schema == schemaName {
				delete(r.tables, key)
			}
		}
	default:
		r.tables = make(map[string]*Table)
	}

	r.logger.Debug("schema cache invalidated",
		slog.String("schema", schemaName),
		slog.String("table", tableName))
}

// CachedTables reports how many descriptors are currently cached. Intended
// for diagnostics.
func (r *Registry) CachedTables() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}
