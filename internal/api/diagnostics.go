package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tenantry/tenantdb/internal/querylog"
	"github.com/tenantry/tenantdb/internal/schema"
)

// DiagnosticsHandler serves query-log statistics and schema cache controls.
type DiagnosticsHandler struct {
	queryLog *querylog.Logger
	registry *schema.Registry
	logger   *slog.Logger
}

// NewDiagnosticsHandler builds the handler. If logger is nil the default
// logger is used.
func NewDiagnosticsHandler(queryLog *querylog.Logger, registry *schema.Registry, logger *slog.Logger) *DiagnosticsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiagnosticsHandler{
		queryLog: queryLog,
		registry: registry,
		logger:   logger.With(slog.String("component", "diagnostics_api")),
	}
}

// QueryLogStats handles GET /debug/querylog/stats.
func (h *DiagnosticsHandler) QueryLogStats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.queryLog.Stats())
}

// QueryLogEntries handles GET /debug/querylog/entries, streaming the full
// JSON export (entries plus stats).
func (h *DiagnosticsHandler) QueryLogEntries(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := h.queryLog.ExportJSON(w); err != nil {
		h.logger.Error("failed to export query log", slog.String("error", err.Error()))
	}
}

// InvalidateSchema handles POST /debug/schema/invalidate. Query parameters
// schema and table narrow the invalidation; with neither, the whole cache is
// cleared.
func (h *DiagnosticsHandler) InvalidateSchema(w http.ResponseWriter, r *http.Request) {
	schemaName := r.URL.Query().Get("schema")
	tableName := r.URL.Query().Get("table")

	if tableName != "" && schemaName == "" {
		respondWithError(w, http.StatusBadRequest, "table invalidation requires a schema")
		return
	}

	h.registry.Invalidate(schemaName, tableName)
	respondWithJSON(w, http.StatusOK, map[string]any{
		"invalidated": true,
		"schema":      schemaName,
		"table":       tableName,
		"cached":      h.registry.CachedTables(),
	})
}

// NewRouter assembles the diagnostics router with standard middleware.
func NewRouter(h *DiagnosticsHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/debug", func(r chi.Router) {
		r.Get("/querylog/stats", h.QueryLogStats)
		r.Get("/querylog/entries", h.QueryLogEntries)
		r.Post("/schema/invalidate", h.InvalidateSchema)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			h.logger.Error("failed to write health check response", slog.String("error", err.Error()))
		}
	})

	return r
}
