// Package api serves foreign tables, scans and read-only queries over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"duck-restfdw/internal/domain"
	"duck-restfdw/internal/engine"
	"duck-restfdw/internal/middleware"
)

// Handler holds the services behind the HTTP routes.
type Handler struct {
	scanner *engine.Scanner
	mat     *engine.Materializer
	query   *engine.QueryService
	history domain.ScanHistoryRepository
	logger  *slog.Logger
	started time.Time
}

// NewHandler creates a Handler. history may be nil, in which case
// GET /v1/scans returns an empty list.
func NewHandler(mat *engine.Materializer, query *engine.QueryService, history domain.ScanHistoryRepository, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		scanner: mat.Scanner(),
		mat:     mat,
		query:   query,
		history: history,
		logger:  logger,
		started: time.Now(),
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"tables":         len(h.scanner.Tables()),
	})
}

type tableSummary struct {
	Name    string `json:"name"`
	Server  string `json:"server"`
	Object  string `json:"object"`
	Refresh string `json:"refresh,omitempty"`
}

// ListTables lists the configured foreign tables.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	out := make([]tableSummary, 0, len(h.scanner.Tables()))
	for _, name := range h.scanner.Tables() {
		info, err := h.scanner.Describe(name)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		out = append(out, tableSummary{Name: info.Name, Server: info.Server, Object: info.Object, Refresh: info.Refresh})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tables": out})
}

// GetTable describes one table.
func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	info, err := h.scanner.Describe(chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ScanRows runs a live scan and returns every row.
func (h *Handler) ScanRows(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	info, err := h.scanner.Describe(name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rows := make([][]any, 0)
	res, err := h.scanner.Scan(r.Context(), name, func(row domain.Row) error {
		rows = append(rows, rowJSON(row))
		return nil
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cols := make([]string, len(info.Columns))
	for i, c := range info.Columns {
		cols[i] = c.Name
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scan_id":   res.ScanID,
		"columns":   cols,
		"rows":      rows,
		"row_count": res.Rows,
		"pages":     res.Pages,
	})
}

// Refresh materializes a table into DuckDB.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.mat.Materialize(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scanResultJSON(res))
}

type queryRequest struct {
	SQL string `json:"sql"`
}

// Query runs a read-only SQL statement.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.ErrValidation("invalid request body: %v", err))
		return
	}
	res, err := h.query.Query(r.Context(), req.SQL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"columns":   res.Columns,
		"rows":      res.Rows,
		"row_count": len(res.Rows),
	})
}

type scanJSON struct {
	ID         string    `json:"id"`
	Table      string    `json:"table"`
	Object     string    `json:"object"`
	Pages      int       `json:"pages"`
	Records    int64     `json:"records"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int64     `json:"duration_ms"`
}

// ListScans lists scan history, newest first.
func (h *Handler) ListScans(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter := domain.ScanHistoryFilter{Page: page}
	if v := r.URL.Query().Get("table"); v != "" {
		filter.TableName = &v
	}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = &v
	}

	out := make([]scanJSON, 0)
	var total int64
	if h.history != nil {
		entries, n, err := h.history.List(r.Context(), filter)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		total = n
		for _, e := range entries {
			out = append(out, scanJSON{
				ID: e.ID, Table: e.TableName, Object: e.Object, Pages: e.Pages, Records: e.Records,
				Status: e.Status, Error: e.Error, StartedAt: e.StartedAt, FinishedAt: e.FinishedAt,
				DurationMs: e.Duration().Milliseconds(),
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scans":           out,
		"total":           total,
		"next_page_token": domain.NextPageToken(page.Offset(), page.Limit(), total),
	})
}

func pageFromQuery(r *http.Request) (domain.PageRequest, error) {
	p := domain.PageRequest{PageToken: r.URL.Query().Get("page_token")}
	if v := r.URL.Query().Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return p, domain.ErrValidation("max_results must be a positive integer, got %q", v)
		}
		p.MaxResults = n
	}
	return p, nil
}

func scanResultJSON(res *engine.ScanResult) map[string]interface{} {
	return map[string]interface{}{
		"scan_id":     res.ScanID,
		"table":       res.Table,
		"object":      res.Object,
		"pages":       res.Pages,
		"rows":        res.Rows,
		"duration_ms": res.Duration.Milliseconds(),
	}
}

// rowJSON embeds Json cells as raw JSON instead of quoted strings.
func rowJSON(row domain.Row) []any {
	out := row.Values()
	for i, c := range row {
		if c.Kind == domain.CellJSON {
			out[i] = json.RawMessage(c.Str)
		}
	}
	return out
}

type errorBody struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := HTTPStatusFromDomainError(err)
	if code >= http.StatusInternalServerError {
		h.logger.Warn("request failed", "path", r.URL.Path, "status", code, "error", err)
	}
	writeJSON(w, code, errorBody{Code: code, Message: err.Error(), RequestID: middleware.RequestIDFromContext(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
