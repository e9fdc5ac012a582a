package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"duck-restfdw/internal/config"
	"duck-restfdw/internal/middleware"
)

// NewRouter builds the HTTP router. The rate limiter's cleanup goroutine
// stops when ctx is canceled. A nil logger uses slog.Default.
func NewRouter(ctx context.Context, h *Handler, cfg *config.Config, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RateLimiter(ctx, middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
			IdleTTL:           10 * time.Minute,
		}))
		r.Get("/tables", h.ListTables)
		r.Get("/tables/{name}", h.GetTable)
		r.Get("/tables/{name}/rows", h.ScanRows)
		r.Post("/tables/{name}/refresh", h.Refresh)
		r.Post("/query", h.Query)
		r.Get("/scans", h.ListScans)
	})
	return r
}
