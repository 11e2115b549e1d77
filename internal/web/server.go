// Package web provides the HTTP server for sheetq: a JSON API over the
// service layer, HTML sheet views, health and Prometheus metrics.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/sheetq/internal/config"
	"github.com/JonMunkholm/sheetq/internal/core"
	"github.com/JonMunkholm/sheetq/internal/logging"
	"github.com/JonMunkholm/sheetq/internal/web/middleware"
)

// rateLimitTTL is how long an idle client's bucket is kept.
const rateLimitTTL = 10 * time.Minute

// Server is the HTTP server.
type Server struct {
	service *core.Service
	cfg     config.Config
	router  *chi.Mux
	server  *http.Server
	limiter *rateLimiter
}

// NewServer creates a Server for service configured by cfg.
func NewServer(service *core.Service, cfg config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.limiter = newRateLimiter(cfg.Rate.RequestsPerMinute, cfg.Rate.Burst, rateLimitTTL)
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Rate.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Metrics)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders)
	if s.limiter != nil {
		s.router.Use(s.rateLimit(s.limiter))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Get("/sheets/{sheet}", s.handleSheetView)

	// Operations
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/sheets", func(r chi.Router) {
			r.Get("/", s.handleListSheets)
			r.Post("/", s.handleCreateSheet)

			r.Route("/{sheet}", func(r chi.Router) {
				r.Get("/", s.handleDescribeSheet)
				r.Get("/export", s.handleExport)
				r.Post("/query", s.handleQuery)
				r.Post("/append", s.handleAppend)
				r.Post("/prepend", s.handlePrepend)
				r.Post("/update", s.handleUpdateWhere)
				r.Post("/delete", s.handleDeleteWhere)
			})
		})

		r.Route("/cursors", func(r chi.Router) {
			r.Post("/", s.handleOpenCursor)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCursor)
				r.Delete("/", s.handleCloseCursor)
				r.Post("/filter", s.handleCursorFilter)
				r.Post("/refresh", s.handleCursorRefresh)
				r.Post("/clear", s.handleCursorClear)
				r.Post("/fetch", s.handleCursorFetch)
				r.Post("/update", s.handleCursorUpdate)
				r.Post("/delete", s.handleCursorDelete)
				r.Post("/upsert", s.handleCursorUpsert)
			})
		})
	})
}

// Start listens on the configured address until Shutdown. The rate limiter
// cleanup runs until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.limiter != nil {
		go s.limiter.cleanup(ctx)
	}

	slog.Info("starting server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// logWarn logs a failure that happens after the response has started.
func logWarn(r *http.Request, msg string, err error, attrs ...any) {
	logging.FromContext(r.Context()).Warn(msg,
		append([]any{"path", r.URL.Path, "error", err}, attrs...)...)
}
