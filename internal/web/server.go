// Package web provides the HTTP surface for the sync pipeline: the
// versioned submission endpoint, health checks, and the middleware stack.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	"github.com/FairportRobotics/scouting-sync/internal/config"
	"github.com/FairportRobotics/scouting-sync/internal/sync"
)

// Pinger checks one backing store's connectivity for /healthz.
type Pinger func(ctx context.Context) error

// Server is the HTTP server for the sync service.
type Server struct {
	service *sync.Service
	cfg     *config.Config
	checks  map[string]Pinger
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server. checks maps store names ("objectstore",
// "mongo") to connectivity probes; nil disables deep health checks.
func NewServer(service *sync.Service, cfg *config.Config, checks map[string]Pinger) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		checks:  checks,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	s.router.Use(securityHeaders)

	c := corslib.New(corslib.Options{
		AllowedOrigins: s.cfg.CORS.AllowOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	})
	s.router.Use(c.Handler)

	if s.cfg.Rate.Enabled {
		s.router.Use(rateLimitMiddleware(s.cfg.Rate.RequestsPerMinute))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	// The submission endpoint tolerates GET with query parameters in
	// addition to POST, matching existing scouting tablet clients.
	s.router.Post("/v1", s.handleSync)
	s.router.Get("/v1", s.handleSync)
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds hardening headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
