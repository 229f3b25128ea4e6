// Package api provides the HTTP API server and handlers for OpenShelf.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/openshelf/openshelf-server/internal/ratelimit"
	"github.com/openshelf/openshelf-server/internal/validation"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP surface.
type Options struct {
	Version        string
	AllowedOrigins []string
	RateLimitRPS   float64 // per client IP; zero disables limiting
	RateLimitBurst int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services  *Services
	db        Pinger
	router    *chi.Mux
	api       huma.API
	limiter   *ratelimit.KeyedRateLimiter
	validator *validation.Validator
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, db Pinger, opts Options, logger *slog.Logger) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		services:  services,
		db:        db,
		router:    chi.NewRouter(),
		validator: validation.New(),
		logger:    logger,
	}
	if opts.RateLimitRPS > 0 {
		s.limiter = ratelimit.New(opts.RateLimitRPS, max(opts.RateLimitBurst, 1))
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig("OpenShelf API", opts.Version)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by middleware.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if s.limiter != nil {
		s.router.Use(RateLimitMiddleware(s.limiter, apiPrefix, s.logger))
	}
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerBookRoutes()
	s.registerLookupRoutes()
	s.registerCatalogRoutes()
	s.registerLibraryRoutes()
}
