// Package api provides the HTTP API for the Folio reading engine.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/folioapp/folio-server/internal/clock"
	"github.com/folioapp/folio-server/internal/http/response"
	"github.com/folioapp/folio-server/internal/ratelimit"
	"github.com/folioapp/folio-server/internal/sse"
	"github.com/folioapp/folio-server/internal/store"
	"github.com/folioapp/folio-server/internal/validation"
)

// Options configures the HTTP layer.
type Options struct {
	CORSOrigins  []string
	RateLimitRPS float64
	RateBurst    int

	// The single local reader who authors annotations and replies.
	UserID   string
	UserName string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store       *store.Store
	services    *Services
	router      *chi.Mux
	api         huma.API
	sseManager  *sse.Manager
	sseHandler  *sse.Handler
	validator   *validation.Validator
	rateLimiter *ratelimit.KeyedRateLimiter
	clock       clock.Clock
	opts        Options
	logger      *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st *store.Store, services *Services, sseManager *sse.Manager, clk clock.Clock, opts Options, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		store:       st,
		services:    services,
		router:      router,
		sseManager:  sseManager,
		validator:   validation.New(),
		rateLimiter: ratelimit.New(opts.RateLimitRPS, opts.RateBurst),
		clock:       clk,
		opts:        opts,
		logger:      logger,
	}
	if sseManager != nil {
		s.sseHandler = sse.NewHandler(sseManager, logger)
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Folio API", "1.0.0")
	humaConfig.Info.Description = "Reading sessions, highlights and annotations"
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerReaderRoutes()
	s.registerHighlightRoutes()
	s.registerAnnotationRoutes()

	// The event stream is a long-lived response; it bypasses huma.
	if s.sseHandler != nil {
		router.Get("/api/v1/reader/stream", s.sseHandler.ServeHTTP)
	}
	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "route not found", s.logger)
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, used by tests.
func (s *Server) API() huma.API {
	return s.api
}

// Shutdown releases background resources owned by the server.
func (s *Server) Shutdown() {
	s.rateLimiter.Stop()
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(RateLimitMiddleware(s.rateLimiter, s.logger))
}
