// Package server provides the HTTP server and routing for FinBoard.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aaanmmoool/finboard/internal/cache"
	"github.com/aaanmmoool/finboard/internal/dashboard"
	"github.com/aaanmmoool/finboard/internal/database"
	"github.com/aaanmmoool/finboard/internal/events"
	"github.com/aaanmmoool/finboard/internal/kvstore"
)

// StreamCounter reports the number of open stream records.
type StreamCounter interface {
	Count() int
}

// KeyLister lists the persisted keys of the key-value store.
type KeyLister interface {
	List() ([]kvstore.Entry, error)
}

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Dashboard *dashboard.Service
	Cache     *cache.Cache
	Streams   StreamCounter
	Bus       *events.Bus
	DB        *database.DB // optional, checked by /health and the status endpoint
	Store     KeyLister    // optional, persisted keys reported by the status endpoint
	Port      int
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	dashboard *dashboard.Service
	cache     *cache.Cache
	bus       *events.Bus
	db        *database.DB
	system    *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		dashboard: cfg.Dashboard,
		cache:     cfg.Cache,
		bus:       cfg.Bus,
		db:        cfg.DB,
		system:    NewSystemHandlers(cfg.Log, cfg.Dashboard, cfg.Cache, cfg.Streams, cfg.DB, cfg.Store),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: /api/events/stream holds the response open.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// The event stream is long-lived and must not be cut by the request timeout.
		eventsStreamHandler := NewEventsStreamHandler(s.bus, s.log)
		r.Get("/events/stream", eventsStreamHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/system/status", s.system.HandleSystemStatus)

			r.Post("/connections/test", s.handleTestConnection)
			r.Post("/fetch", s.handleFetch)
			r.Post("/normalize", s.handleNormalize)

			r.Route("/widgets", func(r chi.Router) {
				r.Get("/", s.handleListWidgets)
				r.Post("/", s.handleAddWidget)
				r.Delete("/", s.handleClearWidgets)
				r.Post("/reorder", s.handleReorderWidgets)
				r.Post("/refresh", s.handleRefreshAllWidgets)

				r.Route("/{id}", func(r chi.Router) {
					r.Put("/", s.handleUpdateWidget)
					r.Delete("/", s.handleRemoveWidget)
					r.Post("/pin", s.handleTogglePin)
					r.Post("/refresh", s.handleRefreshWidget)
					r.Get("/data", s.handleWidgetData)
					r.Get("/series", s.handleWidgetSeries)
				})
			})

			r.Get("/templates", s.handleListTemplates)
			r.Post("/templates/{id}/load", s.handleLoadTemplate)

			r.Route("/cache", func(r chi.Router) {
				r.Get("/stats", s.handleCacheStats)
				r.Delete("/", s.handleClearCache)
				r.Post("/invalidate", s.handleInvalidateCache)
			})
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
