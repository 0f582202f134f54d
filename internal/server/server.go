// Package server provides the HTTP surface of the price oracle.
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

	"github.com/voltmark/hwpricer/internal/aggregator"
	"github.com/voltmark/hwpricer/internal/config"
	"github.com/voltmark/hwpricer/internal/events"
	"github.com/voltmark/hwpricer/internal/history"
	"github.com/voltmark/hwpricer/internal/rental"
)

// Config holds server configuration.
type Config struct {
	Log        zerolog.Logger
	Config     *config.Config
	Aggregator *aggregator.Aggregator
	Rental     *rental.Service
	History    history.Store // nil when no store is configured
	Bus        *events.Bus   // nil disables push updates on /ws/prices
}

// Server represents the HTTP server.
type Server struct {
	router     *chi.Mux
	server     *http.Server
	log        zerolog.Logger
	cfg        *config.Config
	aggregator *aggregator.Aggregator
	rental     *rental.Service
	history    history.Store
	bus        *events.Bus
	started    time.Time
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		cfg:        cfg.Config,
		aggregator: cfg.Aggregator,
		rental:     cfg.Rental,
		history:    cfg.History,
		bus:        cfg.Bus,
		started:    time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupMiddleware configures middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/refresh", s.handleRefresh)

	s.router.Get("/prices", s.handlePrices)
	s.router.Get("/price/{assetId}", s.handlePrice)
	s.router.Post("/price", s.handleEnvelopePrice)
	s.router.Post("/prices", s.handleEnvelopePrices)

	s.router.Get("/prices/history", s.handleHardwareHistory)
	s.router.Get("/prices/history/indicators", s.handleIndicators)

	s.router.Route("/rental", func(r chi.Router) {
		r.Get("/prices", s.handleRentalPrices)
		r.Get("/prices/{gpuType}", s.handleRentalPrice)
		r.Get("/offers/{gpuType}", s.handleRentalOffers)
		r.Get("/history", s.handleRentalHistory)
		r.Get("/history/stats", s.handleRentalHistoryStats)
	})

	s.router.Get("/system/status", s.handleSystemStatus)
	s.router.Get("/ws/prices", s.handlePriceStream)
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server, letting in-flight responses
// complete.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
