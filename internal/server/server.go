// Package server provides the HTTP server and routing for Capitol.
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

	"github.com/aristath/capitol/internal/database"
	"github.com/aristath/capitol/internal/domain"
	"github.com/aristath/capitol/internal/events"
	"github.com/aristath/capitol/internal/modules/cycle"
	"github.com/aristath/capitol/internal/modules/portfolio"
	"github.com/aristath/capitol/internal/modules/recommendations"
	"github.com/aristath/capitol/internal/modules/trading"
	"github.com/aristath/capitol/internal/work"
)

// WorkQueue accepts work by type ID and reports processor state.
type WorkQueue interface {
	Enqueue(typeID string) (bool, error)
	Status() work.Status
}

// CycleStatus reports on the cycle runner.
type CycleStatus interface {
	Busy() bool
	LastResult() *cycle.Result
}

// PortfolioReader exposes the current portfolio.
type PortfolioReader interface {
	Snapshot() portfolio.Snapshot
}

// TradeReader lists the trade ledger.
type TradeReader interface {
	GetRecent(ctx context.Context, limit int) ([]domain.TradeRecord, error)
	Count(ctx context.Context) (int, error)
}

// ManualBacklog stores operator-entered trades.
type ManualBacklog interface {
	Add(ctx context.Context, trade *trading.ManualTrade) (int64, error)
	List(ctx context.Context, limit int) ([]trading.ManualTrade, error)
}

// RecommendationReader lists the recommendation audit trail.
type RecommendationReader interface {
	GetRecent(ctx context.Context, f recommendations.Filter) ([]domain.Recommendation, error)
	GetStats(ctx context.Context) (*recommendations.Stats, error)
}

// Config holds server configuration
type Config struct {
	Log     zerolog.Logger
	Port    int
	DevMode bool

	Work            WorkQueue
	Cycle           CycleStatus
	Portfolio       PortfolioReader
	Trades          TradeReader
	Manual          ManualBacklog
	Recommendations RecommendationReader
	EventBus        *events.Bus
	Databases       []*database.DB
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config

	systemHandlers *SystemHandlers
	eventsHandler  *EventsStreamHandler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}
	s.systemHandlers = NewSystemHandlers(cfg.Log, cfg.Databases, cfg.Work)
	s.eventsHandler = NewEventsStreamHandler(cfg.EventBus, cfg.Log)

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// The websocket stream must not sit behind the request timeout.
		r.Get("/events/ws", s.eventsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/cycle", func(r chi.Router) {
				r.Post("/run", s.handleRunCycle)
				r.Get("/status", s.handleCycleStatus)
			})

			r.Route("/portfolio", func(r chi.Router) {
				r.Get("/", s.handleGetPortfolio)
				r.Post("/refresh", s.handleRefreshPortfolio)
			})

			r.Route("/trades", func(r chi.Router) {
				r.Get("/", s.handleGetTrades)
				r.Get("/manual", s.handleListManualTrades)
				r.Post("/manual", s.handleAddManualTrade)
			})

			r.Route("/recommendations", func(r chi.Router) {
				r.Get("/", s.handleGetRecommendations)
				r.Get("/stats", s.handleRecommendationStats)
			})

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/jobs", s.systemHandlers.HandleJobsStatus)
				r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
			})
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
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
