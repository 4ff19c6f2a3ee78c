// Package main is the entry point for the Capitol service.
//
// Capitol follows the publicly disclosed trades of a configured set of politicians,
// mirrors them onto a tracked virtual portfolio and issues weighted rebalancing
// recommendations. Nothing is ever executed; recommendations are delivered through
// the notification channels and exposed over the HTTP API.
//
// Startup sequence:
//  1. Load configuration (.env + environment + tracking YAML)
//  2. Initialize logging
//  3. Wire databases, repositories and services
//  4. Start the HTTP server, the work processor and the scheduler
//  5. Wait for a shutdown signal and stop everything in reverse order
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/capitol/internal/config"
	"github.com/aristath/capitol/internal/di"
	"github.com/aristath/capitol/internal/server"
	"github.com/aristath/capitol/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting Capitol")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	srv := server.New(server.Config{
		Log:             log,
		Port:            cfg.Port,
		DevMode:         cfg.DevMode,
		Work:            container.WorkProcessor,
		Cycle:           container.CycleRunner,
		Portfolio:       container.PortfolioService,
		Trades:          container.TradeRepo,
		Manual:          container.ManualRepo,
		Recommendations: container.RecommendationRepo,
		EventBus:        container.EventBus,
		Databases:       container.Databases(),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started")

	// Work processor + cron schedules
	container.Start()
	log.Info().Msg("Work processor and scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	cancel()

	// The HTTP server gets 10 seconds to drain in-flight requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stops the scheduler, cancels running work, closes channels and databases.
	container.Close()

	log.Info().Msg("Server stopped")
}
