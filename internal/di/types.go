/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived dependency. It is created by Wire() and
 * handed to the HTTP server and the CLI.
 */
package di

import (
	"github.com/aristath/capitol/internal/clientdata"
	"github.com/aristath/capitol/internal/config"
	"github.com/aristath/capitol/internal/database"
	"github.com/aristath/capitol/internal/domain"
	"github.com/aristath/capitol/internal/events"
	"github.com/aristath/capitol/internal/modules/cycle"
	"github.com/aristath/capitol/internal/modules/ingestion"
	"github.com/aristath/capitol/internal/modules/portfolio"
	"github.com/aristath/capitol/internal/modules/rebalancing"
	"github.com/aristath/capitol/internal/modules/recommendations"
	"github.com/aristath/capitol/internal/modules/trading"
	"github.com/aristath/capitol/internal/notification"
	"github.com/aristath/capitol/internal/reliability"
	"github.com/aristath/capitol/internal/scheduler"
	"github.com/aristath/capitol/internal/work"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: ledger (trades, backlog, recommendations), portfolio (positions), cache (quotes)
 * - Repositories: data access over those databases
 * - Services: price oracle chain, portfolio, ingestion, engine, dispatcher, cycle runner
 * - Work: registry + processor, fed by the cron scheduler and the API
 */
type Container struct {
	Config *config.Config

	// Databases
	LedgerDB    *database.DB // Append-only audit trail (trades, manual backlog, recommendations)
	PortfolioDB *database.DB // Current positions and portfolio metadata
	CacheDB     *database.DB // Provider quote cache

	// Repositories
	TradeRepo          *trading.TradeRepository
	ManualRepo         *trading.ManualRepository
	RecommendationRepo *recommendations.Repository
	PositionRepo       *portfolio.PositionRepository
	ClientDataRepo     *clientdata.Repository

	// Services
	PriceOracle      domain.PriceOracle
	PortfolioService *portfolio.Service
	Pipeline         *ingestion.Pipeline
	Sources          []domain.TradeSource
	Engine           *rebalancing.Engine
	Dispatcher       *notification.Dispatcher
	EventBus         *events.Bus
	EventManager     *events.Manager
	CycleRunner      *cycle.Runner
	BackupService    *reliability.BackupService

	// Work
	WorkRegistry   *work.Registry
	WorkProcessor  *work.Processor
	WorkCompletion *work.CompletionTracker
	Scheduler      *scheduler.Scheduler

	closers []func()
	started bool
}

// Databases returns the open databases in a stable order.
func (c *Container) Databases() []*database.DB {
	out := make([]*database.DB, 0, 3)
	for _, db := range []*database.DB{c.LedgerDB, c.PortfolioDB, c.CacheDB} {
		if db != nil {
			out = append(out, db)
		}
	}
	return out
}
