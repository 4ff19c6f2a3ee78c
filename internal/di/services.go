package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aristath/capitol/internal/clientdata"
	"github.com/aristath/capitol/internal/clients/alphavantage"
	"github.com/aristath/capitol/internal/clients/disclosures"
	"github.com/aristath/capitol/internal/clients/yahoo"
	"github.com/aristath/capitol/internal/config"
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
	"github.com/aristath/capitol/internal/services/pricing"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories over the open databases.
func InitializeRepositories(container *Container, log zerolog.Logger) {
	container.TradeRepo = trading.NewTradeRepository(container.LedgerDB.Conn(), log)
	container.ManualRepo = trading.NewManualRepository(container.LedgerDB.Conn(), log)
	container.RecommendationRepo = recommendations.NewRepository(container.LedgerDB.Conn(), log)
	container.PositionRepo = portfolio.NewPositionRepository(container.PortfolioDB.Conn(), log)
	container.ClientDataRepo = clientdata.NewRepository(container.CacheDB.Conn())
}

// InitializeServices builds the service graph. Order matters: the oracle and the
// portfolio come first, the cycle runner last.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	// Events
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	// Price oracle: cache in front of the throttle so cache hits never wait
	oracle, err := newPriceProvider(cfg.Prices, log)
	if err != nil {
		return err
	}
	container.PriceOracle = pricing.NewCached(
		pricing.NewThrottled(oracle, cfg.Prices.CallInterval),
		container.ClientDataRepo,
		cfg.Prices.CacheTTL,
		log,
	)

	// Portfolio, seeded from the tracking universe and overlaid with persisted state
	seeds := make([]portfolio.Position, 0, len(cfg.Tracking.Instruments))
	tickers := make([]string, 0, len(cfg.Tracking.Instruments))
	for _, in := range cfg.Tracking.Instruments {
		seeds = append(seeds, portfolio.Position{
			Ticker:           in.Ticker,
			TargetAllocation: in.TargetAllocation,
			CurrentValue:     in.InitialValue,
		})
		tickers = append(tickers, in.Ticker)
	}
	p, err := portfolio.Load(ctx, cfg.Tracking.Cash, seeds, container.PositionRepo)
	if err != nil {
		return fmt.Errorf("failed to load portfolio: %w", err)
	}
	container.PortfolioService = portfolio.NewService(p, container.PriceOracle, container.PositionRepo, log)
	if err := container.PortfolioService.Save(ctx); err != nil {
		return fmt.Errorf("failed to persist portfolio: %w", err)
	}

	// Ingestion
	actors := make([]domain.TrackedActor, 0, len(cfg.Tracking.Actors))
	for _, a := range cfg.Tracking.Actors {
		actors = append(actors, domain.TrackedActor{Name: a.Name, Weight: a.Weight, SuccessRate: a.SuccessRate})
	}

	sources, err := newSources(cfg.Disclosures, container.ManualRepo, log)
	if err != nil {
		return err
	}
	container.Sources = sources
	container.Pipeline = ingestion.NewPipeline(actors, tickers, container.TradeRepo, container.ManualRepo, log)

	// Engine and delivery
	container.Engine = rebalancing.NewEngine(actors)

	dispatcher, err := newDispatcher(container, cfg.Notification, log)
	if err != nil {
		return err
	}
	container.Dispatcher = dispatcher

	container.CycleRunner = cycle.NewRunner(
		container.Sources,
		container.Pipeline,
		container.PortfolioService,
		container.Engine,
		container.RecommendationRepo,
		container.Dispatcher,
		container.EventManager,
		log,
	)

	// Backups
	var remote reliability.ObjectStore
	if cfg.Backup.Enabled() {
		r2, err := reliability.NewR2Client(ctx, cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		remote = r2
	} else {
		log.Info().Msg("Off-site backup not configured, archives stay local")
	}
	container.BackupService = reliability.NewBackupService(
		container.Databases(),
		filepath.Join(cfg.DataDir, "backups"),
		remote,
		cfg.Backup.RetentionDays,
		container.EventManager,
		log,
	)

	log.Info().
		Int("actors", len(actors)).
		Int("instruments", len(tickers)).
		Int("sources", len(container.Sources)).
		Strs("channels", container.Dispatcher.Channels()).
		Msg("Services initialized")

	return nil
}

func newPriceProvider(cfg config.PriceConfig, log zerolog.Logger) (domain.PriceOracle, error) {
	switch cfg.Provider {
	case "alphavantage":
		return alphavantage.NewClient(cfg.APIKey, cfg.BaseURL, log), nil
	case "yahoo":
		return yahoo.NewNativeClient(log), nil
	default:
		return nil, fmt.Errorf("unknown price provider: %s", cfg.Provider)
	}
}

func newSources(cfg config.DisclosureConfig, manual *trading.ManualRepository, log zerolog.Logger) ([]domain.TradeSource, error) {
	sources := make([]domain.TradeSource, 0, 2)

	if cfg.FeedURL != "" {
		layout, err := disclosures.LayoutByName(cfg.Layout)
		if err != nil {
			return nil, fmt.Errorf("failed to configure disclosure feed: %w", err)
		}
		feed := disclosures.NewClient(cfg.FeedURL, layout, cfg.Timeout, log)
		sources = append(sources, ingestion.NewDisclosureSource(feed, log))
	} else {
		log.Warn().Msg("No disclosure feed configured, only manual trades will be ingested")
	}

	sources = append(sources, ingestion.NewManualSource(manual, log))
	return sources, nil
}

func newDispatcher(container *Container, cfg config.NotificationConfig, log zerolog.Logger) (*notification.Dispatcher, error) {
	channels := []notification.Channel{notification.NewLogChannel(log)}

	if cfg.EmailEnabled() {
		channels = append(channels, notification.NewEmailChannel(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			To:       cfg.EmailTo,
		}))
	}

	if cfg.SMSEnabled() {
		channels = append(channels, notification.NewSMSChannel(notification.SMSConfig{
			WebhookURL: cfg.SMSWebhookURL,
			AccountID:  cfg.SMSAccountID,
			AuthToken:  cfg.SMSAuthToken,
			From:       cfg.SMSFrom,
			To:         cfg.SMSTo,
		}))
	}

	if cfg.KafkaEnabled() {
		kafka, err := notification.NewKafkaChannel(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka channel: %w", err)
		}
		channels = append(channels, kafka)
		container.closers = append(container.closers, kafka.Close)
	}

	return notification.NewDispatcher(log, channels...), nil
}
