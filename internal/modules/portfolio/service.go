package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/capitol/internal/domain"
	"github.com/rs/zerolog"
)

const metaLastRefreshed = "last_refreshed"

// WorkTypeRefresh is the work queue ID of a standalone price refresh.
const WorkTypeRefresh = "portfolio:refresh"

// Store is the persistence the service needs.
type Store interface {
	GetAll(ctx context.Context) (map[string]Position, error)
	SaveAll(ctx context.Context, positions []Position) error
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
}

// Load builds the portfolio from the configured seeds, preferring persisted state for
// tickers that have been stored before. Stored tickers no longer configured are ignored.
func Load(ctx context.Context, cash float64, seeds []Position, store Store) (*Portfolio, error) {
	stored, err := store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	positions := make([]Position, 0, len(seeds))
	for _, seed := range seeds {
		if pos, ok := stored[seed.Ticker]; ok {
			positions = append(positions, pos)
			continue
		}
		positions = append(positions, seed)
	}

	p := New(cash, positions)

	if v, err := store.GetMeta(ctx, metaLastRefreshed); err == nil && v != "" {
		if at, err := time.Parse(time.RFC3339, v); err == nil {
			p.MarkRefreshed(at)
		}
	}

	return p, nil
}

// Service refreshes prices and applies recommendation bookkeeping, persisting the result.
type Service struct {
	portfolio *Portfolio
	oracle    domain.PriceOracle
	store     Store
	log       zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(p *Portfolio, oracle domain.PriceOracle, store Store, log zerolog.Logger) *Service {
	return &Service{
		portfolio: p,
		oracle:    oracle,
		store:     store,
		log:       log.With().Str("service", "portfolio").Logger(),
	}
}

// Portfolio returns the owned portfolio
func (s *Service) Portfolio() *Portfolio {
	return s.portfolio
}

// Snapshot returns a consistent copy of the portfolio
func (s *Service) Snapshot() Snapshot {
	return s.portfolio.Snapshot()
}

// Refresh reprices every position and persists the outcome. Persistence errors are
// logged; the in-memory state stays authoritative.
func (s *Service) Refresh(ctx context.Context) RefreshResult {
	result := RefreshPrices(ctx, s.portfolio, s.oracle, s.log)
	if err := s.persist(ctx); err != nil {
		s.log.Error().Err(err).Msg("Failed to persist refreshed positions")
	}
	return result
}

// ApplyRecommendation records an issued recommendation's new target allocation.
// Shares are left untouched: nothing is executed.
func (s *Service) ApplyRecommendation(ctx context.Context, rec domain.Recommendation) error {
	if rec.Action == domain.ActionHold {
		return nil
	}
	if err := s.portfolio.SetTargetAllocation(rec.Ticker, rec.TargetAllocation); err != nil {
		return fmt.Errorf("failed to apply recommendation for %s: %w", rec.Ticker, err)
	}

	s.log.Info().
		Str("ticker", rec.Ticker).
		Str("action", string(rec.Action)).
		Float64("target_allocation", rec.TargetAllocation).
		Msg("Target allocation updated")

	return s.persist(ctx)
}

// Save persists the current state (used after first load to store seeds).
func (s *Service) Save(ctx context.Context) error {
	return s.persist(ctx)
}

func (s *Service) persist(ctx context.Context) error {
	snap := s.portfolio.Snapshot()

	positions := make([]Position, 0, len(snap.Positions))
	for _, t := range snap.Tickers() {
		positions = append(positions, snap.Positions[t])
	}
	if err := s.store.SaveAll(ctx, positions); err != nil {
		return err
	}

	if !snap.LastRefreshed.IsZero() {
		if err := s.store.SetMeta(ctx, metaLastRefreshed, snap.LastRefreshed.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return nil
}
