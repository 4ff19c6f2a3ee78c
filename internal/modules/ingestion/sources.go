package ingestion

import (
	"context"
	"sync"

	"github.com/aristath/capitol/internal/domain"
	"github.com/aristath/capitol/internal/modules/trading"
	"github.com/rs/zerolog"
)

// FeedFetcher is the disclosure feed client as seen by its source adapter.
type FeedFetcher interface {
	FetchTrades(ctx context.Context) ([]domain.TradeRecord, error)
}

// PendingLister lists unconsumed manual backlog entries.
type PendingLister interface {
	Pending(ctx context.Context) ([]trading.ManualTrade, error)
}

// DisclosureSource adapts the public disclosure feed.
type DisclosureSource struct {
	feed FeedFetcher
	log  zerolog.Logger
}

// NewDisclosureSource creates the feed adapter.
func NewDisclosureSource(feed FeedFetcher, log zerolog.Logger) *DisclosureSource {
	return &DisclosureSource{
		feed: feed,
		log:  log.With().Str("source", "disclosure_feed").Logger(),
	}
}

// Name implements domain.TradeSource.
func (s *DisclosureSource) Name() string { return "disclosure_feed" }

// Fetch implements domain.TradeSource. Feed failures yield an empty result.
func (s *DisclosureSource) Fetch(ctx context.Context) []domain.TradeRecord {
	trades, err := s.feed.FetchTrades(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Disclosure feed fetch failed")
		return nil
	}
	return trades
}

// ManualSource adapts the manual-entry backlog.
type ManualSource struct {
	backlog PendingLister
	log     zerolog.Logger
}

// NewManualSource creates the backlog adapter.
func NewManualSource(backlog PendingLister, log zerolog.Logger) *ManualSource {
	return &ManualSource{
		backlog: backlog,
		log:     log.With().Str("source", "manual").Logger(),
	}
}

// Name implements domain.TradeSource.
func (s *ManualSource) Name() string { return "manual" }

// Fetch implements domain.TradeSource. Entries that no longer validate are dropped.
func (s *ManualSource) Fetch(ctx context.Context) []domain.TradeRecord {
	pending, err := s.backlog.Pending(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Manual backlog read failed")
		return nil
	}

	out := make([]domain.TradeRecord, 0, len(pending))
	for _, m := range pending {
		if err := m.Validate(); err != nil {
			s.log.Warn().Err(err).Int64("backlog_id", m.ID).Msg("Skipping invalid backlog entry")
			continue
		}
		out = append(out, m.ToRecord())
	}
	return out
}

// Collect fetches every source concurrently and concatenates the results in source order.
func Collect(ctx context.Context, sources []domain.TradeSource, log zerolog.Logger) []domain.TradeRecord {
	results := make([][]domain.TradeRecord, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src domain.TradeSource) {
			defer wg.Done()
			results[i] = src.Fetch(ctx)
		}(i, src)
	}
	wg.Wait()

	var all []domain.TradeRecord
	for i, recs := range results {
		log.Debug().Str("source", sources[i].Name()).Int("records", len(recs)).Msg("Source fetched")
		all = append(all, recs...)
	}
	return all
}
