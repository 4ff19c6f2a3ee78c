// Package ingestion filters, deduplicates and persists candidate trades.
package ingestion

import (
	"context"
	"strings"

	"github.com/aristath/capitol/internal/domain"
	"github.com/rs/zerolog"
)

// Stats summarizes one Ingest call.
type Stats struct {
	Candidates int `json:"candidates"`
	Untracked  int `json:"untracked"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
	Accepted   int `json:"accepted"`
}

// Pipeline turns raw candidates into accepted, persisted trades.
type Pipeline struct {
	actors  map[string]string // lower-cased name -> canonical name
	tickers map[string]bool
	store   domain.TradeStore
	backlog domain.BacklogMarker
	log     zerolog.Logger
}

// NewPipeline creates a pipeline over the tracked universe. backlog may be nil when no
// manual source is wired.
func NewPipeline(actors []domain.TrackedActor, tickers []string, store domain.TradeStore, backlog domain.BacklogMarker, log zerolog.Logger) *Pipeline {
	p := &Pipeline{
		actors:  make(map[string]string, len(actors)),
		tickers: make(map[string]bool, len(tickers)),
		store:   store,
		backlog: backlog,
		log:     log.With().Str("service", "ingestion").Logger(),
	}
	for _, a := range actors {
		name := domain.NormalizeActorName(a.Name)
		p.actors[strings.ToLower(name)] = name
	}
	for _, t := range tickers {
		p.tickers[domain.NormalizeTicker(t)] = true
	}
	return p
}

// Ingest filters candidates to tracked actors on tracked tickers, drops anything whose
// identity was persisted before, and persists the rest. Accepted trades are returned in
// the order they were encountered. Each accepted trade is persisted before Ingest returns
// it, so nothing downstream ever sees an unrecorded trade.
//
// A candidate whose lookup or insert fails is skipped and left for the next cycle.
// Manual backlog entries are marked consumed once their outcome is settled, including
// when they are filtered out or turn out to be duplicates.
func (p *Pipeline) Ingest(ctx context.Context, candidates []domain.TradeRecord) ([]domain.TradeRecord, Stats) {
	stats := Stats{Candidates: len(candidates)}
	accepted := make([]domain.TradeRecord, 0)

	for _, c := range candidates {
		trade := c
		trade.Actor = domain.NormalizeActorName(trade.Actor)
		trade.Ticker = domain.NormalizeTicker(trade.Ticker)

		canonical, tracked := p.actors[strings.ToLower(trade.Actor)]
		if !tracked || !p.tickers[trade.Ticker] {
			stats.Untracked++
			p.settle(ctx, trade)
			continue
		}
		trade.Actor = canonical

		exists, err := p.store.Exists(ctx, trade.Actor, trade.Ticker, trade.TradeDate, trade.Amount)
		if err != nil {
			stats.Failed++
			p.log.Error().Err(err).Str("actor", trade.Actor).Str("ticker", trade.Ticker).Msg("Dedup lookup failed, skipping trade")
			continue
		}
		if exists {
			stats.Duplicates++
			p.log.Debug().
				Str("actor", trade.Actor).
				Str("ticker", trade.Ticker).
				Str("trade_date", trade.TradeDate.Format(domain.DateLayout)).
				Str("origin", trade.Origin).
				Msg("Duplicate trade dropped")
			p.settle(ctx, trade)
			continue
		}

		if err := p.store.Insert(ctx, &trade); err != nil {
			stats.Failed++
			p.log.Error().Err(err).Str("actor", trade.Actor).Str("ticker", trade.Ticker).Msg("Failed to persist trade, skipping")
			continue
		}

		p.settle(ctx, trade)
		accepted = append(accepted, trade)
		stats.Accepted++
	}

	p.log.Info().
		Int("candidates", stats.Candidates).
		Int("accepted", stats.Accepted).
		Int("duplicates", stats.Duplicates).
		Int("untracked", stats.Untracked).
		Int("failed", stats.Failed).
		Msg("Ingestion complete")

	return accepted, stats
}

// settle marks a manual backlog entry consumed. Failures are logged; the entry will be
// seen again next cycle and dedup keeps that harmless.
func (p *Pipeline) settle(ctx context.Context, trade domain.TradeRecord) {
	if trade.BacklogID == 0 || p.backlog == nil {
		return
	}
	if err := p.backlog.MarkConsumed(ctx, trade.BacklogID); err != nil {
		p.log.Warn().Err(err).Int64("backlog_id", trade.BacklogID).Msg("Failed to mark manual trade consumed")
	}
}

// IsTracked reports whether the actor and ticker are both in the tracked universe.
func (p *Pipeline) IsTracked(actor, ticker string) bool {
	_, ok := p.actors[strings.ToLower(domain.NormalizeActorName(actor))]
	return ok && p.tickers[domain.NormalizeTicker(ticker)]
}
