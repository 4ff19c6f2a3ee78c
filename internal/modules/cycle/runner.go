// Package cycle runs the ingestion and recommendation cycle.
package cycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/capitol/internal/domain"
	"github.com/aristath/capitol/internal/events"
	"github.com/aristath/capitol/internal/modules/ingestion"
	"github.com/aristath/capitol/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// ErrCycleInProgress is returned by RunCycle while another cycle is running.
var ErrCycleInProgress = errors.New("cycle already in progress")

const moduleName = "cycle"

// WorkTypeRun is the work queue ID of a full cycle.
const WorkTypeRun = "cycle:run"

// Ingester filters, deduplicates and persists candidates.
type Ingester interface {
	Ingest(ctx context.Context, candidates []domain.TradeRecord) ([]domain.TradeRecord, ingestion.Stats)
}

// PortfolioService is the portfolio as the cycle uses it.
type PortfolioService interface {
	Refresh(ctx context.Context) portfolio.RefreshResult
	Snapshot() portfolio.Snapshot
	ApplyRecommendation(ctx context.Context, rec domain.Recommendation) error
}

// Recommender turns one trade and a portfolio snapshot into a recommendation.
type Recommender interface {
	ComputeAdjustment(ticker string, kind domain.TransactionKind, actor string, amount float64, snap portfolio.Snapshot) domain.Recommendation
}

// Emitter publishes cycle events.
type Emitter interface {
	EmitTyped(module string, data events.EventData)
	EmitError(module string, err error, context map[string]interface{})
}

// Result summarizes one cycle.
type Result struct {
	StartedAt       time.Time               `json:"started_at"`
	FinishedAt      time.Time               `json:"finished_at"`
	Ingestion       ingestion.Stats         `json:"ingestion"`
	Recommendations []domain.Recommendation `json:"recommendations"`
	Issued          int                     `json:"issued"`
	Skipped         int                     `json:"skipped"`
	// Interrupted is set when ctx was cancelled after ingestion; later trades were
	// recommended on unrefreshed prices.
	Interrupted     bool                    `json:"interrupted"`
}

// Runner executes cycles. At most one cycle runs at a time.
type Runner struct {
	sources    []domain.TradeSource
	ingester   Ingester
	portfolio  PortfolioService
	engine     Recommender
	store      domain.RecommendationStore
	dispatcher domain.Dispatcher
	emitter    Emitter
	log        zerolog.Logger

	running sync.Mutex
	busy    atomic.Bool

	mu   sync.RWMutex
	last *Result
}

// NewRunner creates a cycle runner. emitter may be nil.
func NewRunner(
	sources []domain.TradeSource,
	ingester Ingester,
	portfolioService PortfolioService,
	engine Recommender,
	store domain.RecommendationStore,
	dispatcher domain.Dispatcher,
	emitter Emitter,
	log zerolog.Logger,
) *Runner {
	return &Runner{
		sources:    sources,
		ingester:   ingester,
		portfolio:  portfolioService,
		engine:     engine,
		store:      store,
		dispatcher: dispatcher,
		emitter:    emitter,
		log:        log.With().Str("service", "cycle").Logger(),
	}
}

// RunCycle collects candidates from every source, ingests them, and produces one
// recommendation per accepted trade. Trades are processed in order; each sees the
// portfolio after the previous trade's bookkeeping. A recommendation that cannot be
// persisted is skipped and the cycle continues. Cancelling ctx stops collection,
// ingestion and price refreshes, never the handling of an already recorded trade.
func (r *Runner) RunCycle(ctx context.Context) (*Result, error) {
	if !r.running.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer r.running.Unlock()
	r.busy.Store(true)
	defer r.busy.Store(false)

	result := &Result{StartedAt: time.Now()}
	r.emit(&events.CycleStartedData{Trigger: triggerFrom(ctx)})
	r.log.Info().Int("sources", len(r.sources)).Msg("Cycle started")

	candidates := ingestion.Collect(ctx, r.sources, r.log)
	accepted, stats := r.ingester.Ingest(ctx, candidates)
	result.Ingestion = stats

	for _, trade := range accepted {
		r.emit(&events.TradeAcceptedData{
			Actor:  trade.Actor,
			Ticker: trade.Ticker,
			Kind:   string(trade.Kind),
			Amount: trade.Amount,
			Origin: trade.Origin,
		})
	}

	// Accepted trades are already in the ledger and will be deduplicated from now on, so
	// each one is carried through to a recommendation even if ctx is cancelled. Only the
	// price refresh still honours ctx.
	persistCtx := context.WithoutCancel(ctx)
	for i, trade := range accepted {
		if err := ctx.Err(); err != nil && !result.Interrupted {
			result.Interrupted = true
			r.log.Warn().Err(err).Int("remaining", len(accepted)-i).Msg("Cycle cancelled; finishing recorded trades without refreshing prices")
		}
		r.processTrade(ctx, persistCtx, trade, result)
	}

	result.FinishedAt = time.Now()
	r.emit(&events.CycleCompletedData{
		Candidates:      stats.Candidates,
		Accepted:        stats.Accepted,
		Recommendations: len(result.Recommendations),
		Issued:          result.Issued,
		DurationMs:      result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	})

	r.log.Info().
		Int("candidates", stats.Candidates).
		Int("accepted", stats.Accepted).
		Int("recommendations", len(result.Recommendations)).
		Int("issued", result.Issued).
		Int("skipped", result.Skipped).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("Cycle completed")

	r.mu.Lock()
	r.last = result
	r.mu.Unlock()

	return result, nil
}

// processTrade refreshes prices under ctx and persists, dispatches and books the
// recommendation under persistCtx.
func (r *Runner) processTrade(ctx, persistCtx context.Context, trade domain.TradeRecord, result *Result) {
	refreshed := r.portfolio.Refresh(ctx)
	snap := r.portfolio.Snapshot()
	r.emit(&events.PricesRefreshedData{
		Updated:     refreshed.Updated,
		Unavailable: refreshed.Unavailable,
		TotalValue:  snap.TotalValue,
	})

	rec := r.engine.ComputeAdjustment(trade.Ticker, trade.Kind, trade.Actor, trade.Amount, snap)
	rec.TradeID = trade.ID
	issued := rec.ShouldIssue()

	if err := r.store.Insert(persistCtx, &rec, issued); err != nil {
		result.Skipped++
		r.log.Error().Err(err).Str("trade_id", trade.ID).Str("ticker", trade.Ticker).Msg("Failed to persist recommendation; skipping trade")
		r.emitError(err, map[string]interface{}{"trade_id": trade.ID, "ticker": trade.Ticker})
		return
	}
	result.Recommendations = append(result.Recommendations, rec)

	if !issued {
		r.log.Debug().
			Str("ticker", rec.Ticker).
			Str("action", string(rec.Action)).
			Float64("confidence", rec.Confidence).
			Msg("Recommendation recorded below dispatch threshold")
		return
	}

	result.Issued++
	r.dispatcher.Send(persistCtx, rec)
	r.emit(&events.RecommendationIssuedData{
		Ticker:     rec.Ticker,
		Action:     string(rec.Action),
		Amount:     rec.Amount,
		Shares:     rec.Shares,
		Confidence: rec.Confidence,
		Actor:      rec.Actor,
	})

	previous := snap.Positions[rec.Ticker].TargetAllocation
	if err := r.portfolio.ApplyRecommendation(persistCtx, rec); err != nil {
		r.log.Error().Err(err).Str("ticker", rec.Ticker).Msg("Failed to record target allocation")
		r.emitError(err, map[string]interface{}{"ticker": rec.Ticker})
		return
	}
	r.emit(&events.AllocationChangedData{Ticker: rec.Ticker, From: previous, To: rec.TargetAllocation})
}

// Busy reports whether a cycle is running.
func (r *Runner) Busy() bool {
	return r.busy.Load()
}

// LastResult returns the most recent completed cycle, or nil.
func (r *Runner) LastResult() *Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

func (r *Runner) emit(data events.EventData) {
	if r.emitter != nil {
		r.emitter.EmitTyped(moduleName, data)
	}
}

func (r *Runner) emitError(err error, context map[string]interface{}) {
	if r.emitter != nil {
		r.emitter.EmitError(moduleName, err, context)
	}
}

type triggerKey struct{}

// WithTrigger labels the cycles run under ctx (scheduler, api, cli).
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

func triggerFrom(ctx context.Context) string {
	if v, ok := ctx.Value(triggerKey{}).(string); ok {
		return v
	}
	return "unknown"
}
