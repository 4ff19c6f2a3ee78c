// Package rebalancing turns one accepted trade into a BUY, SELL or HOLD recommendation.
package rebalancing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aristath/capitol/internal/domain"
	"github.com/aristath/capitol/internal/modules/portfolio"
)

const (
	// DefaultTraderWeight applies to actors missing from the tracked set.
	DefaultTraderWeight = 0.5
	// ImpactScale normalizes disclosed dollar amounts to millions.
	ImpactScale = 1_000_000.0
	// MaxTradeImpact caps the allocation swing a single trade can cause.
	MaxTradeImpact = 0.15
	// MaxAllocation is the ceiling a purchase can raise a target to.
	MaxAllocation = 0.35
	// MinAllocation is the floor a sale can lower a target to.
	MinAllocation = 0.05
	// NoiseFloor is the smallest dollar adjustment worth recommending.
	NoiseFloor = 10.0
	// FallbackPrice is used for share counts when a ticker has never been priced.
	FallbackPrice = 100.0

	buyConfidenceFactor  = 0.9
	sellConfidenceFactor = 0.8
)

// Engine computes recommendations. It holds only the immutable actor table and never
// mutates the portfolio it is given.
type Engine struct {
	actors map[string]domain.TrackedActor
	now    func() time.Time
}

// NewEngine creates an engine for the tracked actors
func NewEngine(actors []domain.TrackedActor) *Engine {
	e := &Engine{
		actors: make(map[string]domain.TrackedActor, len(actors)),
		now:    time.Now,
	}
	for _, a := range actors {
		e.actors[strings.ToLower(domain.NormalizeActorName(a.Name))] = a
	}
	return e
}

// TraderWeight returns the actor's weight, or DefaultTraderWeight when untracked.
func (e *Engine) TraderWeight(actor string) float64 {
	if a, ok := e.actors[strings.ToLower(domain.NormalizeActorName(actor))]; ok {
		return a.Weight
	}
	return DefaultTraderWeight
}

// TradeImpact is the allocation shift a disclosed trade justifies.
func TradeImpact(amount, traderWeight float64) float64 {
	return math.Min(amount/ImpactScale*traderWeight, MaxTradeImpact)
}

// ComputeAdjustment maps a disclosed trade onto the portfolio. A purchase raises the
// ticker's target (capped at MaxAllocation) and recommends buying up to it; a sale lowers
// it (floored at MinAllocation) and recommends selling down to it. Adjustments at or below
// NoiseFloor dollars become HOLD. Unknown kinds and untracked tickers yield HOLD with zero
// confidence.
func (e *Engine) ComputeAdjustment(ticker string, kind domain.TransactionKind, actor string, amount float64, snap portfolio.Snapshot) domain.Recommendation {
	rec := domain.Recommendation{
		Ticker:    ticker,
		Action:    domain.ActionHold,
		Actor:     actor,
		CreatedAt: e.now(),
	}

	pos, ok := snap.Position(ticker)
	if !ok {
		rec.Rationale = fmt.Sprintf("%s is not a tracked instrument; no adjustment.", ticker)
		return rec
	}

	weight := e.TraderWeight(actor)
	impact := TradeImpact(amount, weight)
	currentAllocation := snap.Allocation(ticker)

	rec.Price = pos.CurrentPrice
	rec.PreviousAllocation = currentAllocation
	rec.TargetAllocation = pos.TargetAllocation

	switch kind {
	case domain.KindPurchase:
		newTarget := math.Min(pos.TargetAllocation+impact, MaxAllocation)
		additional := newTarget*snap.TotalValue - pos.CurrentValue
		rec.TargetAllocation = newTarget

		if additional > NoiseFloor {
			rec.Action = domain.ActionBuy
			rec.Amount = additional
			rec.Shares = additional / sharePrice(pos.CurrentPrice)
			rec.Confidence = weight * buyConfidenceFactor
			rec.Rationale = fmt.Sprintf("%s disclosed a purchase of %s in %s. Raising allocation from %s to %s: buy %s (%.4f shares).",
				actor, domain.FormatUSD(amount), ticker,
				domain.FormatPercent(currentAllocation), domain.FormatPercent(newTarget),
				domain.FormatUSD(additional), rec.Shares)
			return rec
		}

		rec.Rationale = fmt.Sprintf("%s disclosed a purchase of %s in %s. Allocation from %s to %s needs no trade above %s.",
			actor, domain.FormatUSD(amount), ticker,
			domain.FormatPercent(currentAllocation), domain.FormatPercent(newTarget), domain.FormatUSD(NoiseFloor))

	case domain.KindSale:
		newTarget := math.Max(pos.TargetAllocation-impact, MinAllocation)
		reduction := pos.CurrentValue - newTarget*snap.TotalValue
		rec.TargetAllocation = newTarget

		if reduction > NoiseFloor {
			rec.Action = domain.ActionSell
			rec.Amount = reduction
			rec.Shares = reduction / sharePrice(pos.CurrentPrice)
			rec.Confidence = weight * sellConfidenceFactor
			rec.Rationale = fmt.Sprintf("%s disclosed a sale of %s in %s. Lowering allocation from %s to %s: sell %s (%.4f shares).",
				actor, domain.FormatUSD(amount), ticker,
				domain.FormatPercent(currentAllocation), domain.FormatPercent(newTarget),
				domain.FormatUSD(reduction), rec.Shares)
			return rec
		}

		rec.Rationale = fmt.Sprintf("%s disclosed a sale of %s in %s. Allocation from %s to %s needs no trade above %s.",
			actor, domain.FormatUSD(amount), ticker,
			domain.FormatPercent(currentAllocation), domain.FormatPercent(newTarget), domain.FormatUSD(NoiseFloor))

	default:
		rec.Rationale = fmt.Sprintf("%s disclosed a %s transaction of %s in %s with no clear direction; allocation stays at %s.",
			actor, strings.ToLower(string(kind)), domain.FormatUSD(amount), ticker, domain.FormatPercent(currentAllocation))
	}

	return rec
}

func sharePrice(price float64) float64 {
	if price > 0 {
		return price
	}
	return FallbackPrice
}
