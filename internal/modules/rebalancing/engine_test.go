package rebalancing

import (
	"testing"

	"github.com/aristath/capitol/internal/domain"
	"github.com/aristath/capitol/internal/modules/portfolio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var actors = []domain.TrackedActor{
	{Name: "Nancy Pelosi", Weight: 1.0, SuccessRate: 0.72},
	{Name: "Josh Gottheimer", Weight: 0.6, SuccessRate: 0.55},
}

// snapshot builds a portfolio whose total is exactly total: the position holds value and
// cash makes up the rest.
func snapshot(ticker string, target, value, price, total float64) portfolio.Snapshot {
	shares := 0.0
	if price > 0 {
		shares = value / price
	}
	p := portfolio.New(total-value, []portfolio.Position{{
		Ticker:           ticker,
		Shares:           shares,
		TargetAllocation: target,
		CurrentPrice:     price,
		CurrentValue:     value,
	}})
	return p.Snapshot()
}

func TestComputeAdjustment_LargePurchaseByTopActor(t *testing.T) {
	e := NewEngine(actors)
	snap := snapshot("NVDA", 0.20, 200, 100, 1000)

	rec := e.ComputeAdjustment("NVDA", domain.KindPurchase, "Nancy Pelosi", 2_000_000, snap)

	assert.Equal(t, domain.ActionBuy, rec.Action)
	assert.InDelta(t, 0.9, rec.Confidence, 1e-9)
	assert.InDelta(t, 0.35, rec.TargetAllocation, 1e-9)
	assert.InDelta(t, 150, rec.Amount, 1e-9)
	assert.InDelta(t, 1.5, rec.Shares, 1e-9)
	assert.Equal(t, 100.0, rec.Price)
	assert.InDelta(t, 0.20, rec.PreviousAllocation, 1e-9)
	assert.Contains(t, rec.Rationale, "Nancy Pelosi")
	assert.Contains(t, rec.Rationale, "$2,000,000.00")
	assert.Contains(t, rec.Rationale, "from 20.0% to 35.0%")
	assert.True(t, rec.ShouldIssue())
}

func TestComputeAdjustment_SaleHitsFloor(t *testing.T) {
	e := NewEngine(actors)
	snap := snapshot("AAPL", 0.10, 100, 50, 1000)

	rec := e.ComputeAdjustment("AAPL", domain.KindSale, "Nancy Pelosi", 100_000, snap)

	assert.Equal(t, domain.ActionSell, rec.Action)
	assert.InDelta(t, 0.8, rec.Confidence, 1e-9)
	assert.InDelta(t, 0.05, rec.TargetAllocation, 1e-9)
	assert.InDelta(t, 50, rec.Amount, 1e-9)
	assert.InDelta(t, 1.0, rec.Shares, 1e-9)
	assert.Contains(t, rec.Rationale, "from 10.0% to 5.0%")
}

func TestComputeAdjustment_SmallSaleByLowWeightActorIsNotIssued(t *testing.T) {
	e := NewEngine(actors)
	snap := snapshot("MSFT", 0.30, 300, 100, 1000)

	rec := e.ComputeAdjustment("MSFT", domain.KindSale, "Josh Gottheimer", 50_000, snap)

	// impact 0.03 -> target 0.27 -> reduction 30
	assert.Equal(t, domain.ActionSell, rec.Action)
	assert.InDelta(t, 0.48, rec.Confidence, 1e-9)
	assert.False(t, rec.ShouldIssue())
}

func TestComputeAdjustment_UnknownActorUsesDefaultWeight(t *testing.T) {
	e := NewEngine(actors)
	snap := snapshot("NVDA", 0.20, 200, 100, 1000)

	rec := e.ComputeAdjustment("Someone Else", domain.KindPurchase, "Someone Else", 100_000, snap)

	assert.Equal(t, domain.ActionBuy, rec.Action)
	assert.InDelta(t, 0.45, rec.Confidence, 1e-9)
	assert.InDelta(t, 0.25, rec.TargetAllocation, 1e-9)
	assert.Equal(t, DefaultTraderWeight, e.TraderWeight("Someone Else"))
	assert.Equal(t, 1.0, e.TraderWeight("hon. nancy pelosi"))
}

func TestComputeAdjustment_NoiseFloorGivesHold(t *testing.T) {
	e := NewEngine(actors)
	snap := snapshot("NVDA", 0.20, 345, 100, 1000)

	rec := e.ComputeAdjustment("NVDA", domain.KindPurchase, "Nancy Pelosi", 2_000_000, snap)

	// additional = 350 - 345 = 5
	assert.Equal(t, domain.ActionHold, rec.Action)
	assert.Zero(t, rec.Amount)
	assert.False(t, rec.ShouldIssue())
	assert.Contains(t, rec.Rationale, "Nancy Pelosi")
}

func TestComputeAdjustment_UnpricedUsesFallbackPrice(t *testing.T) {
	e := NewEngine(actors)
	snap := snapshot("NVDA", 0.20, 200, 0, 1000)

	rec := e.ComputeAdjustment("NVDA", domain.KindPurchase, "Nancy Pelosi", 2_000_000, snap)

	require.Equal(t, domain.ActionBuy, rec.Action)
	assert.InDelta(t, 1.5, rec.Shares, 1e-9)
	assert.Zero(t, rec.Price)
}

func TestComputeAdjustment_UnknownKindHoldsWithZeroConfidence(t *testing.T) {
	e := NewEngine(actors)
	snap := snapshot("NVDA", 0.20, 200, 100, 1000)

	rec := e.ComputeAdjustment("NVDA", domain.KindUnknown, "Nancy Pelosi", 2_000_000, snap)

	assert.Equal(t, domain.ActionHold, rec.Action)
	assert.Zero(t, rec.Confidence)
	assert.Equal(t, 0.20, rec.TargetAllocation)
}

func TestComputeAdjustment_UntrackedTickerHolds(t *testing.T) {
	e := NewEngine(actors)
	snap := snapshot("NVDA", 0.20, 200, 100, 1000)

	rec := e.ComputeAdjustment("TSLA", domain.KindPurchase, "Nancy Pelosi", 2_000_000, snap)

	assert.Equal(t, domain.ActionHold, rec.Action)
	assert.Zero(t, rec.Confidence)
}

func TestComputeAdjustment_EmptyPortfolio(t *testing.T) {
	e := NewEngine(actors)
	snap := snapshot("NVDA", 0.20, 0, 0, 0)

	rec := e.ComputeAdjustment("NVDA", domain.KindPurchase, "Nancy Pelosi", 2_000_000, snap)
	assert.Equal(t, domain.ActionHold, rec.Action)
	assert.Zero(t, rec.PreviousAllocation)
}

func TestComputeAdjustment_DoesNotMutateSnapshot(t *testing.T) {
	e := NewEngine(actors)
	snap := snapshot("NVDA", 0.20, 200, 100, 1000)
	before := snap.Positions["NVDA"]

	_ = e.ComputeAdjustment("NVDA", domain.KindPurchase, "Nancy Pelosi", 2_000_000, snap)
	assert.Equal(t, before, snap.Positions["NVDA"])
}

func TestComputeAdjustment_TargetStaysWithinBounds(t *testing.T) {
	e := NewEngine(actors)
	amounts := []float64{0, 1000, 15_000, 250_000, 1_000_000, 50_000_000}
	targets := []float64{0.01, 0.05, 0.2, 0.35, 0.6, 1.0}

	for _, amount := range amounts {
		for _, target := range targets {
			snap := snapshot("NVDA", target, 300, 100, 1000)

			buy := e.ComputeAdjustment("NVDA", domain.KindPurchase, "Nancy Pelosi", amount, snap)
			assert.LessOrEqual(t, buy.TargetAllocation, MaxAllocation+1e-12)
			if target <= MaxAllocation {
				assert.GreaterOrEqual(t, buy.TargetAllocation, target-1e-12)
			}

			sell := e.ComputeAdjustment("NVDA", domain.KindSale, "Nancy Pelosi", amount, snap)
			assert.GreaterOrEqual(t, sell.TargetAllocation, MinAllocation-1e-12)
			if target >= MinAllocation {
				assert.LessOrEqual(t, sell.TargetAllocation, target+1e-12)
			}
		}
	}
}

func TestTradeImpact(t *testing.T) {
	assert.InDelta(t, 0.015, TradeImpact(15_000, 1.0), 1e-12)
	assert.InDelta(t, 0.15, TradeImpact(2_000_000, 1.0), 1e-12)
	assert.InDelta(t, 0.05, TradeImpact(100_000, 0.5), 1e-12)
	assert.Zero(t, TradeImpact(1_000_000, 0))
}
