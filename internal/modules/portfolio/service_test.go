package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/capitol/internal/domain"
	testingutil "github.com/aristath/capitol/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *PositionRepository {
	db := testingutil.NewTestDB(t, "portfolio")
	return NewPositionRepository(db.Conn(), zerolog.Nop())
}

func TestPositionRepository_SaveAndLoad(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	asOf := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveAll(ctx, []Position{
		{Ticker: "NVDA", Shares: 2, TargetAllocation: 0.2, CurrentPrice: 100, CurrentValue: 200, PriceAsOf: asOf},
		{Ticker: "AAPL", TargetAllocation: 0.15, CurrentValue: 1500},
	}))
	require.NoError(t, repo.SaveAll(ctx, []Position{
		{Ticker: "NVDA", Shares: 2, TargetAllocation: 0.3, CurrentPrice: 110, CurrentValue: 220, PriceAsOf: asOf},
	}))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 0.3, all["NVDA"].TargetAllocation)
	assert.Equal(t, 220.0, all["NVDA"].CurrentValue)
	assert.True(t, asOf.Equal(all["NVDA"].PriceAsOf))
	assert.True(t, all["AAPL"].PriceAsOf.IsZero())

	v, err := repo.GetMeta(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)
	require.NoError(t, repo.SetMeta(ctx, "k", "v1"))
	require.NoError(t, repo.SetMeta(ctx, "k", "v2"))
	v, err = repo.GetMeta(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestLoad_PrefersStoredStateForConfiguredTickers(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveAll(ctx, []Position{
		{Ticker: "NVDA", Shares: 4, TargetAllocation: 0.3, CurrentPrice: 100, CurrentValue: 400},
		{Ticker: "GONE", Shares: 1, TargetAllocation: 0.1, CurrentPrice: 10, CurrentValue: 10},
	}))

	p, err := Load(ctx, 100, []Position{
		{Ticker: "NVDA", TargetAllocation: 0.2, CurrentValue: 1000},
		{Ticker: "AAPL", TargetAllocation: 0.2, CurrentValue: 500},
	}, repo)
	require.NoError(t, err)

	snap := p.Snapshot()
	assert.Len(t, snap.Positions, 2)
	assert.Equal(t, 4.0, snap.Positions["NVDA"].Shares)
	assert.Equal(t, 500.0, snap.Positions["AAPL"].CurrentValue)
	assert.Equal(t, 1000.0, snap.TotalValue)
}

func TestService_RefreshPersists(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	oracle := testingutil.NewMockPriceOracle()
	oracle.SetPrice("NVDA", 125)

	p := New(0, []Position{{Ticker: "NVDA", TargetAllocation: 0.2, CurrentValue: 1000}})
	svc := NewService(p, oracle, repo, zerolog.Nop())

	svc.Refresh(ctx)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8.0, all["NVDA"].Shares)

	reloaded, err := Load(ctx, 0, []Position{{Ticker: "NVDA", TargetAllocation: 0.2, CurrentValue: 1000}}, repo)
	require.NoError(t, err)
	assert.False(t, reloaded.Snapshot().LastRefreshed.IsZero())
	assert.Equal(t, 1000.0, reloaded.TotalValue())
}

func TestService_ApplyRecommendation(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	p := New(0, []Position{{Ticker: "NVDA", TargetAllocation: 0.2, Shares: 5, CurrentPrice: 100, CurrentValue: 500}})
	svc := NewService(p, testingutil.NewMockPriceOracle(), repo, zerolog.Nop())

	require.NoError(t, svc.ApplyRecommendation(ctx, domain.Recommendation{
		Ticker: "NVDA", Action: domain.ActionBuy, TargetAllocation: 0.35,
	}))

	pos, _ := svc.Snapshot().Position("NVDA")
	assert.Equal(t, 0.35, pos.TargetAllocation)
	assert.Equal(t, 5.0, pos.Shares)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.35, all["NVDA"].TargetAllocation)

	// HOLD is a no-op
	require.NoError(t, svc.ApplyRecommendation(ctx, domain.Recommendation{Ticker: "NVDA", Action: domain.ActionHold, TargetAllocation: 0.1}))
	pos, _ = svc.Snapshot().Position("NVDA")
	assert.Equal(t, 0.35, pos.TargetAllocation)

	assert.Error(t, svc.ApplyRecommendation(ctx, domain.Recommendation{Ticker: "TSLA", Action: domain.ActionSell, TargetAllocation: 0.1}))
}
