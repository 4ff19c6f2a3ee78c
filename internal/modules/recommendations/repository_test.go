package recommendations

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

func TestRepository_InsertAndGetRecent(t *testing.T) {
	db := testingutil.NewTestDB(t, "ledger")
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	buy := &domain.Recommendation{Ticker: "NVDA", Action: domain.ActionBuy, Price: 100, Amount: 150, Shares: 1.5,
		Confidence: 0.9, PreviousAllocation: 0.2, TargetAllocation: 0.35, Rationale: "buy", Actor: "Nancy Pelosi",
		TradeID: "trade-1", CreatedAt: base}
	weak := &domain.Recommendation{Ticker: "MSFT", Action: domain.ActionSell, Confidence: 0.48,
		TargetAllocation: 0.27, Rationale: "weak sell", CreatedAt: base.Add(time.Minute)}
	hold := &domain.Recommendation{Ticker: "NVDA", Action: domain.ActionHold, Rationale: "hold",
		TargetAllocation: 0.2, CreatedAt: base.Add(2 * time.Minute)}

	require.NoError(t, repo.Insert(ctx, buy, true))
	require.NoError(t, repo.Insert(ctx, weak, false))
	require.NoError(t, repo.Insert(ctx, hold, false))
	assert.NotEmpty(t, buy.ID)
	assert.True(t, buy.Issued)

	all, err := repo.GetRecent(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.ActionHold, all[0].Action)
	assert.Equal(t, "", all[0].Actor)
	assert.Equal(t, "trade-1", all[2].TradeID)
	assert.Equal(t, 0.35, all[2].TargetAllocation)

	issued, err := repo.GetRecent(ctx, Filter{IssuedOnly: true})
	require.NoError(t, err)
	require.Len(t, issued, 1)
	assert.Equal(t, buy.ID, issued[0].ID)
	assert.True(t, issued[0].Issued)

	nvda, err := repo.GetRecent(ctx, Filter{Ticker: "NVDA", Limit: 1})
	require.NoError(t, err)
	require.Len(t, nvda, 1)
	assert.Equal(t, domain.ActionHold, nvda[0].Action)
}

func TestRepository_GetStats(t *testing.T) {
	db := testingutil.NewTestDB(t, "ledger")
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.MeanConfidence)

	require.NoError(t, repo.Insert(ctx, &domain.Recommendation{Ticker: "A", Action: domain.ActionBuy, Confidence: 0.9}, true))
	require.NoError(t, repo.Insert(ctx, &domain.Recommendation{Ticker: "B", Action: domain.ActionSell, Confidence: 0.5}, false))
	require.NoError(t, repo.Insert(ctx, &domain.Recommendation{Ticker: "C", Action: domain.ActionHold}, false))

	stats, err = repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Issued)
	assert.Equal(t, 1, stats.Buys)
	assert.Equal(t, 1, stats.Sells)
	assert.Equal(t, 1, stats.Holds)
	assert.InDelta(t, 0.7, stats.MeanConfidence, 1e-9)
}
