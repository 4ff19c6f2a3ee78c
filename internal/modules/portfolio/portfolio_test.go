package portfolio

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/aristath/capitol/internal/domain"
	testingutil "github.com/aristath/capitol/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumInvariant(t *testing.T, s Snapshot) {
	t.Helper()
	sum := s.Cash
	for _, p := range s.Positions {
		sum += p.CurrentValue
	}
	assert.InDelta(t, sum, s.TotalValue, 1e-9)
}

func TestNew_ComputesTotal(t *testing.T) {
	p := New(100, []Position{
		{Ticker: "NVDA", TargetAllocation: 0.2, CurrentValue: 300},
		{Ticker: "AAPL", TargetAllocation: 0.2, CurrentValue: 600},
	})

	snap := p.Snapshot()
	assert.Equal(t, 1000.0, snap.TotalValue)
	assert.Equal(t, []string{"AAPL", "NVDA"}, p.Tickers())
	assert.InDelta(t, 0.3, snap.Allocation("NVDA"), 1e-12)
	assert.Zero(t, snap.Allocation("TSLA"))
	sumInvariant(t, snap)
}

func TestAllocation_EmptyPortfolio(t *testing.T) {
	p := New(0, []Position{{Ticker: "NVDA", TargetAllocation: 0.2}})
	assert.Zero(t, p.Snapshot().Allocation("NVDA"))
}

func TestApplyQuote_BootstrapsSharesOnce(t *testing.T) {
	p := New(0, []Position{{Ticker: "NVDA", TargetAllocation: 0.2, CurrentValue: 1000}})
	now := time.Now()

	require.True(t, p.ApplyQuote("NVDA", domain.QuoteOf(100, now)))
	pos, _ := p.Snapshot().Position("NVDA")
	assert.Equal(t, 10.0, pos.Shares)
	assert.Equal(t, 1000.0, pos.CurrentValue)
	assert.Equal(t, 100.0, pos.CurrentPrice)

	// second quote values existing shares, no re-seeding
	require.True(t, p.ApplyQuote("NVDA", domain.QuoteOf(120, now)))
	pos, _ = p.Snapshot().Position("NVDA")
	assert.Equal(t, 10.0, pos.Shares)
	assert.Equal(t, 1200.0, pos.CurrentValue)
	assert.Equal(t, 1200.0, p.TotalValue())
}

func TestApplyQuote_ZeroValueZeroShares(t *testing.T) {
	p := New(50, []Position{{Ticker: "NVDA", TargetAllocation: 0.2}})
	require.True(t, p.ApplyQuote("NVDA", domain.QuoteOf(100, time.Now())))

	pos, _ := p.Snapshot().Position("NVDA")
	assert.Zero(t, pos.Shares)
	assert.Zero(t, pos.CurrentValue)
	assert.Equal(t, 100.0, pos.CurrentPrice)
	assert.Equal(t, 50.0, p.TotalValue())
}

func TestApplyQuote_UnavailableOrUnknownIsNoop(t *testing.T) {
	p := New(0, []Position{{Ticker: "NVDA", TargetAllocation: 0.2, Shares: 3, CurrentPrice: 50, CurrentValue: 150}})

	assert.False(t, p.ApplyQuote("NVDA", domain.Unavailable("timeout")))
	assert.False(t, p.ApplyQuote("TSLA", domain.QuoteOf(10, time.Now())))

	pos, _ := p.Snapshot().Position("NVDA")
	assert.Equal(t, 150.0, pos.CurrentValue)
	assert.Equal(t, 50.0, pos.CurrentPrice)
}

func TestSetTargetAllocation(t *testing.T) {
	p := New(0, []Position{{Ticker: "NVDA", TargetAllocation: 0.2}})

	require.NoError(t, p.SetTargetAllocation("NVDA", 0.35))
	pos, _ := p.Snapshot().Position("NVDA")
	assert.Equal(t, 0.35, pos.TargetAllocation)

	assert.Error(t, p.SetTargetAllocation("NVDA", 0))
	assert.Error(t, p.SetTargetAllocation("NVDA", 1.2))
	assert.Error(t, p.SetTargetAllocation("TSLA", 0.1))
}

func TestRefreshPrices_StaleButConsistent(t *testing.T) {
	p := New(100, []Position{
		{Ticker: "NVDA", TargetAllocation: 0.2, Shares: 3, CurrentPrice: 50, CurrentValue: 150},
		{Ticker: "AAPL", TargetAllocation: 0.2, CurrentValue: 500},
	})
	oracle := testingutil.NewMockPriceOracle()
	oracle.SetUnavailable("NVDA")
	oracle.SetPrice("AAPL", 250)

	result := RefreshPrices(context.Background(), p, oracle, zerolog.Nop())

	assert.Equal(t, []string{"AAPL"}, result.Updated)
	assert.Equal(t, []string{"NVDA"}, result.Unavailable)
	assert.Equal(t, []string{"AAPL", "NVDA"}, oracle.Calls())

	snap := p.Snapshot()
	nvda, _ := snap.Position("NVDA")
	assert.Equal(t, 150.0, nvda.CurrentValue)
	aapl, _ := snap.Position("AAPL")
	assert.Equal(t, 2.0, aapl.Shares)
	assert.Equal(t, 750.0, snap.TotalValue)
	assert.False(t, snap.LastRefreshed.IsZero())
	sumInvariant(t, snap)
}

func TestRefreshPrices_CancelledContextLeavesRemainingStale(t *testing.T) {
	p := New(0, []Position{{Ticker: "NVDA", TargetAllocation: 0.2, CurrentValue: 100}})
	oracle := testingutil.NewMockPriceOracle()
	oracle.SetPrice("NVDA", 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := RefreshPrices(ctx, p, oracle, zerolog.Nop())
	assert.Equal(t, []string{"NVDA"}, result.Unavailable)
	assert.Empty(t, oracle.Calls())
}

func TestPortfolio_ReadersNeverSeeDivergentTotal(t *testing.T) {
	seeds := make([]Position, 0, 20)
	for i := 0; i < 20; i++ {
		seeds = append(seeds, Position{Ticker: string(rune('A' + i)), TargetAllocation: 0.05, CurrentValue: 100})
	}
	p := New(250, seeds)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		price := 1.0
		for {
			select {
			case <-stop:
				return
			default:
			}
			for _, ticker := range p.Tickers() {
				p.ApplyQuote(ticker, domain.QuoteOf(price, time.Now()))
			}
			price += 0.5
		}
	}()

	for i := 0; i < 500; i++ {
		snap := p.Snapshot()
		sum := snap.Cash
		for _, pos := range snap.Positions {
			sum += pos.CurrentValue
		}
		if math.Abs(sum-snap.TotalValue) > 1e-6 {
			t.Fatalf("total %.6f diverges from sum %.6f", snap.TotalValue, sum)
		}
	}

	close(stop)
	wg.Wait()
}
