package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/capitol/internal/domain"
	"github.com/aristath/capitol/internal/modules/trading"
	testingutil "github.com/aristath/capitol/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeed struct {
	trades []domain.TradeRecord
	err    error
}

func (s stubFeed) FetchTrades(context.Context) ([]domain.TradeRecord, error) {
	return s.trades, s.err
}

type stubBacklog struct {
	pending []trading.ManualTrade
	err     error
}

func (s stubBacklog) Pending(context.Context) ([]trading.ManualTrade, error) {
	return s.pending, s.err
}

func TestDisclosureSource(t *testing.T) {
	rec := domain.TradeRecord{Actor: "Nancy Pelosi", Ticker: "NVDA", Kind: domain.KindPurchase}

	ok := NewDisclosureSource(stubFeed{trades: []domain.TradeRecord{rec}}, zerolog.Nop())
	assert.Equal(t, "disclosure_feed", ok.Name())
	assert.Len(t, ok.Fetch(context.Background()), 1)

	failing := NewDisclosureSource(stubFeed{err: errors.New("timeout")}, zerolog.Nop())
	assert.Empty(t, failing.Fetch(context.Background()))
}

func TestManualSource(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	src := NewManualSource(stubBacklog{pending: []trading.ManualTrade{
		{ID: 1, Actor: "Rep. Dan Crenshaw", Ticker: "msft", Kind: domain.KindSale, Amount: 15001, TradeDate: day},
		{ID: 2, Actor: "", Ticker: "AAPL", Kind: domain.KindPurchase, Amount: 1, TradeDate: day},
	}}, zerolog.Nop())

	recs := src.Fetch(context.Background())
	require.Len(t, recs, 1)
	assert.Equal(t, "Dan Crenshaw", recs[0].Actor)
	assert.Equal(t, "MSFT", recs[0].Ticker)
	assert.Equal(t, domain.OriginManual, recs[0].Origin)
	assert.Equal(t, int64(1), recs[0].BacklogID)

	failing := NewManualSource(stubBacklog{err: errors.New("db locked")}, zerolog.Nop())
	assert.Empty(t, failing.Fetch(context.Background()))
}

func TestCollect_ConcatenatesInSourceOrder(t *testing.T) {
	a := testingutil.NewMockTradeSource("a", domain.TradeRecord{Ticker: "NVDA"}, domain.TradeRecord{Ticker: "MSFT"})
	b := testingutil.NewMockTradeSource("b")
	c := testingutil.NewMockTradeSource("c", domain.TradeRecord{Ticker: "AAPL"})

	all := Collect(context.Background(), []domain.TradeSource{a, b, c}, zerolog.Nop())
	require.Len(t, all, 3)
	assert.Equal(t, "NVDA", all[0].Ticker)
	assert.Equal(t, "MSFT", all[1].Ticker)
	assert.Equal(t, "AAPL", all[2].Ticker)
	assert.Equal(t, 1, a.Fetches())
	assert.Equal(t, 1, b.Fetches())
}
