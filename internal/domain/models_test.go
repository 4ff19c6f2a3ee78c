package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTransactionKind(t *testing.T) {
	tests := []struct {
		in   string
		want TransactionKind
	}{
		{"Purchase", KindPurchase},
		{"purchase", KindPurchase},
		{"Buy", KindPurchase},
		{"P", KindPurchase},
		{"Sale", KindSale},
		{"Sell", KindSale},
		{"sale_partial", KindSale},
		{"sale_full", KindSale},
		{"Sale (Full)", KindSale},
		{"exchange", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTransactionKind(tt.in))
		})
	}
}

func TestNormalizeActorName(t *testing.T) {
	assert.Equal(t, "Nancy Pelosi", NormalizeActorName("Hon. Nancy Pelosi"))
	assert.Equal(t, "Nancy Pelosi", NormalizeActorName("  Nancy   Pelosi "))
	assert.Equal(t, "Tommy Tuberville", NormalizeActorName("Sen. Tommy Tuberville"))
	assert.Equal(t, "Dan Crenshaw", NormalizeActorName("Rep. Dan Crenshaw"))
	assert.Equal(t, "Honey Badger", NormalizeActorName("Honey Badger"))
}

func TestNormalizeTicker(t *testing.T) {
	assert.Equal(t, "NVDA", NormalizeTicker(" nvda "))
	assert.Equal(t, "AAPL", NormalizeTicker("$AAPL"))
	assert.Equal(t, "", NormalizeTicker("--"))
	assert.Equal(t, "", NormalizeTicker("N/A"))
}

func TestTradeIdentity_IgnoresDisclosureMetadataAndKind(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	a := TradeRecord{Actor: "Nancy Pelosi", Ticker: "NVDA", Kind: KindPurchase, Amount: 15000,
		TradeDate: date, DisclosureDate: date.AddDate(0, 0, 10), Origin: OriginDisclosureFeed}
	b := TradeRecord{Actor: "Nancy Pelosi", Ticker: "NVDA", Kind: KindSale, Amount: 15000.001,
		TradeDate: date.Add(5 * time.Hour), DisclosureDate: date.AddDate(0, 0, 30), Origin: OriginManual}

	assert.Equal(t, a.Identity(), b.Identity())

	b.Amount = 15000.5
	assert.NotEqual(t, a.Identity(), b.Identity())
}

func TestAmountCents(t *testing.T) {
	assert.Equal(t, int64(100101), AmountToCents(1001.01))
	assert.Equal(t, int64(200000000), AmountToCents(2_000_000))
	assert.Equal(t, 1001.01, CentsToAmount(100101))
}

func TestRecommendation_ShouldIssue(t *testing.T) {
	tests := []struct {
		name       string
		action     Action
		confidence float64
		want       bool
	}{
		{"confident buy", ActionBuy, 0.9, true},
		{"confident sell", ActionSell, 0.8, true},
		{"threshold is exclusive", ActionBuy, 0.6, false},
		{"weak sell", ActionSell, 0.4, false},
		{"hold never issues", ActionHold, 1.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Recommendation{Action: tt.action, Confidence: tt.confidence}
			assert.Equal(t, tt.want, rec.ShouldIssue())
		})
	}
}

func TestQuote(t *testing.T) {
	now := time.Now()

	q := QuoteOf(123.45, now)
	assert.True(t, q.Available())
	assert.Equal(t, 123.45, q.Price)
	assert.Equal(t, now, q.AsOf)

	assert.False(t, QuoteOf(0, now).Available())
	assert.False(t, QuoteOf(-1, now).Available())

	u := Unavailable("rate limited")
	assert.False(t, u.Available())
	assert.Equal(t, "rate limited", u.Reason)
	assert.Zero(t, u.Price)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$2,000,000.00", FormatUSD(2_000_000))
	assert.Equal(t, "$1,001.50", FormatUSD(1001.5))
	assert.Equal(t, "35.0%", FormatPercent(0.35))
	assert.Equal(t, "12.3%", FormatPercent(0.1234))
	assert.Equal(t, "0.0%", FormatPercent(0))
}
