package portfolio

import (
	"context"
	"time"

	"github.com/aristath/capitol/internal/domain"
	"github.com/rs/zerolog"
)

// RefreshResult lists which tickers were repriced and which kept their prior price.
type RefreshResult struct {
	Updated     []string `json:"updated"`
	Unavailable []string `json:"unavailable"`
}

// RefreshPrices asks the oracle for every tracked ticker, one at a time, and applies each
// available quote. A ticker whose quote is unavailable keeps its prior price and value.
// If ctx is cancelled the remaining tickers are left as they were.
func RefreshPrices(ctx context.Context, p *Portfolio, oracle domain.PriceOracle, log zerolog.Logger) RefreshResult {
	result := RefreshResult{Updated: []string{}, Unavailable: []string{}}

	for _, ticker := range p.Tickers() {
		if ctx.Err() != nil {
			result.Unavailable = append(result.Unavailable, ticker)
			continue
		}

		q := oracle.Quote(ctx, ticker)
		if !p.ApplyQuote(ticker, q) {
			log.Warn().Str("ticker", ticker).Str("reason", q.Reason).Msg("Price unavailable, keeping previous value")
			result.Unavailable = append(result.Unavailable, ticker)
			continue
		}
		result.Updated = append(result.Updated, ticker)
	}

	p.MarkRefreshed(time.Now())

	log.Info().
		Int("updated", len(result.Updated)).
		Int("unavailable", len(result.Unavailable)).
		Float64("total_value", p.TotalValue()).
		Msg("Prices refreshed")

	return result
}
