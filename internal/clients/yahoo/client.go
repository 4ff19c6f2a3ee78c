// Package yahoo provides a keyless quote client backed by go-yfinance.
package yahoo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/capitol/internal/domain"
	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

const maxRetries = 2

// NativeClient looks up latest prices through the Yahoo Finance quote API.
type NativeClient struct {
	log   zerolog.Logger
	fetch func(symbol string) (float64, error)
	wait  func(attempt int) time.Duration
	now   func() time.Time
}

// NewNativeClient creates a new native Yahoo Finance client
func NewNativeClient(log zerolog.Logger) *NativeClient {
	return &NativeClient{
		log:   log.With().Str("client", "yahoo-native").Logger(),
		fetch: fetchPrice,
		wait:  func(attempt int) time.Duration { return time.Duration(1<<uint(attempt)) * time.Second },
		now:   time.Now,
	}
}

// Quote implements domain.PriceOracle.
func (c *NativeClient) Quote(ctx context.Context, symbol string) domain.Quote {
	yahooSymbol := toYahooSymbol(symbol)
	if yahooSymbol == "" {
		return domain.Unavailable("empty symbol")
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Unavailable(err.Error())
		}

		price, err := c.fetch(yahooSymbol)
		if err == nil && price > 0 {
			return domain.QuoteOf(price, c.now().UTC())
		}
		if err == nil {
			err = fmt.Errorf("no valid price for %s", yahooSymbol)
		}
		lastErr = err

		if attempt < maxRetries-1 {
			waitTime := c.wait(attempt)
			c.log.Warn().Err(err).Str("symbol", symbol).Int("attempt", attempt+1).Dur("wait", waitTime).Msg("Retrying")
			select {
			case <-ctx.Done():
				return domain.Unavailable(ctx.Err().Error())
			case <-time.After(waitTime):
			}
		}
	}

	c.log.Warn().Err(lastErr).Str("symbol", symbol).Msg("Quote unavailable")
	return domain.Unavailable(lastErr.Error())
}

func fetchPrice(symbol string) (float64, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	quote, err := t.Quote()
	if err == nil && quote != nil {
		if quote.RegularMarketPrice > 0 {
			return quote.RegularMarketPrice, nil
		}
		if quote.PostMarketPrice > 0 {
			return quote.PostMarketPrice, nil
		}
		if quote.PreMarketPrice > 0 {
			return quote.PreMarketPrice, nil
		}
	}

	info, err := t.Info()
	if err != nil {
		return 0, fmt.Errorf("failed to get info: %w", err)
	}
	if info.CurrentPrice > 0 {
		return info.CurrentPrice, nil
	}
	return info.RegularMarketPreviousClose, nil
}

// toYahooSymbol maps a disclosure ticker onto Yahoo's notation (share classes use a dash).
func toYahooSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.ReplaceAll(s, ".", "-")
}
