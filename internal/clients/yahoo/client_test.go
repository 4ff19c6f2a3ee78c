package yahoo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/capitol/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubbedClient(fetch func(string) (float64, error)) *NativeClient {
	c := NewNativeClient(zerolog.Nop())
	c.fetch = fetch
	c.wait = func(int) time.Duration { return time.Millisecond }
	return c
}

func TestNativeClient_ImplementsPriceOracle(t *testing.T) {
	var _ domain.PriceOracle = NewNativeClient(zerolog.Nop())
}

func TestToYahooSymbol(t *testing.T) {
	assert.Equal(t, "BRK-B", toYahooSymbol("brk.b"))
	assert.Equal(t, "NVDA", toYahooSymbol(" NVDA "))
	assert.Equal(t, "", toYahooSymbol(""))
}

func TestQuote_Success(t *testing.T) {
	var asked []string
	c := newStubbedClient(func(s string) (float64, error) {
		asked = append(asked, s)
		return 412.3, nil
	})

	q := c.Quote(context.Background(), "msft")
	require.True(t, q.Available())
	assert.Equal(t, 412.3, q.Price)
	assert.Equal(t, []string{"MSFT"}, asked)
}

func TestQuote_RetriesThenUnavailable(t *testing.T) {
	calls := 0
	c := newStubbedClient(func(string) (float64, error) {
		calls++
		return 0, errors.New("401 unauthorized")
	})

	q := c.Quote(context.Background(), "NVDA")
	assert.False(t, q.Available())
	assert.Contains(t, q.Reason, "401")
	assert.Equal(t, maxRetries, calls)
}

func TestQuote_RecoversOnRetry(t *testing.T) {
	calls := 0
	c := newStubbedClient(func(string) (float64, error) {
		calls++
		if calls == 1 {
			return 0, nil
		}
		return 50, nil
	})

	q := c.Quote(context.Background(), "AAPL")
	require.True(t, q.Available())
	assert.Equal(t, 50.0, q.Price)
}

func TestQuote_CancelledContext(t *testing.T) {
	c := newStubbedClient(func(string) (float64, error) {
		t.Fatal("fetch must not run on a cancelled context")
		return 0, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, c.Quote(ctx, "AAPL").Available())
	assert.False(t, c.Quote(context.Background(), " ").Available())
}
