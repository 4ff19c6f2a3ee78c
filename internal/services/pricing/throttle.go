// Package pricing composes price oracles: rate-limited provider access and a quote cache.
package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/capitol/internal/domain"
	"golang.org/x/time/rate"
)

// Throttled serializes calls to an oracle and spaces them at least interval apart.
type Throttled struct {
	inner   domain.PriceOracle
	limiter *rate.Limiter
	mu      sync.Mutex
}

// NewThrottled wraps inner. An interval of 0 disables spacing but still serializes calls.
func NewThrottled(inner domain.PriceOracle, interval time.Duration) *Throttled {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttled{
		inner:   inner,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Quote waits for the next call slot, then asks the wrapped oracle. A cancelled wait
// yields an unavailable quote.
func (t *Throttled) Quote(ctx context.Context, ticker string) domain.Quote {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.limiter.Wait(ctx); err != nil {
		return domain.Unavailable("rate limit wait aborted: " + err.Error())
	}
	return t.inner.Quote(ctx, ticker)
}
