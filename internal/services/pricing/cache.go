package pricing

import (
	"context"
	"time"

	"github.com/aristath/capitol/internal/clientdata"
	"github.com/aristath/capitol/internal/domain"
	"github.com/rs/zerolog"
)

// cachedQuote is the msgpack shape stored in the quotes table.
type cachedQuote struct {
	Price float64   `msgpack:"price"`
	AsOf  time.Time `msgpack:"as_of"`
}

// Cached serves fresh quotes from the client data cache and asks the wrapped oracle on a
// miss. Only available quotes are cached; stale entries are never served.
type Cached struct {
	inner domain.PriceOracle
	cache *clientdata.Repository
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCached wraps inner with the cache. ttl <= 0 uses clientdata.TTLCurrentPrice.
func NewCached(inner domain.PriceOracle, cache *clientdata.Repository, ttl time.Duration, log zerolog.Logger) *Cached {
	if ttl <= 0 {
		ttl = clientdata.TTLCurrentPrice
	}
	return &Cached{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   log.With().Str("service", "price_cache").Logger(),
	}
}

// Quote returns a cached quote when fresh, otherwise the wrapped oracle's answer.
func (c *Cached) Quote(ctx context.Context, ticker string) domain.Quote {
	var cached cachedQuote
	ok, err := c.cache.GetIfFresh(ctx, clientdata.TableQuotes, ticker, &cached)
	if err != nil {
		c.log.Warn().Err(err).Str("ticker", ticker).Msg("Quote cache read failed")
	}
	if ok {
		return domain.QuoteOf(cached.Price, cached.AsOf)
	}

	q := c.inner.Quote(ctx, ticker)
	if !q.Available() {
		return q
	}

	if err := c.cache.Store(ctx, clientdata.TableQuotes, ticker, cachedQuote{Price: q.Price, AsOf: q.AsOf}, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("ticker", ticker).Msg("Quote cache write failed")
	}
	return q
}
