package domain

import (
	"context"
	"time"
)

// TradeSource yields normalized trade records from one origin. Implementations never
// fail the caller: on any error they log and return an empty slice.
type TradeSource interface {
	Name() string
	Fetch(ctx context.Context) []TradeRecord
}

// PriceOracle fetches the current price for a ticker. It does not retry.
type PriceOracle interface {
	Quote(ctx context.Context, ticker string) Quote
}

// TradeStore persists accepted trades and answers dedup lookups.
type TradeStore interface {
	Exists(ctx context.Context, actor, ticker string, tradeDate time.Time, amount float64) (bool, error)
	Insert(ctx context.Context, trade *TradeRecord) error
}

// BacklogMarker marks manual backlog entries as consumed.
type BacklogMarker interface {
	MarkConsumed(ctx context.Context, id int64) error
}

// RecommendationStore persists every recommendation, issued or not.
type RecommendationStore interface {
	Insert(ctx context.Context, rec *Recommendation, issued bool) error
}

// Dispatcher delivers an issued recommendation. Fire-and-forget: failures are
// logged by the dispatcher and never surface to the caller.
type Dispatcher interface {
	Send(ctx context.Context, rec Recommendation)
}
