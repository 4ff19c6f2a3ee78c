package domain

import "time"

// Quote is the result of a price lookup. A Quote is either available, carrying a
// positive price and its as-of time, or unavailable with a reason.
type Quote struct {
	Price  float64
	AsOf   time.Time
	Reason string
	ok     bool
}

// QuoteOf returns an available quote. Non-positive prices are reported as unavailable.
func QuoteOf(price float64, asOf time.Time) Quote {
	if price <= 0 {
		return Unavailable("non-positive price")
	}
	return Quote{Price: price, AsOf: asOf, ok: true}
}

// Unavailable returns a quote that carries no price.
func Unavailable(reason string) Quote {
	return Quote{Reason: reason}
}

// Available reports whether the quote carries a price.
func (q Quote) Available() bool {
	return q.ok
}
