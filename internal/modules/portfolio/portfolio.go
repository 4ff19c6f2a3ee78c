// Package portfolio owns the single tracked virtual portfolio.
package portfolio

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/capitol/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// Position is one tracked instrument.
type Position struct {
	Ticker           string    `json:"ticker"`
	Shares           float64   `json:"shares"`
	TargetAllocation float64   `json:"target_allocation"`
	CurrentPrice     float64   `json:"current_price"` // 0 = never priced
	CurrentValue     float64   `json:"current_value"`
	PriceAsOf        time.Time `json:"price_as_of,omitempty"`
}

// Snapshot is an immutable, internally consistent copy of the portfolio.
type Snapshot struct {
	Cash          float64             `json:"cash"`
	TotalValue    float64             `json:"total_value"`
	Positions     map[string]Position `json:"positions"`
	LastRefreshed time.Time           `json:"last_refreshed,omitempty"`
}

// Position returns the position for ticker.
func (s Snapshot) Position(ticker string) (Position, bool) {
	p, ok := s.Positions[ticker]
	return p, ok
}

// Allocation returns the ticker's share of total value, 0 when the portfolio is empty.
func (s Snapshot) Allocation(ticker string) float64 {
	p, ok := s.Positions[ticker]
	if !ok || s.TotalValue <= 0 {
		return 0
	}
	return p.CurrentValue / s.TotalValue
}

// Tickers returns the tracked tickers in sorted order.
func (s Snapshot) Tickers() []string {
	out := make([]string, 0, len(s.Positions))
	for t := range s.Positions {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Portfolio is the mutable portfolio state. Every mutation holds the write lock and
// recomputes the total before releasing it, so readers always observe
// TotalValue == Cash + sum of position values.
type Portfolio struct {
	mu            sync.RWMutex
	cash          float64
	positions     map[string]*Position
	tickers       []string
	total         float64
	lastRefreshed time.Time
}

// New builds a portfolio from a fixed cash balance and the tracked positions.
func New(cash float64, positions []Position) *Portfolio {
	p := &Portfolio{
		cash:      cash,
		positions: make(map[string]*Position, len(positions)),
	}
	for _, pos := range positions {
		pos := pos
		p.positions[pos.Ticker] = &pos
		p.tickers = append(p.tickers, pos.Ticker)
	}
	sort.Strings(p.tickers)
	p.recomputeTotal()
	return p
}

// Snapshot returns a consistent copy of the current state.
func (p *Portfolio) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	positions := make(map[string]Position, len(p.positions))
	for t, pos := range p.positions {
		positions[t] = *pos
	}
	return Snapshot{
		Cash:          p.cash,
		TotalValue:    p.total,
		Positions:     positions,
		LastRefreshed: p.lastRefreshed,
	}
}

// TotalValue returns cash plus all position values.
func (p *Portfolio) TotalValue() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.total
}

// Tickers returns the fixed tracked-instrument set.
func (p *Portfolio) Tickers() []string {
	out := make([]string, len(p.tickers))
	copy(out, p.tickers)
	return out
}

// ApplyQuote records an observed price for ticker. Unavailable quotes and unknown tickers
// leave the state untouched and return false.
//
// A position with zero shares and a seeded value is bootstrapped: shares become
// value / price. After that, value always equals shares × price. Bootstrapping happens
// again only if shares drop back to zero.
func (p *Portfolio) ApplyQuote(ticker string, q domain.Quote) bool {
	if !q.Available() {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[ticker]
	if !ok {
		return false
	}

	if pos.Shares == 0 && pos.CurrentValue > 0 {
		pos.Shares = pos.CurrentValue / q.Price
	}
	pos.CurrentPrice = q.Price
	pos.PriceAsOf = q.AsOf
	pos.CurrentValue = pos.Shares * q.Price

	p.recomputeTotal()
	return true
}

// SetTargetAllocation records a new target for ticker.
func (p *Portfolio) SetTargetAllocation(ticker string, target float64) error {
	if target <= 0 || target > 1 {
		return fmt.Errorf("target allocation %.4f out of range (0,1]", target)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[ticker]
	if !ok {
		return fmt.Errorf("untracked ticker: %s", ticker)
	}
	pos.TargetAllocation = target
	return nil
}

// MarkRefreshed records the completion time of a refresh pass.
func (p *Portfolio) MarkRefreshed(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastRefreshed = at
}

// recomputeTotal must be called with the write lock held (or before publication).
func (p *Portfolio) recomputeTotal() {
	values := make([]float64, 0, len(p.positions))
	for _, pos := range p.positions {
		values = append(values, pos.CurrentValue)
	}
	p.total = p.cash + floats.Sum(values)
}
