package testing

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/capitol/internal/domain"
)

// MockTradeStore is an in-memory domain.TradeStore
type MockTradeStore struct {
	mu        sync.RWMutex
	trades    []domain.TradeRecord
	seen      map[domain.TradeIdentity]bool
	existsErr error
	insertErr error
	failFor   map[string]error // ticker -> insert error
}

// NewMockTradeStore creates an empty store
func NewMockTradeStore() *MockTradeStore {
	return &MockTradeStore{
		seen:    make(map[domain.TradeIdentity]bool),
		failFor: make(map[string]error),
	}
}

// SetExistsError makes every Exists call fail
func (m *MockTradeStore) SetExistsError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsErr = err
}

// SetInsertError makes every Insert call fail
func (m *MockTradeStore) SetInsertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertErr = err
}

// FailInsertFor makes Insert fail only for the given ticker
func (m *MockTradeStore) FailInsertFor(ticker string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor[ticker] = err
}

// Exists reports whether a trade with the identity was inserted
func (m *MockTradeStore) Exists(_ context.Context, actor, ticker string, tradeDate time.Time, amount float64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	rec := domain.TradeRecord{Actor: actor, Ticker: ticker, TradeDate: tradeDate, Amount: amount}
	return m.seen[rec.Identity()], nil
}

// Insert stores the trade
func (m *MockTradeStore) Insert(_ context.Context, trade *domain.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if err := m.failFor[trade.Ticker]; err != nil {
		return err
	}
	m.seen[trade.Identity()] = true
	m.trades = append(m.trades, *trade)
	return nil
}

// Trades returns everything inserted so far
func (m *MockTradeStore) Trades() []domain.TradeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.TradeRecord, len(m.trades))
	copy(out, m.trades)
	return out
}

// MockBacklogMarker records consumed backlog IDs
type MockBacklogMarker struct {
	mu       sync.Mutex
	consumed []int64
	err      error
}

// NewMockBacklogMarker creates a new mock marker
func NewMockBacklogMarker() *MockBacklogMarker {
	return &MockBacklogMarker{}
}

// SetError sets the error to return
func (m *MockBacklogMarker) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// MarkConsumed records the id
func (m *MockBacklogMarker) MarkConsumed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.consumed = append(m.consumed, id)
	return nil
}

// Consumed returns the consumed IDs in call order
func (m *MockBacklogMarker) Consumed() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.consumed))
	copy(out, m.consumed)
	return out
}

// MockPriceOracle returns configured quotes per ticker; unknown tickers are unavailable
type MockPriceOracle struct {
	mu     sync.Mutex
	quotes map[string]domain.Quote
	calls  []string
}

// NewMockPriceOracle creates a new mock oracle
func NewMockPriceOracle() *MockPriceOracle {
	return &MockPriceOracle{quotes: make(map[string]domain.Quote)}
}

// SetPrice makes ticker available at price
func (m *MockPriceOracle) SetPrice(ticker string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[ticker] = domain.QuoteOf(price, time.Now())
}

// SetUnavailable makes ticker unavailable
func (m *MockPriceOracle) SetUnavailable(ticker string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[ticker] = domain.Unavailable("mock unavailable")
}

// Quote returns the configured quote
func (m *MockPriceOracle) Quote(_ context.Context, ticker string) domain.Quote {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, ticker)
	if q, ok := m.quotes[ticker]; ok {
		return q
	}
	return domain.Unavailable("no quote configured")
}

// Calls returns the tickers requested, in order
func (m *MockPriceOracle) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// MockTradeSource returns a fixed batch of records
type MockTradeSource struct {
	name    string
	mu      sync.Mutex
	records []domain.TradeRecord
	fetches int
}

// NewMockTradeSource creates a named source
func NewMockTradeSource(name string, records ...domain.TradeRecord) *MockTradeSource {
	return &MockTradeSource{name: name, records: records}
}

// SetRecords replaces the batch
func (m *MockTradeSource) SetRecords(records ...domain.TradeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
}

// Name returns the source name
func (m *MockTradeSource) Name() string { return m.name }

// Fetch returns a copy of the batch
func (m *MockTradeSource) Fetch(_ context.Context) []domain.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	out := make([]domain.TradeRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Fetches returns how many times Fetch was called
func (m *MockTradeSource) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// MockRecommendationStore records inserted recommendations
type MockRecommendationStore struct {
	mu     sync.Mutex
	recs   []domain.Recommendation
	issued []bool
	err    error
}

// NewMockRecommendationStore creates a new mock store
func NewMockRecommendationStore() *MockRecommendationStore {
	return &MockRecommendationStore{}
}

// SetError sets the error to return
func (m *MockRecommendationStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Insert records the recommendation
func (m *MockRecommendationStore) Insert(_ context.Context, rec *domain.Recommendation, issued bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, *rec)
	m.issued = append(m.issued, issued)
	return nil
}

// Recommendations returns stored recommendations with their issued flags
func (m *MockRecommendationStore) Recommendations() ([]domain.Recommendation, []bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := make([]domain.Recommendation, len(m.recs))
	copy(recs, m.recs)
	issued := make([]bool, len(m.issued))
	copy(issued, m.issued)
	return recs, issued
}

// MockDispatcher records sent recommendations
type MockDispatcher struct {
	mu   sync.Mutex
	sent []domain.Recommendation
}

// NewMockDispatcher creates a new mock dispatcher
func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

// Send records rec
func (m *MockDispatcher) Send(_ context.Context, rec domain.Recommendation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, rec)
}

// Sent returns recommendations in send order
func (m *MockDispatcher) Sent() []domain.Recommendation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Recommendation, len(m.sent))
	copy(out, m.sent)
	return out
}
