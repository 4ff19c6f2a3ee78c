// Package alphavantage provides a quote client for the Alpha Vantage GLOBAL_QUOTE endpoint.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/aristath/capitol/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the public query endpoint.
	DefaultBaseURL = "https://www.alphavantage.co/query"

	// DailyRequestLimit is the free-tier allowance per UTC day.
	DailyRequestLimit = 25
)

// ErrRateLimitExceeded is returned when the daily allowance is spent or the API reports throttling.
type ErrRateLimitExceeded struct {
	ResetAt time.Time
}

func (e ErrRateLimitExceeded) Error() string {
	if e.ResetAt.IsZero() {
		return "alphavantage: rate limit exceeded"
	}
	return fmt.Sprintf("alphavantage: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// ErrInvalidAPIKey is returned when the API rejects the key.
type ErrInvalidAPIKey struct{}

func (e ErrInvalidAPIKey) Error() string {
	return "alphavantage: invalid or missing API key"
}

// ErrSymbolNotFound is returned when the API has no quote for a symbol.
type ErrSymbolNotFound struct {
	Symbol string
}

func (e ErrSymbolNotFound) Error() string {
	return fmt.Sprintf("alphavantage: no quote for symbol %s", e.Symbol)
}

// GlobalQuote is the parsed GLOBAL_QUOTE payload.
type GlobalQuote struct {
	Symbol           string
	Price            float64
	PreviousClose    float64
	LatestTradingDay time.Time
}

// Client fetches latest prices. It satisfies domain.PriceOracle.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	mu           sync.Mutex
	requestCount int
	resetAt      time.Time
	now          func() time.Time
}

// NewClient creates a client. An empty baseURL uses DefaultBaseURL.
func NewClient(apiKey, baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("client", "alphavantage").Logger(),
		resetAt:    nextMidnightUTC(),
		now:        time.Now,
	}
}

// Quote implements domain.PriceOracle. Every failure yields an unavailable quote.
func (c *Client) Quote(ctx context.Context, ticker string) domain.Quote {
	gq, err := c.GetGlobalQuote(ctx, ticker)
	if err != nil {
		c.log.Warn().Err(err).Str("ticker", ticker).Msg("Quote unavailable")
		return domain.Unavailable(err.Error())
	}
	asOf := gq.LatestTradingDay
	if asOf.IsZero() {
		asOf = c.now().UTC()
	}
	return domain.QuoteOf(gq.Price, asOf)
}

// GetGlobalQuote fetches the latest quote for a symbol.
func (c *Client) GetGlobalQuote(ctx context.Context, symbol string) (*GlobalQuote, error) {
	body, err := c.doRequest(ctx, "GLOBAL_QUOTE", map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}
	gq, err := parseGlobalQuote(body)
	if err != nil {
		return nil, err
	}
	if gq.Symbol == "" || gq.Price <= 0 {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}
	return gq, nil
}

// GetRemainingRequests returns how many calls are left today.
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollover()
	return DailyRequestLimit - c.requestCount
}

// ResetDailyCounter clears the daily usage counter.
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestCount = 0
	c.resetAt = nextMidnightUTC()
}

func (c *Client) rollover() {
	if !c.now().Before(c.resetAt) {
		c.requestCount = 0
		c.resetAt = nextMidnightUTC()
	}
}

func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollover()
	if c.requestCount >= DailyRequestLimit {
		return ErrRateLimitExceeded{ResetAt: c.resetAt}
	}
	c.requestCount++
	return nil
}

func (c *Client) doRequest(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrInvalidAPIKey{}
	}
	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("function", function)
	q.Set("apikey", c.apiKey)
	for k, v := range params {
		q.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	c.log.Debug().Str("function", function).Interface("params", params).Msg("Alpha Vantage request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alphavantage returned status %d", resp.StatusCode)
	}
	if err := c.checkAPIError(body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkAPIError detects the error envelopes Alpha Vantage returns with a 200 status.
func (c *Client) checkAPIError(body []byte) error {
	text := string(body)
	if strings.Contains(text, "Thank you for using Alpha Vantage") {
		return ErrRateLimitExceeded{}
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	if note, ok := envelope["Note"].(string); ok && note != "" {
		return ErrRateLimitExceeded{}
	}
	if info, ok := envelope["Information"].(string); ok && info != "" {
		if strings.Contains(strings.ToLower(info), "api key") {
			return ErrInvalidAPIKey{}
		}
		return ErrRateLimitExceeded{}
	}
	if msg, ok := envelope["Error Message"].(string); ok && msg != "" {
		return fmt.Errorf("alphavantage: %s", msg)
	}
	return nil
}

func parseGlobalQuote(body []byte) (*GlobalQuote, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode global quote: %w", err)
	}

	field := func(name string) string {
		v, err := jsonpath.Get(`$["Global Quote"]["`+name+`"]`, doc)
		if err != nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	return &GlobalQuote{
		Symbol:           field("01. symbol"),
		Price:            parseFloat64(field("05. price")),
		PreviousClose:    parseFloat64(field("08. previous close")),
		LatestTradingDay: parseDate(field("07. latest trading day")),
	}, nil
}

func parseFloat64(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" || s == "None" || s == "-" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

func nextMidnightUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}
