// Package disclosures fetches the public congressional trade disclosure feed and maps its
// records onto domain trade records.
package disclosures

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/aristath/capitol/internal/domain"
	"github.com/rs/zerolog"
)

// Layout maps feed fields with JSONPath expressions. Field paths are evaluated against a
// single record; Records is evaluated against the whole document.
type Layout struct {
	Name           string
	Records        string
	Actor          string
	Ticker         string
	Kind           string
	Amount         string
	TradeDate      string
	DisclosureDate string
}

// HouseLayout matches the House Stock Watcher all_transactions.json feed.
var HouseLayout = Layout{
	Name:           "house",
	Records:        "$[*]",
	Actor:          "$.representative",
	Ticker:         "$.ticker",
	Kind:           "$.type",
	Amount:         "$.amount",
	TradeDate:      "$.transaction_date",
	DisclosureDate: "$.disclosure_date",
}

// SenateLayout matches the Senate Stock Watcher aggregate feed.
var SenateLayout = Layout{
	Name:           "senate",
	Records:        "$[*]",
	Actor:          "$.senator",
	Ticker:         "$.ticker",
	Kind:           "$.type",
	Amount:         "$.amount",
	TradeDate:      "$.transaction_date",
	DisclosureDate: "$.disclosure_date",
}

// LayoutByName returns the named layout.
func LayoutByName(name string) (Layout, error) {
	switch name {
	case "", "house":
		return HouseLayout, nil
	case "senate":
		return SenateLayout, nil
	default:
		return Layout{}, fmt.Errorf("unknown disclosure layout: %q", name)
	}
}

// Client downloads and parses the feed.
type Client struct {
	url        string
	layout     Layout
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a feed client.
func NewClient(url string, layout Layout, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url:        url,
		layout:     layout,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("client", "disclosures").Str("layout", layout.Name).Logger(),
	}
}

// FetchTrades downloads the feed and returns every record that parses. Records that fail
// to parse are skipped and counted in the debug log.
func (c *Client) FetchTrades(ctx context.Context) ([]domain.TradeRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch disclosure feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("disclosure feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read disclosure feed: %w", err)
	}

	trades, skipped, err := Parse(body, c.layout)
	if err != nil {
		return nil, err
	}

	c.log.Debug().Int("parsed", len(trades)).Int("skipped", skipped).Msg("Disclosure feed parsed")
	return trades, nil
}

// Parse maps a feed document onto trade records, returning how many records were skipped.
func Parse(body []byte, layout Layout) ([]domain.TradeRecord, int, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, 0, fmt.Errorf("failed to decode disclosure feed: %w", err)
	}

	raw, err := jsonpath.Get(layout.Records, doc)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select records with %q: %w", layout.Records, err)
	}
	records, ok := raw.([]interface{})
	if !ok {
		return nil, 0, fmt.Errorf("records path %q did not yield a list", layout.Records)
	}

	trades := make([]domain.TradeRecord, 0, len(records))
	skipped := 0
	for _, rec := range records {
		trade, ok := parseRecord(rec, layout)
		if !ok {
			skipped++
			continue
		}
		trades = append(trades, trade)
	}
	return trades, skipped, nil
}

func parseRecord(rec interface{}, layout Layout) (domain.TradeRecord, bool) {
	actor := domain.NormalizeActorName(stringField(rec, layout.Actor))
	ticker := domain.NormalizeTicker(stringField(rec, layout.Ticker))
	if actor == "" || ticker == "" {
		return domain.TradeRecord{}, false
	}

	amount, err := ParseAmount(stringField(rec, layout.Amount))
	if err != nil {
		return domain.TradeRecord{}, false
	}

	tradeDate, err := ParseDate(stringField(rec, layout.TradeDate))
	if err != nil {
		return domain.TradeRecord{}, false
	}
	// a missing disclosure date is tolerated; it is not part of the identity
	disclosureDate, _ := ParseDate(stringField(rec, layout.DisclosureDate))

	return domain.TradeRecord{
		Actor:          actor,
		Ticker:         ticker,
		Kind:           domain.ParseTransactionKind(stringField(rec, layout.Kind)),
		Amount:         amount,
		TradeDate:      tradeDate,
		DisclosureDate: disclosureDate,
		Origin:         domain.OriginDisclosureFeed,
	}, true
}

func stringField(rec interface{}, path string) string {
	if path == "" {
		return ""
	}
	v, err := jsonpath.Get(path, rec)
	if err != nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return ""
	}
}
