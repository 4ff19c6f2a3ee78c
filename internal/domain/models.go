// Package domain provides core domain models and types.
package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar-date format used for trade identity and storage.
const DateLayout = "2006-01-02"

// TransactionKind is the direction of a disclosed trade.
type TransactionKind string

const (
	KindPurchase TransactionKind = "Purchase"
	KindSale     TransactionKind = "Sale"
	// KindUnknown covers exchanges and anything a feed reports that is neither.
	KindUnknown TransactionKind = "Unknown"
)

// ParseTransactionKind normalizes feed spellings ("buy", "Purchase", "sale_partial",
// "Sale (Full)", "S") onto the two kinds the engine understands.
func ParseTransactionKind(s string) TransactionKind {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "p" || v == "buy" || strings.HasPrefix(v, "purchase"):
		return KindPurchase
	case v == "s" || v == "sell" || strings.HasPrefix(v, "sale") || strings.HasPrefix(v, "sell"):
		return KindSale
	default:
		return KindUnknown
	}
}

// Action is the recommendation verb.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// TrackedActor is a person whose disclosures are mirrored.
type TrackedActor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	// SuccessRate is informational and not used by the allocation algorithm.
	SuccessRate float64 `json:"success_rate"`
}

// Origins of trade records.
const (
	OriginDisclosureFeed = "disclosure_feed"
	OriginManual         = "manual"
)

// TradeRecord is one disclosed trade, normalized.
type TradeRecord struct {
	ID             string          `json:"id"`
	Actor          string          `json:"actor"`
	Ticker         string          `json:"ticker"`
	Kind           TransactionKind `json:"kind"`
	Amount         float64         `json:"amount"`
	TradeDate      time.Time       `json:"trade_date"`
	DisclosureDate time.Time       `json:"disclosure_date,omitempty"`
	Origin         string          `json:"origin"`
	// BacklogID is the manual backlog row this record came from, 0 otherwise.
	BacklogID int64     `json:"backlog_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TradeIdentity is the dedup key. Kind, disclosure date and origin are not part of it.
type TradeIdentity struct {
	Actor       string
	Ticker      string
	TradeDate   string
	AmountCents int64
}

// Identity returns the dedup key of the record.
func (t TradeRecord) Identity() TradeIdentity {
	return TradeIdentity{
		Actor:       t.Actor,
		Ticker:      t.Ticker,
		TradeDate:   t.TradeDate.Format(DateLayout),
		AmountCents: AmountToCents(t.Amount),
	}
}

// AmountToCents converts a dollar amount to integer cents, rounding half away from zero.
func AmountToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}

// CentsToAmount converts integer cents back to dollars.
func CentsToAmount(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

var (
	honorificPattern  = regexp.MustCompile(`(?i)^(hon\.?|honorable|rep\.?|sen\.?|senator|representative|mr\.?|mrs\.?|ms\.?|dr\.?)\s+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeActorName strips honorifics and collapses whitespace so that
// "Hon. Nancy  Pelosi" and "Nancy Pelosi" compare equal.
func NormalizeActorName(name string) string {
	n := whitespacePattern.ReplaceAllString(strings.TrimSpace(name), " ")
	for {
		stripped := honorificPattern.ReplaceAllString(n, "")
		if stripped == n {
			return n
		}
		n = stripped
	}
}

// NormalizeTicker upper-cases a ticker and drops a leading "$". Feeds use "--" or "N/A" for
// non-equity assets; those normalize to "".
func NormalizeTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	t = strings.TrimPrefix(t, "$")
	switch t {
	case "--", "-", "N/A", "NA":
		return ""
	}
	return t
}

// Recommendation is the engine's verdict on one accepted trade. Immutable once produced.
type Recommendation struct {
	ID         string  `json:"id"`
	TradeID    string  `json:"trade_id,omitempty"`
	Ticker     string  `json:"ticker"`
	Action     Action  `json:"action"`
	Price      float64 `json:"price"`
	Amount     float64 `json:"amount"`
	Shares     float64 `json:"shares"`
	Confidence float64 `json:"confidence"`
	// PreviousAllocation is the position's share of the portfolio when the decision was made.
	PreviousAllocation float64   `json:"previous_allocation"`
	TargetAllocation   float64   `json:"target_allocation"`
	Rationale          string    `json:"rationale"`
	Actor              string    `json:"actor,omitempty"`
	Issued             bool      `json:"issued"`
	CreatedAt          time.Time `json:"created_at"`
}

// IssueThreshold is the confidence a non-HOLD recommendation must exceed to be dispatched.
const IssueThreshold = 0.6

// ShouldIssue is the dispatch gate.
func (r Recommendation) ShouldIssue() bool {
	return r.Action != ActionHold && r.Confidence > IssueThreshold
}
