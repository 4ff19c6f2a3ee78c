package disclosures

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"Jan 2, 2006",
}

// ParseDate accepts the date spellings seen across disclosure feeds.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseAmount reads a disclosed dollar amount. Ranges such as "$1,001 - $15,000" resolve to
// their lower bound; open ranges such as "Over $50,000,000" to the stated figure.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	lower := s
	if idx := strings.Index(s, "-"); idx > 0 {
		lower = s[:idx]
	}

	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, lower)
	if cleaned == "" {
		return 0, fmt.Errorf("no figure in amount %q", s)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}
