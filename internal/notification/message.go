// Package notification renders recommendations and delivers them over the configured channels.
package notification

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aristath/capitol/internal/domain"
)

// Subject returns a one-line summary such as "BUY NVDA: $1,234.00 (9.87 shares)".
func Subject(rec domain.Recommendation) string {
	return fmt.Sprintf("%s %s: %s (%s shares)",
		rec.Action, rec.Ticker, domain.FormatUSD(rec.Amount), formatShares(rec.Shares))
}

// PlainText renders the recommendation for SMS and logs.
func PlainText(rec domain.Recommendation) string {
	return fmt.Sprintf("%s @ %s, confidence %s. %s",
		Subject(rec), domain.FormatUSD(rec.Price), domain.FormatPercent(rec.Confidence), rec.Rationale)
}

// Markdown renders the recommendation as a markdown document for e-mail and terminals.
func Markdown(rec domain.Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s\n\n", rec.Action, rec.Ticker)
	fmt.Fprintf(&b, "%s\n\n", rec.Rationale)
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Amount | %s |\n", domain.FormatUSD(rec.Amount))
	fmt.Fprintf(&b, "| Shares | %s |\n", formatShares(rec.Shares))
	fmt.Fprintf(&b, "| Price | %s |\n", domain.FormatUSD(rec.Price))
	fmt.Fprintf(&b, "| Confidence | %s |\n", domain.FormatPercent(rec.Confidence))
	fmt.Fprintf(&b, "| Allocation | %s → %s |\n",
		domain.FormatPercent(rec.PreviousAllocation), domain.FormatPercent(rec.TargetAllocation))
	if rec.Actor != "" {
		fmt.Fprintf(&b, "| Source | %s |\n", rec.Actor)
	}
	b.WriteString("\n_Recommendation only. Nothing has been executed._\n")
	return b.String()
}

func formatShares(shares float64) string {
	return strconv.FormatFloat(shares, 'f', 2, 64)
}
