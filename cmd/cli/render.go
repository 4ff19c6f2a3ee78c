package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aristath/capitol/internal/domain"
	"github.com/aristath/capitol/internal/modules/cycle"
	"github.com/aristath/capitol/internal/modules/portfolio"
	"github.com/aristath/capitol/internal/modules/recommendations"
	"github.com/charmbracelet/glamour"
)

// printMarkdown renders md for the terminal, falling back to the raw text.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(110))
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

func cycleMarkdown(result *cycle.Result, snap portfolio.Snapshot) string {
	var b strings.Builder

	b.WriteString("# Cycle\n\n")
	fmt.Fprintf(&b, "Started %s, took %s.",
		result.StartedAt.Format("2006-01-02 15:04:05"),
		result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	if result.Interrupted {
		b.WriteString(" **Interrupted**: some recommendations used unrefreshed prices.")
	}
	b.WriteString("\n\n")

	s := result.Ingestion
	b.WriteString("| Candidates | Accepted | Duplicates | Untracked | Failed |\n")
	b.WriteString("|---:|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n\n", s.Candidates, s.Accepted, s.Duplicates, s.Untracked, s.Failed)

	b.WriteString("## Recommendations\n\n")
	if len(result.Recommendations) == 0 {
		b.WriteString("No new trades.\n\n")
	} else {
		writeRecommendationTable(&b, result.Recommendations)
		fmt.Fprintf(&b, "%d issued, %d skipped.\n\n", result.Issued, result.Skipped)
	}

	b.WriteString("## Portfolio\n\n")
	writePortfolioTable(&b, snap)

	return b.String()
}

func recommendationsMarkdown(recs []domain.Recommendation, stats *recommendations.Stats) string {
	var b strings.Builder

	b.WriteString("# Recommendations\n\n")
	if stats != nil {
		fmt.Fprintf(&b, "%d total, %d issued (%d buy, %d sell, %d hold). Mean confidence %.2f.\n\n",
			stats.Total, stats.Issued, stats.Buys, stats.Sells, stats.Holds, stats.MeanConfidence)
	}
	if len(recs) == 0 {
		b.WriteString("Nothing recorded yet.\n")
		return b.String()
	}
	writeRecommendationTable(&b, recs)
	return b.String()
}

func writeRecommendationTable(b *strings.Builder, recs []domain.Recommendation) {
	b.WriteString("| Date | Actor | Action | Ticker | Amount | Shares | Target | Confidence | Issued |\n")
	b.WriteString("|---|---|---|---|---:|---:|---:|---:|:---:|\n")
	for _, r := range recs {
		issued := ""
		if r.Issued {
			issued = "✓"
		}
		date := ""
		if !r.CreatedAt.IsZero() {
			date = r.CreatedAt.Format(domain.DateLayout)
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %.2f | %s | %.2f | %s |\n",
			date, r.Actor, r.Action, r.Ticker, domain.FormatUSD(r.Amount), r.Shares,
			domain.FormatPercent(r.TargetAllocation), r.Confidence, issued)
	}
	b.WriteString("\n")
}

func writePortfolioTable(b *strings.Builder, snap portfolio.Snapshot) {
	b.WriteString("| Ticker | Shares | Price | Value | Allocation | Target |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, t := range snap.Tickers() {
		p := snap.Positions[t]
		price := "n/a"
		if p.CurrentPrice > 0 {
			price = domain.FormatUSD(p.CurrentPrice)
		}
		fmt.Fprintf(b, "| %s | %.2f | %s | %s | %s | %s |\n",
			t, p.Shares, price, domain.FormatUSD(p.CurrentValue),
			domain.FormatPercent(snap.Allocation(t)), domain.FormatPercent(p.TargetAllocation))
	}
	fmt.Fprintf(b, "\nCash %s, total %s.\n", domain.FormatUSD(snap.Cash), domain.FormatUSD(snap.TotalValue))
}
