package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/aristath/capitol/internal/clients/disclosures"
	"github.com/aristath/capitol/internal/config"
	"github.com/aristath/capitol/internal/di"
	"github.com/aristath/capitol/internal/domain"
	"github.com/aristath/capitol/internal/modules/cycle"
	"github.com/aristath/capitol/internal/modules/recommendations"
	"github.com/aristath/capitol/internal/modules/trading"
	"github.com/aristath/capitol/pkg/logger"
	"github.com/google/subcommands"
)

var commands = []subcommands.Command{
	&runCmd{},
	&addTradeCmd{},
	&recommendationsCmd{},
	&backupCmd{},
}

// openContainer loads configuration and wires the application. Logs go to stderr so
// rendered output stays clean.
func openContainer(ctx context.Context) (*di.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
		Output: os.Stderr,
	})
	return di.Wire(ctx, cfg, log)
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}

type runCmd struct{}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run one ingestion and recommendation cycle" }
func (*runCmd) Usage() string {
	return `capitol run

  Collects trades from the disclosure feed and the manual backlog, refreshes
  prices and prints the resulting recommendations.
`
}
func (*runCmd) SetFlags(*flag.FlagSet) {}

func (*runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, err := openContainer(ctx)
	if err != nil {
		return fail(err)
	}
	defer container.Close()

	result, err := container.CycleRunner.RunCycle(cycle.WithTrigger(ctx, "cli"))
	if err != nil {
		return fail(err)
	}

	printMarkdown(cycleMarkdown(result, container.PortfolioService.Snapshot()))
	return subcommands.ExitSuccess
}

type addTradeCmd struct {
	actor     string
	ticker    string
	kind      string
	amount    string
	date      string
	disclosed string
	note      string
}

func (*addTradeCmd) Name() string     { return "add-trade" }
func (*addTradeCmd) Synopsis() string { return "queue a manually entered disclosure" }
func (*addTradeCmd) Usage() string {
	return `capitol add-trade -actor <name> -ticker <symbol> -kind <Purchase|Sale> -amount <amount> -date <date>

  Adds a trade to the manual backlog. It is picked up by the next cycle.
  The amount may be a figure or a disclosed range such as "$1,001 - $15,000".
`
}

func (c *addTradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.actor, "actor", "", "Name of the tracked actor.")
	f.StringVar(&c.ticker, "ticker", "", "Instrument ticker.")
	f.StringVar(&c.kind, "kind", "Purchase", "Purchase or Sale.")
	f.StringVar(&c.amount, "amount", "", "Dollar amount or disclosed range.")
	f.StringVar(&c.date, "date", "", "Trade date.")
	f.StringVar(&c.disclosed, "disclosed", "", "Disclosure date (optional).")
	f.StringVar(&c.note, "note", "", "Free-form note.")
}

func (c *addTradeCmd) trade() (*trading.ManualTrade, error) {
	amount, err := disclosures.ParseAmount(c.amount)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	tradeDate, err := disclosures.ParseDate(c.date)
	if err != nil {
		return nil, fmt.Errorf("date: %w", err)
	}

	trade := &trading.ManualTrade{
		Actor:     c.actor,
		Ticker:    c.ticker,
		Kind:      domain.ParseTransactionKind(c.kind),
		Amount:    amount,
		TradeDate: tradeDate,
		Note:      c.note,
	}
	if strings.TrimSpace(c.disclosed) != "" {
		if trade.DisclosureDate, err = disclosures.ParseDate(c.disclosed); err != nil {
			return nil, fmt.Errorf("disclosed: %w", err)
		}
	}
	return trade, trade.Validate()
}

func (c *addTradeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	trade, err := c.trade()
	if err != nil {
		return fail(err)
	}

	container, err := openContainer(ctx)
	if err != nil {
		return fail(err)
	}
	defer container.Close()

	id, err := container.ManualRepo.Add(ctx, trade)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("Queued manual trade #%d: %s %s %s %s on %s\n",
		id, trade.Actor, trade.Kind, trade.Ticker, domain.FormatUSD(trade.Amount), trade.TradeDate.Format(domain.DateLayout))
	return subcommands.ExitSuccess
}

type recommendationsCmd struct {
	limit  int
	ticker string
	issued bool
}

func (*recommendationsCmd) Name() string     { return "recommendations" }
func (*recommendationsCmd) Synopsis() string { return "list recent recommendations" }
func (*recommendationsCmd) Usage() string {
	return `capitol recommendations [-limit <n>] [-ticker <symbol>] [-issued]

  Prints the most recent recommendations, newest first, with summary statistics.
`
}

func (c *recommendationsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", 20, "Maximum number of recommendations to show.")
	f.StringVar(&c.ticker, "ticker", "", "Only show this ticker.")
	f.BoolVar(&c.issued, "issued", false, "Only show issued recommendations.")
}

func (c *recommendationsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, err := openContainer(ctx)
	if err != nil {
		return fail(err)
	}
	defer container.Close()

	recs, err := container.RecommendationRepo.GetRecent(ctx, recommendations.Filter{
		Limit:      c.limit,
		IssuedOnly: c.issued,
		Ticker:     domain.NormalizeTicker(c.ticker),
	})
	if err != nil {
		return fail(err)
	}
	stats, err := container.RecommendationRepo.GetStats(ctx)
	if err != nil {
		return fail(err)
	}

	printMarkdown(recommendationsMarkdown(recs, stats))
	return subcommands.ExitSuccess
}

type backupCmd struct{}

func (*backupCmd) Name() string     { return "backup" }
func (*backupCmd) Synopsis() string { return "archive the databases now" }
func (*backupCmd) Usage() string {
	return `capitol backup

  Checkpoints and verifies every database, writes a compressed archive to the
  backup directory and uploads it when off-site storage is configured.
`
}
func (*backupCmd) SetFlags(*flag.FlagSet) {}

func (*backupCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, err := openContainer(ctx)
	if err != nil {
		return fail(err)
	}
	defer container.Close()

	result, err := container.BackupService.Run(ctx)
	if result != nil {
		fmt.Printf("Archive %s (%d bytes), uploaded: %t, pruned: %d local / %d remote\n",
			result.Archive, result.SizeBytes, result.Uploaded, result.PrunedLocal, result.PrunedRemote)
	}
	if err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}
