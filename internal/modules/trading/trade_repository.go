// Package trading owns the trade ledger: accepted disclosed trades and the manual backlog.
package trading

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/capitol/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TradeRepository persists accepted trades in ledger.db
type TradeRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// Column order must match scanTrade
const tradesColumns = `id, actor, ticker, kind, amount_cents, trade_date, disclosure_date, origin, created_at`

// NewTradeRepository creates a new trade repository
func NewTradeRepository(ledgerDB *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "trade").Logger(),
	}
}

// Exists reports whether a trade with the same identity (actor, ticker, trade date, amount)
// has been persisted before.
func (r *TradeRepository) Exists(ctx context.Context, actor, ticker string, tradeDate time.Time, amount float64) (bool, error) {
	var one int
	err := r.ledgerDB.QueryRowContext(ctx, `
		SELECT 1 FROM trades
		WHERE actor = ? AND ticker = ? AND trade_date = ? AND amount_cents = ?
		LIMIT 1
	`, actor, ticker, tradeDate.Format(domain.DateLayout), domain.AmountToCents(amount)).Scan(&one)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check trade existence: %w", err)
	}
	return true, nil
}

// Insert persists an accepted trade. It assigns ID and CreatedAt when unset.
func (r *TradeRepository) Insert(ctx context.Context, trade *domain.TradeRecord) error {
	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now()
	}

	_, err := r.ledgerDB.ExecContext(ctx, `
		INSERT INTO trades (`+tradesColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		trade.ID,
		trade.Actor,
		trade.Ticker,
		string(trade.Kind),
		domain.AmountToCents(trade.Amount),
		trade.TradeDate.Format(domain.DateLayout),
		formatOptionalDate(trade.DisclosureDate),
		trade.Origin,
		trade.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	r.log.Info().
		Str("actor", trade.Actor).
		Str("ticker", trade.Ticker).
		Str("kind", string(trade.Kind)).
		Float64("amount", trade.Amount).
		Str("origin", trade.Origin).
		Msg("Trade recorded")

	return nil
}

// GetRecent returns the most recently recorded trades, newest first.
func (r *TradeRepository) GetRecent(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.ledgerDB.QueryContext(ctx,
		"SELECT "+tradesColumns+" FROM trades ORDER BY created_at DESC, trade_date DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]domain.TradeRecord, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// Count returns the number of recorded trades
func (r *TradeRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.ledgerDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM trades").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return n, nil
}

func scanTrade(rows *sql.Rows) (domain.TradeRecord, error) {
	var (
		t              domain.TradeRecord
		kind           string
		cents          int64
		tradeDate      string
		disclosureDate sql.NullString
		createdAt      int64
	)

	if err := rows.Scan(&t.ID, &t.Actor, &t.Ticker, &kind, &cents, &tradeDate, &disclosureDate, &t.Origin, &createdAt); err != nil {
		return t, fmt.Errorf("failed to scan trade: %w", err)
	}

	t.Kind = domain.TransactionKind(kind)
	t.Amount = domain.CentsToAmount(cents)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()

	var err error
	if t.TradeDate, err = time.Parse(domain.DateLayout, tradeDate); err != nil {
		return t, fmt.Errorf("failed to parse trade date %q: %w", tradeDate, err)
	}
	if disclosureDate.Valid && disclosureDate.String != "" {
		if t.DisclosureDate, err = time.Parse(domain.DateLayout, disclosureDate.String); err != nil {
			return t, fmt.Errorf("failed to parse disclosure date %q: %w", disclosureDate.String, err)
		}
	}

	return t, nil
}

func formatOptionalDate(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Format(domain.DateLayout)
}
