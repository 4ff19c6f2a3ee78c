package trading

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/capitol/internal/domain"
	"github.com/rs/zerolog"
)

// ManualTrade is an operator-entered disclosure waiting in the backlog.
type ManualTrade struct {
	ID             int64                  `json:"id"`
	Actor          string                 `json:"actor"`
	Ticker         string                 `json:"ticker"`
	Kind           domain.TransactionKind `json:"kind"`
	Amount         float64                `json:"amount"`
	TradeDate      time.Time              `json:"trade_date"`
	DisclosureDate time.Time              `json:"disclosure_date,omitempty"`
	Note           string                 `json:"note,omitempty"`
	Consumed       bool                   `json:"consumed"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Validate normalizes the entry and rejects what the pipeline could never use.
func (m *ManualTrade) Validate() error {
	m.Actor = domain.NormalizeActorName(m.Actor)
	m.Ticker = domain.NormalizeTicker(m.Ticker)

	if m.Actor == "" {
		return fmt.Errorf("actor is required")
	}
	if m.Ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	if m.Kind != domain.KindPurchase && m.Kind != domain.KindSale {
		return fmt.Errorf("kind must be Purchase or Sale, got %q", m.Kind)
	}
	if m.Amount < 0 {
		return fmt.Errorf("amount must not be negative")
	}
	if m.TradeDate.IsZero() {
		return fmt.Errorf("trade date is required")
	}
	return nil
}

// ToRecord converts the entry into a pipeline candidate.
func (m ManualTrade) ToRecord() domain.TradeRecord {
	return domain.TradeRecord{
		Actor:          m.Actor,
		Ticker:         m.Ticker,
		Kind:           m.Kind,
		Amount:         m.Amount,
		TradeDate:      m.TradeDate,
		DisclosureDate: m.DisclosureDate,
		Origin:         domain.OriginManual,
		BacklogID:      m.ID,
	}
}

// ManualRepository stores the manual-entry backlog in ledger.db
type ManualRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

const manualColumns = `id, actor, ticker, kind, amount_cents, trade_date, disclosure_date, note, consumed, created_at`

// NewManualRepository creates a new manual backlog repository
func NewManualRepository(ledgerDB *sql.DB, log zerolog.Logger) *ManualRepository {
	return &ManualRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "manual_trade").Logger(),
	}
}

// Add validates and appends an entry to the backlog, returning its ID.
func (r *ManualRepository) Add(ctx context.Context, trade *ManualTrade) (int64, error) {
	if err := trade.Validate(); err != nil {
		return 0, fmt.Errorf("invalid manual trade: %w", err)
	}
	trade.CreatedAt = time.Now()

	res, err := r.ledgerDB.ExecContext(ctx, `
		INSERT INTO manual_trades (actor, ticker, kind, amount_cents, trade_date, disclosure_date, note, consumed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
	`,
		trade.Actor,
		trade.Ticker,
		string(trade.Kind),
		domain.AmountToCents(trade.Amount),
		trade.TradeDate.Format(domain.DateLayout),
		formatOptionalDate(trade.DisclosureDate),
		strings.TrimSpace(trade.Note),
		trade.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert manual trade: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read manual trade id: %w", err)
	}
	trade.ID = id

	r.log.Info().Int64("id", id).Str("actor", trade.Actor).Str("ticker", trade.Ticker).Msg("Manual trade queued")
	return id, nil
}

// Pending returns unconsumed entries in insertion order.
func (r *ManualRepository) Pending(ctx context.Context) ([]ManualTrade, error) {
	return r.query(ctx, "SELECT "+manualColumns+" FROM manual_trades WHERE consumed = 0 ORDER BY id ASC")
}

// List returns the newest entries, consumed or not.
func (r *ManualRepository) List(ctx context.Context, limit int) ([]ManualTrade, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.query(ctx, "SELECT "+manualColumns+" FROM manual_trades ORDER BY id DESC LIMIT ?", limit)
}

// MarkConsumed flags an entry so it is not replayed. Marking twice is a no-op.
func (r *ManualRepository) MarkConsumed(ctx context.Context, id int64) error {
	_, err := r.ledgerDB.ExecContext(ctx,
		"UPDATE manual_trades SET consumed = 1, consumed_at = ? WHERE id = ? AND consumed = 0",
		time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark manual trade %d consumed: %w", id, err)
	}
	return nil
}

func (r *ManualRepository) query(ctx context.Context, query string, args ...interface{}) ([]ManualTrade, error) {
	rows, err := r.ledgerDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query manual trades: %w", err)
	}
	defer rows.Close()

	trades := make([]ManualTrade, 0)
	for rows.Next() {
		var (
			m              ManualTrade
			kind           string
			cents          int64
			tradeDate      string
			disclosureDate sql.NullString
			note           sql.NullString
			consumed       int
			createdAt      int64
		)
		if err := rows.Scan(&m.ID, &m.Actor, &m.Ticker, &kind, &cents, &tradeDate, &disclosureDate, &note, &consumed, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan manual trade: %w", err)
		}

		m.Kind = domain.TransactionKind(kind)
		m.Amount = domain.CentsToAmount(cents)
		m.Note = note.String
		m.Consumed = consumed == 1
		m.CreatedAt = time.Unix(createdAt, 0).UTC()
		if m.TradeDate, err = time.Parse(domain.DateLayout, tradeDate); err != nil {
			return nil, fmt.Errorf("failed to parse trade date %q: %w", tradeDate, err)
		}
		if disclosureDate.Valid && disclosureDate.String != "" {
			if m.DisclosureDate, err = time.Parse(domain.DateLayout, disclosureDate.String); err != nil {
				return nil, fmt.Errorf("failed to parse disclosure date %q: %w", disclosureDate.String, err)
			}
		}

		trades = append(trades, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating manual trades: %w", err)
	}

	return trades, nil
}
