// Package recommendations keeps the audit trail of every recommendation produced.
package recommendations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/capitol/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Repository persists recommendations in ledger.db
type Repository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

const recommendationColumns = `id, trade_id, ticker, action, price, amount, shares, confidence,
	previous_allocation, target_allocation, rationale, actor, issued, created_at`

// NewRepository creates a new recommendation repository
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "recommendation").Logger(),
	}
}

// Insert records a recommendation together with whether it passed the dispatch gate.
// ID and CreatedAt are assigned when unset.
func (r *Repository) Insert(ctx context.Context, rec *domain.Recommendation, issued bool) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.Issued = issued

	_, err := r.ledgerDB.ExecContext(ctx, `
		INSERT INTO recommendations (`+recommendationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		nullString(rec.TradeID),
		rec.Ticker,
		string(rec.Action),
		rec.Price,
		rec.Amount,
		rec.Shares,
		rec.Confidence,
		rec.PreviousAllocation,
		rec.TargetAllocation,
		rec.Rationale,
		nullString(rec.Actor),
		boolToInt(issued),
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert recommendation: %w", err)
	}

	r.log.Debug().
		Str("id", rec.ID).
		Str("ticker", rec.Ticker).
		Str("action", string(rec.Action)).
		Float64("confidence", rec.Confidence).
		Bool("issued", issued).
		Msg("Recommendation recorded")

	return nil
}

// Filter narrows GetRecent.
type Filter struct {
	Limit      int
	IssuedOnly bool
	Ticker     string
}

// GetRecent returns recommendations newest first.
func (r *Repository) GetRecent(ctx context.Context, f Filter) ([]domain.Recommendation, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	query := "SELECT " + recommendationColumns + " FROM recommendations WHERE 1=1"
	args := make([]interface{}, 0, 3)
	if f.IssuedOnly {
		query += " AND issued = 1"
	}
	if f.Ticker != "" {
		query += " AND ticker = ?"
		args = append(args, f.Ticker)
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, f.Limit)

	rows, err := r.ledgerDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	recs := make([]domain.Recommendation, 0)
	for rows.Next() {
		var (
			rec       domain.Recommendation
			tradeID   sql.NullString
			action    string
			actor     sql.NullString
			issued    int
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &tradeID, &rec.Ticker, &action, &rec.Price, &rec.Amount, &rec.Shares,
			&rec.Confidence, &rec.PreviousAllocation, &rec.TargetAllocation, &rec.Rationale, &actor,
			&issued, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		rec.TradeID = tradeID.String
		rec.Action = domain.Action(action)
		rec.Actor = actor.String
		rec.Issued = issued == 1
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recommendations: %w", err)
	}

	return recs, nil
}

// Stats summarizes the audit trail.
type Stats struct {
	Total          int     `json:"total"`
	Issued         int     `json:"issued"`
	Buys           int     `json:"buys"`
	Sells          int     `json:"sells"`
	Holds          int     `json:"holds"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// GetStats computes counts and the mean confidence of non-HOLD recommendations.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	rows, err := r.ledgerDB.QueryContext(ctx, "SELECT action, confidence, issued FROM recommendations")
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendation stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{}
	confidences := make([]float64, 0)
	for rows.Next() {
		var (
			action     string
			confidence float64
			issued     int
		)
		if err := rows.Scan(&action, &confidence, &issued); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation stats: %w", err)
		}

		stats.Total++
		if issued == 1 {
			stats.Issued++
		}
		switch domain.Action(action) {
		case domain.ActionBuy:
			stats.Buys++
			confidences = append(confidences, confidence)
		case domain.ActionSell:
			stats.Sells++
			confidences = append(confidences, confidence)
		default:
			stats.Holds++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recommendation stats: %w", err)
	}

	if len(confidences) > 0 {
		stats.MeanConfidence = stat.Mean(confidences, nil)
	}
	return stats, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
