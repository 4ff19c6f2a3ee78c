package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/capitol/internal/database"
	"github.com/rs/zerolog"
)

// PositionRepository persists positions in portfolio.db
type PositionRepository struct {
	portfolioDB *sql.DB
	log         zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(portfolioDB *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		portfolioDB: portfolioDB,
		log:         log.With().Str("repo", "position").Logger(),
	}
}

// GetAll returns every stored position keyed by ticker
func (r *PositionRepository) GetAll(ctx context.Context) (map[string]Position, error) {
	rows, err := r.portfolioDB.QueryContext(ctx, `
		SELECT ticker, shares, target_allocation, current_price, current_value, price_as_of
		FROM positions
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make(map[string]Position)
	for rows.Next() {
		var (
			pos       Position
			priceAsOf sql.NullInt64
		)
		if err := rows.Scan(&pos.Ticker, &pos.Shares, &pos.TargetAllocation, &pos.CurrentPrice, &pos.CurrentValue, &priceAsOf); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		if priceAsOf.Valid {
			pos.PriceAsOf = time.Unix(priceAsOf.Int64, 0).UTC()
		}
		positions[pos.Ticker] = pos
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// SaveAll upserts every position in one transaction
func (r *PositionRepository) SaveAll(ctx context.Context, positions []Position) error {
	now := time.Now().Unix()

	err := database.WithTransaction(r.portfolioDB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO positions (ticker, shares, target_allocation, current_price, current_value, price_as_of, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(ticker) DO UPDATE SET
				shares = excluded.shares,
				target_allocation = excluded.target_allocation,
				current_price = excluded.current_price,
				current_value = excluded.current_value,
				price_as_of = excluded.price_as_of,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, pos := range positions {
			var priceAsOf sql.NullInt64
			if !pos.PriceAsOf.IsZero() {
				priceAsOf = sql.NullInt64{Int64: pos.PriceAsOf.Unix(), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, pos.Ticker, pos.Shares, pos.TargetAllocation,
				pos.CurrentPrice, pos.CurrentValue, priceAsOf, now); err != nil {
				return fmt.Errorf("position %s: %w", pos.Ticker, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save positions: %w", err)
	}

	r.log.Debug().Int("count", len(positions)).Msg("Positions saved")
	return nil
}

// GetMeta returns a metadata value, or "" when unset
func (r *PositionRepository) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := r.portfolioDB.QueryRowContext(ctx, "SELECT value FROM portfolio_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get portfolio meta %s: %w", key, err)
	}
	return value, nil
}

// SetMeta stores a metadata value
func (r *PositionRepository) SetMeta(ctx context.Context, key, value string) error {
	_, err := r.portfolioDB.ExecContext(ctx, `
		INSERT INTO portfolio_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set portfolio meta %s: %w", key, err)
	}
	return nil
}
