// Package clientdata provides persistent caching for external API client responses.
// Entries are msgpack blobs with expiration timestamps.
package clientdata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// TableQuotes holds provider quotes keyed by symbol.
const TableQuotes = "quotes"

// AllTables lists all tables in the cache database for cleanup operations.
var AllTables = []string{
	TableQuotes,
}

var validTables = func() map[string]bool {
	m := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		m[t] = true
	}
	return m
}()

// Repository provides cache operations for client data.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// validateTable guards the table names interpolated into queries.
func validateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

// Store saves data with expiration = now + ttl.
func (r *Repository) Store(ctx context.Context, table, key string, data interface{}, ttl time.Duration) error {
	if err := validateTable(table); err != nil {
		return err
	}

	blob, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (symbol, data, expires_at) VALUES (?, ?, ?)", table)
	if _, err := r.db.ExecContext(ctx, query, key, blob, r.now().Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}

	return nil
}

// GetIfFresh decodes the entry into out if it has not expired. It returns false when
// the key is missing or stale.
func (r *Repository) GetIfFresh(ctx context.Context, table, key string, out interface{}) (bool, error) {
	if err := validateTable(table); err != nil {
		return false, err
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE symbol = ? AND expires_at > ?", table)

	var blob []byte
	err := r.db.QueryRowContext(ctx, query, key, r.now().Unix()).Scan(&blob)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	if err := msgpack.Unmarshal(blob, out); err != nil {
		return false, fmt.Errorf("failed to decode cached %s/%s: %w", table, key, err)
	}
	return true, nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(ctx context.Context, table, key string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE symbol = ?", table)
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

// DeleteExpired removes all rows of table whose expiry has passed.
func (r *Repository) DeleteExpired(ctx context.Context, table string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at <= ?", table)
	result, err := r.db.ExecContext(ctx, query, r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}
	return deleted, nil
}

// DeleteAllExpired removes expired entries from every table.
func (r *Repository) DeleteAllExpired(ctx context.Context) (map[string]int64, error) {
	results := make(map[string]int64, len(AllTables))
	for _, table := range AllTables {
		n, err := r.DeleteExpired(ctx, table)
		if err != nil {
			return results, err
		}
		results[table] = n
	}
	return results, nil
}
