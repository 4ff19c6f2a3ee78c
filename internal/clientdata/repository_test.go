package clientdata

import (
	"context"
	"testing"
	"time"

	testingutil "github.com/aristath/capitol/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedQuote struct {
	Price float64
	AsOf  time.Time
}

func newTestRepo(t *testing.T) (*Repository, *time.Time) {
	db := testingutil.NewTestDB(t, "cache")
	repo := NewRepository(db.Conn())
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	return repo, &now
}

func TestRepository_StoreAndGetIfFresh(t *testing.T) {
	repo, now := newTestRepo(t)
	ctx := context.Background()
	asOf := now.Add(-time.Minute)

	require.NoError(t, repo.Store(ctx, TableQuotes, "NVDA", cachedQuote{Price: 123.4, AsOf: asOf}, TTLCurrentPrice))

	var got cachedQuote
	ok, err := repo.GetIfFresh(ctx, TableQuotes, "NVDA", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 123.4, got.Price)
	assert.True(t, asOf.Equal(got.AsOf))

	ok, err = repo.GetIfFresh(ctx, TableQuotes, "AAPL", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	*now = now.Add(TTLCurrentPrice + time.Second)
	ok, err = repo.GetIfFresh(ctx, TableQuotes, "NVDA", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_InvalidTable(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	assert.Error(t, repo.Store(ctx, "quotes; DROP TABLE quotes", "k", 1, time.Minute))
	_, err := repo.GetIfFresh(ctx, "nope", "k", new(int))
	assert.Error(t, err)
	_, err = repo.DeleteExpired(ctx, "nope")
	assert.Error(t, err)
}

func TestRepository_DeleteAndCleanup(t *testing.T) {
	repo, now := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, TableQuotes, "OLD", cachedQuote{Price: 1}, time.Minute))
	require.NoError(t, repo.Store(ctx, TableQuotes, "NEW", cachedQuote{Price: 2}, time.Hour))
	require.NoError(t, repo.Store(ctx, TableQuotes, "GONE", cachedQuote{Price: 3}, time.Hour))

	require.NoError(t, repo.Delete(ctx, TableQuotes, "GONE"))

	*now = now.Add(2 * time.Minute)
	job := NewCleanupJob(repo, zerolog.Nop())
	require.NoError(t, job.Run(ctx))
	assert.Equal(t, "client_data_cleanup", job.Name())

	var q cachedQuote
	ok, err := repo.GetIfFresh(ctx, TableQuotes, "NEW", &q)
	require.NoError(t, err)
	assert.True(t, ok)

	results, err := repo.DeleteAllExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), results[TableQuotes])
}
