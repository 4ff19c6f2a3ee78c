package clientdata

import (
	"context"

	"github.com/rs/zerolog"
)

// WorkTypeCleanup is the work queue ID of the quote cache cleanup.
const WorkTypeCleanup = "maintenance:cache-cleanup"

// CleanupJob removes expired entries from all client data tables.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates a new client data cleanup job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// Run removes all expired entries.
func (j *CleanupJob) Run(ctx context.Context) error {
	results, err := j.repo.DeleteAllExpired(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired client data")
		return err
	}

	var total int64
	for table, count := range results {
		if count > 0 {
			j.log.Debug().Str("table", table).Int64("deleted", count).Msg("Cleaned up expired cache entries")
			total += count
		}
	}
	if total > 0 {
		j.log.Info().Int64("total_deleted", total).Msg("Client data cleanup completed")
	}

	return nil
}

// Name returns the job name for logging.
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}
