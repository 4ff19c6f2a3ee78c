package reliability

import (
	"context"
	"fmt"

	"github.com/aristath/capitol/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// MinFreeDiskBytes is the free space below which backups are refused.
const MinFreeDiskBytes = 500 * 1024 * 1024

// CheckDatabases checkpoints each database's WAL and runs an integrity check.
// A failed checkpoint is only logged; a failed integrity check is returned.
func CheckDatabases(ctx context.Context, databases []*database.DB, log zerolog.Logger) error {
	for _, db := range databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
		}
		if err := db.HealthCheck(ctx); err != nil {
			log.Error().Err(err).Str("database", db.Name()).Msg("Database integrity check failed")
			return fmt.Errorf("failed integrity check: %w", err)
		}
	}
	return nil
}

// CheckDiskSpace fails when the filesystem holding dir has less than minFree bytes available.
func CheckDiskSpace(dir string, minFree uint64, log zerolog.Logger) error {
	usage, err := disk.Usage(dir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	log.Debug().
		Uint64("free_mb", usage.Free/1024/1024).
		Float64("used_percent", usage.UsedPercent).
		Msg("Disk space check")

	if usage.Free < minFree {
		return fmt.Errorf("only %d MB free under %s", usage.Free/1024/1024, dir)
	}
	return nil
}
