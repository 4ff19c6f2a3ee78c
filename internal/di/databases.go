package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/capitol/internal/config"
	"github.com/aristath/capitol/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the three databases and applies their schemas.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{Config: cfg}

	specs := []struct {
		name    string
		profile database.DatabaseProfile
		target  **database.DB
	}{
		{database.NameLedger, database.ProfileLedger, &container.LedgerDB},
		{database.NamePortfolio, database.ProfileStandard, &container.PortfolioDB},
		{database.NameCache, database.ProfileCache, &container.CacheDB},
	}

	for _, spec := range specs {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, spec.name+".db"),
			Profile: spec.profile,
			Name:    spec.name,
		})
		if err != nil {
			closeDatabases(container)
			return nil, fmt.Errorf("failed to initialize %s database: %w", spec.name, err)
		}
		*spec.target = db

		if err := db.Migrate(); err != nil {
			closeDatabases(container)
			return nil, fmt.Errorf("failed to apply schema to %s: %w", spec.name, err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("All databases initialized and schemas applied")

	return container, nil
}

func closeDatabases(c *Container) {
	for _, db := range c.Databases() {
		_ = db.Close()
	}
}
