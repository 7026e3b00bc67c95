package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aaanmmoool/finboard/internal/config"
	"github.com/aaanmmoool/finboard/internal/database"
	"github.com/aaanmmoool/finboard/internal/kvstore"
)

// InitializeDatabases opens finboard.db, applies the schema and creates the
// key-value store on top of it.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileStandard,
		Name:    "finboard",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize finboard database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate finboard database: %w", err)
	}
	container.DB = db
	container.KVStore = kvstore.NewRepository(db.Conn())

	log.Info().Str("path", db.Path()).Msg("Database initialized")

	return container, nil
}
