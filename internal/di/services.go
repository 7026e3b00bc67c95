package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aaanmmoool/finboard/internal/cache"
	"github.com/aaanmmoool/finboard/internal/config"
	"github.com/aaanmmoool/finboard/internal/dashboard"
	"github.com/aaanmmoool/finboard/internal/events"
	"github.com/aaanmmoool/finboard/internal/fetch"
	"github.com/aaanmmoool/finboard/internal/stream"
)

// InitializeServices builds the data layer and the dashboard service on top
// of an initialized container.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.KVStore == nil {
		return fmt.Errorf("container has no key-value store")
	}

	// Request cache, restored from the persisted snapshot
	container.Cache = cache.New(container.KVStore, log, cache.WithPersistLimit(cfg.CachePersistLimit))

	fetchOpts := []fetch.Option{fetch.WithTimeout(cfg.FetchTimeout)}
	if cfg.FetchRateLimitPerMin > 0 {
		fetchOpts = append(fetchOpts, fetch.WithRateLimit(cfg.FetchRateLimitPerMin, cfg.FetchRateBurst))
	}
	container.Fetcher = fetch.New(container.Cache, log, fetchOpts...)

	container.Streams = stream.NewManager(log)
	container.EventBus = events.NewBus(log)

	container.Dashboard = dashboard.NewService(
		dashboard.NewRepository(container.KVStore),
		container.Fetcher,
		container.Streams,
		container.EventBus,
		log,
	)
	if err := container.Dashboard.Load(); err != nil {
		// A corrupt configuration starts an empty dashboard
		log.Error().Err(err).Msg("Failed to load saved widgets")
	}

	log.Info().Msg("Services initialized")
	return nil
}
