// Package main is the entry point for the FinBoard data service. It serves
// widget configuration, cached API data and live stream updates to the
// dashboard UI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aaanmmoool/finboard/internal/config"
	"github.com/aaanmmoool/finboard/internal/di"
	"github.com/aaanmmoool/finboard/internal/server"
	"github.com/aaanmmoool/finboard/pkg/logger"
)

// main orchestrates startup:
// 1. Loads configuration from environment variables (.env supported)
// 2. Initializes logging
// 3. Wires the database, cache, fetcher, stream manager and dashboard
// 4. Opens the streams of websocket widgets and starts the scheduler
// 5. Starts the HTTP server
// 6. Waits for a shutdown signal and shuts down gracefully
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting FinBoard")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	container.Dashboard.Start()
	container.Scheduler.Start()

	// Fetch every widget once instead of waiting for the first poll
	go func() {
		if err := container.Scheduler.RunNow(jobs.WidgetPoll); err != nil {
			log.Warn().Err(err).Msg("Initial widget poll failed")
		}
	}()

	srv := server.New(server.Config{
		Log:       log,
		Dashboard: container.Dashboard,
		Cache:     container.Cache,
		Streams:   container.Streams,
		Bus:       container.EventBus,
		DB:        container.DB,
		Store:     container.KVStore,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stops the scheduler, closes streams, writes the final cache snapshot
	// and closes the database.
	container.Close()

	log.Info().Msg("Server stopped")
}
