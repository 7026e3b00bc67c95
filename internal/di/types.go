/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the HTTP server for access to services.
 */
package di

import (
	"github.com/aaanmmoool/finboard/internal/cache"
	"github.com/aaanmmoool/finboard/internal/dashboard"
	"github.com/aaanmmoool/finboard/internal/database"
	"github.com/aaanmmoool/finboard/internal/events"
	"github.com/aaanmmoool/finboard/internal/fetch"
	"github.com/aaanmmoool/finboard/internal/kvstore"
	"github.com/aaanmmoool/finboard/internal/scheduler"
	"github.com/aaanmmoool/finboard/internal/stream"
)

// Container holds all application dependencies
type Container struct {
	// Storage
	DB      *database.DB
	KVStore *kvstore.Repository

	// Data layer
	Cache   *cache.Cache
	Fetcher *fetch.Fetcher
	Streams *stream.Manager

	// Application
	EventBus  *events.Bus
	Dashboard *dashboard.Service
	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered background jobs
type JobInstances struct {
	CacheSweep    scheduler.Job
	WidgetPoll    scheduler.Job
	WALCheckpoint scheduler.Job
}
