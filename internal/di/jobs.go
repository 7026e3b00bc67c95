package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aaanmmoool/finboard/internal/cache"
	"github.com/aaanmmoool/finboard/internal/config"
	"github.com/aaanmmoool/finboard/internal/dashboard"
	"github.com/aaanmmoool/finboard/internal/scheduler"
)

// RegisterJobs creates the background jobs and registers them with a new
// scheduler. The scheduler is stored in the container but not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)
	instances := &JobInstances{
		CacheSweep:    cache.NewSweepJob(container.Cache, log),
		WidgetPoll:    dashboard.NewPollJob(container.Dashboard, cfg.FetchTimeout, log),
		WALCheckpoint: scheduler.NewWALCheckpointJob(container.DB, log),
	}

	registrations := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.CacheSweepSchedule, instances.CacheSweep},
		{cfg.WidgetPollSchedule, instances.WidgetPoll},
		{cfg.WALCheckpointSchedule, instances.WALCheckpoint},
	}
	for _, reg := range registrations {
		if err := sched.AddJob(reg.schedule, reg.job); err != nil {
			return nil, fmt.Errorf("failed to register %s job: %w", reg.job.Name(), err)
		}
	}

	container.Scheduler = sched
	log.Info().Int("jobs", len(registrations)).Msg("Jobs registered")

	return instances, nil
}
