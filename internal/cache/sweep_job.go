package cache

import "github.com/rs/zerolog"

// SweepJob removes expired entries and stale pending requests on a schedule.
type SweepJob struct {
	cache *Cache
	log   zerolog.Logger
}

// NewSweepJob creates a new cache sweep job.
func NewSweepJob(cache *Cache, log zerolog.Logger) *SweepJob {
	return &SweepJob{
		cache: cache,
		log:   log.With().Str("job", "cache_sweep").Logger(),
	}
}

// Run executes one sweep.
func (j *SweepJob) Run() error {
	expired, stale := j.cache.Sweep()
	if expired > 0 || stale > 0 {
		j.log.Debug().
			Int("expired", expired).
			Int("stale_pending", stale).
			Msg("Cache sweep completed")
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *SweepJob) Name() string {
	return "cache_sweep"
}
