package dashboard

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aaanmmoool/finboard/internal/utils"
)

// PollJob refreshes HTTP widgets whose refresh interval has elapsed.
type PollJob struct {
	service *Service
	timeout time.Duration
	log     zerolog.Logger
}

// NewPollJob creates a poll job. Each run is bounded by timeout.
func NewPollJob(service *Service, timeout time.Duration, log zerolog.Logger) *PollJob {
	return &PollJob{
		service: service,
		timeout: timeout,
		log:     log.With().Str("job", "widget_poll").Logger(),
	}
}

// Run refreshes the widgets that are due.
func (j *PollJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	defer utils.OperationTimer(j.Name(), j.log)()

	if n := j.service.RefreshDue(ctx); n > 0 {
		j.log.Debug().Int("refreshed", n).Msg("Widgets polled")
	}
	return nil
}

// Name returns the job name
func (j *PollJob) Name() string {
	return "widget_poll"
}
