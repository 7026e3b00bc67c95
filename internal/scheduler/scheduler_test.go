package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testingpkg "github.com/aaanmmoool/finboard/internal/testing"
)

type countingJob struct {
	runs int32
	err  error
}

func (j *countingJob) Run() error {
	atomic.AddInt32(&j.runs, 1)
	return j.err
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) count() int { return int(atomic.LoadInt32(&j.runs)) }

func TestScheduler_RunsRegisteredJobs(t *testing.T) {
	s := New(zerolog.Nop())

	ok := &countingJob{}
	failing := &countingJob{err: errors.New("upstream unavailable")}
	require.NoError(t, s.AddJob("@every 1s", ok))
	require.NoError(t, s.AddJob("* * * * * *", failing))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return ok.count() > 0 && failing.count() > 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestScheduler_AddJobInvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a schedule", &countingJob{})
	assert.Error(t, err)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())

	job := &countingJob{err: errors.New("boom")}
	err := s.RunNow(job)

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, job.count())
}

func TestWALCheckpointJob(t *testing.T) {
	db := testingpkg.NewTestDB(t)

	job := NewWALCheckpointJob(db, zerolog.Nop())
	assert.Equal(t, "wal_checkpoint", job.Name())
	assert.NoError(t, job.Run())

	assert.NoError(t, NewWALCheckpointJob(nil, zerolog.Nop()).Run())
}
