package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPurger struct {
	calls  atomic.Int32
	purged int
	err    error
}

func (p *stubPurger) PurgeExpired(ctx context.Context) (int, error) {
	p.calls.Add(1)
	return p.purged, p.err
}

func TestScheduler_AddJobIgnoresNonPositiveInterval(t *testing.T) {
	s := NewScheduler(context.Background(), SchedulerOptions{})
	s.AddJob("never", 0, func(ctx context.Context) error { return nil })
	s.AddJob("hourly", time.Hour, func(ctx context.Context) error { return nil })

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "hourly", jobs[0].Name)
}

func TestScheduler_RunOnce(t *testing.T) {
	s := NewScheduler(context.Background(), SchedulerOptions{})
	var runs atomic.Int32
	s.AddJob("a", time.Hour, func(ctx context.Context) error { runs.Add(1); return nil })
	s.AddJob("b", time.Hour, func(ctx context.Context) error { runs.Add(1); return errors.New("boom") })

	s.RunOnce(context.Background())
	assert.Equal(t, int32(2), runs.Load())
}

func TestScheduler_StartRunsImmediatelyAndStops(t *testing.T) {
	s := NewScheduler(context.Background(), SchedulerOptions{})
	started := make(chan struct{}, 1)
	s.AddJob("tick", time.Hour, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		return nil
	})

	s.Start()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
	s.Stop()
}

func TestScheduler_JobTimeoutAndObserver(t *testing.T) {
	var results []JobResult
	s := NewScheduler(context.Background(), SchedulerOptions{
		JobTimeout: 10 * time.Millisecond,
		Observer:   func(r JobResult) { results = append(results, r) },
	})
	s.AddJob("slow", time.Hour, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	s.RunOnce(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, "slow", results[0].Name)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}

func TestScheduler_SkipsOverlappingRun(t *testing.T) {
	s := NewScheduler(context.Background(), SchedulerOptions{})
	release := make(chan struct{})
	entered := make(chan struct{})
	s.AddJob("long", time.Hour, func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	})
	job := s.Jobs()[0]

	done := make(chan bool)
	go func() { done <- s.run(context.Background(), job) }()
	<-entered

	assert.False(t, s.run(context.Background(), job))

	close(release)
	assert.True(t, <-done)
}

func TestImportJobs(t *testing.T) {
	purger := &stubPurger{purged: 3}
	jobs := NewImportJobs(purger, 15*time.Minute)

	s := NewScheduler(context.Background(), SchedulerOptions{})
	jobs.RegisterJobs(s)
	require.Len(t, s.Jobs(), 1)
	assert.Equal(t, "purge_expired_imports", s.Jobs()[0].Name)
	assert.Equal(t, 15*time.Minute, s.Jobs()[0].Interval)

	require.NoError(t, jobs.PurgeExpiredImports(context.Background()))
	assert.Equal(t, int32(1), purger.calls.Load())

	purger.err = errors.New("db down")
	assert.ErrorContains(t, jobs.PurgeExpiredImports(context.Background()), "db down")
}
