package cron

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Job represents a scheduled job
type Job struct {
	Name     string
	Interval time.Duration
	Fn       func(ctx context.Context) error
}

// JobResult describes one finished job run
type JobResult struct {
	Name     string
	Err      error
	Duration time.Duration
}

// SchedulerOptions tunes job execution. The zero value runs jobs unbounded
// and unobserved.
type SchedulerOptions struct {
	// JobTimeout bounds every single job run
	JobTimeout time.Duration
	// Observer is called after every job run, e.g. to export metrics
	Observer func(JobResult)
}

// Scheduler runs jobs at fixed intervals until stopped. A job whose previous
// run is still going is skipped for that tick.
type Scheduler struct {
	jobs     []Job
	running  map[string]*atomic.Bool
	timeout  time.Duration
	observer func(JobResult)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewScheduler creates a scheduler whose jobs stop when parent is cancelled or Stop is called
func NewScheduler(parent context.Context, opts SchedulerOptions) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		jobs:     make([]Job, 0),
		running:  make(map[string]*atomic.Bool),
		timeout:  opts.JobTimeout,
		observer: opts.Observer,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// AddJob adds a job to the scheduler. Non-positive intervals are ignored.
func (s *Scheduler) AddJob(name string, interval time.Duration, fn func(ctx context.Context) error) {
	if interval <= 0 {
		slog.Warn("Cron job not registered: interval must be positive", "name", name, "interval", interval)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = append(s.jobs, Job{
		Name:     name,
		Interval: interval,
		Fn:       fn,
	})
	s.running[name] = &atomic.Bool{}
	slog.Info("Cron job registered", "name", name, "interval", interval)
}

// Jobs returns the registered jobs
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Job(nil), s.jobs...)
}

// Start runs every job once right away and then on its interval
func (s *Scheduler) Start() {
	jobs := s.Jobs()
	for _, job := range jobs {
		s.wg.Add(1)
		go s.loop(job)
	}

	slog.Info("Cron scheduler started", "job_count", len(jobs))
}

// Stop cancels running jobs and waits for their loops to exit
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	slog.Info("Cron scheduler stopped")
}

func (s *Scheduler) loop(job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.run(s.ctx, job)

	for {
		select {
		case <-s.ctx.Done():
			slog.Debug("Cron job stopping", "name", job.Name)
			return
		case <-ticker.C:
			s.run(s.ctx, job)
		}
	}
}

// run executes one job unless its previous run has not finished yet.
// It reports false when the run was skipped.
func (s *Scheduler) run(ctx context.Context, job Job) bool {
	s.mu.Lock()
	busy := s.running[job.Name]
	s.mu.Unlock()

	if busy != nil {
		if !busy.CompareAndSwap(false, true) {
			slog.Warn("Cron job skipped: previous run still active", "name", job.Name)
			return false
		}
		defer busy.Store(false)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := job.Fn(ctx)
	result := JobResult{Name: job.Name, Err: err, Duration: time.Since(start)}

	if err != nil {
		slog.Error("Cron job failed", "name", job.Name, "error", err, "duration", result.Duration)
	} else {
		slog.Debug("Cron job completed", "name", job.Name, "duration", result.Duration)
	}
	if s.observer != nil {
		s.observer(result)
	}
	return true
}

// RunOnce runs all jobs once, synchronously
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, job := range s.Jobs() {
		s.run(ctx, job)
	}
}
