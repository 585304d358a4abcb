package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ImportPurger drops imports that outlived their TTL.
type ImportPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type ImportJobs struct {
	purger   ImportPurger
	interval time.Duration
}

func NewImportJobs(purger ImportPurger, interval time.Duration) *ImportJobs {
	return &ImportJobs{
		purger:   purger,
		interval: interval,
	}
}

func (j *ImportJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("purge_expired_imports", j.interval, j.PurgeExpiredImports)
}

func (j *ImportJobs) PurgeExpiredImports(ctx context.Context) error {
	purged, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge expired imports: %w", err)
	}

	if purged > 0 {
		slog.Info("Cron: Purged expired imports", "count", purged)
	}
	return nil
}
