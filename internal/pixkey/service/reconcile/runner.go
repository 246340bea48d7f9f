package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"pixkeys/internal/pixkey/ports"
	"pixkeys/pkg/platform/sentinel"
	"pixkeys/pkg/requestcontext"
)

// Job is one periodic reconciliation task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

// Runner ticks every job on its interval. Each run holds a named lock so
// only one replica runs a job at a time.
type Runner struct {
	locker ports.Locker
	jobs   []Job
	logger *slog.Logger
}

func NewRunner(svc *Service, locker ports.Locker, logger *slog.Logger) (*Runner, error) {
	if svc == nil {
		return nil, errors.New("reconcile service is required")
	}
	if locker == nil {
		return nil, errors.New("locker is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		locker: locker,
		logger: logger,
		jobs: []Job{
			{Name: "expire_stale", Interval: svc.config.ExpireInterval, Run: svc.ExpireStale},
			{Name: "sync_claims", Interval: svc.config.ClaimSyncEvery, Run: svc.SyncClaims},
			{Name: "expire_ownership_waiting", Interval: svc.config.WaitingInterval, Run: svc.ExpireOwnershipWaiting},
		},
	}, nil
}

func (r *Runner) Jobs() []Job {
	return r.jobs
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range r.jobs {
		if job.Interval <= 0 {
			r.logger.WarnContext(ctx, "reconcile job disabled", "job", job.Name)
			continue
		}
		g.Go(func() error {
			ticker := time.NewTicker(job.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := r.RunOnce(ctx, job); err != nil {
						r.logger.ErrorContext(ctx, "reconcile job failed", "job", job.Name, "error", err)
					}
				case <-ctx.Done():
					return nil
				}
			}
		})
	}
	return g.Wait()
}

// RunOnce runs job if no other replica holds its lock. A held lock is not
// an error.
func (r *Runner) RunOnce(ctx context.Context, job Job) error {
	release, err := r.locker.TryLock(ctx, "reconcile:"+job.Name, lockTTL(job.Interval))
	if errors.Is(err, sentinel.ErrLockHeld) {
		r.logger.DebugContext(ctx, "reconcile job running elsewhere", "job", job.Name)
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.logger.WarnContext(ctx, "failed to release reconcile lock", "job", job.Name, "error", err)
		}
	}()

	start := time.Now()
	n, err := job.Run(requestcontext.WithTime(ctx, requestcontext.Now(ctx)))
	if err != nil {
		return err
	}
	r.logger.DebugContext(ctx, "reconcile job finished",
		"job", job.Name,
		"emitted", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func lockTTL(interval time.Duration) time.Duration {
	if interval <= 0 {
		return time.Minute
	}
	return interval
}
