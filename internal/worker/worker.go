package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/entitlement-service/internal/service"
)

// Job is a unit of work repeated on a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context, now time.Time) error
}

// Runner drives jobs until its context is cancelled.
type Runner struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewRunner creates a runner.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger, now: time.Now}
}

// Run starts every job in its own goroutine and blocks until ctx is done and
// all jobs have returned.
func (r *Runner) Run(ctx context.Context, jobs ...Job) {
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			r.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

// loop runs job once immediately and then on every tick. A failed run is
// logged and retried on the next tick.
func (r *Runner) loop(ctx context.Context, job Job) {
	logger := r.logger.With(zap.String("job", job.Name), zap.Duration("interval", job.Interval))
	if job.Interval <= 0 {
		logger.Error("worker not started: interval must be positive")
		return
	}
	logger.Info("worker started")

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		r.runOnce(ctx, job, logger)
		select {
		case <-ctx.Done():
			logger.Info("worker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job, logger *zap.Logger) {
	start := r.now()
	if err := job.Run(ctx, start); err != nil {
		logger.Error("job failed", zap.Error(err))
		return
	}
	logger.Debug("job finished", zap.Duration("took", time.Since(start)))
}

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// NotifyJob fires due schedules once per slot.
func NotifyJob(schedules *service.ScheduleService, slot time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "notify",
		Interval: slot,
		Run: func(ctx context.Context, now time.Time) error {
			fired, err := schedules.FireDue(ctx, now)
			if fired > 0 {
				logger.Info("notifications fired", zap.Int("count", fired), zap.Int64("slot", schedules.CurrentSlot(now)))
			}
			return err
		},
	}
}

// PurgeJob removes schedules of lapsed entitlements.
func PurgeJob(schedules *service.ScheduleService, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "purge_expired",
		Interval: interval,
		Run: func(ctx context.Context, now time.Time) error {
			removed, err := schedules.PurgeExpired(ctx, now)
			if removed > 0 {
				logger.Info("expired schedules removed", zap.Int64("count", removed))
			}
			return err
		},
	}
}
