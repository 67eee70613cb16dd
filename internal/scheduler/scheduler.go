package scheduler

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/vestilook/server/internal/logger"
	"codeberg.org/vestilook/server/internal/vton"
	"github.com/robfig/cron/v3"
)

const (
	// how many expired results one purge run handles
	purgeBatchSize = 200

	// upper bound for a single housekeeping run
	runTimeout = 5 * time.Minute
)

type ResultStore interface {
	ListExpiredResults(ctx context.Context, now time.Time, limit int) ([]vton.Job, error)
	ClearResult(ctx context.Context, id string) error
}

type QuotaStore interface {
	RenewQuotas(ctx context.Context, now time.Time, period time.Duration) (int64, error)
}

// StaleSweeper fails jobs whose worker is gone
type StaleSweeper interface {
	FailStale(ctx context.Context, now time.Time) (int64, error)
}

type ObjectDeleter interface {
	Delete(ctx context.Context, bucket, key string) error
}

type URLInvalidator interface {
	Invalidate(bucket, path string)
}

type Config struct {
	PurgeSchedule        string
	QuotaRenewalSchedule string
	StaleSweepSchedule   string
	ResultBucket         string
	RenewalPeriod        time.Duration
}

// Scheduler runs periodic housekeeping: purging expired results, renewing
// quotas and failing abandoned jobs
type Scheduler struct {
	cron    *cron.Cron
	config  Config
	results ResultStore
	quotas  QuotaStore
	stale   StaleSweeper
	objects ObjectDeleter
	urls    URLInvalidator
	now     func() time.Time
}

func New(cfg Config, results ResultStore, quotas QuotaStore, stale StaleSweeper, objects ObjectDeleter, urls URLInvalidator) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
		),
		config:  cfg,
		results: results,
		quotas:  quotas,
		stale:   stale,
		objects: objects,
		urls:    urls,
		now:     time.Now,
	}
}

// registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.config.PurgeSchedule, s.runPurge); err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", s.config.PurgeSchedule, err)
	}

	if _, err := s.cron.AddFunc(s.config.QuotaRenewalSchedule, s.runRenewal); err != nil {
		return fmt.Errorf("invalid quota renewal schedule %q: %w", s.config.QuotaRenewalSchedule, err)
	}

	if _, err := s.cron.AddFunc(s.config.StaleSweepSchedule, s.runStaleSweep); err != nil {
		return fmt.Errorf("invalid stale sweep schedule %q: %w", s.config.StaleSweepSchedule, err)
	}

	s.cron.Start()

	logger.Info("scheduler started",
		"purge_schedule", s.config.PurgeSchedule,
		"quota_renewal_schedule", s.config.QuotaRenewalSchedule,
		"stale_sweep_schedule", s.config.StaleSweepSchedule,
	)

	return nil
}

// stops scheduling and waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("scheduler stopped")
}

func (s *Scheduler) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	n, err := s.PurgeExpiredResults(ctx)
	if err != nil {
		logger.ErrorErr(err, "failed to purge expired results")
		return
	}

	if n > 0 {
		logger.Info("purged expired results", "count", n)
	}
}

func (s *Scheduler) runRenewal() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	n, err := s.RenewQuotas(ctx)
	if err != nil {
		logger.ErrorErr(err, "failed to renew quotas")
		return
	}

	if n > 0 {
		logger.Info("renewed quotas", "count", n)
	}
}

func (s *Scheduler) runStaleSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	n, err := s.stale.FailStale(ctx, s.now())
	if err != nil {
		logger.ErrorErr(err, "failed to sweep stale generations")
		return
	}

	if n > 0 {
		logger.Warn("failed abandoned generations", "count", n)
	}
}

// deletes stored results whose retention has passed. the job keeps its
// succeeded status and reads as expired from then on. a result that fails
// to delete is kept for the next run.
func (s *Scheduler) PurgeExpiredResults(ctx context.Context) (int, error) {
	jobs, err := s.results.ListExpiredResults(ctx, s.now(), purgeBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired results: %w", err)
	}

	purged := 0

	for _, job := range jobs {
		if job.ResultPath == nil {
			continue
		}

		path := *job.ResultPath

		if err := s.objects.Delete(ctx, s.config.ResultBucket, path); err != nil {
			logger.ErrorErr(err, "failed to delete expired result", "job_id", job.ID, "path", path)
			continue
		}

		if err := s.results.ClearResult(ctx, job.ID); err != nil {
			logger.ErrorErr(err, "failed to clear expired result", "job_id", job.ID)
			continue
		}

		s.urls.Invalidate(s.config.ResultBucket, path)
		purged++
	}

	return purged, nil
}

// resets usage for profiles whose renewal date has passed
func (s *Scheduler) RenewQuotas(ctx context.Context) (int64, error) {
	n, err := s.quotas.RenewQuotas(ctx, s.now(), s.config.RenewalPeriod)
	if err != nil {
		return 0, fmt.Errorf("failed to renew quotas: %w", err)
	}

	return n, nil
}

// routes cron's own messages through the service logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.ErrorErr(err, "cron: "+msg, keysAndValues...)
}
