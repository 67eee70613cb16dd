package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/vestilook/server/internal/logger"
	"codeberg.org/vestilook/server/internal/status"
	"codeberg.org/vestilook/server/internal/vertex"
	"codeberg.org/vestilook/server/internal/vton"
	"codeberg.org/vestilook/server/vestilook/generations"
)

var resultExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

func WithObserver(o Observer) ProcessorOption {
	return func(p *Processor) {
		p.observer = o
	}
}

func WithProcessTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.timeout = d
	}
}

func NewProcessor(jobs JobStore, objects ObjectStore, tryon TryOner, buckets status.Buckets, opts ...ProcessorOption) *Processor {
	p := &Processor{
		jobs:     jobs,
		objects:  objects,
		tryon:    tryon,
		buckets:  buckets,
		observer: nopObserver{},
		timeout:  defaultProcessTimeout,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// claims a queued job and drives it to a final status. a job another
// worker already claimed is skipped. failures of the job itself are
// recorded on the job; only store errors are returned.
func (p *Processor) Process(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	job, err := p.jobs.MarkProcessing(ctx, jobID)
	if errors.Is(err, generations.ErrNotClaimable) {
		logger.Debug("generation already claimed", "job_id", jobID)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to claim generation: %w", err)
	}

	log := logger.With("job_id", job.ID, "user_id", job.UserID)

	person, err := p.objects.Get(ctx, p.buckets.Persona, job.PersonaPath)
	if err != nil {
		return p.fail(ctx, job, vton.CodeInternalError, "persona snapshot could not be read", err)
	}

	garment, err := p.objects.Get(ctx, p.buckets.Garment, job.GarmentPath)
	if err != nil {
		return p.fail(ctx, job, vton.CodeInternalError, "garment could not be read", err)
	}

	started := p.now()
	result, err := p.tryon.TryOn(ctx, person, garment)
	if err != nil {
		code := vertex.CodeOf(err)
		p.observer.TryOnDuration(p.now().Sub(started), code)

		return p.fail(ctx, job, code, failureMessage(err), err)
	}

	p.observer.TryOnDuration(p.now().Sub(started), "")

	ext, ok := resultExtensions[result.MimeType]
	if !ok {
		ext = "png"
	}

	resultPath := fmt.Sprintf("%s/%s.%s", job.UserID, job.ID, ext)

	if err := p.objects.Put(ctx, p.buckets.Result, resultPath, result.Image, result.MimeType); err != nil {
		return p.fail(ctx, job, vton.CodeInternalError, "result could not be stored", err)
	}

	if err := p.jobs.MarkSucceeded(ctx, job.ID, resultPath, result.RequestID); err != nil {
		return fmt.Errorf("failed to mark generation succeeded: %w", err)
	}

	p.observer.Completed(vton.StatusSucceeded, "")
	log.Info("generation succeeded", "result_path", resultPath)

	return nil
}

func (p *Processor) fail(ctx context.Context, job *vton.Job, code vton.ErrorCode, message string, cause error) error {
	logger.Warn("generation failed",
		"job_id", job.ID,
		"user_id", job.UserID,
		"error_code", code,
		"error", cause,
	)

	// record the failure even if the job's own deadline has passed
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := p.jobs.MarkFailed(markCtx, job.ID, code, message); err != nil {
		return fmt.Errorf("failed to mark generation failed: %w", err)
	}

	p.observer.Completed(vton.StatusFailed, code)

	return nil
}

// fails jobs left processing by a worker that died or could not record the
// outcome. a job still within twice the process timeout is left alone since
// its worker may still finish it.
func (p *Processor) FailStale(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-staleFactor * p.timeout)

	n, err := p.jobs.FailStale(ctx, cutoff, vton.CodeInternalError, "the generation was interrupted, please try again")
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale generations: %w", err)
	}

	for range n {
		p.observer.Completed(vton.StatusFailed, vton.CodeInternalError)
	}

	return n, nil
}

// user-facing failure text; provider messages are only used when present
func failureMessage(err error) string {
	var vErr *vertex.Error
	if errors.As(err, &vErr) && vErr.Message != "" {
		return vErr.Message
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "the try-on service did not answer in time"
	}

	return "the try-on service could not process this request"
}

// hands jobs left queued by a previous run back to the queue
func Recover(ctx context.Context, jobs JobStore, queue Queue) error {
	ids, err := jobs.ListQueued(ctx, recoverLimit)
	if err != nil {
		return fmt.Errorf("failed to list queued generations: %w", err)
	}

	for _, id := range ids {
		if err := queue.Dispatch(ctx, id); err != nil {
			return fmt.Errorf("failed to dispatch generation %s: %w", id, err)
		}
	}

	if len(ids) > 0 {
		logger.Info("re-dispatched queued generations", "count", len(ids))
	}

	return nil
}
