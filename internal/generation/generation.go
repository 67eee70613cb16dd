package generation

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"codeberg.org/vestilook/server/internal/garment"
	"codeberg.org/vestilook/server/internal/history"
	"codeberg.org/vestilook/server/internal/logger"
	"codeberg.org/vestilook/server/internal/status"
	"codeberg.org/vestilook/server/internal/vton"
	"codeberg.org/vestilook/server/vestilook/generations"
	"codeberg.org/vestilook/server/vestilook/profiles"
	"github.com/google/uuid"
)

var (
	ErrConsentOutdated  = errors.New("consent version is not the current policy")
	ErrConsentRequired  = errors.New("consent has not been accepted")
	ErrPersonaMissing   = errors.New("upload a persona photo first")
	ErrInvalidRetention = errors.New("retainForHours is out of range")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
)

// calls fn after every accepted submission
func WithSubmitObserver(fn func()) Option {
	return func(s *Service) {
		s.onSubmit = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(
	profiles ProfileStore,
	jobs JobStore,
	objects ObjectStore,
	dispatcher Dispatcher,
	policies PolicySource,
	garments *garment.Validator,
	resolver status.URLResolver,
	cfg Config,
	opts ...Option,
) *Service {
	s := &Service{
		profiles:   profiles,
		jobs:       jobs,
		objects:    objects,
		dispatcher: dispatcher,
		policies:   policies,
		garments:   garments,
		resolver:   resolver,
		config:     cfg,
		now:        time.Now,
		onSubmit:   func() {},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// validates a submission, snapshots its inputs into storage, charges the
// quota and queues the job. checks run in order: consent version, consent
// state, persona, garment.
func (s *Service) Create(ctx context.Context, in CreateInput) (*vton.Submission, error) {
	retain, err := s.retention(in.RetainForHours)
	if err != nil {
		return nil, err
	}

	if in.ConsentVersion != s.policies.RequiredVersion() {
		return nil, ErrConsentOutdated
	}

	rec, err := s.loadProfile(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	profile := rec.Profile(s.policies.RequiredVersion())
	if !profile.Consent.IsCompliant {
		return nil, ErrConsentRequired
	}

	persona := profile.Persona
	if persona == nil {
		return nil, ErrPersonaMissing
	}

	img, err := s.garments.Check(in.Garment)
	if err != nil {
		return nil, err
	}

	if profile.Quota.Exhausted() {
		return nil, generations.ErrQuotaExhausted
	}

	jobID := uuid.NewString()
	garmentPath := fmt.Sprintf("%s/%s.%s", in.UserID, jobID, img.Ext)
	snapshotPath := fmt.Sprintf("%s/snapshots/%s%s", in.UserID, jobID, path.Ext(persona.Path))

	if err := s.objects.Put(ctx, s.config.Buckets.Garment, garmentPath, in.Garment.Data, img.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store garment: %w", err)
	}

	if err := s.objects.Copy(ctx, s.config.Buckets.Persona, persona.Path, s.config.Buckets.Persona, snapshotPath); err != nil {
		s.discard(ctx, s.config.Buckets.Garment, garmentPath)
		return nil, fmt.Errorf("failed to snapshot persona: %w", err)
	}

	expiresAt := s.now().UTC().Add(time.Duration(retain) * time.Hour)

	job, quota, err := s.jobs.CreateWithQuota(ctx, generations.NewJob{
		ID:             jobID,
		UserID:         in.UserID,
		PersonaPath:    snapshotPath,
		GarmentPath:    garmentPath,
		ETASeconds:     s.config.ETASeconds,
		RetainForHours: retain,
		ExpiresAt:      expiresAt,
	})
	if err != nil {
		s.discard(ctx, s.config.Buckets.Garment, garmentPath)
		s.discard(ctx, s.config.Buckets.Persona, snapshotPath)

		if errors.Is(err, generations.ErrQuotaExhausted) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to queue generation: %w", err)
	}

	s.onSubmit()

	// the job stays queued on dispatch failure and is picked up again when
	// the worker restarts
	if err := s.dispatcher.Dispatch(ctx, job.ID); err != nil {
		logger.Warn("failed to dispatch generation", "job_id", job.ID, "error", err)
	}

	if err := s.profiles.SetGarmentCache(ctx, in.UserID, garmentPath, expiresAt); err != nil {
		logger.Warn("failed to record garment cache", "user_id", in.UserID, "error", err)
	}

	return &vton.Submission{Job: *job, Quota: quota}, nil
}

func (s *Service) retention(hours int) (int, error) {
	if hours == 0 {
		return s.config.DefaultRetainHours, nil
	}

	if hours < 1 || hours > s.config.MaxRetainHours {
		return 0, ErrInvalidRetention
	}

	return hours, nil
}

func (s *Service) loadProfile(ctx context.Context, userID string) (*profiles.Record, error) {
	rec, err := s.profiles.GetOrCreate(ctx, userID, s.config.FreeQuota, s.now().Add(s.config.RenewalPeriod))
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	return rec, nil
}

func (s *Service) discard(ctx context.Context, bucket, key string) {
	if err := s.objects.Delete(ctx, bucket, key); err != nil {
		logger.Warn("failed to delete orphaned object", "bucket", bucket, "path", key, "error", err)
	}
}

// returns the caller's job
func (s *Service) Get(ctx context.Context, id, userID string) (*vton.Job, error) {
	return s.jobs.Get(ctx, id, userID)
}

// returns the mapped view model of the caller's job with signed asset URLs
func (s *Service) View(ctx context.Context, id, userID string) (*status.View, error) {
	job, err := s.jobs.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	rec, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	quota := rec.Quota()
	now := s.now()

	v := status.Map(status.Input{
		Job:        job,
		FetchedAt:  now,
		Now:        now,
		Quota:      &quota,
		SupportURL: s.config.SupportURL,
		Buckets:    s.config.Buckets,
	})

	v = status.Resolve(ctx, v, s.resolver)

	return &v, nil
}

// returns a refresher that follows one of the caller's jobs from the
// server side, mapping each fetch like View does
func (s *Service) Refresher(ctx context.Context, userID, jobID string) (*status.Refresher, error) {
	rec, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	quota := rec.Quota()

	return status.NewRefresher(jobID, ownerFetcher{jobs: s.jobs, userID: userID},
		status.WithNow(s.now),
		status.WithQuota(func() *vton.Quota { return &quota }),
		status.WithSupportURL(s.config.SupportURL),
		status.WithBuckets(s.config.Buckets),
	), nil
}

// resolves asset URLs of a view produced by a Refresher
func (s *Service) Resolve(ctx context.Context, v status.View) status.View {
	return status.Resolve(ctx, v, s.resolver)
}

func (s *Service) List(ctx context.Context, userID string, f history.Filters) (history.Page, error) {
	return s.jobs.List(ctx, userID, f)
}

func (s *Service) Rate(ctx context.Context, id, userID string, rating int) (*vton.Job, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	return s.jobs.Rate(ctx, id, userID, rating)
}

type ownerFetcher struct {
	jobs   JobStore
	userID string
}

func (f ownerFetcher) FetchGeneration(ctx context.Context, id string) (*vton.Job, error) {
	return f.jobs.Get(ctx, id, f.userID)
}
