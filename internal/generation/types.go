package generation

import (
	"context"
	"time"

	"codeberg.org/vestilook/server/internal/garment"
	"codeberg.org/vestilook/server/internal/history"
	"codeberg.org/vestilook/server/internal/status"
	"codeberg.org/vestilook/server/internal/vton"
	"codeberg.org/vestilook/server/vestilook/generations"
	"codeberg.org/vestilook/server/vestilook/profiles"
)

type ProfileStore interface {
	GetOrCreate(ctx context.Context, userID string, freeTotal int, renewsAt time.Time) (*profiles.Record, error)
	SetGarmentCache(ctx context.Context, userID, path string, expiresAt time.Time) error
}

type JobStore interface {
	CreateWithQuota(ctx context.Context, nj generations.NewJob) (*vton.Job, vton.Quota, error)
	Get(ctx context.Context, id, userID string) (*vton.Job, error)
	List(ctx context.Context, userID string, f history.Filters) (history.Page, error)
	Rate(ctx context.Context, id, userID string, rating int) (*vton.Job, error)
}

type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	Delete(ctx context.Context, bucket, key string) error
}

// Dispatcher hands a queued job to the worker
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

type PolicySource interface {
	RequiredVersion() string
}

type Config struct {
	Buckets            status.Buckets
	ETASeconds         int
	DefaultRetainHours int
	MaxRetainHours     int
	FreeQuota          int
	RenewalPeriod      time.Duration
	SupportURL         string
}

// CreateInput is a validated-at-the-edge generation request
type CreateInput struct {
	UserID         string
	ConsentVersion string
	RetainForHours int
	Garment        *garment.File
}

// Service creates generation jobs and serves them back to their owner
type Service struct {
	profiles   ProfileStore
	jobs       JobStore
	objects    ObjectStore
	dispatcher Dispatcher
	policies   PolicySource
	garments   *garment.Validator
	resolver   status.URLResolver
	config     Config
	now        func() time.Time
	onSubmit   func()
}

type Option func(*Service)
