package account

import (
	"context"
	"time"

	"codeberg.org/vestilook/server/internal/consent"
	"codeberg.org/vestilook/server/internal/garment"
	"codeberg.org/vestilook/server/internal/vton"
	"codeberg.org/vestilook/server/vestilook/profiles"
)

// ProfileStore persists profiles
type ProfileStore interface {
	GetOrCreate(ctx context.Context, userID string, freeTotal int, renewsAt time.Time) (*profiles.Record, error)
	AcceptConsent(ctx context.Context, userID, version string, acceptedAt time.Time) (*profiles.Record, bool, error)
	SetPersona(ctx context.Context, userID string, p vton.Persona) (*profiles.Record, error)
}

type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Delete(ctx context.Context, bucket, key string) error
}

// URLInvalidator drops cached signed URLs for an object
type URLInvalidator interface {
	Invalidate(bucket, path string)
}

type PolicySource interface {
	Current() *consent.Policy
}

type Config struct {
	PersonaBucket string
	FreeQuota     int
	RenewalPeriod time.Duration
}

// Service owns the profile side of a user: consent, persona and quota
type Service struct {
	profiles ProfileStore
	objects  ObjectStore
	urls     URLInvalidator
	policies PolicySource
	personas *garment.Validator
	config   Config
	now      func() time.Time
}
