package assets

import (
	"context"
	"sync"
	"time"
)

// Signer issues time-limited URLs for stored objects
type Signer interface {
	SignURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
}

// SignerFunc adapts a function to Signer
type SignerFunc func(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)

func (f SignerFunc) SignURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	return f(ctx, bucket, path, ttl)
}

// SignedURL is the result of a lookup. Available is false when signing failed.
type SignedURL struct {
	URL       string    `json:"url,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	Available bool      `json:"available"`
}

// lookup outcomes reported to the observer
const (
	ResultHit         = "hit"
	ResultMiss        = "miss"
	ResultUnavailable = "unavailable"
)

type entry struct {
	url       string
	expiresAt time.Time
}

type Cache struct {
	signer   Signer
	freshFor time.Duration
	urlTTL   time.Duration
	now      func() time.Time
	observe  func(result string)

	mu      sync.Mutex
	entries map[string]entry
}

type Option func(*Cache)
