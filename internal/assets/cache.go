package assets

import (
	"context"
	"time"

	"codeberg.org/vestilook/server/internal/logger"
)

const (
	DefaultFreshFor = 60 * time.Second
	DefaultURLTTL   = 60 * time.Second
)

// sets how long a signed URL is reused before signing again
func WithFreshFor(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.freshFor = d
		}
	}
}

// sets the lifetime requested from the signer
func WithURLTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.urlTTL = d
		}
	}
}

// overrides the clock
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// registers a callback for every lookup outcome
func WithObserver(fn func(result string)) Option {
	return func(c *Cache) {
		c.observe = fn
	}
}

func New(signer Signer, opts ...Option) *Cache {
	c := &Cache{
		signer:   signer,
		freshFor: DefaultFreshFor,
		urlTTL:   DefaultURLTTL,
		now:      time.Now,
		observe:  func(string) {},
		entries:  make(map[string]entry),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func key(bucket, path string) string {
	return bucket + ":" + path
}

// returns a signed URL for the object, reusing a fresh one unless forced.
// signing failures evict the entry and report the asset as unavailable.
func (c *Cache) Lookup(ctx context.Context, bucket, path string, forceRefresh bool) SignedURL {
	k := key(bucket, path)

	if !forceRefresh {
		c.mu.Lock()
		e, ok := c.entries[k]
		c.mu.Unlock()

		if ok && c.now().Before(e.expiresAt) {
			c.observe(ResultHit)
			return SignedURL{URL: e.url, ExpiresAt: e.expiresAt, Available: true}
		}
	}

	url, err := c.signer.SignURL(ctx, bucket, path, c.urlTTL)
	if err != nil {
		c.Invalidate(bucket, path)
		c.observe(ResultUnavailable)

		logger.FromContext(ctx).Warn("failed to sign asset url",
			"bucket", bucket,
			"path", path,
			"error", err,
		)

		return SignedURL{Available: false}
	}

	e := entry{url: url, expiresAt: c.now().Add(c.freshFor)}

	// last write wins when two lookups race
	c.mu.Lock()
	c.entries[k] = e
	c.mu.Unlock()

	c.observe(ResultMiss)
	return SignedURL{URL: e.url, ExpiresAt: e.expiresAt, Available: true}
}

// drops the cached URL for one object
func (c *Cache) Invalidate(bucket, path string) {
	c.mu.Lock()
	delete(c.entries, key(bucket, path))
	c.mu.Unlock()
}

// drops every cached URL
func (c *Cache) Clear() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
