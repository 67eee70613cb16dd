package ratelimit

import (
	"context"
	"fmt"

	"codeberg.org/vestilook/server/internal/auth"
	apierrors "codeberg.org/vestilook/server/internal/errors"
	"codeberg.org/vestilook/server/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const keyPrefix = "vestilook:ratelimit"

// Store is where limiter counters live. NewStore picks redis when a URL is
// configured so several instances share one budget.
type Store struct {
	store  limiter.Store
	client *redis.Client
}

func NewStore(ctx context.Context, redisURL string) (*Store, error) {
	if redisURL == "" {
		return &Store{store: memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: keyPrefix})}, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck,gosec // best-effort cleanup on init failure
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: keyPrefix})
	if err != nil {
		client.Close() //nolint:errcheck,gosec // best-effort cleanup on init failure
		return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
	}

	return &Store{store: store, client: client}, nil
}

// checks the shared counter store; the in-memory store is always reachable
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}

	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}

	return nil
}

// returns a middleware allowing rate requests per user, formatted like
// "10-M". anonymous callers are keyed by client IP.
func (s *Store) Middleware(name, rate string) (gin.HandlerFunc, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", rate, err)
	}

	l := limiter.New(s.store, r)

	return mgin.NewMiddleware(l,
		mgin.WithKeyGetter(func(c *gin.Context) string {
			return name + ":" + key(c)
		}),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			logger.Debug("rate limit reached", "limiter", name, "key", key(c))
			apierrors.TooManyRequests(c, "too many requests, slow down and try again shortly")
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			apierrors.InternalError(c, "rate limiter unavailable", err)
		}),
	), nil
}

func key(c *gin.Context) string {
	if userID, ok := auth.GetUserID(c); ok {
		return "user:" + userID
	}

	return "ip:" + c.ClientIP()
}
