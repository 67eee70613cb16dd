package main

import (
	"context"
	"fmt"

	"codeberg.org/vestilook/server/internal/assets"
	"codeberg.org/vestilook/server/internal/auth"
	"codeberg.org/vestilook/server/internal/config"
	"codeberg.org/vestilook/server/internal/consent"
	"codeberg.org/vestilook/server/internal/logger"
	"codeberg.org/vestilook/server/internal/metrics"
	"codeberg.org/vestilook/server/internal/ratelimit"
	"codeberg.org/vestilook/server/internal/scheduler"
	"codeberg.org/vestilook/server/internal/storage"
	"codeberg.org/vestilook/server/internal/vertex"
	"codeberg.org/vestilook/server/internal/worker"
	"codeberg.org/vestilook/server/vestilook/generations"
	"codeberg.org/vestilook/server/vestilook/profiles"
	"github.com/gin-gonic/gin"
)

// creates and configures a new server instance with all dependencies
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := storage.NewPool(ctx, cfg.SupabaseConnString)
	if err != nil {
		return nil, err
	}

	objects, err := storage.NewClient(ctx,
		cfg.Storage.Endpoint,
		cfg.Storage.AccessKey,
		cfg.Storage.SecretKey,
		storage.Region(cfg.Storage.Region),
		storage.ConnAttempts(cfg.Storage.ConnectAttempts),
		storage.UsePathStyle(cfg.Storage.Endpoint != ""),
	)
	if err != nil {
		db.Close()
		return nil, err
	}

	policies, err := consent.LoadPolicyStore(cfg.Consent.PolicyPath, cfg.Consent.PolicyURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load consent policy: %w", err)
	}

	logger.Info("consent policy loaded",
		"path", cfg.Consent.PolicyPath,
		"version", policies.RequiredVersion(),
	)

	authenticator, err := auth.New(auth.Config{
		JWTSecret:     cfg.Auth.JWTSecret,
		Audience:      cfg.Auth.JWTAudience,
		SessionSecret: cfg.Auth.SessionSecret,
		LoginPath:     cfg.Auth.LoginPath,
		SecureCookies: cfg.IsProduction(),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	limits, err := ratelimit.NewStore(ctx, cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	queue, err := newQueue(ctx, cfg)
	if err != nil {
		limits.Close() //nolint:errcheck,gosec // best-effort cleanup on init failure
		db.Close()
		return nil, err
	}

	m := metrics.New()

	// one cache per process, shared by every handler that resolves URLs
	urlCache := assets.New(objects,
		assets.WithFreshFor(cfg.Storage.SignedURLFresh),
		assets.WithURLTTL(cfg.Storage.SignedURLTTL),
		assets.WithObserver(m.URLLookup),
	)

	profileRepo := profiles.NewRepository(db)
	generationRepo := generations.NewRepository(db)

	tryon := vertex.NewClient(vertex.Config{
		Endpoint:    cfg.Vertex.Endpoint,
		AccessToken: cfg.Vertex.AccessToken,
		RateLimit:   cfg.Vertex.RateLimit,
		Timeout:     cfg.Vertex.Timeout,
	})

	processor := worker.NewProcessor(generationRepo, objects, tryon, buckets(cfg),
		worker.WithObserver(m),
	)

	housekeeping := scheduler.New(scheduler.Config{
		PurgeSchedule:        cfg.Scheduler.PurgeSchedule,
		QuotaRenewalSchedule: cfg.Scheduler.QuotaRenewalSchedule,
		StaleSweepSchedule:   cfg.Scheduler.StaleSweepSchedule,
		ResultBucket:         cfg.Storage.ResultBucket,
		RenewalPeriod:        cfg.Quota.RenewalPeriod,
	}, generationRepo, profileRepo, processor, objects, urlCache)

	router := gin.New()

	server := &Server{
		db:             db,
		config:         cfg,
		objects:        objects,
		profileRepo:    profileRepo,
		generationRepo: generationRepo,
		policies:       policies,
		urlCache:       urlCache,
		auth:           authenticator,
		limits:         limits,
		metrics:        m,
		queue:          queue,
		processor:      processor,
		scheduler:      housekeeping,
		router:         router,
	}

	server.services = InitializeServices(cfg, server)

	if err := RegisterRoutes(router, server); err != nil {
		server.close()
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}

	return server, nil
}

// releases connections held by the server
func (s *Server) close() {
	s.queue.Close()  //nolint:errcheck,gosec // best-effort cleanup on shutdown
	s.limits.Close() //nolint:errcheck,gosec // best-effort cleanup on shutdown
	s.db.Close()
}
