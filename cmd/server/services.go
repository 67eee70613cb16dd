package main

import (
	"context"
	"fmt"

	"codeberg.org/vestilook/server/internal/account"
	"codeberg.org/vestilook/server/internal/config"
	"codeberg.org/vestilook/server/internal/garment"
	"codeberg.org/vestilook/server/internal/generation"
	"codeberg.org/vestilook/server/internal/logger"
	"codeberg.org/vestilook/server/internal/status"
	"codeberg.org/vestilook/server/internal/worker"
)

// pending ids the in-process queue holds before Dispatch blocks
const memoryQueueSize = 256

// creates the account and generation services
func InitializeServices(cfg *config.Config, srv *Server) *Services {
	garments := garment.NewValidator(garment.Constraints{
		MinWidth:     cfg.Garment.MinWidth,
		MinHeight:    cfg.Garment.MinHeight,
		MaxBytes:     cfg.Garment.MaxBytes,
		MaxPixels:    cfg.Garment.MaxPixels,
		AllowedTypes: cfg.Garment.AllowedTypes,
	}, garment.SniffContent())

	personas := garment.NewValidator(garment.Constraints{
		MinWidth:     cfg.Persona.MinWidth,
		MinHeight:    cfg.Persona.MinHeight,
		MaxBytes:     cfg.Persona.MaxBytes,
		MaxPixels:    cfg.Persona.MaxPixels,
		AllowedTypes: cfg.Persona.AllowedTypes,
	}, garment.SniffContent())

	accountService := account.New(
		srv.profileRepo,
		srv.objects,
		srv.urlCache,
		srv.policies,
		personas,
		account.Config{
			PersonaBucket: cfg.Storage.PersonaBucket,
			FreeQuota:     cfg.Quota.FreeTotal,
			RenewalPeriod: cfg.Quota.RenewalPeriod,
		},
	)

	generationService := generation.New(
		srv.profileRepo,
		srv.generationRepo,
		srv.objects,
		srv.queue,
		srv.policies,
		garments,
		srv.urlCache,
		generation.Config{
			Buckets:            buckets(cfg),
			ETASeconds:         cfg.Generation.ETASeconds,
			DefaultRetainHours: cfg.Generation.DefaultRetainHours,
			MaxRetainHours:     cfg.Generation.MaxRetainHours,
			FreeQuota:          cfg.Quota.FreeTotal,
			RenewalPeriod:      cfg.Quota.RenewalPeriod,
			SupportURL:         cfg.SupportURL,
		},
		generation.WithSubmitObserver(srv.metrics.Submitted),
	)

	return &Services{
		Account:    accountService,
		Generation: generationService,
	}
}

// picks kafka when brokers are configured, otherwise the in-process queue
func newQueue(ctx context.Context, cfg *config.Config) (worker.Queue, error) {
	if len(cfg.Worker.KafkaBrokers) == 0 {
		logger.Info("using in-process generation queue", "concurrency", cfg.Worker.Concurrency)
		return worker.NewMemoryQueue(memoryQueueSize, cfg.Worker.Concurrency), nil
	}

	queue, err := worker.NewKafkaQueue(ctx, worker.KafkaConfig{
		Brokers:     cfg.Worker.KafkaBrokers,
		Topic:       cfg.Worker.KafkaTopic,
		GroupID:     cfg.Worker.KafkaGroupID,
		Concurrency: cfg.Worker.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to kafka: %w", err)
	}

	logger.Info("using kafka generation queue",
		"brokers", cfg.Worker.KafkaBrokers,
		"topic", cfg.Worker.KafkaTopic,
	)

	return queue, nil
}

func buckets(cfg *config.Config) status.Buckets {
	return status.Buckets{
		Persona: cfg.Storage.PersonaBucket,
		Garment: cfg.Storage.GarmentBucket,
		Result:  cfg.Storage.ResultBucket,
	}
}
