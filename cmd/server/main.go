package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/vestilook/server/internal/config"
	"codeberg.org/vestilook/server/internal/logger"
	"codeberg.org/vestilook/server/internal/worker"
	"golang.org/x/sync/errgroup"
)

// @title Vestilook API
// @version 1.0
// @description Virtual try-on backend
// @description
// @description Features:
// @description - Consent-gated persona and garment uploads
// @description - Queued try-on generations with quota accounting
// @description - Status view models over REST and websocket
// @description - Short-lived signed URLs for stored images

// @contact.name API Support
// @contact.url https://codeberg.org/vestilook/server

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Access token issued by the auth provider. Format: Bearer {token}

func main() {
	logger.Info("starting vestilook server")

	// load configuration from environment
	cfg, err := config.LoadEnvironmentVariables()
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	logger.SetDefault(logger.New(cfg.Environment, os.Getenv("LOG_LEVEL")))

	// create server with all dependencies
	srv, err := NewServer(context.Background(), cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// start server in goroutine
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	// background work shares one lifetime and stops together
	runCtx, stopRun := context.WithCancel(context.Background())
	background, bgCtx := errgroup.WithContext(runCtx)

	background.Go(func() error {
		return srv.queue.Run(bgCtx, srv.processor.Process)
	})

	background.Go(func() error {
		return srv.policies.Watch(bgCtx)
	})

	// jobs a previous run claimed but never finished
	if _, err := srv.processor.FailStale(runCtx, time.Now()); err != nil {
		logger.ErrorErr(err, "failed to fail abandoned generations")
	}

	// jobs left queued by a previous run
	if err := worker.Recover(runCtx, srv.generationRepo, srv.queue); err != nil {
		logger.ErrorErr(err, "failed to recover queued generations")
	}

	if err := srv.scheduler.Start(); err != nil {
		logger.Fatal("failed to start scheduler", "error", err)
	}

	// wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-bgCtx.Done():
		logger.Error("background worker stopped unexpectedly")
	}

	logger.Info("shutting down server")

	// graceful shutdown with 10 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// waits for running housekeeping jobs
	srv.scheduler.Stop()

	// stop workers after the API so no dispatch races the close
	stopRun()
	srv.queue.Close() //nolint:errcheck,gosec // best-effort cleanup on shutdown

	if err := background.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorErr(err, "background worker failed")
	}

	srv.limits.Close() //nolint:errcheck,gosec // best-effort cleanup on shutdown

	// close database connection
	srv.db.Close()

	logger.Info("server stopped")
}
