package main

import (
	"codeberg.org/vestilook/server/internal/account"
	"codeberg.org/vestilook/server/internal/assets"
	"codeberg.org/vestilook/server/internal/auth"
	"codeberg.org/vestilook/server/internal/config"
	"codeberg.org/vestilook/server/internal/consent"
	"codeberg.org/vestilook/server/internal/generation"
	"codeberg.org/vestilook/server/internal/metrics"
	"codeberg.org/vestilook/server/internal/ratelimit"
	"codeberg.org/vestilook/server/internal/scheduler"
	"codeberg.org/vestilook/server/internal/storage"
	"codeberg.org/vestilook/server/internal/worker"
	"codeberg.org/vestilook/server/vestilook/generations"
	"codeberg.org/vestilook/server/vestilook/profiles"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// holds all dependencies and state for the API server
type Server struct {
	db             *pgxpool.Pool
	config         *config.Config
	objects        *storage.Client
	profileRepo    *profiles.Repository
	generationRepo *generations.Repository
	policies       *consent.PolicyStore
	urlCache       *assets.Cache
	auth           *auth.Authenticator
	limits         *ratelimit.Store
	metrics        *metrics.Metrics
	services       *Services
	queue          worker.Queue
	processor      *worker.Processor
	scheduler      *scheduler.Scheduler
	router         *gin.Engine
}

// holds the domain services the handlers call
type Services struct {
	Account    *account.Service
	Generation *generation.Service
}
