package main

import (
	"fmt"
	"time"

	"codeberg.org/vestilook/server/api/rest/generations"
	"codeberg.org/vestilook/server/api/rest/health"
	"codeberg.org/vestilook/server/api/rest/profile"
	"codeberg.org/vestilook/server/api/rest/session"
	"codeberg.org/vestilook/server/api/websocket"
	"codeberg.org/vestilook/server/internal/config"
	"codeberg.org/vestilook/server/internal/logger"
	"codeberg.org/vestilook/server/internal/status"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// how often the status stream polls a job
const streamInterval = 3 * time.Second

// sets up all API routes and middleware
func RegisterRoutes(router *gin.Engine, server *Server) error {
	router.Use(gin.Recovery(), logger.Middleware(), CORSMiddleware(server.config))

	router.GET("/health", health.Handler)
	router.GET("/ready", health.ReadyHandler(map[string]health.Pinger{
		"postgres": server.db,
		"redis":    server.limits,
	}))
	router.GET("/metrics", server.metrics.Handler())

	submitLimit, err := server.limits.Middleware("generations", server.config.RateLimit.Generations)
	if err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_GENERATIONS: %w", err)
	}

	requireAuth := server.auth.Middleware()

	api := router.Group("/api")

	{
		api.GET("/ping", health.PingHandler)

		session.RegisterRoutes(api, server.auth)
		profile.RegisterRoutes(api, server.services.Account, server.config.Persona.MaxBytes, requireAuth)
		generations.RegisterRoutes(api, server.services.Generation, server.config.Garment.MaxBytes, requireAuth, submitLimit)
		websocket.RegisterRoutes(api, server.services.Generation, websocket.StreamConfig{
			Interval:       status.FixedInterval(streamInterval),
			AllowedOrigins: server.config.AllowedOrigins,
			Production:     server.config.IsProduction(),
		}, requireAuth)
	}

	return nil
}

// allows credentialed requests from the configured origins and exposes
// the Location header of accepted generations
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Location", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		// credentials rule out a wildcard, so echo the origin in development
		corsConfig.AllowOriginFunc = func(string) bool { return !cfg.IsProduction() }
	}

	return cors.New(corsConfig)
}
