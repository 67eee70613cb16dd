package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"codeberg.org/vestilook/server/internal/logger"
)

const (
	serviceName = "vestilook"
	version     = "1.0.0"

	readyTimeout = 2 * time.Second
)

// Handler godoc
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} Response
// @Router /health [get]
func Handler(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Status:  "healthy",
		Service: serviceName,
		Version: version,
	})
}

// ReadyHandler godoc
// @Summary Readiness check
// @Description Pings the database and the rate limit store
// @Tags health
// @Produce json
// @Success 200 {object} ReadyResponse
// @Failure 503 {object} ReadyResponse
// @Router /ready [get]
func ReadyHandler(deps map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(deps))}
		code := http.StatusOK

		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				logger.FromContext(ctx).Warn("readiness check failed", "dependency", name, "error", err)
				resp.Checks[name] = err.Error()
				resp.Status = "unavailable"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		c.JSON(code, resp)
	}
}

// responds with pong for testing
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, PingResponse{Message: "pong"})
}
