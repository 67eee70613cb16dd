package generations

import (
	"github.com/gin-gonic/gin"
)

// registers generation routes. requireAuth guards every route, submitLimit
// only the submission endpoint.
func RegisterRoutes(router *gin.RouterGroup, svc Service, maxUploadBytes int64, requireAuth, submitLimit gin.HandlerFunc) {
	group := router.Group("/vton/generations")
	group.Use(requireAuth)
	{
		group.POST("", submitLimit, CreateHandler(svc, maxUploadBytes))
		group.GET("", ListHandler(svc))
		group.GET("/:id", GetHandler(svc))
		group.GET("/:id/view", ViewHandler(svc))
		group.POST("/:id/rating", RateHandler(svc))
	}
}
