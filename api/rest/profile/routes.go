package profile

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.RouterGroup, svc Service, maxUploadBytes int64, requireAuth gin.HandlerFunc) {
	group := router.Group("/profile")
	group.Use(requireAuth)
	{
		group.GET("", GetProfileHandler(svc))
		group.PUT("/persona", UploadPersonaHandler(svc, maxUploadBytes))
		group.GET("/consent", GetConsentHandler(svc))
		group.POST("/consent", AcceptConsentHandler(svc))
	}
}
