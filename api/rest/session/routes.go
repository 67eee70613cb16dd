package session

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.RouterGroup, bridge Bridge) {
	router.POST("/auth/session", Handler(bridge))
}
