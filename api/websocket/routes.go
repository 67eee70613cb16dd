package websocket

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.RouterGroup, src Source, cfg StreamConfig, requireAuth gin.HandlerFunc) {
	router.GET("/vton/generations/:id/stream", requireAuth, StreamHandler(src, cfg))
}
