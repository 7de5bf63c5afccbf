package router

import (
	"github.com/gin-gonic/gin"

	"github.com/monuchauhan/InstaBot/internal/http/handler/webhook"
)

func InstagramWebhookRouter(router *gin.RouterGroup, handler *webhook.InstagramWebhookHandler) {
	router.GET("", handler.Verify)
	router.POST("", handler.Receive)
}
