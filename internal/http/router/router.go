package router

import (
	"github.com/gin-gonic/gin"

	"github.com/monuchauhan/InstaBot/internal/http/handler"
	"github.com/monuchauhan/InstaBot/internal/http/handler/webhook"
	"github.com/monuchauhan/InstaBot/internal/service"
)

const HealthPath = "/health"

type RouterConfig struct {
	TraceHeaderName string
	MaxBodyBytes    int64
	HealthChecks    map[string]handler.Check
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET(HealthPath, handler.NewHealthHandler(cfg.HealthChecks).Health)

	instagramHandler := webhook.NewInstagramWebhookHandler(services.Webhooks(), cfg.MaxBodyBytes, cfg.TraceHeaderName)
	InstagramWebhookRouter(router.Group("/webhooks/instagram"), instagramHandler)
}
