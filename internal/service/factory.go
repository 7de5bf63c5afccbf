package service

import (
	"log/slog"

	"github.com/monuchauhan/InstaBot/core/config"
	"github.com/monuchauhan/InstaBot/internal/archive"
	"github.com/monuchauhan/InstaBot/internal/queue"
)

type ServicesConfig struct {
	Webhook  config.WebhookConfig
	Producer queue.Producer
	Archiver archive.Archiver
	Logger   *slog.Logger
}

type Services struct {
	cfg ServicesConfig
}

func NewServices(cfg ServicesConfig) *Services {
	return &Services{cfg: cfg}
}

func (s *Services) Webhooks() WebhookService {
	return NewWebhookService(s.cfg.Webhook, s.cfg.Producer, s.cfg.Archiver, s.cfg.Logger)
}
