package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/monuchauhan/InstaBot/common/id"
	"github.com/monuchauhan/InstaBot/core/config"
	"github.com/monuchauhan/InstaBot/internal/archive"
	"github.com/monuchauhan/InstaBot/internal/mapper"
	"github.com/monuchauhan/InstaBot/internal/queue"
)

var (
	ErrVerificationMismatch = errors.New("webhook verification token mismatch")
	ErrSignatureInvalid     = errors.New("webhook signature invalid")
)

const (
	SubscribeMode   = "subscribe"
	signaturePrefix = "sha256="
)

type IngestResult struct {
	DeliveryID string
	Enqueued   int
	Dropped    []mapper.Drop
}

type WebhookService interface {
	// VerifyChallenge answers the platform's subscription handshake with the
	// challenge when mode and token match the configuration.
	VerifyChallenge(mode, token, challenge string) (string, error)
	// VerifySignature checks an X-Hub-Signature-256 value against body.
	VerifySignature(body []byte, signature string) error
	// Ingest normalizes a verified delivery and enqueues every event in it.
	// A payload that is not an Instagram delivery returns a mapper error; an
	// enqueue failure is returned so the platform redelivers.
	Ingest(ctx context.Context, body []byte, receivedAt time.Time, traceID string) (IngestResult, error)
}

type webhookService struct {
	cfg      config.WebhookConfig
	mapper   *mapper.InstagramMapper
	producer queue.Producer
	archiver archive.Archiver
	logger   *slog.Logger
}

func NewWebhookService(cfg config.WebhookConfig, producer queue.Producer, archiver archive.Archiver, logger *slog.Logger) WebhookService {
	if logger == nil {
		logger = slog.Default()
	}
	if archiver == nil {
		archiver = archive.Noop{}
	}
	return &webhookService{
		cfg:      cfg,
		mapper:   mapper.NewInstagramMapper(),
		producer: producer,
		archiver: archiver,
		logger:   logger,
	}
}

func (s *webhookService) VerifyChallenge(mode, token, challenge string) (string, error) {
	if mode != SubscribeMode || s.cfg.VerifyToken == "" {
		return "", ErrVerificationMismatch
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.VerifyToken)) != 1 {
		return "", ErrVerificationMismatch
	}
	return challenge, nil
}

func (s *webhookService) VerifySignature(body []byte, signature string) error {
	if s.cfg.AppSecret == "" || !strings.HasPrefix(signature, signaturePrefix) {
		return ErrSignatureInvalid
	}
	got, err := hex.DecodeString(strings.TrimPrefix(signature, signaturePrefix))
	if err != nil {
		return ErrSignatureInvalid
	}
	if !hmac.Equal(got, Sign(s.cfg.AppSecret, body)) {
		return ErrSignatureInvalid
	}
	return nil
}

// Sign computes the raw HMAC-SHA256 digest of body under secret.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureHeader formats body's signature the way the platform sends it.
func SignatureHeader(secret string, body []byte) string {
	return signaturePrefix + hex.EncodeToString(Sign(secret, body))
}

func (s *webhookService) Ingest(ctx context.Context, body []byte, receivedAt time.Time, traceID string) (IngestResult, error) {
	result := IngestResult{DeliveryID: id.NewString()}
	s.archiver.Archive(ctx, archive.Delivery{ID: result.DeliveryID, ReceivedAt: receivedAt, Body: body})

	mapped, err := s.mapper.Map(body, receivedAt)
	if err != nil {
		return result, err
	}
	result.Dropped = mapped.Dropped

	for _, drop := range mapped.Dropped {
		s.logger.WarnContext(ctx, "dropping webhook item",
			"delivery_id", result.DeliveryID,
			"entry", drop.Entry,
			"item", drop.Item,
			"reason", drop.Reason)
	}

	for _, event := range mapped.Events {
		if err := s.producer.Enqueue(ctx, queue.Task{Event: event, TraceID: traceID, Attempt: 1}); err != nil {
			return result, fmt.Errorf("enqueueing event %s: %w", event.ID, err)
		}
		result.Enqueued++
	}

	s.logger.InfoContext(ctx, "webhook delivery ingested",
		"delivery_id", result.DeliveryID,
		"enqueued", result.Enqueued,
		"dropped", len(result.Dropped))
	return result, nil
}
