package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/monuchauhan/InstaBot/internal/mapper"
	"github.com/monuchauhan/InstaBot/internal/service"
)

const SignatureHeader = "X-Hub-Signature-256"

type InstagramWebhookHandler struct {
	webhooks     service.WebhookService
	maxBodyBytes int64
	traceHeader  string
	now          func() time.Time
}

func NewInstagramWebhookHandler(webhooks service.WebhookService, maxBodyBytes int64, traceHeader string) *InstagramWebhookHandler {
	return &InstagramWebhookHandler{
		webhooks:     webhooks,
		maxBodyBytes: maxBodyBytes,
		traceHeader:  traceHeader,
		now:          time.Now,
	}
}

// Verify answers the subscription handshake.
func (h *InstagramWebhookHandler) Verify(c *gin.Context) {
	ctx := c.Request.Context()

	challenge, err := h.webhooks.VerifyChallenge(
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
	)
	if err != nil {
		slog.WarnContext(ctx, "webhook verification rejected", "mode", c.Query("hub.mode"))
		c.JSON(http.StatusForbidden, gin.H{"error": "verification failed"})
		return
	}

	slog.InfoContext(ctx, "webhook subscription verified")
	c.String(http.StatusOK, challenge)
}

// Receive accepts one delivery. The response only acknowledges receipt;
// processing happens on the worker.
func (h *InstagramWebhookHandler) Receive(c *gin.Context) {
	ctx := c.Request.Context()
	receivedAt := h.now()

	reader := c.Request.Body
	if h.maxBodyBytes > 0 {
		reader = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.WarnContext(ctx, "webhook body too large", "limit", tooLarge.Limit)
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if err := h.webhooks.VerifySignature(body, c.GetHeader(SignatureHeader)); err != nil {
		slog.WarnContext(ctx, "webhook signature rejected", "body_bytes", len(body))
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	traceID := c.GetHeader(h.traceHeader)
	if traceID == "" {
		if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
			traceID = spanCtx.TraceID().String()
		}
	}

	result, err := h.webhooks.Ingest(ctx, body, receivedAt, traceID)
	switch {
	case errors.Is(err, mapper.ErrMalformedPayload), errors.Is(err, mapper.ErrUnsupportedObject):
		// Redelivering would not change the body, so acknowledge it.
		slog.WarnContext(ctx, "ignoring unrecognized webhook payload",
			"error", err,
			"delivery_id", result.DeliveryID)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	case err != nil:
		slog.ErrorContext(ctx, "failed to enqueue webhook events",
			"error", err,
			"delivery_id", result.DeliveryID,
			"enqueued", result.Enqueued)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unable to accept events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "enqueued": result.Enqueued})
}
