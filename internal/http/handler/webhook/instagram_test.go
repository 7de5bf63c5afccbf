package webhook_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/monuchauhan/InstaBot/core/config"
	"github.com/monuchauhan/InstaBot/internal/http/handler/webhook"
	"github.com/monuchauhan/InstaBot/internal/queue"
	"github.com/monuchauhan/InstaBot/internal/service"
)

type fakeProducer struct {
	mu    sync.Mutex
	tasks []queue.Task
	err   error
}

func (f *fakeProducer) Enqueue(_ context.Context, task queue.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

const commentDelivery = `{"object":"instagram","entry":[{"id":"17841400000","time":1775034000,"changes":[{"field":"comments","value":{"id":"c-1","text":"price?","from":{"id":"u-1","username":"a"}}}]}]}`

var _ = Describe("InstagramWebhookHandler", func() {
	const secret = "app-secret"

	var (
		router   *gin.Engine
		buf      *bytes.Buffer
		producer *fakeProducer
	)

	post := func(body, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/instagram", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set(webhook.SignatureHeader, signature)
		}
		req.Header.Set("X-Trace-ID", "0af7651916cd43dd8448eb211c80319c")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	sign := func(body string) string {
		return service.SignatureHeader(secret, []byte(body))
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		buf = &bytes.Buffer{}
		slog.SetDefault(slog.New(slog.NewJSONHandler(buf, nil)))

		producer = &fakeProducer{}
		svc := service.NewWebhookService(config.WebhookConfig{AppSecret: secret, VerifyToken: "verify-me"}, producer, nil, nil)
		h := webhook.NewInstagramWebhookHandler(svc, 1024, "X-Trace-ID")
		router.GET("/webhooks/instagram", h.Verify)
		router.POST("/webhooks/instagram", h.Receive)
	})

	Describe("GET handshake", func() {
		It("echoes the challenge", func() {
			req := httptest.NewRequest(http.MethodGet, "/webhooks/instagram?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(Equal("42"))
		})

		It("rejects a wrong token", func() {
			req := httptest.NewRequest(http.MethodGet, "/webhooks/instagram?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(w.Body.String()).NotTo(ContainSubstring("42"))
		})
	})

	Describe("POST delivery", func() {
		It("enqueues events from a signed delivery", func() {
			w := post(commentDelivery, sign(commentDelivery))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"enqueued":1`))
			Expect(producer.tasks).To(HaveLen(1))
			Expect(producer.tasks[0].Event.ID).To(Equal("c-1"))
			Expect(producer.tasks[0].TraceID).To(Equal("0af7651916cd43dd8448eb211c80319c"))
			Expect(buf.String()).To(ContainSubstring("webhook delivery ingested"))
		})

		It("rejects an unsigned delivery before parsing", func() {
			w := post(commentDelivery, "")

			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(producer.tasks).To(BeEmpty())
			Expect(buf.String()).To(ContainSubstring("webhook signature rejected"))
		})

		It("rejects a delivery signed with another secret", func() {
			w := post(commentDelivery, service.SignatureHeader("other", []byte(commentDelivery)))
			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(producer.tasks).To(BeEmpty())
		})

		It("acknowledges a signed body it cannot use", func() {
			body := `{"object":"page","entry":[]}`
			w := post(body, sign(body))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring("ignored"))
			Expect(buf.String()).To(ContainSubstring("ignoring unrecognized webhook payload"))
		})

		It("asks the platform to retry when the queue is unavailable", func() {
			producer.err = queue.ErrQueueFull

			w := post(commentDelivery, sign(commentDelivery))

			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(buf.String()).To(ContainSubstring("failed to enqueue webhook events"))
		})

		It("refuses an oversized body", func() {
			body := `{"object":"instagram","entry":[],"pad":"` + strings.Repeat("x", 2048) + `"}`
			w := post(body, sign(body))

			Expect(w.Code).To(Equal(http.StatusRequestEntityTooLarge))
			Expect(producer.tasks).To(BeEmpty())
		})
	})
})
