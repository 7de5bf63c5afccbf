package service_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/monuchauhan/InstaBot/core/config"
	"github.com/monuchauhan/InstaBot/internal/mapper"
	"github.com/monuchauhan/InstaBot/internal/model"
	"github.com/monuchauhan/InstaBot/internal/queue"
	"github.com/monuchauhan/InstaBot/internal/service"
)

const delivery = `{
	"object": "instagram",
	"entry": [{
		"id": "17841400000",
		"time": 1775034000,
		"changes": [
			{"field": "comments", "value": {"id": "c-1", "text": "price?", "from": {"id": "u-1", "username": "a"}}},
			{"field": "comments", "value": {"text": "no id here", "from": {"id": "u-2"}}}
		],
		"messaging": [
			{"sender": {"id": "u-3"}, "recipient": {"id": "17841400000"}, "timestamp": 1775034000000,
			 "message": {"mid": "m-1", "text": "hello"}}
		]
	}]
}`

var _ = Describe("WebhookService", func() {
	var (
		ctx      context.Context
		producer *mockProducer
		archiver *recordingArchiver
		svc      service.WebhookService
		cfg      config.WebhookConfig
	)

	BeforeEach(func() {
		ctx = context.Background()
		producer = &mockProducer{}
		archiver = &recordingArchiver{}
		cfg = config.WebhookConfig{AppSecret: "app-secret", VerifyToken: "verify-me"}
		svc = service.NewServices(service.ServicesConfig{
			Webhook:  cfg,
			Producer: producer,
			Archiver: archiver,
		}).Webhooks()
	})

	Describe("VerifyChallenge", func() {
		It("echoes the challenge for a matching token", func() {
			got, err := svc.VerifyChallenge("subscribe", "verify-me", "1158201444")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("1158201444"))
		})

		DescribeTable("rejects a mismatch",
			func(mode, token string) {
				_, err := svc.VerifyChallenge(mode, token, "1158201444")
				Expect(err).To(MatchError(service.ErrVerificationMismatch))
			},
			Entry("wrong token", "subscribe", "guess"),
			Entry("empty token", "subscribe", ""),
			Entry("wrong mode", "unsubscribe", "verify-me"),
		)

		It("rejects everything when no token is configured", func() {
			cfg.VerifyToken = ""
			svc = service.NewWebhookService(cfg, producer, nil, nil)
			_, err := svc.VerifyChallenge("subscribe", "", "x")
			Expect(err).To(MatchError(service.ErrVerificationMismatch))
		})
	})

	Describe("VerifySignature", func() {
		body := []byte(delivery)

		It("accepts the platform's signature", func() {
			Expect(svc.VerifySignature(body, service.SignatureHeader("app-secret", body))).To(Succeed())
		})

		DescribeTable("rejects a bad signature",
			func(header string) {
				Expect(svc.VerifySignature(body, header)).To(MatchError(service.ErrSignatureInvalid))
			},
			Entry("missing", ""),
			Entry("no prefix", "deadbeef"),
			Entry("not hex", "sha256=zz"),
			Entry("other secret", service.SignatureHeader("other", body)),
			Entry("sha1 scheme", "sha1=0123456789abcdef0123456789abcdef01234567"),
		)

		It("rejects a body altered after signing", func() {
			header := service.SignatureHeader("app-secret", body)
			altered := append([]byte(`{"tampered":true}`), body...)
			Expect(svc.VerifySignature(altered, header)).To(MatchError(service.ErrSignatureInvalid))
		})
	})

	Describe("Ingest", func() {
		receivedAt := time.Date(2026, 4, 1, 9, 0, 5, 0, time.UTC)

		It("enqueues every parsed event and reports drops", func() {
			res, err := svc.Ingest(ctx, []byte(delivery), receivedAt, "0af7651916cd43dd8448eb211c80319c")

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Enqueued).To(Equal(2))
			Expect(res.Dropped).To(HaveLen(1))
			Expect(producer.tasks).To(HaveLen(2))
			Expect(producer.tasks[0].Event.Kind).To(Equal(model.EventKindCommentCreated))
			Expect(producer.tasks[1].Event.Kind).To(Equal(model.EventKindMessageReceived))
			Expect(producer.tasks[0].TraceID).To(Equal("0af7651916cd43dd8448eb211c80319c"))
			Expect(producer.tasks[0].Attempt).To(Equal(1))
		})

		It("archives the raw delivery", func() {
			res, err := svc.Ingest(ctx, []byte(delivery), receivedAt, "")
			Expect(err).NotTo(HaveOccurred())

			Expect(archiver.deliveries).To(HaveLen(1))
			Expect(archiver.deliveries[0].ID).To(Equal(res.DeliveryID))
			Expect(archiver.deliveries[0].Body).To(Equal([]byte(delivery)))
		})

		It("returns enqueue failures so the platform retries", func() {
			producer.enqueueFn = func(queue.Task) error { return queue.ErrQueueFull }

			_, err := svc.Ingest(ctx, []byte(delivery), receivedAt, "")
			Expect(err).To(MatchError(queue.ErrQueueFull))
		})

		It("returns a mapper error for a body that is not a delivery", func() {
			_, err := svc.Ingest(ctx, []byte("not json"), receivedAt, "")
			Expect(errors.Is(err, mapper.ErrMalformedPayload)).To(BeTrue())
			Expect(producer.tasks).To(BeEmpty())
		})

		It("returns a mapper error for another object type", func() {
			_, err := svc.Ingest(ctx, []byte(`{"object":"page","entry":[]}`), receivedAt, "")
			Expect(err).To(MatchError(mapper.ErrUnsupportedObject))
		})
	})
})
