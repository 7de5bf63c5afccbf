package platform_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/monuchauhan/InstaBot/core/config"
	"github.com/monuchauhan/InstaBot/internal/platform"
)

var _ = Describe("GraphClient", func() {
	var (
		ctx     context.Context
		server  *httptest.Server
		handler http.HandlerFunc
		client  platform.Client
		cfg     config.PlatformConfig
	)

	BeforeEach(func() {
		ctx = context.Background()
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		cfg = config.PlatformConfig{
			BaseURL:     server.URL,
			APIVersion:  "v18.0",
			CallTimeout: 200 * time.Millisecond,
		}
		client = platform.NewGraphClient(cfg, nil)
	})

	AfterEach(func() {
		server.Close()
	})

	It("posts a comment reply with the message as a query parameter", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/v18.0/1789/replies"))
			Expect(r.URL.Query().Get("message")).To(Equal("Thanks & see DMs"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer tok"))
			_, _ = w.Write([]byte(`{"id":"reply_55"}`))
		}

		res, err := client.ReplyToComment(ctx, "tok", "1789", "Thanks & see DMs")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.ID).To(Equal("reply_55"))
	})

	It("sends a direct message as JSON", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v18.0/me/messages"))
			Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
			raw, _ := io.ReadAll(r.Body)
			var body map[string]map[string]string
			Expect(json.Unmarshal(raw, &body)).To(Succeed())
			Expect(body["recipient"]["id"]).To(Equal("user_9"))
			Expect(body["message"]["text"]).To(Equal("hello"))
			_, _ = w.Write([]byte(`{"recipient_id":"user_9","message_id":"mid.1"}`))
		}

		res, err := client.SendDirectMessage(ctx, "tok", "user_9", "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.ID).To(Equal("mid.1"))
	})

	DescribeTable("classifies Graph API errors",
		func(status int, body string, check error, class platform.Class) {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(body))
			}
			_, err := client.ReplyToComment(ctx, "tok", "1", "t")
			Expect(errors.Is(err, check)).To(BeTrue(), err.Error())

			var perr *platform.Error
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Class).To(Equal(class))
			Expect(perr.StatusCode).To(Equal(status))
		},
		Entry("expired token", 400, `{"error":{"message":"Error validating access token","type":"OAuthException","code":190,"error_subcode":463}}`,
			platform.ErrCredentialInvalid, platform.ClassCredentialInvalid),
		Entry("credential errors are permanent too", 400, `{"error":{"code":190}}`,
			platform.ErrPermanent, platform.ClassCredentialInvalid),
		Entry("permission revoked", 403, `{"error":{"message":"Permissions error","code":10}}`,
			platform.ErrCredentialInvalid, platform.ClassCredentialInvalid),
		Entry("missing scope", 400, `{"error":{"code":200}}`,
			platform.ErrCredentialInvalid, platform.ClassCredentialInvalid),
		Entry("rate limited by code", 400, `{"error":{"message":"Application request limit reached","code":4}}`,
			platform.ErrTransient, platform.ClassTransient),
		Entry("rate limited by status", 429, `{}`,
			platform.ErrTransient, platform.ClassTransient),
		Entry("server error", 503, `upstream unavailable`,
			platform.ErrTransient, platform.ClassTransient),
		Entry("invalid parameter", 400, `{"error":{"code":100,"message":"Invalid parameter"}}`,
			platform.ErrPermanent, platform.ClassPermanent),
		Entry("bare unauthorized", 401, ``,
			platform.ErrCredentialInvalid, platform.ClassCredentialInvalid),
	)

	It("treats a timeout as transient", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
		}
		_, err := client.ReplyToComment(ctx, "tok", "1", "t")
		Expect(platform.Retryable(err)).To(BeTrue())
	})

	It("treats a refused connection as transient", func() {
		server.Close()
		_, err := client.SendDirectMessage(ctx, "tok", "u", "t")
		Expect(platform.Retryable(err)).To(BeTrue())
	})

	It("opens the breaker after repeated transient failures and not for permanent ones", func() {
		var calls atomic.Int32
		handler = func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":100}}`))
		}
		for i := 0; i < 8; i++ {
			_, err := client.ReplyToComment(ctx, "tok", "1", "t")
			Expect(errors.Is(err, platform.ErrPermanent)).To(BeTrue())
		}
		Expect(calls.Load()).To(Equal(int32(8)))

		calls.Store(0)
		handler = func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}
		for i := 0; i < 8; i++ {
			_, err := client.ReplyToComment(ctx, "tok", "1", "t")
			Expect(platform.Retryable(err)).To(BeTrue())
		}
		Expect(calls.Load()).To(Equal(int32(5)))
	})
})
