package middleware_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/monuchauhan/InstaBot/internal/http/middleware"
)

var _ = Describe("middleware", func() {
	var (
		router *gin.Engine
		buf    *bytes.Buffer
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		buf = &bytes.Buffer{}
		slog.SetDefault(slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

		router = gin.New()
		router.Use(middleware.Recovery())
		router.Use(middleware.Logger("/health"))
		router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
		router.GET("/boom", func(c *gin.Context) { panic("kaboom") })
		router.GET("/webhooks/instagram", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	})

	serve := func(target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		return w
	}

	It("turns a panic into a 500 and logs it", func() {
		w := serve("/boom")

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(buf.String()).To(ContainSubstring("panic recovered"))
		Expect(buf.String()).To(ContainSubstring("kaboom"))
	})

	It("logs requests without the query string", func() {
		serve("/webhooks/instagram?hub.verify_token=secret-token")

		Expect(buf.String()).To(ContainSubstring(`"path":"/webhooks/instagram"`))
		Expect(buf.String()).NotTo(ContainSubstring("secret-token"))
	})

	It("keeps health probes out of the info log", func() {
		serve("/health")
		Expect(buf.String()).To(BeEmpty())
	})
})
