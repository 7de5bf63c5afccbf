package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/monuchauhan/InstaBot/common/id"
	"github.com/monuchauhan/InstaBot/common/logger"
	"github.com/monuchauhan/InstaBot/common/otel"
	"github.com/monuchauhan/InstaBot/core/config"
	"github.com/monuchauhan/InstaBot/core/db"
	"github.com/monuchauhan/InstaBot/internal/archive"
	"github.com/monuchauhan/InstaBot/internal/http/handler"
	"github.com/monuchauhan/InstaBot/internal/http/middleware"
	httprouter "github.com/monuchauhan/InstaBot/internal/http/router"
	"github.com/monuchauhan/InstaBot/internal/queue"
	"github.com/monuchauhan/InstaBot/internal/service"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "instabot server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(id.NodeServer); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream, "max_len", cfg.Pipeline.QueueMaxLen)

	eventProducer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, cfg.Pipeline.QueueMaxLen, slog.Default())
	defer eventProducer.Close()

	var archiver archive.Archiver = archive.Noop{}
	if cfg.Archive.Enabled() {
		s3Client, err := archive.NewS3Client(ctx, cfg.Archive)
		if err != nil {
			slog.ErrorContext(ctx, "failed to create s3 client", "error", err)
			os.Exit(1)
		}
		archiver = archive.NewS3Archiver(s3Client, cfg.Archive.Bucket, 256)
		slog.InfoContext(ctx, "raw delivery archive enabled", "bucket", cfg.Archive.Bucket)
	}

	services := service.NewServices(service.ServicesConfig{
		Webhook:  cfg.Webhook,
		Producer: eventProducer,
		Archiver: archiver,
		Logger:   slog.Default(),
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, map[string]handler.Check{
		"database": database.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if err := archiver.Close(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "archive flush error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services, checks map[string]handler.Check) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger(httprouter.HealthPath))

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		TraceHeaderName: cfg.Pipeline.TraceHeaderName,
		MaxBodyBytes:    cfg.Webhook.MaxBodyBytes,
		HealthChecks:    checks,
	})

	return router
}

const banner = `
 _           _        _           _
(_)_ __  ___| |_ __ _| |__   ___ | |_
| | '_ \/ __| __/ _' | '_ \ / _ \| __|
| | | | \__ \ || (_| | |_) | (_) | |_
|_|_| |_|___/\__\__,_|_.__/ \___/ \__|   server
`
