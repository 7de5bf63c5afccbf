package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/monuchauhan/InstaBot/common/id"
	"github.com/monuchauhan/InstaBot/common/logger"
	"github.com/monuchauhan/InstaBot/common/otel"
	"github.com/monuchauhan/InstaBot/common/secret"
	"github.com/monuchauhan/InstaBot/core/config"
	"github.com/monuchauhan/InstaBot/core/db"
	"github.com/monuchauhan/InstaBot/internal/dispatch"
	"github.com/monuchauhan/InstaBot/internal/events"
	"github.com/monuchauhan/InstaBot/internal/platform"
	"github.com/monuchauhan/InstaBot/internal/queue"
	"github.com/monuchauhan/InstaBot/internal/quota"
	"github.com/monuchauhan/InstaBot/internal/rules"
	"github.com/monuchauhan/InstaBot/internal/store"
	"github.com/monuchauhan/InstaBot/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "instabot worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer,
		"concurrency", cfg.Worker.Concurrency)

	if err := id.Init(id.NodeWorker); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
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
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	tokens, err := secret.NewBox(cfg.EncryptionKey)
	if err != nil {
		slog.ErrorContext(ctx, "failed to derive token key", "error", err)
		os.Exit(1)
	}

	var publisher events.Publisher = &events.NoopPublisher{}
	if cfg.Alerts.Enabled() {
		natsPublisher, err := events.NewNATSPublisher(cfg.Alerts.NATSURL, nats.Name("instabot-worker"))
		if err != nil {
			slog.ErrorContext(ctx, "failed to connect to nats", "error", err)
			os.Exit(1)
		}
		publisher = natsPublisher
		slog.InfoContext(ctx, "credential alerts enabled", "url", cfg.Alerts.NATSURL)
	}
	defer publisher.Close()

	stores := store.NewStores(database)

	dispatcher, err := dispatch.New(cfg.Dispatch, dispatch.Deps{
		Attempts:  stores.ActionAttempts(),
		Quota:     quota.NewStoreTracker(stores.Quotas()),
		Policy:    quota.NewPolicy(cfg.Tiers),
		Client:    platform.NewGraphClient(cfg.Platform, nil),
		Tokens:    tokens,
		Publisher: publisher,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create dispatcher", "error", err)
		os.Exit(1)
	}

	ruleProvider := rules.NewCachedProvider(rules.NewStoreProvider(stores.Rules()), redisClient, cfg.Worker.RuleCacheTTL)
	processor := worker.NewProcessor(stores.Accounts(), ruleProvider, dispatcher)
	workerCfg := worker.Config{MaxAttempts: cfg.Worker.MaxAttempts}

	consumerCfg := func(name string) queue.ConsumerConfig {
		return queue.ConsumerConfig{
			Stream:         cfg.Pipeline.RedisStream,
			Group:          cfg.Pipeline.RedisGroup,
			Consumer:       name,
			DLQStream:      cfg.Pipeline.RedisDLQStream,
			DelayedSet:     cfg.Pipeline.RedisDelayedSet,
			BatchSize:      1, // one event at a time per worker
			Block:          5 * time.Second,
			MaxAttempts:    cfg.Worker.MaxAttempts,
			RetryBaseDelay: cfg.Worker.RetryBaseDelay,
			RetryMaxDelay:  cfg.Worker.RetryMaxDelay,
		}
	}

	pool, err := worker.NewPool(cfg.Worker.Concurrency, func(i int) (*worker.Worker, error) {
		consumer, err := queue.NewRedisConsumer(ctx, redisClient, consumerCfg(fmt.Sprintf("%s-%d", cfg.Pipeline.RedisConsumer, i)))
		if err != nil {
			return nil, err
		}
		return worker.New(consumer, processor, workerCfg), nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create worker pool", "error", err)
		os.Exit(1)
	}

	reclaimName := cfg.Pipeline.RedisConsumer + "-reclaimer"
	reclaimConsumer, err := queue.NewRedisConsumer(ctx, redisClient, consumerCfg(reclaimName))
	if err != nil {
		slog.ErrorContext(ctx, "failed to create reclaim consumer", "error", err)
		os.Exit(1)
	}
	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:        cfg.Pipeline.RedisStream,
		Group:         cfg.Pipeline.RedisGroup,
		Consumer:      reclaimName,
		MinIdle:       cfg.Worker.ReclaimMinIdle,
		Interval:      time.Minute,
		BatchSize:     10,
		MaxDeliveries: int64(cfg.Worker.MaxAttempts),
	}, reclaimConsumer, worker.New(reclaimConsumer, processor, workerCfg).Handle)

	scheduler := queue.NewScheduler(redisClient, queue.SchedulerConfig{
		DelayedSet: cfg.Pipeline.RedisDelayedSet,
		Stream:     cfg.Pipeline.RedisStream,
		Interval:   time.Second,
		BatchSize:  100,
	})

	housekeeping := worker.NewHousekeeping(stores.ActionAttempts(), stores.Quotas(), worker.HousekeepingConfig{
		AttemptLease:       cfg.Dispatch.AttemptLease,
		QuotaRetentionDays: cfg.Dispatch.QuotaRetentionDays,
	})
	if err := housekeeping.Start(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to start housekeeping", "error", err)
		os.Exit(1)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		pool.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		reclaimer.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := scheduler.Run(ctx); err != nil {
			slog.ErrorContext(ctx, "retry scheduler stopped", "error", err)
		}
	}()

	slog.InfoContext(ctx, "worker initialized and running", "workers", pool.Size())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Stop intake first, then let in-flight dispatches finish.
		reclaimer.Stop()
		scheduler.Stop()
		pool.Stop()
		housekeeping.Stop()
		wg.Wait()
		close(done)
	}()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case <-done:
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
 _           _        _           _
(_)_ __  ___| |_ __ _| |__   ___ | |_
| | '_ \/ __| __/ _' | '_ \ / _ \| __|
| | | | \__ \ || (_| | |_) | (_) | |_
|_|_| |_|___/\__\__,_|_.__/ \___/ \__|   worker
`
