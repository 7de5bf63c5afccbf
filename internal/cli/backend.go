package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/monuchauhan/InstaBot/common/secret"
	"github.com/monuchauhan/InstaBot/core/config"
	"github.com/monuchauhan/InstaBot/core/db"
	"github.com/monuchauhan/InstaBot/internal/queue"
	"github.com/monuchauhan/InstaBot/internal/store"
)

// EnvBackend connects to the Postgres and Redis instances named by the loaded
// configuration, opening each on first use.
type EnvBackend struct {
	cfg config.Config

	mu          sync.Mutex
	database    *db.DB
	redisClient *redis.Client
}

func NewEnvBackend(cfg config.Config) *EnvBackend {
	return &EnvBackend{cfg: cfg}
}

func (b *EnvBackend) Migrate(dir db.Direction) (uint, error) {
	return db.Migrate(b.cfg.DB.DSN, dir)
}

func (b *EnvBackend) DLQ(ctx context.Context) (*queue.DLQ, error) {
	client, err := b.redis(ctx)
	if err != nil {
		return nil, err
	}
	p := b.cfg.Pipeline
	return queue.NewDLQ(client, p.RedisStream, p.RedisDLQStream, p.QueueMaxLen), nil
}

func (b *EnvBackend) Attempts(ctx context.Context) (store.ActionAttemptStore, error) {
	stores, err := b.stores(ctx)
	if err != nil {
		return nil, err
	}
	return stores.ActionAttempts(), nil
}

func (b *EnvBackend) Quotas(ctx context.Context) (store.QuotaStore, error) {
	stores, err := b.stores(ctx)
	if err != nil {
		return nil, err
	}
	return stores.Quotas(), nil
}

func (b *EnvBackend) Tokens() (*secret.Box, error) {
	return secret.NewBox(b.cfg.EncryptionKey)
}

func (b *EnvBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.database != nil {
		b.database.Close()
	}
	if b.redisClient != nil {
		_ = b.redisClient.Close()
	}
}

func (b *EnvBackend) stores(ctx context.Context) (*store.Stores, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.database == nil {
		database, err := db.New(ctx, b.cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		b.database = database
	}
	return store.NewStores(b.database), nil
}

func (b *EnvBackend) redis(ctx context.Context) (*redis.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.redisClient != nil {
		return b.redisClient, nil
	}
	opts, err := redis.ParseURL(b.cfg.Pipeline.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	b.redisClient = client
	return client, nil
}
