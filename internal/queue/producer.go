package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// ErrQueueFull is returned when the stream already holds the configured maximum
// of outstanding entries.
var ErrQueueFull = errors.New("queue full")

type Producer interface {
	Enqueue(ctx context.Context, task Task) error
	Close() error
}

// boundedAdd appends to the stream only while its length is below ARGV[1].
var boundedAdd = redis.NewScript(`
if redis.call('XLEN', KEYS[1]) >= tonumber(ARGV[1]) then
  return false
end
return redis.call('XADD', KEYS[1], '*', unpack(ARGV, 2))
`)

type redisProducer struct {
	client redis.UniversalClient
	stream string
	maxLen int64
	logger *slog.Logger
}

// NewRedisProducer returns a Producer writing to stream. maxLen <= 0 disables the bound.
func NewRedisProducer(client redis.UniversalClient, stream string, maxLen int64, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, task Task) error {
	if _, err := addBounded(ctx, p.client, p.stream, p.maxLen, taskValues(task)); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "enqueued event",
		"event_id", task.Event.ID,
		"event_kind", task.Event.Kind,
		"attempt", task.Attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}

func addBounded(ctx context.Context, client redis.UniversalClient, stream string, maxLen int64, values map[string]any) (string, error) {
	if maxLen <= 0 {
		id, err := client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Result()
		if err != nil {
			return "", fmt.Errorf("enqueue event: %w", err)
		}
		return id, nil
	}

	args := append([]any{maxLen}, flatten(values)...)
	id, err := boundedAdd.Run(ctx, client, []string{stream}, args...).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrQueueFull
		}
		return "", fmt.Errorf("enqueue event: %w", err)
	}
	return id, nil
}
