package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/monuchauhan/InstaBot/common/id"
	"github.com/monuchauhan/InstaBot/common/logger"
)

type ConsumerConfig struct {
	Stream         string        // Redis stream name
	Group          string        // Redis consumer group name
	Consumer       string        // Redis consumer name
	DLQStream      string        // Dead letter stream for tasks past MaxAttempts
	DelayedSet     string        // Sorted set holding retries until they are due
	BatchSize      int64         // Number of messages to read per call
	Block          time.Duration // How long to block waiting for new messages
	MaxAttempts    int           // Attempts before a task goes to the DLQ
	RetryBaseDelay time.Duration // Delay before the second attempt, doubled after each failure
	RetryMaxDelay  time.Duration // Upper bound on the retry delay
}

type Message struct {
	ID        string
	Task      Task
	LastError string
	Raw       redis.XMessage
}

type RedisConsumer struct {
	client redis.UniversalClient
	cfg    ConsumerConfig
}

func NewRedisConsumer(ctx context.Context, client redis.UniversalClient, cfg ConsumerConfig) (*RedisConsumer, error) {
	consumer := &RedisConsumer{
		client: client,
		cfg:    cfg,
	}

	if err := consumer.ensureGroup(ctx); err != nil {
		return nil, err
	}

	return consumer, nil
}

func (c *RedisConsumer) Config() ConsumerConfig {
	return c.cfg
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// Starting from "0" instead of "$" keeps entries added before the group existed.
	if err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err(); err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "instabot.queue.consumer",
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		// ">" reads entries never delivered to this group. Entries left pending
		// by a dead consumer are picked up by the reclaimer.
		Streams: []string{c.cfg.Stream, ">"},
		Count:   c.cfg.BatchSize,
		Block:   c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			parsed, parseErr := ParseMessage(msg)
			if parseErr != nil {
				slog.ErrorContext(ctx, "failed to parse message",
					"error", parseErr,
					"raw_message_id", msg.ID,
					"stream", c.cfg.Stream)
				_ = c.Ack(ctx, Message{ID: msg.ID, Raw: msg})
				continue
			}
			messages = append(messages, parsed)
		}
	}

	if len(messages) > 0 {
		slog.DebugContext(ctx, "read messages from stream",
			"count", len(messages),
			"stream", c.cfg.Stream,
			"consumer", c.cfg.Consumer)
	}

	return messages, nil
}

// Ack acknowledges and deletes the entry so the stream length tracks
// outstanding work.
func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID)
		pipe.XDel(ctx, c.cfg.Stream, msg.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}

	slog.DebugContext(ctx, "message acknowledged", "stream", c.cfg.Stream, "message_id", msg.ID)
	return nil
}

// RetryDelay is the wait before attempt number next.
func (c *RedisConsumer) RetryDelay(next int) time.Duration {
	return retryDelay(c.cfg.RetryBaseDelay, c.cfg.RetryMaxDelay, next)
}

func retryDelay(base, maxDelay time.Duration, next int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 2; i < next; i++ {
		d *= 2
		if maxDelay > 0 && d >= maxDelay {
			return maxDelay
		}
	}
	if maxDelay > 0 && d > maxDelay {
		return maxDelay
	}
	return d
}

type delayedEntry struct {
	Nonce  int64          `json:"n"`
	Values map[string]any `json:"v"`
}

// Requeue acknowledges msg and schedules its next attempt after the backoff
// delay. The scheduler moves it back onto the stream once due.
func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	next := msg.Task.Attempt + 1

	task := msg.Task
	task.Attempt = next
	values := taskValues(task)
	if errMsg != "" {
		values["last_error"] = logger.Truncate(errMsg, 512)
	}

	member, err := json.Marshal(delayedEntry{Nonce: id.New(), Values: values})
	if err != nil {
		return fmt.Errorf("encoding delayed task: %w", err)
	}

	delay := c.RetryDelay(next)
	due := time.Now().Add(delay)

	if err := c.client.ZAdd(ctx, c.cfg.DelayedSet, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: string(member),
	}).Err(); err != nil {
		return fmt.Errorf("zadd requeue: %w", err)
	}
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for requeue: %w", err)
	}

	slog.InfoContext(ctx, "message requeued for retry",
		"next_attempt", next,
		"delay", delay.String(),
		"reason", errMsg)
	return nil
}

func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	values := taskValues(msg.Task)
	values["error"] = logger.Truncate(errMsg, 1024)
	values["failed_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DLQStream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", c.cfg.DLQStream, err)
	}
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for dlq: %w", err)
	}

	slog.ErrorContext(ctx, "message sent to DLQ",
		"final_error", errMsg,
		"dlq_stream", c.cfg.DLQStream)
	return nil
}

func ParseMessage(msg redis.XMessage) (Message, error) {
	task, err := parseTask(msg.Values)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:        msg.ID,
		Task:      task,
		LastError: parseOptionalString(msg.Values, "last_error"),
		Raw:       msg,
	}, nil
}
