package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeadLetter is a task that exhausted its attempts.
type DeadLetter struct {
	ID       string
	Task     Task
	Error    string
	FailedAt time.Time
}

// DLQ inspects and replays the dead letter stream.
type DLQ struct {
	client redis.UniversalClient
	stream string
	dlq    string
	maxLen int64
}

func NewDLQ(client redis.UniversalClient, stream, dlqStream string, maxLen int64) *DLQ {
	return &DLQ{client: client, stream: stream, dlq: dlqStream, maxLen: maxLen}
}

// List returns up to count dead letters, oldest first.
func (d *DLQ) List(ctx context.Context, count int64) ([]DeadLetter, error) {
	msgs, err := d.client.XRangeN(ctx, d.dlq, "-", "+", count).Result()
	if err != nil {
		return nil, fmt.Errorf("xrange dlq: %w", err)
	}
	letters := make([]DeadLetter, 0, len(msgs))
	for _, msg := range msgs {
		letter, err := parseDeadLetter(msg)
		if err != nil {
			return nil, fmt.Errorf("parsing dead letter %s: %w", msg.ID, err)
		}
		letters = append(letters, letter)
	}
	return letters, nil
}

// Replay puts a dead letter back on the main stream as a first attempt and
// removes it from the DLQ.
func (d *DLQ) Replay(ctx context.Context, id string) (string, error) {
	msgs, err := d.client.XRange(ctx, d.dlq, id, id).Result()
	if err != nil {
		return "", fmt.Errorf("xrange dlq: %w", err)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("dead letter %s not found", id)
	}

	letter, err := parseDeadLetter(msgs[0])
	if err != nil {
		return "", err
	}
	letter.Task.Attempt = 1

	newID, err := addBounded(ctx, d.client, d.stream, d.maxLen, taskValues(letter.Task))
	if err != nil {
		return "", err
	}
	if err := d.client.XDel(ctx, d.dlq, id).Err(); err != nil {
		return newID, fmt.Errorf("xdel dlq: %w", err)
	}
	return newID, nil
}

func (d *DLQ) Len(ctx context.Context) (int64, error) {
	return d.client.XLen(ctx, d.dlq).Result()
}

func parseDeadLetter(msg redis.XMessage) (DeadLetter, error) {
	task, err := parseTask(msg.Values)
	if err != nil {
		return DeadLetter{}, err
	}
	letter := DeadLetter{
		ID:    msg.ID,
		Task:  task,
		Error: parseOptionalString(msg.Values, "error"),
	}
	if raw := parseOptionalString(msg.Values, "failed_at"); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			letter.FailedAt = t
		}
	}
	return letter, nil
}
