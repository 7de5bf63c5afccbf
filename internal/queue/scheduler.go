package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// promote moves one delayed entry onto the stream. The ZREM guard keeps two
// schedulers from promoting the same entry.
var promote = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 1 then
  return redis.call('XADD', KEYS[2], '*', unpack(ARGV, 2))
end
return false
`)

type SchedulerConfig struct {
	DelayedSet string
	Stream     string
	Interval   time.Duration
	BatchSize  int64
}

// Scheduler promotes due retries from the delayed set back onto the stream.
type Scheduler struct {
	client    redis.UniversalClient
	cfg       SchedulerConfig
	now       func() time.Time
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewScheduler(client redis.UniversalClient, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Scheduler{
		client:    client,
		cfg:       cfg,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "retry scheduler started",
		"delayed_set", s.cfg.DelayedSet,
		"interval", s.cfg.Interval.String())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			if _, err := s.PromoteDue(ctx); err != nil {
				slog.ErrorContext(ctx, "failed to promote delayed tasks", "error", err)
			}
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}

// PromoteDue moves every entry whose due time has passed. Returns how many moved.
func (s *Scheduler) PromoteDue(ctx context.Context) (int, error) {
	members, err := s.client.ZRangeByScore(ctx, s.cfg.DelayedSet, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(s.now().UnixMilli(), 10),
		Count: s.cfg.BatchSize,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("zrangebyscore: %w", err)
	}

	moved := 0
	for _, member := range members {
		var entry delayedEntry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			slog.ErrorContext(ctx, "dropping undecodable delayed task", "error", err)
			s.client.ZRem(ctx, s.cfg.DelayedSet, member)
			continue
		}

		args := append([]any{member}, flatten(entry.Values)...)
		err := promote.Run(ctx, s.client, []string{s.cfg.DelayedSet, s.cfg.Stream}, args...).Err()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return moved, fmt.Errorf("promoting delayed task: %w", err)
		}
		moved++
	}

	if moved > 0 {
		slog.DebugContext(ctx, "promoted delayed tasks", "count", moved)
	}
	return moved, nil
}

// Pending returns how many retries are waiting in the delayed set.
func (s *Scheduler) Pending(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, s.cfg.DelayedSet).Result()
}
