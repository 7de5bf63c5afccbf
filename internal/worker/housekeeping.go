package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/monuchauhan/InstaBot/common/logger"
	"github.com/monuchauhan/InstaBot/internal/quota"
	"github.com/monuchauhan/InstaBot/internal/store"
)

const (
	DefaultStaleSchedule = "0 * * * * *"  // every minute
	DefaultPruneSchedule = "0 15 0 * * *" // 00:15 UTC daily
)

type HousekeepingConfig struct {
	// AttemptLease is how long a pending attempt may stay claimed.
	AttemptLease       time.Duration
	QuotaRetentionDays int
	StaleSchedule      string
	PruneSchedule      string
}

// Housekeeping runs the periodic maintenance jobs: closing attempts whose
// worker died mid-dispatch and pruning old quota counters.
type Housekeeping struct {
	attempts store.ActionAttemptStore
	quotas   store.QuotaStore
	cfg      HousekeepingConfig
	cron     *rcron.Cron
	now      func() time.Time
}

func NewHousekeeping(attempts store.ActionAttemptStore, quotas store.QuotaStore, cfg HousekeepingConfig) *Housekeeping {
	if cfg.StaleSchedule == "" {
		cfg.StaleSchedule = DefaultStaleSchedule
	}
	if cfg.PruneSchedule == "" {
		cfg.PruneSchedule = DefaultPruneSchedule
	}
	return &Housekeeping{
		attempts: attempts,
		quotas:   quotas,
		cfg:      cfg,
		cron:     rcron.New(rcron.WithSeconds(), rcron.WithLocation(time.UTC)),
		now:      time.Now,
	}
}

func (h *Housekeeping) WithClock(now func() time.Time) *Housekeeping {
	h.now = now
	return h
}

// Start registers the jobs and starts the scheduler. Jobs run with ctx.
func (h *Housekeeping) Start(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "instabot.worker.housekeeping"})

	if _, err := h.cron.AddFunc(h.cfg.StaleSchedule, func() {
		if _, err := h.AbandonStale(ctx); err != nil {
			slog.ErrorContext(ctx, "abandoning stale attempts failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("scheduling stale attempt job: %w", err)
	}

	if h.cfg.QuotaRetentionDays > 0 {
		if _, err := h.cron.AddFunc(h.cfg.PruneSchedule, func() {
			if _, err := h.PruneQuota(ctx); err != nil {
				slog.ErrorContext(ctx, "pruning quota counters failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("scheduling quota prune job: %w", err)
		}
	}

	h.cron.Start()
	slog.InfoContext(ctx, "housekeeping started",
		"stale_schedule", h.cfg.StaleSchedule,
		"prune_schedule", h.cfg.PruneSchedule)
	return nil
}

// Stop waits for running jobs to finish.
func (h *Housekeeping) Stop() {
	<-h.cron.Stop().Done()
}

// AbandonStale fails pending attempts older than the lease.
func (h *Housekeeping) AbandonStale(ctx context.Context) (int64, error) {
	n, err := h.attempts.AbandonStale(ctx, h.now().Add(-h.cfg.AttemptLease))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.WarnContext(ctx, "abandoned stale attempts", "count", n)
	}
	return n, nil
}

// PruneQuota deletes counters older than the retention window.
func (h *Housekeeping) PruneQuota(ctx context.Context) (int64, error) {
	cutoff := quota.Day(h.now()).AddDate(0, 0, -h.cfg.QuotaRetentionDays)
	n, err := h.quotas.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "pruned quota counters", "count", n, "before", cutoff.Format(time.DateOnly))
	return n, nil
}
