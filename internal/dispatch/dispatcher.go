// Package dispatch turns one matched (event, rule) pair into exactly one action attempt.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/monuchauhan/InstaBot/common/logger"
	"github.com/monuchauhan/InstaBot/core/config"
	"github.com/monuchauhan/InstaBot/internal/events"
	"github.com/monuchauhan/InstaBot/internal/model"
	"github.com/monuchauhan/InstaBot/internal/platform"
	"github.com/monuchauhan/InstaBot/internal/quota"
	"github.com/monuchauhan/InstaBot/internal/store"
)

// ErrAttemptInFlight is returned when another worker holds a live claim on the
// same (event, rule) pair. The caller should retry later.
var ErrAttemptInFlight = errors.New("attempt in flight on another worker")

const finishTimeout = 5 * time.Second

// TokenDecrypter opens access tokens stored by the management layer.
type TokenDecrypter interface {
	Decrypt(stored string) (string, error)
}

type Deps struct {
	Attempts  store.ActionAttemptStore
	Quota     quota.Tracker
	Policy    quota.Policy
	Client    platform.Client
	Tokens    TokenDecrypter
	Publisher events.Publisher
}

type Dispatcher struct {
	cfg       config.DispatchConfig
	attempts  store.ActionAttemptStore
	quota     quota.Tracker
	policy    quota.Policy
	client    platform.Client
	tokens    TokenDecrypter
	publisher events.Publisher
	handlers  map[model.RuleKind]handler
	now       func() time.Time
}

func New(cfg config.DispatchConfig, deps Deps) (*Dispatcher, error) {
	if deps.Attempts == nil || deps.Quota == nil || deps.Client == nil || deps.Tokens == nil {
		return nil, errors.New("dispatch: attempts, quota, client and tokens are required")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("dispatch: max attempts must be at least 1, got %d", cfg.MaxAttempts)
	}
	handlers := defaultHandlers()
	if err := checkHandlers(handlers); err != nil {
		return nil, err
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	return &Dispatcher{
		cfg:       cfg,
		attempts:  deps.Attempts,
		quota:     deps.Quota,
		policy:    deps.Policy,
		client:    deps.Client,
		tokens:    deps.Tokens,
		publisher: publisher,
		handlers:  handlers,
		now:       time.Now,
	}, nil
}

// WithClock replaces the dispatcher's time source.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Dispatch runs the checks for one matched rule and records the outcome. The
// returned attempt is terminal unless err is non-nil. Policy skips and platform
// failures are outcomes, not errors; err is reserved for conditions the caller
// should retry (persistence trouble, a concurrent claim, cancellation).
func (d *Dispatcher) Dispatch(ctx context.Context, account model.Account, event model.Event, rule model.AutomationRule) (model.ActionAttempt, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RuleID:    logger.Ptr(rule.ID),
		Component: "instabot.worker.dispatcher",
	})

	h, ok := d.handlers[rule.Kind]
	if !ok {
		return model.ActionAttempt{}, fmt.Errorf("no handler for rule kind %q", rule.Kind)
	}

	existing, err := d.attempts.Get(ctx, event.ID, rule.ID, model.AttemptStatusSuccess)
	switch {
	case err == nil:
		slog.DebugContext(ctx, "action already succeeded, skipping redelivery", "attempt_id", existing.ID)
		return existing, nil
	case !errors.Is(err, store.ErrNotFound):
		return model.ActionAttempt{}, fmt.Errorf("checking prior success: %w", err)
	}

	target := h.target(event)
	attempt, err := d.attempts.Claim(ctx, model.ActionAttempt{
		EventID:   event.ID,
		EventKind: event.Kind,
		RuleID:    rule.ID,
		RuleKind:  rule.Kind,
		AccountID: account.ID,
		UserID:    account.UserID,
		Status:    model.AttemptStatusPending,
		TargetID:  target,
	}, d.cfg.AttemptLease)
	if errors.Is(err, store.ErrAttemptConflict) {
		// The live row may be a success that landed after our first read.
		existing, getErr := d.attempts.Get(ctx, event.ID, rule.ID, model.AttemptStatusSuccess)
		if getErr == nil {
			return existing, nil
		}
		return model.ActionAttempt{}, ErrAttemptInFlight
	}
	if err != nil {
		return model.ActionAttempt{}, fmt.Errorf("claiming attempt: %w", err)
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{AttemptID: logger.Ptr(attempt.ID)})

	now := d.now()

	if target == "" {
		return d.skip(ctx, attempt, model.ReasonNoRecipient)
	}

	if h.private && d.outsideWindow(event, now) {
		return d.skip(ctx, attempt, model.ReasonWindowExpired)
	}

	if !d.policy.Permits(account, rule.Kind, now) {
		return d.skip(ctx, attempt, model.ReasonKindNotInPlan)
	}

	if h.private && d.cfg.RecipientCooldown > 0 {
		messaged, err := d.attempts.RecipientMessagedSince(ctx, account.ID, target, now.Add(-d.cfg.RecipientCooldown))
		if err != nil {
			return d.internal(ctx, attempt, fmt.Errorf("checking recipient cooldown: %w", err))
		}
		if messaged {
			return d.skip(ctx, attempt, model.ReasonRecipientCooldown)
		}
	}

	token, err := d.tokens.Decrypt(account.AccessTokenEncrypted)
	if err != nil {
		detail := fmt.Sprintf("access token unusable: %v", err)
		d.alertCredential(ctx, account, event, rule, detail)
		return d.fail(ctx, attempt, detail, 0)
	}

	decision, err := d.quota.TestAndIncrement(ctx, account.ID, d.policy.DailyLimit(account, now))
	if err != nil {
		return d.internal(ctx, attempt, fmt.Errorf("taking quota slot: %w", err))
	}
	if !decision.Allowed {
		return d.skip(ctx, attempt, model.ReasonQuotaExceeded)
	}

	text := render(rule)
	result, tries, err := d.send(ctx, h, token, target, text)
	if err != nil {
		d.releaseQuota(ctx, account.ID, decision.Day)

		if ctxErr := ctx.Err(); ctxErr != nil {
			attempt.Tries = tries
			return d.internal(ctx, attempt, fmt.Errorf("dispatch interrupted: %w", ctxErr))
		}
		if errors.Is(err, platform.ErrCredentialInvalid) {
			d.alertCredential(ctx, account, event, rule, err.Error())
		}
		failed, finishErr := d.fail(ctx, attempt, err.Error(), tries)
		if finishErr == nil && !errors.Is(err, platform.ErrCredentialInvalid) {
			d.publish(ctx, events.TopicRuleFailed, events.DispatchFailed{
				AccountID:  account.ID,
				RuleID:     rule.ID,
				EventID:    event.ID,
				AttemptID:  failed.ID,
				Detail:     err.Error(),
				OccurredAt: d.now(),
			})
		}
		return failed, finishErr
	}

	attempt.Status = model.AttemptStatusSuccess
	attempt.MessageSent = &text
	if result.ID != "" {
		attempt.PlatformRef = logger.Ptr(result.ID)
	}
	attempt.Tries = tries
	done, err := d.finish(ctx, attempt)
	if errors.Is(err, store.ErrAttemptFinal) {
		// The lease expired mid-call and housekeeping closed the row. The action
		// went out, so retrying would duplicate it.
		slog.ErrorContext(ctx, "action sent but attempt was already closed", "platform_ref", result.ID)
		return attempt, nil
	}
	if err == nil {
		slog.InfoContext(ctx, "action dispatched", "rule_kind", rule.Kind, "tries", tries, "platform_ref", result.ID)
	}
	return done, err
}

func (d *Dispatcher) outsideWindow(event model.Event, now time.Time) bool {
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = event.ReceivedAt
	}
	return now.Sub(occurred) > d.cfg.MessagingWindow
}

// send issues the platform call, retrying transient failures with exponential
// backoff until MaxAttempts calls have been made.
func (d *Dispatcher) send(ctx context.Context, h handler, token, target, text string) (platform.Result, int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.InitialBackoff
	b.MaxInterval = d.cfg.MaxBackoff

	tries := 0
	result, err := backoff.Retry(ctx, func() (platform.Result, error) {
		tries++
		res, err := h.send(ctx, d.client, token, target, text)
		if err != nil && !platform.Retryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(d.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "platform call failed, retrying", "error", err, "try", tries, "retry_in", next)
		}),
	)
	return result, tries, err
}

func (d *Dispatcher) skip(ctx context.Context, attempt model.ActionAttempt, reason string) (model.ActionAttempt, error) {
	attempt.Status = model.AttemptStatusSkipped
	attempt.Detail = &reason
	done, err := d.finish(ctx, attempt)
	if err == nil {
		slog.InfoContext(ctx, "action skipped", "reason", reason)
	}
	return done, err
}

func (d *Dispatcher) fail(ctx context.Context, attempt model.ActionAttempt, detail string, tries int) (model.ActionAttempt, error) {
	attempt.Status = model.AttemptStatusFailed
	attempt.Detail = &detail
	attempt.Tries = tries
	done, err := d.finish(ctx, attempt)
	if err == nil {
		slog.WarnContext(ctx, "action failed", "detail", detail, "tries", tries)
	}
	return done, err
}

// internal closes the claim as failed so a retried task can claim again, and
// hands cause back to the caller.
func (d *Dispatcher) internal(ctx context.Context, attempt model.ActionAttempt, cause error) (model.ActionAttempt, error) {
	detail := "internal: " + cause.Error()
	attempt.Status = model.AttemptStatusFailed
	attempt.Detail = &detail
	done, err := d.finish(ctx, attempt)
	if err != nil {
		slog.ErrorContext(ctx, "closing attempt after internal error failed", "error", err)
	}
	return done, cause
}

// finish persists a terminal attempt. It outlives ctx cancellation so shutdown
// does not leave rows pending.
func (d *Dispatcher) finish(ctx context.Context, attempt model.ActionAttempt) (model.ActionAttempt, error) {
	completedAt := d.now()
	attempt.CompletedAt = &completedAt

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	done, err := d.attempts.Complete(writeCtx, attempt)
	if err != nil {
		return attempt, fmt.Errorf("recording %s outcome: %w", attempt.Status, err)
	}
	return done, nil
}

func (d *Dispatcher) releaseQuota(ctx context.Context, accountID int64, day time.Time) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if err := d.quota.Release(releaseCtx, accountID, day); err != nil {
		slog.ErrorContext(ctx, "releasing quota slot failed", "error", err)
	}
}

func (d *Dispatcher) alertCredential(ctx context.Context, account model.Account, event model.Event, rule model.AutomationRule, detail string) {
	d.publish(ctx, events.TopicCredentialInvalid, events.CredentialInvalid{
		AccountID:      account.ID,
		UserID:         account.UserID,
		PlatformUserID: account.PlatformUserID,
		RuleID:         rule.ID,
		EventID:        event.ID,
		Detail:         detail,
		OccurredAt:     d.now(),
	})
}

func (d *Dispatcher) publish(ctx context.Context, topic string, payload any) {
	if err := d.publisher.Publish(context.WithoutCancel(ctx), topic, payload); err != nil {
		slog.WarnContext(ctx, "publishing notification failed", "topic", topic, "error", err)
	}
}

// render produces the message text. Templates are sent as written.
func render(rule model.AutomationRule) string {
	return strings.TrimSpace(rule.Template)
}
