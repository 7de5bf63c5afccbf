package store

import (
	"context"
	"errors"
	"time"

	"github.com/monuchauhan/InstaBot/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrAttemptConflict is returned by Claim when a pending or successful attempt
// already exists for the (event, rule) pair.
var ErrAttemptConflict = errors.New("attempt already claimed")

// ErrAttemptFinal is returned when completing an attempt that is no longer pending.
var ErrAttemptFinal = errors.New("attempt already in a terminal state")

// AccountStore reads connected accounts owned by the management layer.
type AccountStore interface {
	GetByPlatformUserID(ctx context.Context, platformUserID string) (model.Account, error)
}

// RuleDecodeError describes a stored rule that could not be turned into a model.
type RuleDecodeError struct {
	RuleID int64
	Err    error
}

func (e RuleDecodeError) Error() string {
	return e.Err.Error()
}

// RuleStore reads automation rules owned by the management layer.
type RuleStore interface {
	// ListEnabledForAccount returns enabled rules bound to the account plus wildcard
	// rules of its owner, ordered by id. Rows that cannot be decoded come back
	// separately so the caller can report them.
	ListEnabledForAccount(ctx context.Context, accountID, userID int64) ([]model.AutomationRule, []RuleDecodeError, error)
}

// ActionAttemptStore is the action log.
type ActionAttemptStore interface {
	// Get is the existence check for an (event, rule, status) triple. It returns
	// the latest matching attempt, or ErrNotFound.
	Get(ctx context.Context, eventID string, ruleID int64, status model.AttemptStatus) (model.ActionAttempt, error)
	// Claim expires a pending attempt for the same pair older than lease, then
	// inserts attempt as pending. Returns ErrAttemptConflict if a live attempt exists.
	Claim(ctx context.Context, attempt model.ActionAttempt, lease time.Duration) (model.ActionAttempt, error)
	// Complete moves a pending attempt to its terminal status. Returns ErrAttemptFinal
	// when the attempt is not pending anymore.
	Complete(ctx context.Context, attempt model.ActionAttempt) (model.ActionAttempt, error)
	RecipientMessagedSince(ctx context.Context, accountID int64, targetID string, since time.Time) (bool, error)
	AbandonStale(ctx context.Context, before time.Time) (int64, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.ActionAttempt, error)
}

// QuotaStore persists per-account daily action counters.
type QuotaStore interface {
	// IncrementBelow adds one to the counter only if it is below limit.
	IncrementBelow(ctx context.Context, accountID int64, day time.Time, limit int32) (count int32, allowed bool, err error)
	Increment(ctx context.Context, accountID int64, day time.Time) (int32, error)
	Release(ctx context.Context, accountID int64, day time.Time) error
	Count(ctx context.Context, accountID int64, day time.Time) (int32, error)
	PruneBefore(ctx context.Context, day time.Time) (int64, error)
}
