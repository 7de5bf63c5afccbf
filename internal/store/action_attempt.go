package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/monuchauhan/InstaBot/common/id"
	"github.com/monuchauhan/InstaBot/core/db/sqlc"
	"github.com/monuchauhan/InstaBot/internal/model"
)

type actionAttemptStore struct {
	db      Database
	queries *sqlc.Queries
}

func newActionAttemptStore(database Database) ActionAttemptStore {
	return &actionAttemptStore{db: database, queries: database.Queries()}
}

func (s *actionAttemptStore) Get(ctx context.Context, eventID string, ruleID int64, status model.AttemptStatus) (model.ActionAttempt, error) {
	row, err := s.queries.GetAttemptByStatus(ctx, sqlc.GetAttemptByStatusParams{
		EventID: eventID,
		RuleID:  ruleID,
		Status:  string(status),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ActionAttempt{}, ErrNotFound
		}
		return model.ActionAttempt{}, err
	}
	return toActionAttemptModel(row), nil
}

func (s *actionAttemptStore) Claim(ctx context.Context, attempt model.ActionAttempt, lease time.Duration) (model.ActionAttempt, error) {
	now := time.Now().UTC()
	if attempt.ID == 0 {
		attempt.ID = id.New()
	}

	var claimed model.ActionAttempt
	err := s.db.WithTx(ctx, func(q *sqlc.Queries) error {
		if _, err := q.AbandonStaleAttempt(ctx, sqlc.AbandonStaleAttemptParams{
			EventID: attempt.EventID,
			RuleID:  attempt.RuleID,
			Detail:  model.ReasonAbandoned,
			Before:  now.Add(-lease),
		}); err != nil {
			return err
		}

		row, err := q.InsertPendingAttempt(ctx, sqlc.InsertPendingAttemptParams{
			ID:        attempt.ID,
			EventID:   attempt.EventID,
			EventKind: string(attempt.EventKind),
			RuleID:    attempt.RuleID,
			RuleKind:  string(attempt.RuleKind),
			AccountID: attempt.AccountID,
			UserID:    attempt.UserID,
			TargetID:  attempt.TargetID,
			CreatedAt: now,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrAttemptConflict
			}
			return err
		}
		claimed = toActionAttemptModel(row)
		return nil
	})
	if err != nil {
		return model.ActionAttempt{}, err
	}
	return claimed, nil
}

func (s *actionAttemptStore) Complete(ctx context.Context, attempt model.ActionAttempt) (model.ActionAttempt, error) {
	completedAt := time.Now().UTC()
	if attempt.CompletedAt != nil {
		completedAt = *attempt.CompletedAt
	}
	row, err := s.queries.CompleteAttempt(ctx, sqlc.CompleteAttemptParams{
		ID:          attempt.ID,
		Status:      string(attempt.Status),
		MessageSent: attempt.MessageSent,
		PlatformRef: attempt.PlatformRef,
		Detail:      attempt.Detail,
		Tries:       int32(attempt.Tries),
		CompletedAt: completedAt,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ActionAttempt{}, ErrAttemptFinal
		}
		return model.ActionAttempt{}, err
	}
	return toActionAttemptModel(row), nil
}

func (s *actionAttemptStore) RecipientMessagedSince(ctx context.Context, accountID int64, targetID string, since time.Time) (bool, error) {
	return s.queries.RecipientMessagedSince(ctx, sqlc.RecipientMessagedSinceParams{
		AccountID: accountID,
		TargetID:  targetID,
		Since:     since,
	})
}

func (s *actionAttemptStore) AbandonStale(ctx context.Context, before time.Time) (int64, error) {
	return s.queries.AbandonStalePending(ctx, sqlc.AbandonStalePendingParams{
		Detail: model.ReasonAbandoned,
		Before: before,
	})
}

func (s *actionAttemptStore) ListByEvent(ctx context.Context, eventID string) ([]model.ActionAttempt, error) {
	rows, err := s.queries.ListAttemptsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	attempts := make([]model.ActionAttempt, 0, len(rows))
	for _, row := range rows {
		attempts = append(attempts, toActionAttemptModel(row))
	}
	return attempts, nil
}

func toActionAttemptModel(row sqlc.ActionAttempt) model.ActionAttempt {
	return model.ActionAttempt{
		ID:          row.ID,
		EventID:     row.EventID,
		EventKind:   model.EventKind(row.EventKind),
		RuleID:      row.RuleID,
		RuleKind:    model.RuleKind(row.RuleKind),
		AccountID:   row.AccountID,
		UserID:      row.UserID,
		Status:      model.AttemptStatus(row.Status),
		TargetID:    row.TargetID,
		MessageSent: row.MessageSent,
		PlatformRef: row.PlatformRef,
		Detail:      row.Detail,
		Tries:       int(row.Tries),
		CreatedAt:   row.CreatedAt,
		CompletedAt: row.CompletedAt,
	}
}
