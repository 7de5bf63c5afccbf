package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/monuchauhan/InstaBot/core/db/sqlc"
)

type quotaStore struct {
	queries *sqlc.Queries
}

func newQuotaStore(queries *sqlc.Queries) QuotaStore {
	return &quotaStore{queries: queries}
}

func (s *quotaStore) IncrementBelow(ctx context.Context, accountID int64, day time.Time, limit int32) (int32, bool, error) {
	count, err := s.queries.IncrementQuotaBelowLimit(ctx, sqlc.IncrementQuotaBelowLimitParams{
		AccountID:  accountID,
		Day:        day,
		DailyLimit: limit,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return count, true, nil
}

func (s *quotaStore) Increment(ctx context.Context, accountID int64, day time.Time) (int32, error) {
	return s.queries.IncrementQuota(ctx, sqlc.IncrementQuotaParams{
		AccountID: accountID,
		Day:       day,
	})
}

func (s *quotaStore) Release(ctx context.Context, accountID int64, day time.Time) error {
	_, err := s.queries.ReleaseQuota(ctx, sqlc.ReleaseQuotaParams{
		AccountID: accountID,
		Day:       day,
	})
	return err
}

func (s *quotaStore) Count(ctx context.Context, accountID int64, day time.Time) (int32, error) {
	return s.queries.GetQuotaCount(ctx, sqlc.GetQuotaCountParams{
		AccountID: accountID,
		Day:       day,
	})
}

func (s *quotaStore) PruneBefore(ctx context.Context, day time.Time) (int64, error) {
	return s.queries.PruneQuotaBefore(ctx, day)
}
