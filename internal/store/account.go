package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/monuchauhan/InstaBot/core/db/sqlc"
	"github.com/monuchauhan/InstaBot/internal/model"
)

type accountStore struct {
	queries *sqlc.Queries
}

func newAccountStore(queries *sqlc.Queries) AccountStore {
	return &accountStore{queries: queries}
}

func (s *accountStore) GetByPlatformUserID(ctx context.Context, platformUserID string) (model.Account, error) {
	row, err := s.queries.GetAccountByInstagramUserID(ctx, platformUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, err
	}

	account := model.Account{
		ID:                   row.ID,
		UserID:               row.UserID,
		PlatformUserID:       row.InstagramUserID,
		AccessTokenEncrypted: row.AccessTokenEncrypted,
		Active:               row.IsActive,
		Tier:                 model.Tier(row.SubscriptionTier),
		TierExpiresAt:        row.SubscriptionExpiresAt,
	}
	if row.InstagramUsername != nil {
		account.Username = *row.InstagramUsername
	}
	return account, nil
}
