package store

import (
	"context"

	"github.com/monuchauhan/InstaBot/core/db/sqlc"
)

// Database is the subset of *db.DB the stores need.
type Database interface {
	Queries() *sqlc.Queries
	WithTx(ctx context.Context, fn func(q *sqlc.Queries) error) error
}

type Stores struct {
	db Database
}

func NewStores(database Database) *Stores {
	return &Stores{db: database}
}

func (s *Stores) Accounts() AccountStore {
	return newAccountStore(s.db.Queries())
}

func (s *Stores) Rules() RuleStore {
	return newRuleStore(s.db.Queries())
}

func (s *Stores) ActionAttempts() ActionAttemptStore {
	return newActionAttemptStore(s.db)
}

func (s *Stores) Quotas() QuotaStore {
	return newQuotaStore(s.db.Queries())
}
