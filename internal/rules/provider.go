// Package rules loads the automation rules that apply to an account.
package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/monuchauhan/InstaBot/internal/model"
	"github.com/monuchauhan/InstaBot/internal/store"
)

// Provider returns the enabled rules for an account, including its owner's
// wildcard rules, ordered by rule id.
type Provider interface {
	ForAccount(ctx context.Context, account model.Account) ([]model.AutomationRule, error)
}

type storeProvider struct {
	rules store.RuleStore
}

func NewStoreProvider(rules store.RuleStore) Provider {
	return &storeProvider{rules: rules}
}

func (p *storeProvider) ForAccount(ctx context.Context, account model.Account) ([]model.AutomationRule, error) {
	rules, invalid, err := p.rules.ListEnabledForAccount(ctx, account.ID, account.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing rules for account %d: %w", account.ID, err)
	}
	for _, bad := range invalid {
		slog.WarnContext(ctx, "ignoring invalid automation rule",
			"rule_id", bad.RuleID,
			"account_id", account.ID,
			"error", bad.Err)
	}
	return rules, nil
}

const cacheKeyPrefix = "instabot:rules:"

type cachedProvider struct {
	next  Provider
	redis redis.UniversalClient
	ttl   time.Duration
}

// NewCachedProvider caches next's result in Redis for ttl. A zero ttl disables
// caching. Cache failures fall through to next.
func NewCachedProvider(next Provider, client redis.UniversalClient, ttl time.Duration) Provider {
	if ttl <= 0 || client == nil {
		return next
	}
	return &cachedProvider{next: next, redis: client, ttl: ttl}
}

func CacheKey(accountID int64) string {
	return cacheKeyPrefix + strconv.FormatInt(accountID, 10)
}

func (p *cachedProvider) ForAccount(ctx context.Context, account model.Account) ([]model.AutomationRule, error) {
	key := CacheKey(account.ID)

	raw, err := p.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rules []model.AutomationRule
		if jsonErr := json.Unmarshal(raw, &rules); jsonErr == nil {
			return rules, nil
		}
		slog.WarnContext(ctx, "discarding undecodable rule cache entry", "account_id", account.ID)
	case !errors.Is(err, redis.Nil):
		slog.WarnContext(ctx, "rule cache unavailable, reading store", "account_id", account.ID, "error", err)
	}

	rules, err := p.next.ForAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(rules); err == nil {
		if err := p.redis.Set(ctx, key, payload, p.ttl).Err(); err != nil {
			slog.WarnContext(ctx, "failed to write rule cache", "account_id", account.ID, "error", err)
		}
	}
	return rules, nil
}

// Invalidate drops the cached rules for an account.
func Invalidate(ctx context.Context, client redis.UniversalClient, accountID int64) error {
	return client.Del(ctx, CacheKey(accountID)).Err()
}
