package quota

import (
	"slices"
	"time"

	"github.com/monuchauhan/InstaBot/core/config"
	"github.com/monuchauhan/InstaBot/internal/model"
)

// Policy derives per-account limits and permitted rule kinds from the owner's plan.
type Policy struct {
	limits   map[model.Tier]int64
	features map[model.Tier][]model.RuleKind
}

func NewPolicy(cfg config.TierConfig) Policy {
	return Policy{
		limits: map[model.Tier]int64{
			model.TierFree:       cfg.FreeDailyLimit,
			model.TierPro:        cfg.ProDailyLimit,
			model.TierEnterprise: cfg.EnterpriseDailyLimit,
		},
		features: map[model.Tier][]model.RuleKind{
			model.TierFree:       {model.RuleKindCommentAutoReply},
			model.TierPro:        {model.RuleKindCommentAutoReply, model.RuleKindDirectMessageSend},
			model.TierEnterprise: {model.RuleKindCommentAutoReply, model.RuleKindDirectMessageSend},
		},
	}
}

// DailyLimit returns the account's limit at now. Negative means unlimited.
func (p Policy) DailyLimit(account model.Account, now time.Time) int64 {
	return p.limits[account.EffectiveTier(now)]
}

// Permits reports whether the account's plan includes rules of kind.
func (p Policy) Permits(account model.Account, kind model.RuleKind, now time.Time) bool {
	return slices.Contains(p.features[account.EffectiveTier(now)], kind)
}
