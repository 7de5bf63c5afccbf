package model

import "time"

type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Account is a connected platform account together with its owner's plan.
type Account struct {
	ID                   int64      `json:"id"`
	UserID               int64      `json:"user_id"`
	PlatformUserID       string     `json:"platform_user_id"`
	Username             string     `json:"username,omitempty"`
	AccessTokenEncrypted string     `json:"-"`
	Active               bool       `json:"active"`
	Tier                 Tier       `json:"tier"`
	TierExpiresAt        *time.Time `json:"tier_expires_at,omitempty"`
}

// EffectiveTier returns the plan in force at now. A lapsed paid plan counts as free.
func (a Account) EffectiveTier(now time.Time) Tier {
	switch a.Tier {
	case TierPro, TierEnterprise:
		if a.TierExpiresAt != nil && !a.TierExpiresAt.After(now) {
			return TierFree
		}
		return a.Tier
	}
	return TierFree
}
