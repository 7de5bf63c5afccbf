// Package events emits side-channel notifications for the account-management layer.
package events

import (
	"context"
	"time"
)

const (
	TopicCredentialInvalid = "instabot.account.credential_invalid"
	TopicRuleFailed        = "instabot.rule.dispatch_failed"
)

// CredentialInvalid tells the management layer that an account's access token
// was rejected and the owner needs to reconnect.
type CredentialInvalid struct {
	AccountID      int64     `json:"account_id"`
	UserID         int64     `json:"user_id"`
	PlatformUserID string    `json:"platform_user_id"`
	RuleID         int64     `json:"rule_id"`
	EventID        string    `json:"event_id"`
	Detail         string    `json:"detail"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// DispatchFailed reports an action that ended failed for a reason other than
// the credential.
type DispatchFailed struct {
	AccountID  int64     `json:"account_id"`
	RuleID     int64     `json:"rule_id"`
	EventID    string    `json:"event_id"`
	AttemptID  int64     `json:"attempt_id"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
