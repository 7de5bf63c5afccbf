package model

import "time"

type AttemptStatus string

const (
	AttemptStatusPending AttemptStatus = "pending"
	AttemptStatusSuccess AttemptStatus = "success"
	AttemptStatusFailed  AttemptStatus = "failed"
	AttemptStatusSkipped AttemptStatus = "skipped"
)

func (s AttemptStatus) Terminal() bool {
	switch s {
	case AttemptStatusSuccess, AttemptStatusFailed, AttemptStatusSkipped:
		return true
	}
	return false
}

// Skip and failure reasons recorded in ActionAttempt.Detail.
const (
	ReasonWindowExpired     = "messaging window expired"
	ReasonQuotaExceeded     = "daily quota exceeded"
	ReasonKindNotInPlan     = "rule kind not included in plan"
	ReasonRecipientCooldown = "recipient already messaged recently"
	ReasonNoRecipient       = "no recipient for direct message"
	ReasonAbandoned         = "abandoned: worker lease expired"
)

// ActionAttempt is the outcome record for one (event, rule) pairing.
type ActionAttempt struct {
	ID          int64         `json:"id"`
	EventID     string        `json:"event_id"`
	EventKind   EventKind     `json:"event_kind"`
	RuleID      int64         `json:"rule_id"`
	RuleKind    RuleKind      `json:"rule_kind"`
	AccountID   int64         `json:"account_id"`
	UserID      int64         `json:"user_id"`
	Status      AttemptStatus `json:"status"`
	TargetID    string        `json:"target_id"`
	MessageSent *string       `json:"message_sent,omitempty"`
	PlatformRef *string       `json:"platform_ref,omitempty"`
	Detail      *string       `json:"detail,omitempty"`
	Tries       int           `json:"tries"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}
