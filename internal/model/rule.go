package model

type RuleKind string

const (
	RuleKindCommentAutoReply  RuleKind = "comment-auto-reply"
	RuleKindDirectMessageSend RuleKind = "direct-message-send"
)

// AllRuleKinds lists every rule kind. The dispatcher refuses to start unless
// it has a handler for each one.
var AllRuleKinds = []RuleKind{
	RuleKindCommentAutoReply,
	RuleKindDirectMessageSend,
}

// ReactsTo reports whether rules of this kind respond to events of kind e.
// Direct-message rules answer both inbound messages and comments, messaging
// the commenter privately.
func (k RuleKind) ReactsTo(e EventKind) bool {
	switch k {
	case RuleKindCommentAutoReply:
		return e == EventKindCommentCreated
	case RuleKindDirectMessageSend:
		return e == EventKindMessageReceived || e == EventKindCommentCreated
	}
	return false
}

// RuleKindFromAutomationType maps the management layer's stored automation
// type onto a rule kind.
func RuleKindFromAutomationType(t string) (RuleKind, bool) {
	switch t {
	case "auto_reply_comment", "AUTO_REPLY_COMMENT":
		return RuleKindCommentAutoReply, true
	case "send_dm", "SEND_DM":
		return RuleKindDirectMessageSend, true
	}
	return "", false
}

type AutomationRule struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`
	// AccountID is nil for rules that apply to every account of the owning user.
	AccountID *int64   `json:"account_id,omitempty"`
	Kind      RuleKind `json:"kind"`
	Enabled   bool     `json:"enabled"`
	Keywords  []string `json:"keywords"`
	Template  string   `json:"template"`
}

func (r AutomationRule) IsWildcard() bool {
	return r.AccountID == nil
}
