package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every log record emitted with the carrying context.
// Enrich once at the boundary (ingest request, queue message, dispatch) and every
// slog.*Context call below picks them up.
type LogFields struct {
	EventID   *string // external event id (comment id, message mid)
	EventKind *string // comment_created, message_received
	AccountID *string // instagram user id owning the event
	RuleID    *int64  // automation rule being dispatched
	AttemptID *int64  // action attempt row
	MessageID *string // Redis stream message ID
	Component string  // e.g. "instabot.worker.dispatcher"
}

// WithLogFields merges fields into ctx. Non-nil/non-empty values in fields win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields returns the fields stored on ctx, or the zero value.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, incoming LogFields) LogFields {
	result := existing

	if incoming.EventID != nil {
		result.EventID = incoming.EventID
	}
	if incoming.EventKind != nil {
		result.EventKind = incoming.EventKind
	}
	if incoming.AccountID != nil {
		result.AccountID = incoming.AccountID
	}
	if incoming.RuleID != nil {
		result.RuleID = incoming.RuleID
	}
	if incoming.AttemptID != nil {
		result.AttemptID = incoming.AttemptID
	}
	if incoming.MessageID != nil {
		result.MessageID = incoming.MessageID
	}
	if incoming.Component != "" {
		result.Component = incoming.Component
	}

	return result
}

// Ptr returns a pointer to v, for inline LogFields literals.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate shortens s to maxLen bytes and appends "..." when it cut something.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
