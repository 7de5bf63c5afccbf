package queue

import (
	"fmt"
	"strconv"
	"time"

	"github.com/monuchauhan/InstaBot/internal/model"
)

// Task is one event travelling through the queue.
type Task struct {
	Event   model.Event
	TraceID string
	Attempt int
}

// taskValues flattens a task into stream fields.
func taskValues(t Task) map[string]any {
	attempt := t.Attempt
	if attempt <= 0 {
		attempt = 1
	}
	e := t.Event
	values := map[string]any{
		"event_id":    e.ID,
		"event_kind":  string(e.Kind),
		"account_id":  e.AccountID,
		"source_id":   e.SourceID,
		"text":        e.Text,
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339Nano),
		"received_at": e.ReceivedAt.UTC().Format(time.RFC3339Nano),
		"attempt":     strconv.Itoa(attempt),
	}
	if e.AuthorID != "" {
		values["author_id"] = e.AuthorID
	}
	if e.AuthorUsername != "" {
		values["author_username"] = e.AuthorUsername
	}
	if e.MediaID != "" {
		values["media_id"] = e.MediaID
	}
	if t.TraceID != "" {
		values["trace_id"] = t.TraceID
	}
	return values
}

// flatten turns stream fields into XADD arguments in a stable order.
func flatten(values map[string]any) []any {
	args := make([]any, 0, len(values)*2)
	for _, k := range fieldOrder {
		if v, ok := values[k]; ok {
			args = append(args, k, fmt.Sprint(v))
		}
	}
	return args
}

var fieldOrder = []string{
	"event_id", "event_kind", "account_id", "source_id", "author_id", "author_username",
	"media_id", "text", "occurred_at", "received_at", "attempt", "trace_id",
	"last_error", "error", "failed_at",
}

func parseTask(values map[string]any) (Task, error) {
	eventID, err := parseString(values, "event_id")
	if err != nil {
		return Task{}, err
	}
	kind, err := parseString(values, "event_kind")
	if err != nil {
		return Task{}, err
	}
	if !model.EventKind(kind).Valid() {
		return Task{}, fmt.Errorf("unknown event_kind %q", kind)
	}
	accountID, err := parseString(values, "account_id")
	if err != nil {
		return Task{}, err
	}
	occurredAt, err := parseTime(values, "occurred_at")
	if err != nil {
		return Task{}, err
	}
	receivedAt, err := parseTime(values, "received_at")
	if err != nil {
		return Task{}, err
	}
	attempt, err := parseOptionalInt(values, "attempt")
	if err != nil {
		return Task{}, err
	}
	if attempt == 0 {
		attempt = 1
	}

	return Task{
		Event: model.Event{
			ID:             eventID,
			Kind:           model.EventKind(kind),
			AccountID:      accountID,
			SourceID:       parseOptionalString(values, "source_id"),
			AuthorID:       parseOptionalString(values, "author_id"),
			AuthorUsername: parseOptionalString(values, "author_username"),
			MediaID:        parseOptionalString(values, "media_id"),
			Text:           parseOptionalString(values, "text"),
			OccurredAt:     occurredAt,
			ReceivedAt:     receivedAt,
		},
		TraceID: parseOptionalString(values, "trace_id"),
		Attempt: attempt,
	}, nil
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	s := fmt.Sprint(raw)
	if s == "" {
		return "", fmt.Errorf("empty %s", key)
	}
	return s, nil
}

func parseOptionalString(values map[string]any, key string) string {
	raw, ok := values[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(raw)
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.Atoi(fmt.Sprint(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseTime(values map[string]any, key string) (time.Time, error) {
	s, err := parseString(values, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", key, err)
	}
	return t.UTC(), nil
}
