// Package mapper normalizes platform webhook payloads into events.
package mapper

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/monuchauhan/InstaBot/internal/model"
)

var (
	ErrMalformedPayload  = errors.New("malformed webhook payload")
	ErrUnsupportedObject = errors.New("unsupported webhook object")
)

// Drop records an occurrence that was skipped during normalization.
type Drop struct {
	Entry  int
	Item   int
	Reason string
}

type Result struct {
	Events  []model.Event
	Dropped []Drop
}

type InstagramMapper struct{}

func NewInstagramMapper() *InstagramMapper {
	return &InstagramMapper{}
}

// Map parses one delivery. A delivery batches entries, each with comment changes
// and messaging items. Items that cannot be normalized are reported in Dropped
// and do not fail the rest of the batch.
func (m *InstagramMapper) Map(body []byte, receivedAt time.Time) (Result, error) {
	if !gjson.ValidBytes(body) {
		return Result{}, ErrMalformedPayload
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return Result{}, ErrMalformedPayload
	}
	if object := root.Get("object").String(); object != "instagram" {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedObject, object)
	}

	receivedAt = receivedAt.UTC()
	var res Result
	root.Get("entry").ForEach(func(key, entry gjson.Result) bool {
		i := int(key.Int())
		accountID := entry.Get("id").String()
		if accountID == "" {
			res.Dropped = append(res.Dropped, Drop{Entry: i, Item: -1, Reason: "entry without account id"})
			return true
		}
		entryTime := unixSeconds(entry.Get("time"), receivedAt)

		entry.Get("changes").ForEach(func(key, change gjson.Result) bool {
			ev, reason := m.mapChange(accountID, change, entryTime, receivedAt)
			if reason != "" {
				res.Dropped = append(res.Dropped, Drop{Entry: i, Item: int(key.Int()), Reason: reason})
				return true
			}
			res.Events = append(res.Events, ev)
			return true
		})

		entry.Get("messaging").ForEach(func(key, item gjson.Result) bool {
			ev, reason := m.mapMessaging(accountID, item, receivedAt)
			if reason != "" {
				res.Dropped = append(res.Dropped, Drop{Entry: i, Item: int(key.Int()), Reason: reason})
				return true
			}
			res.Events = append(res.Events, ev)
			return true
		})
		return true
	})
	return res, nil
}

func (m *InstagramMapper) mapChange(accountID string, change gjson.Result, entryTime, receivedAt time.Time) (model.Event, string) {
	switch field := change.Get("field").String(); field {
	case "comments", "live_comments":
	default:
		return model.Event{}, fmt.Sprintf("unsupported change field %q", field)
	}

	value := change.Get("value")
	commentID := value.Get("id").String()
	if commentID == "" {
		return model.Event{}, "comment without id"
	}
	authorID := value.Get("from.id").String()
	if authorID == accountID {
		return model.Event{}, "self-authored comment"
	}

	occurredAt := entryTime
	if ts := value.Get("timestamp"); ts.Exists() {
		occurredAt = parseTimestamp(ts, entryTime)
	}

	return model.Event{
		ID:             commentID,
		Kind:           model.EventKindCommentCreated,
		AccountID:      accountID,
		SourceID:       commentID,
		AuthorID:       authorID,
		AuthorUsername: value.Get("from.username").String(),
		MediaID:        value.Get("media.id").String(),
		Text:           value.Get("text").String(),
		OccurredAt:     occurredAt,
		ReceivedAt:     receivedAt,
	}, ""
}

func (m *InstagramMapper) mapMessaging(accountID string, item gjson.Result, receivedAt time.Time) (model.Event, string) {
	message := item.Get("message")
	if !message.Exists() {
		return model.Event{}, "messaging item without message"
	}
	if message.Get("is_echo").Bool() {
		return model.Event{}, "message echo"
	}
	if message.Get("is_deleted").Bool() {
		return model.Event{}, "deleted message"
	}
	mid := message.Get("mid").String()
	if mid == "" {
		return model.Event{}, "message without mid"
	}
	senderID := item.Get("sender.id").String()
	if senderID == "" {
		return model.Event{}, "message without sender"
	}
	if senderID == accountID {
		return model.Event{}, "self-authored message"
	}

	occurredAt := receivedAt
	if ts := item.Get("timestamp"); ts.Exists() {
		occurredAt = unixSeconds(ts, receivedAt)
	}

	return model.Event{
		ID:         mid,
		Kind:       model.EventKindMessageReceived,
		AccountID:  accountID,
		SourceID:   senderID,
		AuthorID:   senderID,
		Text:       message.Get("text").String(),
		OccurredAt: occurredAt,
		ReceivedAt: receivedAt,
	}, ""
}

// fromUnix reads n as seconds, or as milliseconds when it is too large to be seconds.
func fromUnix(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

func unixSeconds(v gjson.Result, fallback time.Time) time.Time {
	if n := v.Int(); n > 0 {
		return fromUnix(n)
	}
	return fallback
}

// parseTimestamp accepts unix time or the Graph API's ISO 8601 form.
func parseTimestamp(v gjson.Result, fallback time.Time) time.Time {
	s := v.String()
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return fromUnix(n)
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback
}
