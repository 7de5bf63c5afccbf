package model

import "time"

type EventKind string

const (
	EventKindCommentCreated  EventKind = "comment_created"
	EventKindMessageReceived EventKind = "message_received"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventKindCommentCreated, EventKindMessageReceived:
		return true
	}
	return false
}

// Event is one normalized occurrence from a webhook delivery. Immutable once built.
type Event struct {
	ID   string    `json:"id"`
	Kind EventKind `json:"kind"`
	// AccountID is the platform's id for the connected account that received the occurrence.
	AccountID string `json:"account_id"`
	// SourceID is the comment id for comments and the sender id for messages.
	SourceID       string    `json:"source_id"`
	AuthorID       string    `json:"author_id,omitempty"`
	AuthorUsername string    `json:"author_username,omitempty"`
	MediaID        string    `json:"media_id,omitempty"`
	Text           string    `json:"text"`
	OccurredAt     time.Time `json:"occurred_at"`
	ReceivedAt     time.Time `json:"received_at"`
}
