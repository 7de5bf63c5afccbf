package worker

import (
	"context"

	"github.com/monuchauhan/InstaBot/internal/model"
	"github.com/monuchauhan/InstaBot/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// EventProcessor drives one event through matching and dispatch.
type EventProcessor interface {
	Process(ctx context.Context, event model.Event) error
}

// Dispatcher produces the action attempt for one matched rule.
type Dispatcher interface {
	Dispatch(ctx context.Context, account model.Account, event model.Event, rule model.AutomationRule) (model.ActionAttempt, error)
}
