package dispatch

import (
	"context"
	"fmt"

	"github.com/monuchauhan/InstaBot/internal/model"
	"github.com/monuchauhan/InstaBot/internal/platform"
)

// handler is the per-kind half of a dispatch: who receives the action and which
// platform call delivers it.
type handler struct {
	// target picks the platform id the action is addressed to. Empty means the
	// event carries nothing to address.
	target func(event model.Event) string
	// private marks direct messages, which are bound by the messaging window and
	// the recipient cooldown.
	private bool
	send    func(ctx context.Context, client platform.Client, token, target, text string) (platform.Result, error)
}

func defaultHandlers() map[model.RuleKind]handler {
	return map[model.RuleKind]handler{
		model.RuleKindCommentAutoReply: {
			target: func(event model.Event) string {
				if event.Kind != model.EventKindCommentCreated {
					return ""
				}
				return event.SourceID
			},
			send: func(ctx context.Context, client platform.Client, token, target, text string) (platform.Result, error) {
				return client.ReplyToComment(ctx, token, target, text)
			},
		},
		model.RuleKindDirectMessageSend: {
			target: func(event model.Event) string {
				return event.AuthorID
			},
			private: true,
			send: func(ctx context.Context, client platform.Client, token, target, text string) (platform.Result, error) {
				return client.SendDirectMessage(ctx, token, target, text)
			},
		},
	}
}

// checkHandlers fails unless every rule kind has exactly one handler.
func checkHandlers(handlers map[model.RuleKind]handler) error {
	for _, kind := range model.AllRuleKinds {
		h, ok := handlers[kind]
		if !ok {
			return fmt.Errorf("no dispatch handler for rule kind %q", kind)
		}
		if h.target == nil || h.send == nil {
			return fmt.Errorf("incomplete dispatch handler for rule kind %q", kind)
		}
	}
	if len(handlers) != len(model.AllRuleKinds) {
		return fmt.Errorf("dispatch handlers registered for unknown rule kinds: have %d, want %d", len(handlers), len(model.AllRuleKinds))
	}
	return nil
}
