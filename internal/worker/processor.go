package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/monuchauhan/InstaBot/internal/matcher"
	"github.com/monuchauhan/InstaBot/internal/model"
	"github.com/monuchauhan/InstaBot/internal/rules"
	"github.com/monuchauhan/InstaBot/internal/store"
)

type Processor struct {
	accounts   store.AccountStore
	rules      rules.Provider
	dispatcher Dispatcher
}

func NewProcessor(accounts store.AccountStore, rules rules.Provider, dispatcher Dispatcher) *Processor {
	return &Processor{
		accounts:   accounts,
		rules:      rules,
		dispatcher: dispatcher,
	}
}

// Process resolves the owning account, matches its rules and dispatches every
// match. An error means at least one rule needs the task retried; rules that
// already succeeded are skipped on the retry.
func (p *Processor) Process(ctx context.Context, event model.Event) error {
	account, err := p.accounts.GetByPlatformUserID(ctx, event.AccountID)
	if errors.Is(err, store.ErrNotFound) {
		slog.InfoContext(ctx, "no connected account for event, dropping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolving account: %w", err)
	}
	if !account.Active {
		slog.InfoContext(ctx, "account inactive, dropping event", "account", account.ID)
		return nil
	}

	candidates, err := p.rules.ForAccount(ctx, account)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	matched := matcher.Match(event, candidates)
	if len(matched) == 0 {
		slog.DebugContext(ctx, "no rule matched", "rules", len(candidates))
		return nil
	}

	var errs []error
	for _, rule := range matched {
		attempt, err := p.dispatcher.Dispatch(ctx, account, event, rule)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", rule.ID, err))
			continue
		}
		slog.DebugContext(ctx, "rule dispatched",
			"rule_id", rule.ID,
			"status", attempt.Status)
	}
	return errors.Join(errs...)
}
