package worker_test

import (
	"context"
	"sync"
	"time"

	"github.com/monuchauhan/InstaBot/internal/model"
	"github.com/monuchauhan/InstaBot/internal/queue"
	"github.com/monuchauhan/InstaBot/internal/store"
)

type mockConsumer struct {
	mu       sync.Mutex
	batches  [][]queue.Message
	readErr  error
	acked    []string
	requeued []string
	dlq      []string
	reasons  []string
}

func (m *mockConsumer) Read(context.Context) ([]queue.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	if len(m.batches) == 0 {
		return nil, nil
	}
	next := m.batches[0]
	m.batches = m.batches[1:]
	return next, nil
}

func (m *mockConsumer) Ack(_ context.Context, msg queue.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, msg.ID)
	return nil
}

func (m *mockConsumer) Requeue(_ context.Context, msg queue.Message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeued = append(m.requeued, msg.ID)
	m.reasons = append(m.reasons, errMsg)
	return nil
}

func (m *mockConsumer) SendDLQ(_ context.Context, msg queue.Message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq = append(m.dlq, msg.ID)
	m.reasons = append(m.reasons, errMsg)
	return nil
}

func (m *mockConsumer) snapshot() (acked, requeued, dlq []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...), append([]string(nil), m.requeued...), append([]string(nil), m.dlq...)
}

type mockProcessor struct {
	processFn func(ctx context.Context, event model.Event) error
}

func (m *mockProcessor) Process(ctx context.Context, event model.Event) error {
	if m.processFn != nil {
		return m.processFn(ctx, event)
	}
	return nil
}

type mockAccountStore struct {
	getFn func(ctx context.Context, platformUserID string) (model.Account, error)
}

func (m *mockAccountStore) GetByPlatformUserID(ctx context.Context, platformUserID string) (model.Account, error) {
	if m.getFn != nil {
		return m.getFn(ctx, platformUserID)
	}
	return model.Account{}, store.ErrNotFound
}

type mockRuleProvider struct {
	forAccountFn func(ctx context.Context, account model.Account) ([]model.AutomationRule, error)
}

func (m *mockRuleProvider) ForAccount(ctx context.Context, account model.Account) ([]model.AutomationRule, error) {
	if m.forAccountFn != nil {
		return m.forAccountFn(ctx, account)
	}
	return nil, nil
}

type dispatchCall struct {
	account model.Account
	event   model.Event
	rule    model.AutomationRule
}

type mockDispatcher struct {
	calls      []dispatchCall
	dispatchFn func(rule model.AutomationRule) (model.ActionAttempt, error)
}

func (m *mockDispatcher) Dispatch(_ context.Context, account model.Account, event model.Event, rule model.AutomationRule) (model.ActionAttempt, error) {
	m.calls = append(m.calls, dispatchCall{account: account, event: event, rule: rule})
	if m.dispatchFn != nil {
		return m.dispatchFn(rule)
	}
	return model.ActionAttempt{RuleID: rule.ID, Status: model.AttemptStatusSuccess}, nil
}

type mockAttemptStore struct {
	store.ActionAttemptStore
	abandonFn func(ctx context.Context, before time.Time) (int64, error)
}

func (m *mockAttemptStore) AbandonStale(ctx context.Context, before time.Time) (int64, error) {
	return m.abandonFn(ctx, before)
}

type mockQuotaStore struct {
	store.QuotaStore
	pruneFn func(ctx context.Context, day time.Time) (int64, error)
}

func (m *mockQuotaStore) PruneBefore(ctx context.Context, day time.Time) (int64, error) {
	return m.pruneFn(ctx, day)
}
