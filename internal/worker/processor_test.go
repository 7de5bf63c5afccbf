package worker_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/monuchauhan/InstaBot/internal/model"
	"github.com/monuchauhan/InstaBot/internal/store"
	"github.com/monuchauhan/InstaBot/internal/worker"
)

var _ = Describe("Processor", func() {
	var (
		ctx        context.Context
		accounts   *mockAccountStore
		rules      *mockRuleProvider
		dispatcher *mockDispatcher
		processor  *worker.Processor
		account    model.Account
		event      model.Event
	)

	BeforeEach(func() {
		ctx = context.Background()
		account = model.Account{ID: 7, UserID: 3, PlatformUserID: "1784", Active: true, Tier: model.TierPro}
		event = model.Event{
			ID: "c-1", Kind: model.EventKindCommentCreated, AccountID: "1784",
			SourceID: "c-1", AuthorID: "u-9", Text: "What's the PRICE?",
		}
		accounts = &mockAccountStore{getFn: func(_ context.Context, id string) (model.Account, error) {
			if id == account.PlatformUserID {
				return account, nil
			}
			return model.Account{}, store.ErrNotFound
		}}
		rules = &mockRuleProvider{forAccountFn: func(context.Context, model.Account) ([]model.AutomationRule, error) {
			return []model.AutomationRule{
				{ID: 1, Kind: model.RuleKindCommentAutoReply, Enabled: true, Keywords: []string{"price"}, Template: "DM sent"},
				{ID: 2, Kind: model.RuleKindCommentAutoReply, Enabled: true, Keywords: []string{"shipping"}, Template: "Ships in 2 days"},
				{ID: 3, Kind: model.RuleKindDirectMessageSend, Enabled: true, Template: "Here is the price list"},
			}, nil
		}}
		dispatcher = &mockDispatcher{}
		processor = worker.NewProcessor(accounts, rules, dispatcher)
	})

	It("dispatches every matching rule in order", func() {
		Expect(processor.Process(ctx, event)).To(Succeed())

		Expect(dispatcher.calls).To(HaveLen(2))
		Expect(dispatcher.calls[0].rule.ID).To(Equal(int64(1)))
		Expect(dispatcher.calls[1].rule.ID).To(Equal(int64(3)))
		Expect(dispatcher.calls[0].account.ID).To(Equal(account.ID))
	})

	It("creates nothing when no rule matches", func() {
		event.Text = "hello"
		rules.forAccountFn = func(context.Context, model.Account) ([]model.AutomationRule, error) {
			return []model.AutomationRule{
				{ID: 1, Kind: model.RuleKindCommentAutoReply, Enabled: true, Keywords: []string{"price"}, Template: "x"},
			}, nil
		}

		Expect(processor.Process(ctx, event)).To(Succeed())
		Expect(dispatcher.calls).To(BeEmpty())
	})

	It("drops events for unknown accounts", func() {
		event.AccountID = "unknown"
		Expect(processor.Process(ctx, event)).To(Succeed())
		Expect(dispatcher.calls).To(BeEmpty())
	})

	It("drops events for inactive accounts", func() {
		account.Active = false
		Expect(processor.Process(ctx, event)).To(Succeed())
		Expect(dispatcher.calls).To(BeEmpty())
	})

	It("returns store errors so the task is retried", func() {
		accounts.getFn = func(context.Context, string) (model.Account, error) {
			return model.Account{}, errors.New("connection reset")
		}
		Expect(processor.Process(ctx, event)).To(MatchError(ContainSubstring("connection reset")))
	})

	It("keeps dispatching after one rule errors and reports the failure", func() {
		dispatcher.dispatchFn = func(rule model.AutomationRule) (model.ActionAttempt, error) {
			if rule.ID == 1 {
				return model.ActionAttempt{}, errors.New("claim failed")
			}
			return model.ActionAttempt{Status: model.AttemptStatusSuccess}, nil
		}

		err := processor.Process(ctx, event)
		Expect(err).To(MatchError(ContainSubstring("rule 1: claim failed")))
		Expect(dispatcher.calls).To(HaveLen(2))
	})
})
