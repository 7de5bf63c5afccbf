package model_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/monuchauhan/InstaBot/internal/model"
)

var _ = Describe("Account.EffectiveTier", func() {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	DescribeTable("derives the plan in force",
		func(tier model.Tier, expires *time.Time, want model.Tier) {
			account := model.Account{Tier: tier, TierExpiresAt: expires}
			Expect(account.EffectiveTier(now)).To(Equal(want))
		},
		Entry("free stays free", model.TierFree, nil, model.TierFree),
		Entry("pro without expiry", model.TierPro, nil, model.TierPro),
		Entry("pro before expiry", model.TierPro, &future, model.TierPro),
		Entry("lapsed pro", model.TierPro, &past, model.TierFree),
		Entry("lapsed enterprise", model.TierEnterprise, &past, model.TierFree),
		Entry("unknown tier", model.Tier("gold"), nil, model.TierFree),
	)
})

var _ = Describe("RuleKind", func() {
	It("answers comments with both kinds and messages with direct messages only", func() {
		Expect(model.RuleKindCommentAutoReply.ReactsTo(model.EventKindCommentCreated)).To(BeTrue())
		Expect(model.RuleKindCommentAutoReply.ReactsTo(model.EventKindMessageReceived)).To(BeFalse())
		Expect(model.RuleKindDirectMessageSend.ReactsTo(model.EventKindMessageReceived)).To(BeTrue())
		Expect(model.RuleKindDirectMessageSend.ReactsTo(model.EventKindCommentCreated)).To(BeTrue())
	})

	It("reacts to at least one valid event kind for every kind", func() {
		for _, kind := range model.AllRuleKinds {
			reacts := kind.ReactsTo(model.EventKindCommentCreated) || kind.ReactsTo(model.EventKindMessageReceived)
			Expect(reacts).To(BeTrue(), string(kind))
		}
	})
})
