package store

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/monuchauhan/InstaBot/core/db/sqlc"
	"github.com/monuchauhan/InstaBot/internal/model"
)

func strPtr(s string) *string { return &s }

var _ = Describe("toRuleModel", func() {
	var row sqlc.AutomationSetting

	BeforeEach(func() {
		accountID := int64(7)
		row = sqlc.AutomationSetting{
			ID:                 42,
			UserID:             3,
			InstagramAccountID: &accountID,
			AutomationType:     "auto_reply_comment",
			IsEnabled:          true,
			TemplateMessage:    strPtr("Thanks! Check your DMs."),
			TriggerKeywords:    strPtr(`["price", " cost ", ""]`),
			CreatedAt:          time.Now(),
		}
	})

	It("maps a comment rule and trims keywords", func() {
		rule, err := toRuleModel(row)
		Expect(err).NotTo(HaveOccurred())
		Expect(rule.ID).To(Equal(int64(42)))
		Expect(rule.Kind).To(Equal(model.RuleKindCommentAutoReply))
		Expect(rule.Keywords).To(Equal([]string{"price", "cost"}))
		Expect(rule.Template).To(Equal("Thanks! Check your DMs."))
		Expect(rule.IsWildcard()).To(BeFalse())
	})

	It("accepts the upper-case enum names written by the management layer", func() {
		row.AutomationType = "SEND_DM"
		rule, err := toRuleModel(row)
		Expect(err).NotTo(HaveOccurred())
		Expect(rule.Kind).To(Equal(model.RuleKindDirectMessageSend))
	})

	It("treats missing keywords as match-everything", func() {
		row.TriggerKeywords = nil
		row.InstagramAccountID = nil
		rule, err := toRuleModel(row)
		Expect(err).NotTo(HaveOccurred())
		Expect(rule.Keywords).To(BeEmpty())
		Expect(rule.IsWildcard()).To(BeTrue())
	})

	It("rejects an empty template", func() {
		row.TemplateMessage = strPtr("   ")
		_, err := toRuleModel(row)
		Expect(err).To(MatchError(ContainSubstring("empty template")))
	})

	It("rejects keywords that are not a JSON array", func() {
		row.TriggerKeywords = strPtr("price,cost")
		_, err := toRuleModel(row)
		Expect(err).To(MatchError(ContainSubstring("decoding trigger keywords")))
	})

	It("rejects unknown automation types", func() {
		row.AutomationType = "story_reply"
		_, err := toRuleModel(row)
		Expect(err).To(HaveOccurred())
	})
})
