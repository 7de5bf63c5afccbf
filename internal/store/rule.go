package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/monuchauhan/InstaBot/core/db/sqlc"
	"github.com/monuchauhan/InstaBot/internal/model"
)

type ruleStore struct {
	queries *sqlc.Queries
}

func newRuleStore(queries *sqlc.Queries) RuleStore {
	return &ruleStore{queries: queries}
}

func (s *ruleStore) ListEnabledForAccount(ctx context.Context, accountID, userID int64) ([]model.AutomationRule, []RuleDecodeError, error) {
	rows, err := s.queries.ListEnabledRulesForAccount(ctx, sqlc.ListEnabledRulesForAccountParams{
		AccountID: accountID,
		UserID:    userID,
	})
	if err != nil {
		return nil, nil, err
	}

	rules := make([]model.AutomationRule, 0, len(rows))
	var invalid []RuleDecodeError
	for _, row := range rows {
		rule, err := toRuleModel(row)
		if err != nil {
			invalid = append(invalid, RuleDecodeError{RuleID: row.ID, Err: err})
			continue
		}
		rules = append(rules, rule)
	}
	return rules, invalid, nil
}

func toRuleModel(row sqlc.AutomationSetting) (model.AutomationRule, error) {
	kind, ok := model.RuleKindFromAutomationType(row.AutomationType)
	if !ok {
		return model.AutomationRule{}, fmt.Errorf("unknown automation type %q", row.AutomationType)
	}

	var template string
	if row.TemplateMessage != nil {
		template = *row.TemplateMessage
	}
	if strings.TrimSpace(template) == "" {
		return model.AutomationRule{}, fmt.Errorf("empty template")
	}

	keywords, err := decodeKeywords(row.TriggerKeywords)
	if err != nil {
		return model.AutomationRule{}, err
	}

	return model.AutomationRule{
		ID:        row.ID,
		UserID:    row.UserID,
		AccountID: row.InstagramAccountID,
		Kind:      kind,
		Enabled:   row.IsEnabled,
		Keywords:  keywords,
		Template:  template,
	}, nil
}

// decodeKeywords parses the stored JSON array. Blank entries are dropped.
func decodeKeywords(raw *string) ([]string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(*raw), &values); err != nil {
		return nil, fmt.Errorf("decoding trigger keywords: %w", err)
	}
	keywords := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			keywords = append(keywords, v)
		}
	}
	return keywords, nil
}
