// Package matcher selects the automation rules that apply to an event.
package matcher

import (
	"strings"

	"github.com/monuchauhan/InstaBot/internal/model"
)

// Match returns, in input order, the rules whose kind reacts to the event's kind
// and whose keywords are empty or include one that occurs in the event text,
// ignoring case. Disabled rules never match. The result is nil when nothing applies.
func Match(event model.Event, rules []model.AutomationRule) []model.AutomationRule {
	var matched []model.AutomationRule
	text := strings.ToLower(event.Text)
	for _, rule := range rules {
		if !rule.Enabled || !rule.Kind.ReactsTo(event.Kind) {
			continue
		}
		if keywordsMatch(text, rule.Keywords) {
			matched = append(matched, rule)
		}
	}
	return matched
}

func keywordsMatch(lowerText string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(lowerText, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
