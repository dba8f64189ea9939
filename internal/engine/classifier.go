// Package engine assigns spending categories to canonical transactions
// using a layered strategy: user rules, a recurrence heuristic, and a
// fallback.
package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ledgerflow/ledgerflow/internal/model"
)

// Result is one classification decision.
type Result struct {
	Category   string
	Rationale  string
	Confidence float64
}

// Classifier evaluates classification rules against transaction drafts. It
// is a pure function of its inputs: the rule set is fixed at construction
// and evaluation touches no ambient state, so behavior is fully
// reproducible in tests.
type Classifier struct {
	recurrence *RecurrenceDetector
	rules      []model.ClassificationRule
}

// NewClassifier creates a classifier over the given rules. Inactive rules
// are dropped; the rest are ordered by (priority ascending, creation order
// ascending), which fixes the precedence contract: the first matching rule
// wins and later rules are never consulted.
func NewClassifier(rules []model.ClassificationRule, recurrence *RecurrenceDetector) *Classifier {
	active := make([]model.ClassificationRule, 0, len(rules))
	for _, rule := range rules {
		if rule.IsActive {
			active = append(active, rule)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority < active[j].Priority
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	if recurrence == nil {
		recurrence = NewRecurrenceDetector(RecurrenceOptions{})
	}

	return &Classifier{rules: active, recurrence: recurrence}
}

// Classify returns the category decision for a draft. history holds the
// owner's prior committed transactions for the draft's merchant and is only
// consulted by the recurrence stage; it may be nil.
func (c *Classifier) Classify(draft *model.Transaction, sourceCategory string, history []model.Transaction) Result {
	if result, ok := c.matchRules(draft, sourceCategory); ok {
		return result
	}

	if result, ok := c.recurrence.Detect(draft, history); ok {
		return result
	}

	return Result{
		Category:   model.CategoryUncategorized,
		Confidence: 0,
		Rationale:  "fallback",
	}
}

// MatchRules runs only the rule stage. Re-classification passes use this so
// a rule edit never reshuffles recurrence decisions.
func (c *Classifier) MatchRules(draft *model.Transaction, sourceCategory string) (Result, bool) {
	return c.matchRules(draft, sourceCategory)
}

// RuleCount returns the number of active rules loaded.
func (c *Classifier) RuleCount() int {
	return len(c.rules)
}

func (c *Classifier) matchRules(draft *model.Transaction, sourceCategory string) (Result, bool) {
	description := foldText(draft.DescriptionRaw)
	merchant := foldText(draft.MerchantNormalized)
	source := foldText(sourceCategory)
	combined := strings.TrimSpace(description + " " + merchant)

	for _, rule := range c.rules {
		pattern := foldText(rule.Pattern)
		if pattern == "" {
			continue
		}

		var matched bool
		switch rule.Type {
		case model.RuleMerchantExact:
			matched = merchant == pattern
		case model.RuleMerchantContains:
			matched = strings.Contains(merchant, pattern)
		case model.RuleDescriptionContains:
			matched = strings.Contains(description, pattern)
		case model.RuleSourceCategoryContains:
			matched = source != "" && strings.Contains(source, pattern)
		case model.RuleTextContains:
			matched = strings.Contains(combined, pattern)
		}

		if matched {
			return Result{
				Category:   rule.Category,
				Confidence: rule.Confidence,
				Rationale:  fmt.Sprintf("rule:%s:%s", rule.Type, rule.Pattern),
			}, true
		}
	}

	return Result{}, false
}

func foldText(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}
