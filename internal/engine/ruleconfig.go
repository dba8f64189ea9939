package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ledgerflow/ledgerflow/internal/model"
)

// ruleEntry is the serialized form of one classification rule. The set of
// fields is the external versioning contract: export followed by load must
// reproduce the same rule set.
type ruleEntry struct {
	RuleType   string  `json:"rule_type"`
	Pattern    string  `json:"pattern"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Priority   int     `json:"priority"`
	IsActive   bool    `json:"is_active"`
}

// ExportRules serializes rules to the structured text format, in evaluation
// order.
func ExportRules(rules []model.ClassificationRule) ([]byte, error) {
	entries := make([]ruleEntry, 0, len(rules))
	for _, rule := range rules {
		entries = append(entries, ruleEntry{
			RuleType:   string(rule.Type),
			Pattern:    rule.Pattern,
			Category:   rule.Category,
			Confidence: rule.Confidence,
			Priority:   rule.Priority,
			IsActive:   rule.IsActive,
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize rules: %w", err)
	}
	return append(data, '\n'), nil
}

// LoadRules parses the structured text format back into rules. Every entry
// is validated; a single invalid entry rejects the whole document so a
// partial rule set is never applied.
func LoadRules(data []byte) ([]model.ClassificationRule, error) {
	var entries []ruleEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("rules document must be a JSON array: %w", err)
	}

	rules := make([]model.ClassificationRule, 0, len(entries))
	for i, entry := range entries {
		rule := model.ClassificationRule{
			Type:       model.RuleType(strings.ToLower(strings.TrimSpace(entry.RuleType))),
			Pattern:    strings.TrimSpace(entry.Pattern),
			Category:   strings.ToLower(strings.TrimSpace(entry.Category)),
			Confidence: entry.Confidence,
			Priority:   entry.Priority,
			IsActive:   entry.IsActive,
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule entry %d: %w", i+1, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
