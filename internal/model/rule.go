package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RuleType selects the matching semantics of a classification rule.
type RuleType string

// Rule type constants.
const (
	RuleMerchantExact          RuleType = "merchant_exact"
	RuleMerchantContains       RuleType = "merchant_contains"
	RuleDescriptionContains    RuleType = "description_contains"
	RuleSourceCategoryContains RuleType = "source_category_contains"
	RuleTextContains           RuleType = "text_contains"
)

// ErrInvalidRule is returned when a rule fails validation at write time.
// Invalid rules are rejected outright, never silently clamped.
var ErrInvalidRule = errors.New("invalid classification rule")

// ClassificationRule is a user-configurable matching directive. Active rules
// are evaluated in (priority ascending, creation order ascending) order and
// the first match wins.
type ClassificationRule struct {
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ID         string
	Owner      string
	Pattern    string
	Category   string
	Type       RuleType
	Priority   int
	Confidence float64
	IsActive   bool
}

// Validate checks the rule for write-time configuration errors.
func (r *ClassificationRule) Validate() error {
	switch r.Type {
	case RuleMerchantExact, RuleMerchantContains, RuleDescriptionContains,
		RuleSourceCategoryContains, RuleTextContains:
	default:
		return fmt.Errorf("%w: unsupported rule type %q", ErrInvalidRule, r.Type)
	}
	if strings.TrimSpace(r.Pattern) == "" {
		return fmt.Errorf("%w: pattern cannot be empty", ErrInvalidRule)
	}
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("%w: category cannot be empty", ErrInvalidRule)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidRule, r.Confidence)
	}
	if r.Priority < 0 {
		return fmt.Errorf("%w: priority cannot be negative", ErrInvalidRule)
	}
	return nil
}
