package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow/ledgerflow/internal/model"
)

func draft(merchant, description string, amount float64) *model.Transaction {
	return &model.Transaction{
		Owner:              "owner-1",
		Date:               time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DescriptionRaw:     description,
		MerchantNormalized: merchant,
		Amount:             amount,
		Direction:          model.DirectionDebit,
	}
}

func TestClassifier_RulePrecedence(t *testing.T) {
	// The lower-priority-value rule wins regardless of creation order.
	rules := []model.ClassificationRule{
		{
			Type:       model.RuleMerchantContains,
			Pattern:    "coffee",
			Category:   "eating_out",
			Confidence: 0.8,
			Priority:   10,
			IsActive:   true,
			CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			Type:       model.RuleMerchantContains,
			Pattern:    "coffee",
			Category:   "treats",
			Confidence: 0.9,
			Priority:   5,
			IsActive:   true,
			CreatedAt:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	c := NewClassifier(rules, nil)
	result := c.Classify(draft("blue bottle coffee", "BLUE BOTTLE COFFEE", 6.50), "", nil)

	assert.Equal(t, "treats", result.Category)
	assert.Equal(t, 0.9, result.Confidence)
}

func TestClassifier_PriorityTiebreakIsCreationOrder(t *testing.T) {
	rules := []model.ClassificationRule{
		{
			Type: model.RuleMerchantContains, Pattern: "coffee",
			Category: "second", Confidence: 0.8, Priority: 10, IsActive: true,
			CreatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			Type: model.RuleMerchantContains, Pattern: "coffee",
			Category: "first", Confidence: 0.8, Priority: 10, IsActive: true,
			CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	c := NewClassifier(rules, nil)
	result := c.Classify(draft("corner coffee", "CORNER COFFEE", 4.00), "", nil)

	assert.Equal(t, "first", result.Category)
}

func TestClassifier_InactiveRulesAreSkipped(t *testing.T) {
	rules := []model.ClassificationRule{
		{
			Type: model.RuleMerchantContains, Pattern: "coffee",
			Category: "eating_out", Confidence: 0.8, Priority: 1, IsActive: false,
		},
	}

	c := NewClassifier(rules, nil)
	result := c.Classify(draft("corner coffee", "CORNER COFFEE", 4.00), "", nil)

	assert.Equal(t, model.CategoryUncategorized, result.Category)
}

func TestClassifier_RuleTypeSemantics(t *testing.T) {
	txn := draft("whole foods market", "POS PURCHASE WHOLE FOODS MKT #123", 52.10)

	tests := []struct {
		name           string
		ruleType       model.RuleType
		pattern        string
		sourceCategory string
		wantMatch      bool
	}{
		{name: "merchant exact match", ruleType: model.RuleMerchantExact, pattern: "Whole Foods Market", wantMatch: true},
		{name: "merchant exact requires full equality", ruleType: model.RuleMerchantExact, pattern: "whole foods", wantMatch: false},
		{name: "merchant contains", ruleType: model.RuleMerchantContains, pattern: "FOODS", wantMatch: true},
		{name: "description contains", ruleType: model.RuleDescriptionContains, pattern: "pos purchase", wantMatch: true},
		{name: "description contains miss", ruleType: model.RuleDescriptionContains, pattern: "trader joes", wantMatch: false},
		{name: "source category contains", ruleType: model.RuleSourceCategoryContains, pattern: "grocer", sourceCategory: "Groceries", wantMatch: true},
		{name: "source category empty never matches", ruleType: model.RuleSourceCategoryContains, pattern: "grocer", sourceCategory: "", wantMatch: false},
		{name: "text contains searches both", ruleType: model.RuleTextContains, pattern: "market", wantMatch: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier([]model.ClassificationRule{{
				Type: tt.ruleType, Pattern: tt.pattern,
				Category: "groceries_other", Confidence: 0.85, Priority: 1, IsActive: true,
			}}, nil)

			result := c.Classify(txn, tt.sourceCategory, nil)
			if tt.wantMatch {
				assert.Equal(t, "groceries_other", result.Category)
			} else {
				assert.Equal(t, model.CategoryUncategorized, result.Category)
			}
		})
	}
}

func TestClassifier_FallbackIsUncategorizedZeroConfidence(t *testing.T) {
	c := NewClassifier(nil, nil)

	result := c.Classify(draft("mystery shop", "MYSTERY SHOP", 10.00), "", nil)

	assert.Equal(t, model.CategoryUncategorized, result.Category)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, "fallback", result.Rationale)
}

func TestRecurrenceDetector_MonthlyCharge(t *testing.T) {
	history := []model.Transaction{
		{MerchantNormalized: "netflix.com", Amount: 15.49, Direction: model.DirectionDebit,
			Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
		{MerchantNormalized: "netflix.com", Amount: 15.49, Direction: model.DirectionDebit,
			Date: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)},
	}

	c := NewClassifier(nil, nil)
	txn := draft("netflix.com", "NETFLIX.COM", 15.49)
	txn.Date = time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)

	result := c.Classify(txn, "", history)

	assert.Equal(t, "subscriptions", result.Category)
	assert.Equal(t, 0.6, result.Confidence)
	assert.Contains(t, result.Rationale, "recurrence:monthly")
}

func TestRecurrenceDetector_Misses(t *testing.T) {
	c := NewClassifier(nil, nil)

	t.Run("too few occurrences", func(t *testing.T) {
		history := []model.Transaction{
			{MerchantNormalized: "netflix.com", Amount: 15.49, Direction: model.DirectionDebit,
				Date: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)},
		}
		txn := draft("netflix.com", "NETFLIX.COM", 15.49)
		result := c.Classify(txn, "", history)
		assert.Equal(t, model.CategoryUncategorized, result.Category)
	})

	t.Run("irregular intervals", func(t *testing.T) {
		history := []model.Transaction{
			{MerchantNormalized: "corner shop", Amount: 9.99, Direction: model.DirectionDebit,
				Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
			{MerchantNormalized: "corner shop", Amount: 9.99, Direction: model.DirectionDebit,
				Date: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)},
		}
		txn := draft("corner shop", "CORNER SHOP", 9.99)
		txn.Date = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
		result := c.Classify(txn, "", history)
		assert.Equal(t, model.CategoryUncategorized, result.Category)
	})

	t.Run("different amounts", func(t *testing.T) {
		history := []model.Transaction{
			{MerchantNormalized: "grocery mart", Amount: 52.10, Direction: model.DirectionDebit,
				Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
			{MerchantNormalized: "grocery mart", Amount: 87.35, Direction: model.DirectionDebit,
				Date: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)},
		}
		txn := draft("grocery mart", "GROCERY MART", 64.20)
		txn.Date = time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
		result := c.Classify(txn, "", history)
		assert.Equal(t, model.CategoryUncategorized, result.Category)
	})

	t.Run("credits are never recurring charges", func(t *testing.T) {
		history := []model.Transaction{
			{MerchantNormalized: "employer inc", Amount: 1500, Direction: model.DirectionCredit,
				Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			{MerchantNormalized: "employer inc", Amount: 1500, Direction: model.DirectionCredit,
				Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		}
		txn := draft("employer inc", "EMPLOYER INC", 1500)
		txn.Direction = model.DirectionCredit
		txn.Date = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		result := c.Classify(txn, "", history)
		assert.Equal(t, model.CategoryUncategorized, result.Category)
	})
}

func TestClassifier_RulesBeatRecurrence(t *testing.T) {
	rules := []model.ClassificationRule{{
		Type: model.RuleMerchantContains, Pattern: "netflix",
		Category: "streaming", Confidence: 0.95, Priority: 1, IsActive: true,
	}}
	history := []model.Transaction{
		{MerchantNormalized: "netflix.com", Amount: 15.49, Direction: model.DirectionDebit,
			Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
		{MerchantNormalized: "netflix.com", Amount: 15.49, Direction: model.DirectionDebit,
			Date: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)},
	}

	c := NewClassifier(rules, nil)
	txn := draft("netflix.com", "NETFLIX.COM", 15.49)
	txn.Date = time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)

	result := c.Classify(txn, "", history)

	assert.Equal(t, "streaming", result.Category)
}

func TestReclassify_RespectsUserAssignment(t *testing.T) {
	rules := []model.ClassificationRule{{
		Type: model.RuleMerchantContains, Pattern: "coffee",
		Category: "eating_out", Confidence: 0.9, Priority: 1, IsActive: true,
	}}
	c := NewClassifier(rules, nil)

	txns := []model.Transaction{
		{
			ID: "t1", MerchantNormalized: "corner coffee",
			Category: "treats", CategoryConfidence: 1.0, IsUserAssigned: true,
		},
		{
			ID: "t2", MerchantNormalized: "corner coffee",
			Category: model.CategoryUncategorized,
		},
	}

	updates, counts := c.Reclassify(txns, false)

	require.Len(t, updates, 1)
	assert.Equal(t, "t2", updates[0].ID)
	assert.Equal(t, "eating_out", updates[0].Category)
	assert.Equal(t, 2, counts.Scanned)
	assert.Equal(t, 1, counts.Changed)
	assert.Equal(t, 1, counts.SkippedUserAssigned)

	// Explicit inclusion changes user-assigned rows and clears the mark.
	updates, counts = c.Reclassify(txns, true)
	require.Len(t, updates, 2)
	assert.Equal(t, 0, counts.SkippedUserAssigned)
	for _, txn := range updates {
		assert.Equal(t, "eating_out", txn.Category)
		assert.False(t, txn.IsUserAssigned)
	}
}

func TestReclassify_NoDowngradeToUncategorized(t *testing.T) {
	// No rules loaded: an already-categorized row keeps its category.
	c := NewClassifier(nil, nil)

	txns := []model.Transaction{
		{ID: "t1", MerchantNormalized: "corner coffee", Category: "eating_out", CategoryConfidence: 0.9},
	}

	updates, counts := c.Reclassify(txns, false)

	assert.Empty(t, updates)
	assert.Equal(t, 1, counts.Unchanged)
	assert.Equal(t, 0, counts.Changed)
}

func TestReclassify_UnchangedWhenSameDecision(t *testing.T) {
	rules := []model.ClassificationRule{{
		Type: model.RuleMerchantContains, Pattern: "coffee",
		Category: "eating_out", Confidence: 0.9, Priority: 1, IsActive: true,
	}}
	c := NewClassifier(rules, nil)

	txns := []model.Transaction{
		{ID: "t1", MerchantNormalized: "corner coffee", Category: "eating_out", CategoryConfidence: 0.9},
	}

	updates, counts := c.Reclassify(txns, false)

	assert.Empty(t, updates)
	assert.Equal(t, 1, counts.Unchanged)
}
