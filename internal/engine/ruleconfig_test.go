package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow/ledgerflow/internal/model"
)

func TestRuleConfig_RoundTrip(t *testing.T) {
	rules := []model.ClassificationRule{
		{
			Type: model.RuleMerchantExact, Pattern: "netflix.com",
			Category: "subscriptions", Confidence: 0.95, Priority: 5, IsActive: true,
		},
		{
			Type: model.RuleTextContains, Pattern: "grocery",
			Category: "groceries_other", Confidence: 0.8, Priority: 50, IsActive: false,
		},
	}

	data, err := ExportRules(rules)
	require.NoError(t, err)

	loaded, err := LoadRules(data)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	for i := range rules {
		assert.Equal(t, rules[i].Type, loaded[i].Type)
		assert.Equal(t, rules[i].Pattern, loaded[i].Pattern)
		assert.Equal(t, rules[i].Category, loaded[i].Category)
		assert.Equal(t, rules[i].Confidence, loaded[i].Confidence)
		assert.Equal(t, rules[i].Priority, loaded[i].Priority)
		assert.Equal(t, rules[i].IsActive, loaded[i].IsActive)
	}

	// Export of the loaded set reproduces the document byte for byte.
	again, err := ExportRules(loaded)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestLoadRules_RejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not an array", doc: `{"rule_type": "merchant_exact"}`},
		{name: "confidence out of range", doc: `[{"rule_type":"merchant_exact","pattern":"x","category":"y","confidence":1.5,"priority":1,"is_active":true}]`},
		{name: "negative priority", doc: `[{"rule_type":"merchant_exact","pattern":"x","category":"y","confidence":0.5,"priority":-1,"is_active":true}]`},
		{name: "unknown rule type", doc: `[{"rule_type":"regex","pattern":"x","category":"y","confidence":0.5,"priority":1,"is_active":true}]`},
		{name: "empty pattern", doc: `[{"rule_type":"merchant_exact","pattern":"","category":"y","confidence":0.5,"priority":1,"is_active":true}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}
