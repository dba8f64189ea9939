package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/model"
	"github.com/ledgerflow/ledgerflow/internal/parser"
)

func row(fields map[parser.Field]string) parser.Row {
	return parser.Row{Number: 1, Fields: fields}
}

func TestNormalizer_SignedAmountColumn(t *testing.T) {
	n := New(Options{})

	tests := []struct {
		name          string
		amount        string
		wantDirection model.TransactionDirection
		wantAmount    float64
	}{
		{name: "negative amount is a debit", amount: "-42.50", wantDirection: model.DirectionDebit, wantAmount: 42.50},
		{name: "positive amount is a credit", amount: "1500.00", wantDirection: model.DirectionCredit, wantAmount: 1500.00},
		{name: "parenthesized amount is a debit", amount: "(19.99)", wantDirection: model.DirectionDebit, wantAmount: 19.99},
		{name: "currency symbol and separators are tolerated", amount: "-$1,234.56", wantDirection: model.DirectionDebit, wantAmount: 1234.56},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft, err := n.Normalize(row(map[parser.Field]string{
				parser.FieldDate:        "2024-03-01",
				parser.FieldDescription: "SOME MERCHANT",
				parser.FieldAmount:      tt.amount,
			}), "owner-1", "import-1")

			require.NoError(t, err)
			assert.Equal(t, tt.wantDirection, draft.Direction)
			assert.InDelta(t, tt.wantAmount, draft.Amount, 0.001)
			assert.GreaterOrEqual(t, draft.Amount, 0.0)
		})
	}
}

func TestNormalizer_SplitColumns(t *testing.T) {
	n := New(Options{})

	draft, err := n.Normalize(row(map[parser.Field]string{
		parser.FieldDate:        "2024-03-01",
		parser.FieldDescription: "GROCERY MART",
		parser.FieldDebit:       "30.00",
	}), "owner-1", "import-1")
	require.NoError(t, err)
	assert.Equal(t, model.DirectionDebit, draft.Direction)
	assert.InDelta(t, 30.00, draft.Amount, 0.001)

	draft, err = n.Normalize(row(map[parser.Field]string{
		parser.FieldDate:        "2024-03-02",
		parser.FieldDescription: "REFUND",
		parser.FieldCredit:      "12.00",
	}), "owner-1", "import-1")
	require.NoError(t, err)
	assert.Equal(t, model.DirectionCredit, draft.Direction)

	// Both columns populated is an invalid row, not a guess.
	_, err = n.Normalize(row(map[parser.Field]string{
		parser.FieldDate:        "2024-03-03",
		parser.FieldDescription: "CONFUSED BANK",
		parser.FieldDebit:       "5.00",
		parser.FieldCredit:      "5.00",
	}), "owner-1", "import-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrRowValidation))

	// Split columns encode direction separately, so negatives are invalid.
	_, err = n.Normalize(row(map[parser.Field]string{
		parser.FieldDate:        "2024-03-04",
		parser.FieldDescription: "ODD BANK",
		parser.FieldDebit:       "-5.00",
	}), "owner-1", "import-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrRowValidation))
}

func TestNormalizer_RequiredFields(t *testing.T) {
	n := New(Options{})

	tests := []struct {
		fields    map[parser.Field]string
		name      string
		wantField string
	}{
		{
			name: "missing date",
			fields: map[parser.Field]string{
				parser.FieldDescription: "SHOP",
				parser.FieldAmount:      "-1.00",
			},
			wantField: "date",
		},
		{
			name: "missing description",
			fields: map[parser.Field]string{
				parser.FieldDate:   "2024-03-01",
				parser.FieldAmount: "-1.00",
			},
			wantField: "description",
		},
		{
			name: "missing amount",
			fields: map[parser.Field]string{
				parser.FieldDate:        "2024-03-01",
				parser.FieldDescription: "SHOP",
			},
			wantField: "amount",
		},
		{
			name: "unparseable date",
			fields: map[parser.Field]string{
				parser.FieldDate:        "not a date",
				parser.FieldDescription: "SHOP",
				parser.FieldAmount:      "-1.00",
			},
			wantField: "date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(row(tt.fields), "owner-1", "import-1")
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrRowValidation))
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestNormalizer_OptionalFields(t *testing.T) {
	n := New(Options{HomeCurrency: "eur"})

	draft, err := n.Normalize(row(map[parser.Field]string{
		parser.FieldDate:        "2024-03-01",
		parser.FieldPostedDate:  "2024-03-03",
		parser.FieldDescription: "SHOP",
		parser.FieldAmount:      "-1.00",
	}), "owner-1", "import-1")

	require.NoError(t, err)
	require.NotNil(t, draft.PostedDate)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), *draft.PostedDate)
	assert.Equal(t, "EUR", draft.Currency)

	// Posted date absent is fine.
	draft, err = n.Normalize(row(map[parser.Field]string{
		parser.FieldDate:        "2024-03-01",
		parser.FieldDescription: "SHOP",
		parser.FieldAmount:      "-1.00",
		parser.FieldCurrency:    "gbp",
	}), "owner-1", "import-1")
	require.NoError(t, err)
	assert.Nil(t, draft.PostedDate)
	assert.Equal(t, "GBP", draft.Currency)
}

func TestNormalizer_FingerprintStability(t *testing.T) {
	n := New(Options{Aliases: map[string]string{
		"amazon.com purchase": "amazon",
		"amzn mktp us":        "amazon",
	}})

	a, err := n.Normalize(row(map[parser.Field]string{
		parser.FieldDate:        "2024-03-01",
		parser.FieldDescription: "AMAZON.COM   PURCHASE",
		parser.FieldAmount:      "-42.50",
	}), "owner-1", "import-1")
	require.NoError(t, err)

	// Different raw description, same normalized merchant, same fingerprint.
	b, err := n.Normalize(row(map[parser.Field]string{
		parser.FieldDate:        "2024-03-01",
		parser.FieldDescription: "AMZN MKTP US",
		parser.FieldAmount:      "-42.50",
	}), "owner-1", "import-2")
	require.NoError(t, err)

	assert.Equal(t, "amazon", a.MerchantNormalized)
	assert.Equal(t, "amazon", b.MerchantNormalized)
	assert.Equal(t, a.DedupeFingerprint, b.DedupeFingerprint)
}

func TestMerchantNormalizer_Cleanup(t *testing.T) {
	m := NewMerchantNormalizer(nil, nil)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "case folding and whitespace", raw: "  Whole   FOODS  Market ", want: "whole foods market"},
		{name: "processor prefix stripped", raw: "POS PURCHASE WHOLE FOODS", want: "whole foods"},
		{name: "trailing store number stripped", raw: "TARGET STORE #1234", want: "target store"},
		{name: "leading date fragment stripped", raw: "03/01 STARBUCKS", want: "starbucks"},
		{name: "empty becomes unknown", raw: "   ", want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Normalize(tt.raw)
			assert.Equal(t, tt.want, got)
			// Stability: same input, same output.
			assert.Equal(t, got, m.Normalize(tt.raw))
		})
	}
}
