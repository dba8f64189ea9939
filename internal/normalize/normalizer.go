package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/model"
	"github.com/ledgerflow/ledgerflow/internal/parser"
)

// dateLayouts are tried in order when parsing statement dates.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"01-02-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"2006-01-02T15:04:05Z07:00",
}

// Normalizer converts parsed rows into canonical transaction drafts.
type Normalizer struct {
	merchant     *MerchantNormalizer
	homeCurrency string
}

// Options configures a Normalizer.
type Options struct {
	Aliases          map[string]string
	HomeCurrency     string
	ExtraBoilerplate []string
}

// New creates a Normalizer. HomeCurrency defaults to USD.
func New(opts Options) *Normalizer {
	currency := strings.ToUpper(strings.TrimSpace(opts.HomeCurrency))
	if currency == "" {
		currency = "USD"
	}
	return &Normalizer{
		merchant:     NewMerchantNormalizer(opts.Aliases, opts.ExtraBoilerplate),
		homeCurrency: currency,
	}
}

// Normalize builds an unpersisted transaction draft from one parsed row, or
// fails with a validation error naming the offending field. Required fields
// are date, description, and an amount; posted date and source category are
// optional.
func (n *Normalizer) Normalize(row parser.Row, owner, importID string) (*model.Transaction, error) {
	if row.Err != nil {
		return nil, row.Err
	}

	description := strings.TrimSpace(row.Fields[parser.FieldDescription])
	if description == "" {
		return nil, rowError("description", "required field is missing")
	}

	date, err := parseDate(row.Fields[parser.FieldDate])
	if err != nil {
		return nil, rowError("date", err.Error())
	}

	var postedDate *time.Time
	if raw := strings.TrimSpace(row.Fields[parser.FieldPostedDate]); raw != "" {
		parsed, postedErr := parseDate(raw)
		if postedErr != nil {
			return nil, rowError("posted_date", postedErr.Error())
		}
		postedDate = &parsed
	}

	amount, direction, err := n.resolveAmount(row)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(row.Fields[parser.FieldCurrency]))
	if currency == "" {
		currency = n.homeCurrency
	}

	draft := &model.Transaction{
		Owner:              owner,
		SourceImportID:     importID,
		Date:               date,
		PostedDate:         postedDate,
		DescriptionRaw:     description,
		MerchantNormalized: n.merchant.Normalize(description),
		Amount:             amount,
		Currency:           currency,
		Direction:          direction,
		Category:           model.CategoryUncategorized,
	}
	draft.DedupeFingerprint = draft.Fingerprint()

	return draft, nil
}

// SourceCategory extracts the optional institution-supplied category hint
// for the classification engine.
func SourceCategory(row parser.Row) string {
	return strings.TrimSpace(row.Fields[parser.FieldSourceCategory])
}

// resolveAmount reconciles amount magnitude and direction. Statements encode
// direction either as the sign of a single amount column (negative = debit)
// or as split debit/credit columns, which must hold non-negative values.
func (n *Normalizer) resolveAmount(row parser.Row) (float64, model.TransactionDirection, error) {
	debitRaw := strings.TrimSpace(row.Fields[parser.FieldDebit])
	creditRaw := strings.TrimSpace(row.Fields[parser.FieldCredit])

	debit, debitOK, err := parseOptionalAmount(debitRaw)
	if err != nil {
		return 0, "", rowError("debit", err.Error())
	}
	credit, creditOK, err := parseOptionalAmount(creditRaw)
	if err != nil {
		return 0, "", rowError("credit", err.Error())
	}

	debitSet := debitOK && debit != 0
	creditSet := creditOK && credit != 0

	switch {
	case debitSet && creditSet:
		return 0, "", rowError("amount", "both debit and credit columns are populated")
	case debitSet:
		if debit < 0 {
			return 0, "", rowError("debit", "split-column amount must be non-negative")
		}
		return debit, model.DirectionDebit, nil
	case creditSet:
		if credit < 0 {
			return 0, "", rowError("credit", "split-column amount must be non-negative")
		}
		return credit, model.DirectionCredit, nil
	}

	amountRaw := strings.TrimSpace(row.Fields[parser.FieldAmount])
	amount, ok, err := parseOptionalAmount(amountRaw)
	if err != nil {
		return 0, "", rowError("amount", err.Error())
	}
	if !ok {
		return 0, "", rowError("amount", "required field is missing")
	}

	if amount < 0 {
		return -amount, model.DirectionDebit, nil
	}
	return amount, model.DirectionCredit, nil
}

// parseOptionalAmount parses a currency amount, tolerating $ prefixes,
// thousands separators, and accounting-style parentheses for negatives.
// The second return is false when the value is empty.
func parseOptionalAmount(raw string) (float64, bool, error) {
	if raw == "" {
		return 0, false, nil
	}

	cleaned := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false, fmt.Errorf("unparseable amount %q", raw)
	}
	if negative {
		value = -value
	}
	return value, true, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("required field is missing")
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC().Truncate(24 * time.Hour), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

func rowError(field, reason string) error {
	return fmt.Errorf("%w: field %s: %s", common.ErrRowValidation, field, reason)
}
