// Package normalize maps parsed statement rows into canonical transaction
// drafts.
package normalize

import (
	"regexp"
	"strings"
)

// defaultBoilerplate lists payment-processor prefixes that carry no merchant
// information. Matching is done on lowercased, whitespace-collapsed text.
var defaultBoilerplate = []string{
	"pos purchase",
	"purchase authorized on",
	"debit card purchase",
	"ach debit",
	"ach credit",
	"check card",
	"visa purchase",
	"mc purchase",
	"debit purchase",
	"recurring payment",
	"web payment",
	"sq *",
	"tst*",
	"paypal *",
}

var (
	// Trailing reference/store numbers, e.g. "STORE #1234" or "TXN 0098123".
	trailingRefRegex = regexp.MustCompile(`\s+#?\d{3,}$`)
	// Leading MM/DD fragments some processors prepend to the merchant.
	leadingDateRegex = regexp.MustCompile(`^\d{1,2}/\d{1,2}\s+`)
)

// MerchantNormalizer derives a stable display merchant from raw statement
// descriptions. The same raw description always yields the same output, so
// the result is safe to use for matching and fingerprinting.
type MerchantNormalizer struct {
	aliases     map[string]string
	boilerplate []string
}

// NewMerchantNormalizer creates a normalizer. aliases maps a normalized
// merchant to the display name it should be substituted with; extra
// boilerplate tokens are stripped in addition to the built-in list.
func NewMerchantNormalizer(aliases map[string]string, extraBoilerplate []string) *MerchantNormalizer {
	folded := make(map[string]string, len(aliases))
	for raw, display := range aliases {
		folded[foldText(raw)] = display
	}

	boilerplate := append(append([]string{}, defaultBoilerplate...), extraBoilerplate...)
	for i, token := range boilerplate {
		boilerplate[i] = foldText(token)
	}

	return &MerchantNormalizer{aliases: folded, boilerplate: boilerplate}
}

// Normalize cleans a raw description into a merchant name. Empty input
// normalizes to "unknown".
func (m *MerchantNormalizer) Normalize(descriptionRaw string) string {
	cleaned := foldText(descriptionRaw)

	for _, token := range m.boilerplate {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, token))
	}
	cleaned = leadingDateRegex.ReplaceAllString(cleaned, "")
	cleaned = trailingRefRegex.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	if len(cleaned) > 100 {
		cleaned = strings.TrimSpace(cleaned[:100])
	}
	if cleaned == "" {
		return "unknown"
	}

	if display, ok := m.aliases[cleaned]; ok {
		return display
	}
	return cleaned
}

// foldText lowercases and collapses internal whitespace.
func foldText(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}
