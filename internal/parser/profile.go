// Package parser turns raw statement files into a stream of loosely-typed
// field mappings, one per source row.
package parser

import (
	"fmt"
	"strings"

	"github.com/ledgerflow/ledgerflow/internal/common"
)

// Field names a canonical column the rest of the pipeline understands.
type Field string

// Canonical field constants.
const (
	FieldDate           Field = "date"
	FieldPostedDate     Field = "posted_date"
	FieldDescription    Field = "description"
	FieldAmount         Field = "amount"
	FieldDebit          Field = "debit"
	FieldCredit         Field = "credit"
	FieldCurrency       Field = "currency"
	FieldSourceCategory Field = "source_category"
)

// Profile is a data-only column mapping for one institution's statement
// layout: canonical field → candidate header names. Profiles carry no
// parsing logic so new institutions are a configuration change, not code.
type Profile struct {
	Columns    map[Field][]string
	Name       string
	Require    []Field
	RequireAny [][]Field
}

// ProfileConfig is the configuration-file shape of a Profile, decoded from
// the `institutions` section of the config file.
type ProfileConfig struct {
	Columns map[string][]string `mapstructure:"columns"`
	Name    string              `mapstructure:"name"`
	Require []string            `mapstructure:"require"`
}

// GenericProfile matches the common single-amount or split debit/credit
// statement layouts most banks export.
func GenericProfile() Profile {
	return Profile{
		Name: "generic",
		Columns: map[Field][]string{
			FieldDate:           {"date", "transaction date", "trans date"},
			FieldPostedDate:     {"posted date", "posting date", "post date"},
			FieldDescription:    {"description", "memo", "merchant", "name", "details"},
			FieldAmount:         {"amount", "transaction amount"},
			FieldDebit:          {"debit", "withdrawal", "withdrawals"},
			FieldCredit:         {"credit", "deposit", "deposits"},
			FieldCurrency:       {"currency"},
			FieldSourceCategory: {"category", "type", "transaction type"},
		},
		Require:    []Field{FieldDate, FieldDescription},
		RequireAny: [][]Field{{FieldAmount, FieldDebit, FieldCredit}},
	}
}

// FromConfig builds profiles from decoded configuration. Configured profiles
// require every mapped field they declare in `require`; fields without a
// `require` entry are optional.
func FromConfig(configs []ProfileConfig) ([]Profile, error) {
	profiles := make([]Profile, 0, len(configs))
	for _, cfg := range configs {
		if strings.TrimSpace(cfg.Name) == "" {
			return nil, fmt.Errorf("%w: institution profile missing name", common.ErrInvalidConfig)
		}
		if len(cfg.Columns) == 0 {
			return nil, fmt.Errorf("%w: institution profile %q has no columns", common.ErrInvalidConfig, cfg.Name)
		}

		p := Profile{
			Name:    cfg.Name,
			Columns: make(map[Field][]string, len(cfg.Columns)),
		}
		for field, candidates := range cfg.Columns {
			p.Columns[Field(strings.ToLower(strings.TrimSpace(field)))] = candidates
		}
		for _, field := range cfg.Require {
			p.Require = append(p.Require, Field(strings.ToLower(strings.TrimSpace(field))))
		}
		if len(p.Require) == 0 {
			p.Require = []Field{FieldDate, FieldDescription}
			p.RequireAny = [][]Field{{FieldAmount, FieldDebit, FieldCredit}}
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Resolve maps the profile's canonical fields onto column indexes in the
// given header. It returns false when a required field has no matching
// column.
func (p Profile) Resolve(header []string) (map[Field]int, bool) {
	normalized := make(map[string]int, len(header))
	for i, h := range header {
		normalized[normalizeHeader(h)] = i
	}

	resolved := make(map[Field]int)
	for field, candidates := range p.Columns {
		for _, candidate := range candidates {
			if idx, ok := normalized[normalizeHeader(candidate)]; ok {
				resolved[field] = idx
				break
			}
		}
	}

	for _, field := range p.Require {
		if _, ok := resolved[field]; !ok {
			return nil, false
		}
	}
	for _, group := range p.RequireAny {
		found := false
		for _, field := range group {
			if _, ok := resolved[field]; ok {
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}

	return resolved, true
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.Join(strings.Fields(strings.ToLower(h)), " ")
}
