// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// TransactionDirection indicates whether money left or entered the account.
type TransactionDirection string

// Transaction direction constants.
const (
	DirectionDebit  TransactionDirection = "debit"
	DirectionCredit TransactionDirection = "credit"
)

// CategoryUncategorized is the sentinel category assigned when no
// classification stage produced a match.
const CategoryUncategorized = "uncategorized"

// Transaction is the canonical, institution-independent shape every parsed
// statement row is converted into. The ID is assigned at persistence time and
// is immutable afterwards.
type Transaction struct {
	Date               time.Time
	PostedDate         *time.Time
	CreatedAt          time.Time
	ID                 string
	Owner              string
	SourceImportID     string
	DescriptionRaw     string // Original statement text, never rewritten
	MerchantNormalized string
	Currency           string
	Category           string
	DedupeFingerprint  string
	Direction          TransactionDirection
	Amount             float64 // Non-negative magnitude; sign lives in Direction
	CategoryConfidence float64
	IsUserAssigned     bool
}

// Fingerprint derives the duplicate-detection key for this transaction.
// It is a pure function of (owner, date, normalized merchant, amount,
// direction): the same logical transaction re-parsed from any file always
// produces the same value. Legitimate repeats sharing all four fields
// collide on purpose; that matching scope is part of the product contract
// and must not change without one.
func (t *Transaction) Fingerprint() string {
	datePart := ""
	if !t.Date.IsZero() {
		datePart = t.Date.Format("2006-01-02")
	}
	raw := fmt.Sprintf("%s|%s|%s|%.2f|%s",
		strings.ToLower(strings.TrimSpace(t.Owner)),
		datePart,
		t.MerchantNormalized,
		t.Amount,
		strings.ToLower(strings.TrimSpace(string(t.Direction))),
	)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", hash)
}
