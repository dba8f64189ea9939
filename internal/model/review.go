package model

import "time"

// ReviewStatus tracks the lifecycle of a duplicate review entry.
type ReviewStatus string

// Review status constants. pending is the only non-terminal state.
const (
	ReviewStatusPending            ReviewStatus = "pending"
	ReviewStatusConfirmedDuplicate ReviewStatus = "confirmed_duplicate"
	ReviewStatusIgnored            ReviewStatus = "ignored"
)

// DuplicateScope describes which data set the colliding fingerprint was
// found in.
type DuplicateScope string

// Duplicate scope constants.
const (
	ScopeSameImport   DuplicateScope = "same_import"
	ScopeExistingData DuplicateScope = "existing_data"
)

// DuplicateReason describes which comparison produced the match.
type DuplicateReason string

// Duplicate reason constants.
const (
	ReasonFingerprintMatch DuplicateReason = "fingerprint_match"
	ReasonNaturalKeyMatch  DuplicateReason = "natural_key_match"
)

// ReviewAction is a reviewer's verdict on a pending duplicate review.
type ReviewAction string

// Review action constants. ActionConfirmDuplicate discards the row;
// ActionNotDuplicate promotes the stored draft into a real transaction.
const (
	ActionConfirmDuplicate ReviewAction = "confirm_duplicate"
	ActionNotDuplicate     ReviewAction = "not_duplicate"
)

// DuplicateReview holds a normalized row that was withheld from insertion
// because its fingerprint (or natural key) collided with existing data. It
// carries a full copy of the would-be transaction so resolution does not
// need the original file.
type DuplicateReview struct {
	CreatedAt            time.Time
	ResolvedAt           *time.Time
	ID                   string
	Owner                string
	SourceImportID       string
	MatchedTransactionID string
	Note                 string
	Scope                DuplicateScope
	Reason               DuplicateReason
	Status               ReviewStatus
	Draft                Transaction // The withheld transaction, unpersisted
	SourceRowNumber      int
}
