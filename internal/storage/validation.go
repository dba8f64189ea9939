package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerflow/ledgerflow/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidImport      = errors.New("invalid statement import")
	ErrInvalidReview      = errors.New("invalid duplicate review")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a transaction before persistence.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	return validateDraft(txn)
}

// validateDraft validates transaction fields shared by committed rows and
// the unpersisted drafts stored inside duplicate reviews, which have no ID
// yet.
func validateDraft(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.Owner == "" {
		return fmt.Errorf("%w: missing owner", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.DescriptionRaw == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidTransaction)
	}
	if txn.Amount < 0 {
		return fmt.Errorf("%w: amount must be non-negative", ErrInvalidTransaction)
	}
	switch txn.Direction {
	case model.DirectionDebit, model.DirectionCredit:
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidTransaction, txn.Direction)
	}
	if txn.DedupeFingerprint == "" {
		return fmt.Errorf("%w: missing fingerprint", ErrInvalidTransaction)
	}
	if txn.CategoryConfidence < 0 || txn.CategoryConfidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidTransaction)
	}
	return nil
}

// validateImport validates a statement import before persistence.
func validateImport(imp *model.StatementImport) error {
	if imp == nil {
		return fmt.Errorf("%w: import", ErrNilParameter)
	}
	if imp.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidImport)
	}
	if imp.Owner == "" {
		return fmt.Errorf("%w: missing owner", ErrInvalidImport)
	}
	if imp.Filename == "" {
		return fmt.Errorf("%w: missing filename", ErrInvalidImport)
	}
	return nil
}

// validateReview validates a duplicate review before persistence.
func validateReview(review *model.DuplicateReview) error {
	if review == nil {
		return fmt.Errorf("%w: review", ErrNilParameter)
	}
	if review.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidReview)
	}
	if review.SourceImportID == "" {
		return fmt.Errorf("%w: missing source import", ErrInvalidReview)
	}
	if review.SourceRowNumber <= 0 {
		return fmt.Errorf("%w: source row number must be positive", ErrInvalidReview)
	}
	if err := validateDraft(&review.Draft); err != nil {
		return fmt.Errorf("review draft: %w", err)
	}
	return nil
}
