package importer

import (
	"context"
	"fmt"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/engine"
	"github.com/ledgerflow/ledgerflow/internal/model"
	"github.com/ledgerflow/ledgerflow/internal/service"
)

// AddManualTransaction commits a hand-entered transaction under the owner's
// synthetic manual import. When no category is given the classification
// rules run; a user-supplied category is stored as user-assigned with full
// confidence. A fingerprint collision with existing data is an error here
// rather than a review, because the user typed the row in deliberately and
// can adjust it.
func AddManualTransaction(ctx context.Context, store service.Storage, draft *model.Transaction, category string) (*model.Transaction, error) {
	if draft == nil {
		return nil, fmt.Errorf("transaction is required")
	}

	manual, err := store.GetOrCreateManualImport(ctx, draft.Owner)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manual import: %w", err)
	}
	draft.SourceImportID = manual.ID

	if draft.MerchantNormalized == "" {
		draft.MerchantNormalized = draft.DescriptionRaw
	}
	draft.DedupeFingerprint = draft.Fingerprint()

	if category != "" {
		cat, catErr := store.CreateCategory(ctx, category)
		if catErr != nil {
			return nil, catErr
		}
		draft.Category = cat.Name
		draft.CategoryConfidence = 1.0
		draft.IsUserAssigned = true
	} else {
		rules, rulesErr := store.ListRules(ctx, draft.Owner, true)
		if rulesErr != nil {
			return nil, fmt.Errorf("failed to load classification rules: %w", rulesErr)
		}
		history, histErr := store.GetMerchantHistory(ctx, draft.Owner, draft.MerchantNormalized, 0)
		if histErr != nil {
			return nil, histErr
		}
		result := engine.NewClassifier(rules, nil).Classify(draft, "", history)
		draft.Category = result.Category
		draft.CategoryConfidence = result.Confidence
	}

	outcome, err := store.InsertTransactionIfAbsent(ctx, draft)
	if err != nil {
		return nil, err
	}
	if !outcome.Inserted {
		return nil, fmt.Errorf("%w: matches transaction %s", common.ErrDuplicateEntry, outcome.ExistingID)
	}
	return draft, nil
}
