package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerflow/ledgerflow/internal/engine"
	"github.com/ledgerflow/ledgerflow/internal/service"
)

// RecategorizeFilter scopes a re-classification pass. Zero-valued fields
// leave that dimension unrestricted.
type RecategorizeFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Category  string
	// IncludeUserAssigned also rewrites rows a human categorized.
	IncludeUserAssigned bool
}

// Recategorize re-runs the owner's active rules over the committed
// transactions the filter selects and writes the changed rows in one batch.
// Human-assigned categories are left alone unless the filter opts in.
func Recategorize(ctx context.Context, store service.Storage, owner string, filter RecategorizeFilter) (engine.ReclassifyCounts, error) {
	rules, err := store.ListRules(ctx, owner, true)
	if err != nil {
		return engine.ReclassifyCounts{}, fmt.Errorf("failed to load classification rules: %w", err)
	}
	classifier := engine.NewClassifier(rules, nil)

	txns, err := store.ListTransactions(ctx, service.TransactionFilter{
		Owner:     owner,
		StartDate: filter.StartDate,
		EndDate:   filter.EndDate,
		Category:  filter.Category,
	})
	if err != nil {
		return engine.ReclassifyCounts{}, fmt.Errorf("failed to list transactions: %w", err)
	}

	updates, counts := classifier.Reclassify(txns, filter.IncludeUserAssigned)
	if len(updates) > 0 {
		if err := store.ApplyCategoryUpdates(ctx, updates); err != nil {
			return engine.ReclassifyCounts{}, fmt.Errorf("failed to apply category updates: %w", err)
		}
	}

	slog.Info("recategorization pass finished",
		"owner", owner,
		"scanned", counts.Scanned,
		"changed", counts.Changed,
		"skipped_user_assigned", counts.SkippedUserAssigned)
	return counts, nil
}
