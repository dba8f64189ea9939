package importer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/model"
	"github.com/ledgerflow/ledgerflow/internal/normalize"
	"github.com/ledgerflow/ledgerflow/internal/parser"
	"github.com/ledgerflow/ledgerflow/internal/service"
	"github.com/ledgerflow/ledgerflow/internal/storage"
)

func newTestStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func newTestOrchestrator(t *testing.T, store service.Storage) *Orchestrator {
	t.Helper()
	orch, err := New(Config{
		Storage:    store,
		Normalizer: normalize.New(normalize.Options{}),
	})
	require.NoError(t, err)
	return orch
}

func csvSource(content string) parser.Source {
	return parser.NewCSVSource([]byte(content), nil, "")
}

const cleanStatement = `Date,Description,Amount
2024-03-01,BLUE BOTTLE COFFEE,-6.50
2024-03-02,WHOLE FOODS MARKET,-82.13
2024-03-15,PAYROLL DEPOSIT,2500.00
`

func TestOrchestrator_CleanImport(t *testing.T) {
	store := newTestStore(t)
	orch := newTestOrchestrator(t, store)
	ctx := context.Background()

	summary, err := orch.Run(ctx, "alice", "march.csv", csvSource(cleanStatement))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalRows)
	assert.Equal(t, 3, summary.ProcessedRows)
	assert.Equal(t, 3, summary.Inserted)
	assert.Zero(t, summary.DuplicatesQueued)
	assert.Zero(t, summary.InvalidRows)

	imp, err := store.GetImport(ctx, summary.ImportID)
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusCompleted, imp.Status)
	assert.Equal(t, 3, imp.ProcessedRows)

	txns, err := store.ListTransactions(ctx, service.TransactionFilter{Owner: "alice"})
	require.NoError(t, err)
	require.Len(t, txns, 3)
	for _, txn := range txns {
		assert.Equal(t, model.CategoryUncategorized, txn.Category, "no rules configured")
		assert.Zero(t, txn.CategoryConfidence)
	}
}

func TestOrchestrator_ReimportQueuesEveryRow(t *testing.T) {
	store := newTestStore(t)
	orch := newTestOrchestrator(t, store)
	ctx := context.Background()

	_, err := orch.Run(ctx, "alice", "march.csv", csvSource(cleanStatement))
	require.NoError(t, err)

	summary, err := orch.Run(ctx, "alice", "march-again.csv", csvSource(cleanStatement))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.ProcessedRows, "processed counts examined rows, not inserted ones")
	assert.Zero(t, summary.Inserted)
	assert.Equal(t, 3, summary.DuplicatesQueued)

	reviews, err := store.ListDuplicateReviews(ctx, "alice", model.ReviewStatusPending)
	require.NoError(t, err)
	require.Len(t, reviews, 3)
	for _, review := range reviews {
		assert.Equal(t, model.ScopeExistingData, review.Scope)
		assert.Equal(t, model.ReasonFingerprintMatch, review.Reason)
		assert.NotEmpty(t, review.MatchedTransactionID)
	}
}

func TestOrchestrator_IntraBatchDuplicate(t *testing.T) {
	store := newTestStore(t)
	orch := newTestOrchestrator(t, store)
	ctx := context.Background()

	statement := `Date,Description,Amount
2024-03-01,CORNER DELI,-12.00
2024-03-01,CORNER DELI,-12.00
`
	summary, err := orch.Run(ctx, "alice", "deli.csv", csvSource(statement))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.DuplicatesQueued)

	reviews, err := store.ListDuplicateReviews(ctx, "alice", model.ReviewStatusPending)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, model.ScopeSameImport, reviews[0].Scope)
	assert.Equal(t, 2, reviews[0].SourceRowNumber)
}

func TestOrchestrator_InvalidRowsAreCountedNotFatal(t *testing.T) {
	store := newTestStore(t)
	orch := newTestOrchestrator(t, store)
	ctx := context.Background()

	statement := `Date,Description,Amount
2024-03-01,BLUE BOTTLE COFFEE,-6.50
not-a-date,SOMETHING,-1.00
2024-03-03,,-2.00
2024-03-04,SHELL OIL,-42.10
`
	summary, err := orch.Run(ctx, "alice", "messy.csv", csvSource(statement))
	require.NoError(t, err)

	assert.Equal(t, 4, summary.ProcessedRows)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 2, summary.InvalidRows)
	require.Len(t, summary.RowErrors, 2)
	assert.Equal(t, 2, summary.RowErrors[0].Row)
	assert.ErrorIs(t, summary.RowErrors[0].Err, common.ErrRowValidation)
}

func TestOrchestrator_UnrecognizedSchemaFailsImport(t *testing.T) {
	store := newTestStore(t)
	orch := newTestOrchestrator(t, store)
	ctx := context.Background()

	_, err := orch.Run(ctx, "alice", "junk.csv", csvSource("foo,bar\n1,2\n"))
	require.ErrorIs(t, err, common.ErrSchemaDetection)

	imports, err := store.ListImports(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, model.ImportStatusFailed, imports[0].Status)
	assert.NotEmpty(t, imports[0].ErrorMessage)
}

func TestOrchestrator_RulesClassifyOnIngest(t *testing.T) {
	store := newTestStore(t)
	orch := newTestOrchestrator(t, store)
	ctx := context.Background()

	require.NoError(t, store.CreateRule(ctx, &model.ClassificationRule{
		Owner:      "alice",
		Type:       model.RuleMerchantContains,
		Pattern:    "blue bottle",
		Category:   "eating_out",
		Confidence: 0.9,
		Priority:   10,
		IsActive:   true,
	}))

	summary, err := orch.Run(ctx, "alice", "march.csv", csvSource(cleanStatement))
	require.NoError(t, err)
	require.Equal(t, 3, summary.Inserted)

	matched, err := store.ListTransactions(ctx, service.TransactionFilter{
		Owner: "alice", Category: "eating_out",
	})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, 0.9, matched[0].CategoryConfidence)
	assert.False(t, matched[0].IsUserAssigned)
}

func TestOrchestrator_PromotedRepeatCaughtByNaturalKey(t *testing.T) {
	store := newTestStore(t)
	orch := newTestOrchestrator(t, store)
	ctx := context.Background()

	statement := `Date,Description,Amount
2024-03-01,CORNER DELI,-12.00
`
	_, err := orch.Run(ctx, "alice", "first.csv", csvSource(statement))
	require.NoError(t, err)

	// Re-import, then promote the withheld repeat: it lands with a salted
	// fingerprint.
	_, err = orch.Run(ctx, "alice", "second.csv", csvSource(statement))
	require.NoError(t, err)
	reviews, err := store.ListDuplicateReviews(ctx, "alice", model.ReviewStatusPending)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	_, err = store.ResolveDuplicateReview(ctx, reviews[0].ID, model.ActionNotDuplicate, "")
	require.NoError(t, err)

	// A third import of the same row still gets withheld even though the
	// promoted copy's fingerprint no longer matches file content.
	summary, err := orch.Run(ctx, "alice", "third.csv", csvSource(statement))
	require.NoError(t, err)
	assert.Zero(t, summary.Inserted)
	assert.Equal(t, 1, summary.DuplicatesQueued)
}

func TestOrchestrator_ProgressCallback(t *testing.T) {
	store := newTestStore(t)
	var calls []int
	orch, err := New(Config{
		Storage:    store,
		Normalizer: normalize.New(normalize.Options{}),
		Progress: func(processed, total int) {
			assert.Equal(t, 3, total)
			calls = append(calls, processed)
		},
	})
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), "alice", "march.csv", csvSource(cleanStatement))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestRecategorize_AppliesNewRules(t *testing.T) {
	store := newTestStore(t)
	orch := newTestOrchestrator(t, store)
	ctx := context.Background()

	_, err := orch.Run(ctx, "alice", "march.csv", csvSource(cleanStatement))
	require.NoError(t, err)

	// Pin one row by hand, then add a rule that would rewrite it.
	txns, err := store.ListTransactions(ctx, service.TransactionFilter{Owner: "alice"})
	require.NoError(t, err)
	var coffee model.Transaction
	for _, txn := range txns {
		if txn.MerchantNormalized == "blue bottle coffee" {
			coffee = txn
		}
	}
	require.NotEmpty(t, coffee.ID)
	require.NoError(t, store.SetTransactionCategory(ctx, coffee.ID, "treats", 1.0, true))

	require.NoError(t, store.CreateRule(ctx, &model.ClassificationRule{
		Owner: "alice", Type: model.RuleTextContains, Pattern: "coffee",
		Category: "eating_out", Confidence: 0.9, Priority: 10, IsActive: true,
	}))

	counts, err := Recategorize(ctx, store, "alice", RecategorizeFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Scanned)
	assert.Equal(t, 1, counts.SkippedUserAssigned)
	assert.Zero(t, counts.Changed, "only the user-pinned row matches the rule")

	got, err := store.GetTransactionByID(ctx, coffee.ID)
	require.NoError(t, err)
	assert.Equal(t, "treats", got.Category)

	// Opting in overrides the pin and clears the user-assigned mark.
	counts, err = Recategorize(ctx, store, "alice", RecategorizeFilter{IncludeUserAssigned: true})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Changed)

	got, err = store.GetTransactionByID(ctx, coffee.ID)
	require.NoError(t, err)
	assert.Equal(t, "eating_out", got.Category)
	assert.False(t, got.IsUserAssigned)
}

func TestRecategorize_FilterScopesThePass(t *testing.T) {
	store := newTestStore(t)
	orch := newTestOrchestrator(t, store)
	ctx := context.Background()

	statement := `Date,Description,Amount
2020-06-01,NETFLIX.COM,-15.99
2024-03-01,NETFLIX.COM,-15.99
`
	_, err := orch.Run(ctx, "alice", "mixed.csv", csvSource(statement))
	require.NoError(t, err)

	require.NoError(t, store.CreateRule(ctx, &model.ClassificationRule{
		Owner: "alice", Type: model.RuleMerchantContains, Pattern: "netflix",
		Category: "subscriptions", Confidence: 0.9, Priority: 10, IsActive: true,
	}))

	// A window starting in 2024 must leave the 2020 row untouched.
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	counts, err := Recategorize(ctx, store, "alice", RecategorizeFilter{StartDate: &start})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Scanned)
	assert.Equal(t, 1, counts.Changed)

	txns, err := store.ListTransactions(ctx, service.TransactionFilter{Owner: "alice"})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	for _, txn := range txns {
		if txn.Date.Year() == 2020 {
			assert.Equal(t, model.CategoryUncategorized, txn.Category)
		} else {
			assert.Equal(t, "subscriptions", txn.Category)
		}
	}

	// A category filter selects nothing once the rows are categorized
	// elsewhere.
	counts, err = Recategorize(ctx, store, "alice", RecategorizeFilter{Category: "groceries_other"})
	require.NoError(t, err)
	assert.Zero(t, counts.Scanned)

	// Unscoped, the remaining 2020 row is picked up.
	counts, err = Recategorize(ctx, store, "alice", RecategorizeFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Scanned)
	assert.Equal(t, 1, counts.Changed)
}

func TestAddManualTransaction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	draft := &model.Transaction{
		Owner:          "alice",
		Date:           time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		DescriptionRaw: "cash lunch",
		Amount:         9.00,
		Currency:       "USD",
		Direction:      model.DirectionDebit,
	}
	created, err := AddManualTransaction(ctx, store, draft, "Eating Out")
	require.NoError(t, err)
	assert.Equal(t, "eating_out", created.Category)
	assert.True(t, created.IsUserAssigned)
	assert.Equal(t, 1.0, created.CategoryConfidence)

	manual, err := store.GetImport(ctx, created.SourceImportID)
	require.NoError(t, err)
	assert.Equal(t, model.ImportStatusManual, manual.Status)

	// Entering the same row again collides.
	repeat := *draft
	repeat.ID = ""
	_, err = AddManualTransaction(ctx, store, &repeat, "")
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}
