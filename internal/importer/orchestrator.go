// Package importer drives one statement ingestion run end to end: parse,
// normalize, deduplicate, classify, persist.
package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledgerflow/ledgerflow/internal/engine"
	"github.com/ledgerflow/ledgerflow/internal/model"
	"github.com/ledgerflow/ledgerflow/internal/normalize"
	"github.com/ledgerflow/ledgerflow/internal/parser"
	"github.com/ledgerflow/ledgerflow/internal/service"
)

// ProgressFunc is called after each examined row.
type ProgressFunc func(processed, total int)

// RowError records one row that could not be normalized. The row stays
// counted in ProcessedRows; imports never stop for a bad row.
type RowError struct {
	Err error
	Row int
}

// Summary reports what one ingestion run did with every examined row.
type Summary struct {
	ImportID         string
	RowErrors        []RowError
	TotalRows        int
	ProcessedRows    int
	Inserted         int
	DuplicatesQueued int
	InvalidRows      int
}

// maxRecordedRowErrors caps how many row failures the summary carries.
// Past that the count still grows but the details are dropped.
const maxRecordedRowErrors = 25

// Config assembles an Orchestrator's collaborators.
type Config struct {
	Storage    service.Storage
	Normalizer *normalize.Normalizer
	Progress   ProgressFunc
	// Recurrence overrides the recurring-charge detector. Nil means the
	// built-in defaults.
	Recurrence *engine.RecurrenceDetector
	// HistoryLimit bounds the merchant history fetched for the recurrence
	// stage. Zero means the storage default.
	HistoryLimit int
}

// Orchestrator runs statement imports. One instance is safe for sequential
// reuse across files; each Run is an independent import record.
type Orchestrator struct {
	store        service.Storage
	normalizer   *normalize.Normalizer
	progress     ProgressFunc
	recurrence   *engine.RecurrenceDetector
	historyLimit int
}

// New creates an import orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Normalizer == nil {
		return nil, fmt.Errorf("normalizer is required")
	}
	return &Orchestrator{
		store:        cfg.Storage,
		normalizer:   cfg.Normalizer,
		progress:     cfg.Progress,
		recurrence:   cfg.Recurrence,
		historyLimit: cfg.HistoryLimit,
	}, nil
}

// Run ingests one statement file for the owner. Every row is examined:
// valid unseen rows become committed transactions, rows colliding with
// existing data or earlier rows in the same file are withheld into the
// review queue, and rows that fail validation are counted and skipped. Only
// file-level failures (unreadable content, unrecognized schema, storage
// breakage) fail the import.
func (o *Orchestrator) Run(ctx context.Context, owner, filename string, source parser.Source) (*Summary, error) {
	imp := &model.StatementImport{Owner: owner, Filename: filename}
	if err := o.store.CreateImport(ctx, imp); err != nil {
		return nil, fmt.Errorf("failed to create import record: %w", err)
	}

	summary, err := o.run(ctx, imp, owner, source)
	if err != nil {
		if transitionErr := o.store.TransitionImport(ctx, imp.ID, model.ImportStatusFailed, err.Error()); transitionErr != nil {
			slog.Error("failed to mark import failed",
				"import_id", imp.ID,
				"error", transitionErr)
		}
		return nil, err
	}

	if err := o.store.TransitionImport(ctx, imp.ID, model.ImportStatusCompleted, ""); err != nil {
		return nil, fmt.Errorf("failed to complete import: %w", err)
	}

	slog.Info("import completed",
		"import_id", imp.ID,
		"filename", filename,
		"total_rows", summary.TotalRows,
		"inserted", summary.Inserted,
		"duplicates_queued", summary.DuplicatesQueued,
		"invalid_rows", summary.InvalidRows)
	return summary, nil
}

func (o *Orchestrator) run(ctx context.Context, imp *model.StatementImport, owner string, source parser.Source) (*Summary, error) {
	if err := o.store.TransitionImport(ctx, imp.ID, model.ImportStatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("failed to start import: %w", err)
	}

	total, err := countRows(ctx, source)
	if err != nil {
		return nil, err
	}
	if err := o.store.UpdateImportProgress(ctx, imp.ID, total, 0); err != nil {
		return nil, fmt.Errorf("failed to record row count: %w", err)
	}

	rules, err := o.store.ListRules(ctx, owner, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load classification rules: %w", err)
	}
	classifier := engine.NewClassifier(rules, o.recurrence)

	it, err := source.Rows(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{ImportID: imp.ID, TotalRows: total}
	// Fingerprints already examined in this file, mapped to the committed
	// transaction ID when the first occurrence was inserted.
	seen := make(map[string]string)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("import canceled: %w", err)
		}

		row, ok := it.Next()
		if !ok {
			break
		}

		summary.ProcessedRows++
		if err := o.processRow(ctx, imp, owner, classifier, row, seen, summary); err != nil {
			return nil, fmt.Errorf("row %d: %w", row.Number, err)
		}

		if err := o.store.UpdateImportProgress(ctx, imp.ID, total, summary.ProcessedRows); err != nil {
			return nil, fmt.Errorf("failed to update progress: %w", err)
		}
		if o.progress != nil {
			o.progress(summary.ProcessedRows, total)
		}
	}

	return summary, nil
}

// processRow pushes one row through normalize, dedupe, classify, persist.
// A validation failure is recorded in the summary and returns nil; only
// storage errors propagate.
func (o *Orchestrator) processRow(ctx context.Context, imp *model.StatementImport, owner string, classifier *engine.Classifier, row parser.Row, seen map[string]string, summary *Summary) error {
	draft, err := o.normalizer.Normalize(row, owner, imp.ID)
	if err != nil {
		summary.InvalidRows++
		if len(summary.RowErrors) < maxRecordedRowErrors {
			summary.RowErrors = append(summary.RowErrors, RowError{Row: row.Number, Err: err})
		}
		slog.Debug("skipping invalid row",
			"import_id", imp.ID,
			"row", row.Number,
			"error", err)
		return nil
	}

	// Gate 1: a fingerprint already examined earlier in this same file.
	if matchedID, dup := seen[draft.DedupeFingerprint]; dup {
		summary.DuplicatesQueued++
		return o.queueReview(ctx, imp, row, draft, matchedID,
			model.ScopeSameImport, model.ReasonFingerprintMatch)
	}
	seen[draft.DedupeFingerprint] = ""

	// Gate 2 and 3: committed data. The natural key probe also catches
	// previously promoted repeats whose stored fingerprint is salted and
	// therefore no longer reachable from file content.
	matchedID, err := o.store.FindTransactionByNaturalKey(ctx, draft)
	if err != nil {
		return err
	}
	if matchedID != "" {
		reason := model.ReasonNaturalKeyMatch
		existing, getErr := o.store.GetTransactionByID(ctx, matchedID)
		if getErr != nil {
			return getErr
		}
		if existing.DedupeFingerprint == draft.DedupeFingerprint {
			reason = model.ReasonFingerprintMatch
		}
		summary.DuplicatesQueued++
		return o.queueReview(ctx, imp, row, draft, matchedID,
			model.ScopeExistingData, reason)
	}

	history, err := o.store.GetMerchantHistory(ctx, owner, draft.MerchantNormalized, o.historyLimit)
	if err != nil {
		return err
	}
	result := classifier.Classify(draft, normalize.SourceCategory(row), history)
	draft.Category = result.Category
	draft.CategoryConfidence = result.Confidence

	outcome, err := o.store.InsertTransactionIfAbsent(ctx, draft)
	if err != nil {
		return err
	}
	if !outcome.Inserted {
		// Lost a race with a concurrent import of the same data.
		summary.DuplicatesQueued++
		return o.queueReview(ctx, imp, row, draft, outcome.ExistingID,
			model.ScopeExistingData, model.ReasonFingerprintMatch)
	}

	seen[draft.DedupeFingerprint] = draft.ID
	summary.Inserted++
	return nil
}

func (o *Orchestrator) queueReview(ctx context.Context, imp *model.StatementImport, row parser.Row, draft *model.Transaction, matchedID string, scope model.DuplicateScope, reason model.DuplicateReason) error {
	review := &model.DuplicateReview{
		Owner:                draft.Owner,
		SourceImportID:       imp.ID,
		SourceRowNumber:      row.Number,
		MatchedTransactionID: matchedID,
		Scope:                scope,
		Reason:               reason,
		Draft:                *draft,
	}
	// The withheld draft keeps whatever category it had at withholding
	// time; classification happens on promotion paths via recategorize.
	if review.Draft.Category == "" {
		review.Draft.Category = model.CategoryUncategorized
	}
	if err := o.store.CreateDuplicateReview(ctx, review); err != nil {
		return fmt.Errorf("failed to queue duplicate review: %w", err)
	}

	slog.Debug("withheld duplicate row",
		"import_id", imp.ID,
		"row", row.Number,
		"scope", scope,
		"reason", reason,
		"matched_transaction", matchedID)
	return nil
}

// countRows walks the source once so progress can report a stable total.
// Sources are restartable, so this does not consume the import pass.
func countRows(ctx context.Context, source parser.Source) (int, error) {
	it, err := source.Rows(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if _, ok := it.Next(); !ok {
			break
		}
		count++
	}
	return count, nil
}
