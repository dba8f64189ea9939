package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/model"
	"github.com/ledgerflow/ledgerflow/internal/service"
)

const transactionColumns = `id, owner, source_import_id, transaction_date, posted_date,
	description_raw, merchant_normalized, amount, currency, direction,
	category, category_confidence, is_user_assigned, dedupe_fingerprint, created_at`

// InsertTransactionIfAbsent inserts the transaction unless its fingerprint
// is already committed for the same owner. The UNIQUE(owner,
// dedupe_fingerprint) constraint makes the check-and-insert atomic: when
// two imports race on the same fingerprint exactly one wins and the loser
// learns the winner's ID.
func (s *SQLiteStorage) InsertTransactionIfAbsent(ctx context.Context, txn *model.Transaction) (service.InsertOutcome, error) {
	if err := validateContext(ctx); err != nil {
		return service.InsertOutcome{}, err
	}
	if txn != nil && txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if err := validateTransaction(txn); err != nil {
		return service.InsertOutcome{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, owner, source_import_id, transaction_date, posted_date,
			description_raw, merchant_normalized, amount, currency, direction,
			category, category_confidence, is_user_assigned, dedupe_fingerprint
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, dedupe_fingerprint) DO NOTHING`,
		txn.ID, txn.Owner, txn.SourceImportID, txn.Date, nullableTime(txn.PostedDate),
		txn.DescriptionRaw, txn.MerchantNormalized, txn.Amount, txn.Currency, string(txn.Direction),
		txn.Category, txn.CategoryConfidence, txn.IsUserAssigned, txn.DedupeFingerprint,
	)
	if err != nil {
		return service.InsertOutcome{}, fmt.Errorf("failed to insert transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return service.InsertOutcome{}, fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected > 0 {
		return service.InsertOutcome{Inserted: true}, nil
	}

	var existingID string
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM transactions WHERE owner = ? AND dedupe_fingerprint = ?`,
		txn.Owner, txn.DedupeFingerprint).Scan(&existingID)
	if err != nil {
		return service.InsertOutcome{}, fmt.Errorf("failed to look up colliding transaction: %w", err)
	}

	slog.Debug("fingerprint collision on insert",
		"fingerprint", txn.DedupeFingerprint,
		"existing_id", existingID)
	return service.InsertOutcome{Inserted: false, ExistingID: existingID}, nil
}

// GetTransactionByID retrieves a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// ListTransactions returns transactions matching the filter, newest first.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(filter.Owner, "filter.Owner"); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, ErrInvalidDateRange
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE owner = ?`
	args := []any{filter.Owner}

	if filter.StartDate != nil {
		query += ` AND transaction_date >= ?`
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		query += ` AND transaction_date <= ?`
		args = append(args, *filter.EndDate)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}

	query += ` ORDER BY transaction_date DESC, created_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// FindTransactionByNaturalKey looks for a committed transaction sharing the
// draft's date, merchant (case-folded), amount at two decimal places, and
// direction. It returns the match's ID, or "" when there is none.
func (s *SQLiteStorage) FindTransactionByNaturalKey(ctx context.Context, txn *model.Transaction) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if txn == nil {
		return "", fmt.Errorf("%w: transaction", ErrNilParameter)
	}

	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM transactions
		WHERE owner = ?
		  AND date(transaction_date) = date(?)
		  AND lower(merchant_normalized) = lower(?)
		  AND round(amount, 2) = round(?, 2)
		  AND direction = ?
		LIMIT 1`,
		txn.Owner, txn.Date, strings.TrimSpace(txn.MerchantNormalized),
		txn.Amount, string(txn.Direction)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query natural key: %w", err)
	}
	return id, nil
}

// GetMerchantHistory returns the owner's committed transactions for one
// normalized merchant, newest first. The recurrence heuristic consumes
// this.
func (s *SQLiteStorage) GetMerchantHistory(ctx context.Context, owner, merchant string, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(owner, "owner"); err != nil {
		return nil, err
	}
	if merchant == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 24
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE owner = ? AND merchant_normalized = ?
		ORDER BY transaction_date DESC
		LIMIT ?`,
		owner, merchant, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchant history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// SetTransactionCategory updates one transaction's category assignment.
func (s *SQLiteStorage) SetTransactionCategory(ctx context.Context, id, category string, confidence float64, userAssigned bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateString(category, "category"); err != nil {
		return err
	}
	if confidence < 0 || confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidTransaction)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET category = ?, category_confidence = ?, is_user_assigned = ?
		WHERE id = ?`,
		category, confidence, userAssigned, id)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	return nil
}

// ApplyCategoryUpdates writes a batch of re-classification decisions in one
// database transaction, so a pass either lands completely or not at all.
func (s *SQLiteStorage) ApplyCategoryUpdates(ctx context.Context, updates []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE transactions
		SET category = ?, category_confidence = ?, is_user_assigned = ?
		WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare update: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range updates {
		if _, err := stmt.ExecContext(ctx,
			txn.Category, txn.CategoryConfidence, txn.IsUserAssigned, txn.ID); err != nil {
			return fmt.Errorf("failed to update transaction %s: %w", txn.ID, err)
		}
	}

	return tx.Commit()
}

