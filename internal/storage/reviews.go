package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/model"
	"github.com/ledgerflow/ledgerflow/internal/service"
)

const reviewColumns = `id, owner, source_import_id, source_row_number, matched_transaction_id,
	duplicate_scope, duplicate_reason, status, note,
	transaction_date, posted_date, description_raw, merchant_normalized,
	amount, currency, direction, category, category_confidence, dedupe_fingerprint,
	created_at, resolved_at`

// maxSaltAttempts bounds the fingerprint re-derivation loop when promoting
// a review. Collisions past the first are already legitimate repeats, so a
// handful of attempts is plenty.
const maxSaltAttempts = 16

// CreateDuplicateReview stores a withheld row for later human review.
func (s *SQLiteStorage) CreateDuplicateReview(ctx context.Context, review *model.DuplicateReview) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if review != nil && review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review != nil && review.Status == "" {
		review.Status = model.ReviewStatusPending
	}
	if err := validateReview(review); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO duplicate_reviews (
			id, owner, source_import_id, source_row_number, matched_transaction_id,
			duplicate_scope, duplicate_reason, status, note,
			transaction_date, posted_date, description_raw, merchant_normalized,
			amount, currency, direction, category, category_confidence, dedupe_fingerprint
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		review.ID, review.Owner, review.SourceImportID, review.SourceRowNumber,
		nullableString(review.MatchedTransactionID),
		string(review.Scope), string(review.Reason), string(review.Status), review.Note,
		review.Draft.Date, nullableTime(review.Draft.PostedDate),
		review.Draft.DescriptionRaw, review.Draft.MerchantNormalized,
		review.Draft.Amount, review.Draft.Currency, string(review.Draft.Direction),
		review.Draft.Category, review.Draft.CategoryConfidence, review.Draft.DedupeFingerprint,
	)
	if err != nil {
		return fmt.Errorf("failed to create duplicate review: %w", err)
	}
	return nil
}

// GetDuplicateReview retrieves a review by ID.
func (s *SQLiteStorage) GetDuplicateReview(ctx context.Context, id string) (*model.DuplicateReview, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM duplicate_reviews WHERE id = ?`, id)

	review, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: review %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return review, nil
}

// ListDuplicateReviews returns the owner's reviews, oldest first so the
// queue reads in arrival order. Pass an empty status to list all.
func (s *SQLiteStorage) ListDuplicateReviews(ctx context.Context, owner string, status model.ReviewStatus) ([]model.DuplicateReview, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(owner, "owner"); err != nil {
		return nil, err
	}

	query := `SELECT ` + reviewColumns + ` FROM duplicate_reviews WHERE owner = ?`
	args := []any{owner}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reviews []model.DuplicateReview
	for rows.Next() {
		review, scanErr := scanReview(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan review: %w", scanErr)
		}
		reviews = append(reviews, *review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return reviews, nil
}

// ResolveDuplicateReview applies a reviewer's verdict to one pending review.
// confirm_duplicate marks the review confirmed and keeps it as an audit
// record. not_duplicate promotes the stored draft into a committed
// transaction and deletes the review. Returns the created transaction's ID
// for promotions, "" otherwise.
func (s *SQLiteStorage) ResolveDuplicateReview(ctx context.Context, id string, action model.ReviewAction, note string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(id, "id"); err != nil {
		return "", err
	}
	if action != model.ActionConfirmDuplicate && action != model.ActionNotDuplicate {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidReview, action)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	review, err := getReviewTx(ctx, tx, id)
	if err != nil {
		return "", err
	}

	createdID, err := resolveReviewTx(ctx, tx, review, action, note)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit resolution: %w", err)
	}
	return createdID, nil
}

// BulkResolveDuplicateReviews applies one action to every pending review for
// the owner, optionally scoped to a single import. The caller states how
// many pending reviews it believes exist; a mismatch with the live count
// aborts the whole operation so a stale client cannot blind-resolve rows it
// has never seen. All-or-nothing.
func (s *SQLiteStorage) BulkResolveDuplicateReviews(ctx context.Context, owner, importID string, action model.ReviewAction, expectedPending int) (*service.BulkResolveResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(owner, "owner"); err != nil {
		return nil, err
	}
	if action != model.ActionConfirmDuplicate && action != model.ActionNotDuplicate {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidReview, action)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	countQuery := `SELECT COUNT(*) FROM duplicate_reviews WHERE owner = ? AND status = ?`
	countArgs := []any{owner, string(model.ReviewStatusPending)}
	if importID != "" {
		countQuery += ` AND source_import_id = ?`
		countArgs = append(countArgs, importID)
	}

	var pending int
	if err := tx.QueryRowContext(ctx, countQuery, countArgs...).Scan(&pending); err != nil {
		return nil, fmt.Errorf("failed to count pending reviews: %w", err)
	}
	if pending != expectedPending {
		return nil, fmt.Errorf("%w: expected %d pending reviews, found %d",
			common.ErrBulkCountMismatch, expectedPending, pending)
	}

	listQuery := `SELECT ` + reviewColumns + ` FROM duplicate_reviews WHERE owner = ? AND status = ?`
	if importID != "" {
		listQuery += ` AND source_import_id = ?`
	}
	listQuery += ` ORDER BY created_at ASC, id`

	rows, err := tx.QueryContext(ctx, listQuery, countArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending reviews: %w", err)
	}

	var reviews []model.DuplicateReview
	for rows.Next() {
		review, scanErr := scanReview(rows)
		if scanErr != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan review: %w", scanErr)
		}
		reviews = append(reviews, *review)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	_ = rows.Close()

	result := &service.BulkResolveResult{Action: action}
	for i := range reviews {
		createdID, resolveErr := resolveReviewTx(ctx, tx, &reviews[i], action, "")
		if resolveErr != nil {
			return nil, fmt.Errorf("failed to resolve review %s: %w", reviews[i].ID, resolveErr)
		}
		result.Resolved++
		if createdID != "" {
			result.CreatedTransactions++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bulk resolution: %w", err)
	}

	slog.Info("bulk resolved duplicate reviews",
		"owner", owner,
		"action", action,
		"resolved", result.Resolved,
		"created_transactions", result.CreatedTransactions)
	return result, nil
}

func getReviewTx(ctx context.Context, tx *sql.Tx, id string) (*model.DuplicateReview, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM duplicate_reviews WHERE id = ?`, id)
	review, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: review %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load review: %w", err)
	}
	return review, nil
}

func resolveReviewTx(ctx context.Context, tx *sql.Tx, review *model.DuplicateReview, action model.ReviewAction, note string) (string, error) {
	if review.Status != model.ReviewStatusPending {
		return "", fmt.Errorf("%w: review %s is %s", common.ErrReviewNotPending, review.ID, review.Status)
	}

	if action == model.ActionConfirmDuplicate {
		_, err := tx.ExecContext(ctx, `
			UPDATE duplicate_reviews
			SET status = ?, note = ?, resolved_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			string(model.ReviewStatusConfirmedDuplicate), note, review.ID)
		if err != nil {
			return "", fmt.Errorf("failed to confirm review: %w", err)
		}
		return "", nil
	}

	fingerprint, err := uniqueFingerprintTx(ctx, tx, review)
	if err != nil {
		return "", err
	}

	txnID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, owner, source_import_id, transaction_date, posted_date,
			description_raw, merchant_normalized, amount, currency, direction,
			category, category_confidence, is_user_assigned, dedupe_fingerprint
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txnID, review.Owner, review.SourceImportID,
		review.Draft.Date, nullableTime(review.Draft.PostedDate),
		review.Draft.DescriptionRaw, review.Draft.MerchantNormalized,
		review.Draft.Amount, review.Draft.Currency, string(review.Draft.Direction),
		review.Draft.Category, review.Draft.CategoryConfidence, false, fingerprint)
	if err != nil {
		return "", fmt.Errorf("failed to promote review draft: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM duplicate_reviews WHERE id = ?`, review.ID); err != nil {
		return "", fmt.Errorf("failed to delete promoted review: %w", err)
	}
	return txnID, nil
}

// uniqueFingerprintTx returns a fingerprint for the review's draft that is
// free in the transactions table. The draft's own fingerprint collides by
// construction, so each attempt salts it with the review ID; the review ID
// is unique per withheld row, which keeps two promoted repeats of the same
// logical transaction from colliding with each other.
func uniqueFingerprintTx(ctx context.Context, tx *sql.Tx, review *model.DuplicateReview) (string, error) {
	candidate := review.Draft.DedupeFingerprint
	for attempt := 0; attempt < maxSaltAttempts; attempt++ {
		var count int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transactions WHERE owner = ? AND dedupe_fingerprint = ?`,
			review.Owner, candidate).Scan(&count)
		if err != nil {
			return "", fmt.Errorf("failed to probe fingerprint: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
		salted := fmt.Sprintf("%s|approved|%s|%d", review.Draft.DedupeFingerprint, review.ID, attempt)
		hash := sha256.Sum256([]byte(salted))
		candidate = fmt.Sprintf("%x", hash)
	}
	return "", fmt.Errorf("failed to derive a unique fingerprint for review %s", review.ID)
}

func scanReview(row rowScanner) (*model.DuplicateReview, error) {
	var review model.DuplicateReview
	var scope, reason, status, direction string
	var matched sql.NullString
	var postedDate, resolvedAt sql.NullTime

	err := row.Scan(
		&review.ID, &review.Owner, &review.SourceImportID, &review.SourceRowNumber, &matched,
		&scope, &reason, &status, &review.Note,
		&review.Draft.Date, &postedDate, &review.Draft.DescriptionRaw, &review.Draft.MerchantNormalized,
		&review.Draft.Amount, &review.Draft.Currency, &direction,
		&review.Draft.Category, &review.Draft.CategoryConfidence, &review.Draft.DedupeFingerprint,
		&review.CreatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	review.MatchedTransactionID = matched.String
	review.Scope = model.DuplicateScope(scope)
	review.Reason = model.DuplicateReason(reason)
	review.Status = model.ReviewStatus(status)
	review.Draft.Direction = model.TransactionDirection(direction)
	review.Draft.Owner = review.Owner
	review.Draft.SourceImportID = review.SourceImportID
	if postedDate.Valid {
		t := postedDate.Time
		review.Draft.PostedDate = &t
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		review.ResolvedAt = &t
	}
	return &review, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
