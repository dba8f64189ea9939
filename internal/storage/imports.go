package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/model"
)

const importColumns = `id, owner, filename, status, total_rows, processed_rows,
	error_message, started_at, finished_at, created_at, updated_at`

// CreateImport records a new statement import in the queued state.
func (s *SQLiteStorage) CreateImport(ctx context.Context, imp *model.StatementImport) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if imp != nil && imp.ID == "" {
		imp.ID = uuid.NewString()
	}
	if imp != nil && imp.Status == "" {
		imp.Status = model.ImportStatusQueued
	}
	if err := validateImport(imp); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO statement_imports (id, owner, filename, status, total_rows, processed_rows)
		VALUES (?, ?, ?, ?, ?, ?)`,
		imp.ID, imp.Owner, imp.Filename, string(imp.Status), imp.TotalRows, imp.ProcessedRows)
	if err != nil {
		return fmt.Errorf("failed to create import: %w", err)
	}
	return nil
}

// GetImport retrieves a statement import by ID.
func (s *SQLiteStorage) GetImport(ctx context.Context, id string) (*model.StatementImport, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+importColumns+` FROM statement_imports WHERE id = ?`, id)

	imp, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: import %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import: %w", err)
	}
	return imp, nil
}

// ListImports returns the owner's imports, newest first.
func (s *SQLiteStorage) ListImports(ctx context.Context, owner string) ([]model.StatementImport, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(owner, "owner"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+importColumns+` FROM statement_imports
		WHERE owner = ?
		ORDER BY created_at DESC, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query imports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var imports []model.StatementImport
	for rows.Next() {
		imp, scanErr := scanImport(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan import: %w", scanErr)
		}
		imports = append(imports, *imp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate imports: %w", err)
	}
	return imports, nil
}

// TransitionImport moves an import to a new lifecycle status, enforcing
// monotonic forward transitions. Moving to processing stamps started_at;
// moving to a terminal status stamps finished_at. errorMessage is stored
// only for the failed status.
func (s *SQLiteStorage) TransitionImport(ctx context.Context, id string, status model.ImportStatus, errorMessage string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM statement_imports WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: import %s", common.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to read import status: %w", err)
	}

	if !model.ImportStatus(current).CanTransitionTo(status) {
		return fmt.Errorf("%w: cannot transition import from %s to %s",
			ErrInvalidImport, current, status)
	}

	query := `UPDATE statement_imports SET status = ?, updated_at = CURRENT_TIMESTAMP`
	args := []any{string(status)}
	switch {
	case status == model.ImportStatusProcessing:
		query += `, started_at = CURRENT_TIMESTAMP`
	case status == model.ImportStatusFailed:
		query += `, finished_at = CURRENT_TIMESTAMP, error_message = ?`
		args = append(args, errorMessage)
	case status.Terminal():
		query += `, finished_at = CURRENT_TIMESTAMP`
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to transition import: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}

	slog.Debug("import status transition", "import_id", id, "from", current, "to", status)
	return nil
}

// UpdateImportProgress writes the row counters for progress polling.
func (s *SQLiteStorage) UpdateImportProgress(ctx context.Context, id string, totalRows, processedRows int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if totalRows < 0 || processedRows < 0 {
		return fmt.Errorf("%w: row counters cannot be negative", ErrInvalidImport)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE statement_imports
		SET total_rows = ?, processed_rows = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		totalRows, processedRows, id)
	if err != nil {
		return fmt.Errorf("failed to update import progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: import %s", common.ErrNotFound, id)
	}
	return nil
}

// GetOrCreateManualImport returns the owner's synthetic import that parents
// hand-entered transactions, creating it on first use. There is at most one
// per owner and it stays in the manual status forever.
func (s *SQLiteStorage) GetOrCreateManualImport(ctx context.Context, owner string) (*model.StatementImport, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(owner, "owner"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+importColumns+` FROM statement_imports
		WHERE owner = ? AND status = ?
		LIMIT 1`, owner, string(model.ImportStatusManual))

	imp, err := scanImport(row)
	if err == nil {
		return imp, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query manual import: %w", err)
	}

	created := &model.StatementImport{
		ID:       uuid.NewString(),
		Owner:    owner,
		Filename: "manual-entry",
		Status:   model.ImportStatusManual,
	}
	if err := s.CreateImport(ctx, created); err != nil {
		return nil, err
	}
	return s.GetImport(ctx, created.ID)
}

func scanImport(row rowScanner) (*model.StatementImport, error) {
	var imp model.StatementImport
	var status string
	var errorMessage sql.NullString
	var startedAt, finishedAt sql.NullTime

	err := row.Scan(
		&imp.ID, &imp.Owner, &imp.Filename, &status, &imp.TotalRows, &imp.ProcessedRows,
		&errorMessage, &startedAt, &finishedAt, &imp.CreatedAt, &imp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	imp.Status = model.ImportStatus(status)
	imp.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		t := startedAt.Time
		imp.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		imp.FinishedAt = &t
	}
	return &imp, nil
}
