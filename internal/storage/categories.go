package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/model"
)

// normalizeCategoryName folds a category name to its canonical snake_case
// form: lowercase with every run of non-alphanumerics collapsed to one
// underscore.
func normalizeCategoryName(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// GetCategories returns all active categories ordered by name.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, is_active, created_at FROM categories
		WHERE is_active = 1
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.IsActive, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return categories, nil
}

// GetCategoryByName retrieves one category by its canonical name.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	canonical := normalizeCategoryName(name)
	if canonical == "" {
		return nil, fmt.Errorf("%w: name", ErrEmptyString)
	}

	var cat model.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, is_active, created_at FROM categories WHERE name = ?`,
		canonical).Scan(&cat.ID, &cat.Name, &cat.IsActive, &cat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: category %s", common.ErrNotFound, canonical)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &cat, nil
}

// CreateCategory adds a category, normalizing its name first. Creating a
// name that already exists returns the existing row rather than an error.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	canonical := normalizeCategoryName(name)
	if canonical == "" {
		return nil, fmt.Errorf("%w: name", ErrEmptyString)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO categories (name) VALUES (?)`, canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return s.GetCategoryByName(ctx, canonical)
}

// ensureCategoryTx guarantees the named category exists inside an open
// database transaction.
func ensureCategoryTx(ctx context.Context, tx *sql.Tx, canonical string) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO categories (name) VALUES (?)`, canonical); err != nil {
		return fmt.Errorf("failed to ensure category %q: %w", canonical, err)
	}
	return nil
}
