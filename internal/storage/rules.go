package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/model"
)

const ruleColumns = `id, owner, rule_type, pattern, category, confidence, priority, is_active,
	created_at, updated_at`

// CreateRule stores a new classification rule. The rule's category is
// created on first use so a rule never points at a category that does not
// exist.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.ClassificationRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if err := validateString(rule.Owner, "rule.Owner"); err != nil {
		return err
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	rule.Category = normalizeCategoryName(rule.Category)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := ensureCategoryTx(ctx, tx, rule.Category); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO classification_rules (id, owner, rule_type, pattern, category, confidence, priority, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.Owner, string(rule.Type), rule.Pattern, rule.Category,
		rule.Confidence, rule.Priority, rule.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return tx.Commit()
}

// GetRule retrieves a rule by ID.
func (s *SQLiteStorage) GetRule(ctx context.Context, id string) (*model.ClassificationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM classification_rules WHERE id = ?`, id)

	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: rule %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// ListRules returns the owner's rules in evaluation order: priority
// ascending, then creation order.
func (s *SQLiteStorage) ListRules(ctx context.Context, owner string, activeOnly bool) ([]model.ClassificationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(owner, "owner"); err != nil {
		return nil, err
	}

	query := `SELECT ` + ruleColumns + ` FROM classification_rules WHERE owner = ?`
	args := []any{owner}
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY priority ASC, created_at ASC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.ClassificationRule
	for rows.Next() {
		rule, scanErr := scanRule(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", scanErr)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return rules, nil
}

// UpdateRule rewrites an existing rule's matching fields.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.ClassificationRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := validateString(rule.ID, "rule.ID"); err != nil {
		return err
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	rule.Category = normalizeCategoryName(rule.Category)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := ensureCategoryTx(ctx, tx, rule.Category); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE classification_rules
		SET rule_type = ?, pattern = ?, category = ?, confidence = ?, priority = ?, is_active = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		string(rule.Type), rule.Pattern, rule.Category,
		rule.Confidence, rule.Priority, rule.IsActive, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: rule %s", common.ErrNotFound, rule.ID)
	}

	return tx.Commit()
}

// DeleteRule removes a rule.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM classification_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: rule %s", common.ErrNotFound, id)
	}
	return nil
}

// ReplaceRules installs an imported rule set for the owner in one database
// transaction. With merge false the owner's existing rules are dropped
// first; with merge true the imported rules are appended. Creation
// timestamps are staggered so the imported file's ordering survives as the
// evaluation tiebreak.
func (s *SQLiteStorage) ReplaceRules(ctx context.Context, owner string, rules []model.ClassificationRule, merge bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(owner, "owner"); err != nil {
		return err
	}
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if !merge {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM classification_rules WHERE owner = ?`, owner); err != nil {
			return fmt.Errorf("failed to clear existing rules: %w", err)
		}
	}

	base := time.Now().UTC()
	for i := range rules {
		rule := &rules[i]
		rule.ID = uuid.NewString()
		rule.Owner = owner
		rule.Category = normalizeCategoryName(rule.Category)

		if err := ensureCategoryTx(ctx, tx, rule.Category); err != nil {
			return err
		}

		createdAt := base.Add(time.Duration(i) * time.Millisecond)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO classification_rules (id, owner, rule_type, pattern, category, confidence, priority, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rule.ID, rule.Owner, string(rule.Type), rule.Pattern, rule.Category,
			rule.Confidence, rule.Priority, rule.IsActive, createdAt, createdAt); err != nil {
			return fmt.Errorf("failed to insert rule %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rule replacement: %w", err)
	}

	slog.Info("replaced classification rules",
		"owner", owner,
		"count", len(rules),
		"merge", merge)
	return nil
}

func scanRule(row rowScanner) (*model.ClassificationRule, error) {
	var rule model.ClassificationRule
	var ruleType string

	err := row.Scan(
		&rule.ID, &rule.Owner, &ruleType, &rule.Pattern, &rule.Category,
		&rule.Confidence, &rule.Priority, &rule.IsActive,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Type = model.RuleType(ruleType)
	return &rule, nil
}
