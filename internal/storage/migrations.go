package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS statement_imports (
					id TEXT PRIMARY KEY,
					owner TEXT NOT NULL,
					filename TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'queued',
					total_rows INTEGER NOT NULL DEFAULT 0,
					processed_rows INTEGER NOT NULL DEFAULT 0,
					error_message TEXT,
					started_at DATETIME,
					finished_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_imports_owner ON statement_imports(owner)`,
				`CREATE INDEX idx_imports_status ON statement_imports(status)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					owner TEXT NOT NULL,
					source_import_id TEXT NOT NULL REFERENCES statement_imports(id),
					transaction_date DATE NOT NULL,
					posted_date DATE,
					description_raw TEXT NOT NULL,
					merchant_normalized TEXT NOT NULL DEFAULT 'unknown',
					amount REAL NOT NULL,
					currency TEXT NOT NULL DEFAULT 'USD',
					direction TEXT NOT NULL DEFAULT 'debit',
					category TEXT NOT NULL DEFAULT 'uncategorized',
					category_confidence REAL NOT NULL DEFAULT 0,
					is_user_assigned BOOLEAN NOT NULL DEFAULT 0,
					dedupe_fingerprint TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(owner, dedupe_fingerprint)
				)`,
				`CREATE INDEX idx_transactions_owner_date ON transactions(owner, transaction_date)`,
				`CREATE INDEX idx_transactions_merchant ON transactions(owner, merchant_normalized)`,
				`CREATE INDEX idx_transactions_category ON transactions(category)`,

				`CREATE TABLE IF NOT EXISTS duplicate_reviews (
					id TEXT PRIMARY KEY,
					owner TEXT NOT NULL,
					source_import_id TEXT NOT NULL REFERENCES statement_imports(id),
					source_row_number INTEGER NOT NULL,
					matched_transaction_id TEXT,
					duplicate_scope TEXT NOT NULL,
					duplicate_reason TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					note TEXT NOT NULL DEFAULT '',
					transaction_date DATE NOT NULL,
					posted_date DATE,
					description_raw TEXT NOT NULL,
					merchant_normalized TEXT NOT NULL,
					amount REAL NOT NULL,
					currency TEXT NOT NULL,
					direction TEXT NOT NULL,
					category TEXT NOT NULL,
					category_confidence REAL NOT NULL,
					dedupe_fingerprint TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					resolved_at DATETIME
				)`,
				`CREATE INDEX idx_reviews_owner_status ON duplicate_reviews(owner, status)`,
				`CREATE INDEX idx_reviews_import ON duplicate_reviews(source_import_id)`,

				`CREATE TABLE IF NOT EXISTS classification_rules (
					id TEXT PRIMARY KEY,
					owner TEXT NOT NULL,
					rule_type TEXT NOT NULL,
					pattern TEXT NOT NULL,
					category TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0.8,
					priority INTEGER NOT NULL DEFAULT 100,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_rules_owner_active ON classification_rules(owner, is_active)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Seed default categories",
		Up: func(tx *sql.Tx) error {
			defaults := []string{
				"uncategorized",
				"groceries_other",
				"eating_out",
				"merchandise_shopping",
				"subscriptions",
				"travel",
				"transportation",
				"utilities",
				"rent_or_mortgage",
				"insurance",
				"healthcare",
				"entertainment",
				"education",
				"transfers",
				"income",
			}
			for _, name := range defaults {
				if _, err := tx.Exec(
					`INSERT OR IGNORE INTO categories (name) VALUES (?)`, name); err != nil {
					return fmt.Errorf("failed to seed category %q: %w", name, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Index fingerprints on duplicate reviews for resolution lookups",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(
				`CREATE INDEX IF NOT EXISTS idx_reviews_fingerprint ON duplicate_reviews(owner, dedupe_fingerprint)`)
			return err
		},
	},
}

// Migrate applies any pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
