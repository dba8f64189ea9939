package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerflow/ledgerflow/internal/common"
	"github.com/ledgerflow/ledgerflow/internal/engine"
	"github.com/ledgerflow/ledgerflow/internal/normalize"
	"github.com/ledgerflow/ledgerflow/internal/report"
	"github.com/ledgerflow/ledgerflow/internal/storage"
)

// openStorage opens the configured database and brings the schema up to
// date. Every command goes through this, so a fresh install works without
// an explicit migrate.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "ledgerflow", "ledgerflow.db")
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// resolveOwner returns the owner scope for the command, from the --owner
// flag, LEDGERFLOW_OWNER, or the config file.
func resolveOwner() (string, error) {
	owner := viper.GetString("owner")
	if owner == "" {
		return "", common.NewUserError(
			"owner is not set (use --owner or set owner in config)",
			common.ErrMissingConfig)
	}
	return owner, nil
}

// newNormalizer builds the row normalizer from configuration: merchant
// aliases, extra boilerplate prefixes, and the home currency.
func newNormalizer() *normalize.Normalizer {
	return normalize.New(normalize.Options{
		Aliases:          viper.GetStringMapString("normalize.merchant_aliases"),
		ExtraBoilerplate: viper.GetStringSlice("normalize.boilerplate"),
		HomeCurrency:     viper.GetString("normalize.home_currency"),
	})
}

// newRecurrenceDetector builds the recurring-charge detector from
// configuration. Unset keys fall back to the built-in thresholds.
func newRecurrenceDetector() *engine.RecurrenceDetector {
	return engine.NewRecurrenceDetector(engine.RecurrenceOptions{
		Category:        viper.GetString("recurrence.category"),
		Confidence:      viper.GetFloat64("recurrence.confidence"),
		MinOccurrences:  viper.GetInt("recurrence.min_occurrences"),
		AmountTolerance: viper.GetFloat64("recurrence.amount_tolerance"),
	})
}

// windowFlags registers the shared --start/--end reporting flags.
func windowFlags(cmd *cobra.Command) {
	cmd.Flags().String("start", "", "window start date (format: 2006-01-02)")
	cmd.Flags().String("end", "", "window end date (format: 2006-01-02)")
}

// parseWindow reads the --start/--end flags into a reporting window.
func parseWindow(cmd *cobra.Command) (report.Window, error) {
	var w report.Window

	if raw, _ := cmd.Flags().GetString("start"); raw != "" {
		start, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return w, fmt.Errorf("invalid start date %q: %w", raw, err)
		}
		w.Start = start
	}
	if raw, _ := cmd.Flags().GetString("end"); raw != "" {
		end, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return w, fmt.Errorf("invalid end date %q: %w", raw, err)
		}
		w.End = end
	}
	if !w.Start.IsZero() && !w.End.IsZero() && w.End.Before(w.Start) {
		return w, fmt.Errorf("start date must be before end date")
	}
	return w, nil
}

// formatAmount renders a money amount for table output.
func formatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
