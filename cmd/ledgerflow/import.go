package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerflow/ledgerflow/internal/cli"
	"github.com/ledgerflow/ledgerflow/internal/importer"
	"github.com/ledgerflow/ledgerflow/internal/parser"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Ingest a statement file",
		Long: `Parse a CSV or OFX statement, normalize every row, withhold suspected
duplicates into the review queue, categorize the rest, and commit them.

Invalid rows are counted and reported but never stop the import.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("institution", "", "restrict schema detection to one configured institution profile")
	cmd.Flags().String("format", "", "statement format (csv, ofx); default is by file extension")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	owner, err := resolveOwner()
	if err != nil {
		return err
	}

	content, err := os.ReadFile(path) // #nosec G304 -- user-supplied statement path
	if err != nil {
		return fmt.Errorf("failed to read statement file: %w", err)
	}

	source, err := buildSource(cmd, path, content)
	if err != nil {
		return err
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var bar *progressbar.ProgressBar
	orch, err := importer.New(importer.Config{
		Storage:    store,
		Normalizer: newNormalizer(),
		Recurrence: newRecurrenceDetector(),
		Progress: func(processed, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(40),
					progressbar.OptionSetDescription("importing rows"),
				)
			}
			if err := bar.Set(processed); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
		},
	})
	if err != nil {
		return err
	}

	summary, err := orch.Run(ctx, owner, filepath.Base(path), source)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	box := fmt.Sprintf(`Rows examined:       %d
Committed:           %d
Withheld for review: %d
Invalid rows:        %d`,
		summary.ProcessedRows, summary.Inserted, summary.DuplicatesQueued, summary.InvalidRows)
	fmt.Println(cli.RenderBox("Import Summary", box))

	for _, rowErr := range summary.RowErrors {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("row %d: %v", rowErr.Row, rowErr.Err)))
	}
	if summary.DuplicatesQueued > 0 {
		fmt.Println(cli.FormatWarning(
			fmt.Sprintf("%d rows await review: run 'ledgerflow reviews list'", summary.DuplicatesQueued)))
	}
	return nil
}

// buildSource picks the parser for the file: OFX by flag or extension,
// otherwise CSV with the configured institution profiles.
func buildSource(cmd *cobra.Command, path string, content []byte) (parser.Source, error) {
	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".ofx", ".qfx":
			format = "ofx"
		default:
			format = "csv"
		}
	}

	switch format {
	case "ofx":
		return parser.NewOFXSource(content), nil
	case "csv":
		profiles, err := configuredProfiles()
		if err != nil {
			return nil, err
		}
		hint, _ := cmd.Flags().GetString("institution")
		return parser.NewCSVSource(content, profiles, hint), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func configuredProfiles() ([]parser.Profile, error) {
	var configs []parser.ProfileConfig
	if err := viper.UnmarshalKey("institutions", &configs); err != nil {
		return nil, fmt.Errorf("failed to decode institution profiles: %w", err)
	}
	return parser.FromConfig(configs)
}
