package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerflow/ledgerflow/internal/cli"
)

func importsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imports",
		Short: "Inspect statement import runs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List import runs, newest first",
		RunE:  runImportsList,
	})
	return cmd
}

func runImportsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	owner, err := resolveOwner()
	if err != nil {
		return err
	}
	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	imports, err := store.ListImports(ctx, owner)
	if err != nil {
		return err
	}
	if len(imports) == 0 {
		fmt.Println("no imports yet")
		return nil
	}

	rows := make([][]string, 0, len(imports))
	for _, imp := range imports {
		progress := fmt.Sprintf("%d/%d", imp.ProcessedRows, imp.TotalRows)
		rows = append(rows, []string{
			imp.ID, imp.Filename, string(imp.Status), progress, imp.ErrorMessage,
		})
	}
	fmt.Print(cli.RenderTable(
		[]string{"ID", "FILE", "STATUS", "ROWS", "ERROR"}, rows))
	return nil
}
