package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerflow/ledgerflow/internal/cli"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage spending categories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List active categories",
		RunE:  runCategoriesList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Long:  `Add a category. Names are canonicalized to lowercase snake_case; adding an existing name is a no-op.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runCategoriesAdd,
	})
	return cmd
}

func runCategoriesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	categories, err := store.GetCategories(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(categories))
	for _, cat := range categories {
		rows = append(rows, []string{fmt.Sprintf("%d", cat.ID), cat.Name})
	}
	fmt.Print(cli.RenderTable([]string{"ID", "NAME"}, rows))
	return nil
}

func runCategoriesAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cat, err := store.CreateCategory(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("category %s (id %d)", cat.Name, cat.ID)))
	return nil
}
