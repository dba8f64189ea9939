package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerflow/ledgerflow/internal/cli"
	"github.com/ledgerflow/ledgerflow/internal/report"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Spending reports over committed transactions",
		Long: `Aggregate debit spend by category, merchant, or month. Credits are
excluded; these are spending reports.`,
	}

	categories := &cobra.Command{
		Use:   "categories",
		Short: "Spend per category, largest first",
		RunE:  runReportCategories,
	}
	windowFlags(categories)

	merchants := &cobra.Command{
		Use:   "merchants",
		Short: "Spend per merchant, largest first",
		RunE:  runReportMerchants,
	}
	windowFlags(merchants)

	trend := &cobra.Command{
		Use:   "trend",
		Short: "Month-by-month spend",
		RunE:  runReportTrend,
	}
	windowFlags(trend)

	cmd.AddCommand(categories, merchants, trend)
	return cmd
}

func reportService(cmd *cobra.Command) (*report.Service, string, report.Window, func(), error) {
	ctx := cmd.Context()

	owner, err := resolveOwner()
	if err != nil {
		return nil, "", report.Window{}, nil, err
	}
	window, err := parseWindow(cmd)
	if err != nil {
		return nil, "", report.Window{}, nil, err
	}
	store, err := openStorage(ctx)
	if err != nil {
		return nil, "", report.Window{}, nil, err
	}
	cleanup := func() { _ = store.Close() }
	return report.NewService(store), owner, window, cleanup, nil
}

func runReportCategories(cmd *cobra.Command, _ []string) error {
	svc, owner, window, cleanup, err := reportService(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	totals, err := svc.Categories(cmd.Context(), owner, window)
	if err != nil {
		return err
	}
	if len(totals) == 0 {
		fmt.Println("no spending in this window")
		return nil
	}

	rows := make([][]string, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, []string{t.Category, formatAmount(t.Total), fmt.Sprintf("%d", t.Count)})
	}
	fmt.Print(cli.RenderTable([]string{"CATEGORY", "TOTAL", "TXNS"}, rows))
	return nil
}

func runReportMerchants(cmd *cobra.Command, _ []string) error {
	svc, owner, window, cleanup, err := reportService(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	totals, err := svc.Merchants(cmd.Context(), owner, window)
	if err != nil {
		return err
	}
	if len(totals) == 0 {
		fmt.Println("no spending in this window")
		return nil
	}

	rows := make([][]string, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, []string{t.Merchant, formatAmount(t.Total), fmt.Sprintf("%d", t.Count)})
	}
	fmt.Print(cli.RenderTable([]string{"MERCHANT", "TOTAL", "TXNS"}, rows))
	return nil
}

func runReportTrend(cmd *cobra.Command, _ []string) error {
	svc, owner, window, cleanup, err := reportService(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	points, err := svc.Trend(cmd.Context(), owner, window)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		fmt.Println("no spending in this window")
		return nil
	}

	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{p.Period, formatAmount(p.Total), fmt.Sprintf("%d", p.Count)})
	}
	fmt.Print(cli.RenderTable([]string{"MONTH", "TOTAL", "TXNS"}, rows))
	return nil
}
