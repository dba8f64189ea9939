package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerflow/ledgerflow/internal/cli"
	"github.com/ledgerflow/ledgerflow/internal/report"
)

func insightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Advisory digest of a spending window",
		Long: `Summarize a window: biggest categories, biggest merchants, and savings
suggestions. The built-in advisor is deterministic and works from aggregates
only; raw transactions never leave the aggregation layer.`,
		RunE: runInsights,
	}
	windowFlags(cmd)
	return cmd
}

func runInsights(cmd *cobra.Command, _ []string) error {
	svc, owner, window, cleanup, err := reportService(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	insights, err := svc.Insights(cmd.Context(), owner, window, report.HeuristicAdvisor{})
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(insights.Summary + "\n\n")

	if len(insights.TopCategories) > 0 {
		b.WriteString("Top categories:\n")
		for i, c := range insights.TopCategories {
			b.WriteString(fmt.Sprintf("  %d. %s  %s (%d txns)\n", i+1, c.Category, formatAmount(c.Total), c.Count))
		}
		b.WriteString("\n")
	}
	if len(insights.TopMerchants) > 0 {
		b.WriteString("Top merchants:\n")
		for i, m := range insights.TopMerchants {
			b.WriteString(fmt.Sprintf("  %d. %s  %s (%d txns)\n", i+1, m.Merchant, formatAmount(m.Total), m.Count))
		}
		b.WriteString("\n")
	}
	if len(insights.Suggestions) > 0 {
		b.WriteString("Suggestions:\n")
		for _, s := range insights.Suggestions {
			b.WriteString("  • " + s.Text + "\n")
		}
	}
	b.WriteString(fmt.Sprintf("\nconfidence: %.2f", insights.Confidence))

	fmt.Println(cli.RenderBox("Spending Insights", b.String()))
	return nil
}
