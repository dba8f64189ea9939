package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgerflow/ledgerflow/internal/model"
	"github.com/ledgerflow/ledgerflow/internal/service"
)

// AdvisorInput is the aggregate material an advisor reasons over. It never
// includes raw transaction rows.
type AdvisorInput struct {
	Owner      string
	Window     Window
	Categories []service.CategoryTotal
	Merchants  []service.MerchantTotal
}

// Suggestion is one actionable savings idea.
type Suggestion struct {
	Category         string
	Text             string
	EstimatedSavings float64
}

// Insights is an advisory digest of a spending window.
type Insights struct {
	Summary       string
	TopCategories []service.CategoryTotal
	TopMerchants  []service.MerchantTotal
	Suggestions   []Suggestion
	Confidence    float64
}

// Advisor turns aggregate spending data into insights. Implementations may
// call out to external services; HeuristicAdvisor is the deterministic
// built-in.
type Advisor interface {
	Advise(ctx context.Context, input AdvisorInput) (*Insights, error)
}

const (
	topCategoryCount = 3
	topMerchantCount = 5
	// savingsFraction is the trim applied to each top discretionary
	// category when estimating savings.
	savingsFraction = 0.10
	// heuristicConfidence is fixed: the advisor's rules don't vary in
	// certainty.
	heuristicConfidence = 0.72
)

// HeuristicAdvisor derives insights from spending shape alone: biggest
// categories, biggest merchants, and a flat-percentage trim suggestion for
// each top category. Deterministic, so the same window always reads the
// same.
type HeuristicAdvisor struct{}

// Advise implements Advisor.
func (HeuristicAdvisor) Advise(_ context.Context, input AdvisorInput) (*Insights, error) {
	var total float64
	for _, c := range input.Categories {
		total += c.Total
	}

	insights := &Insights{
		TopCategories: topN(input.Categories, topCategoryCount),
		TopMerchants:  topN(input.Merchants, topMerchantCount),
		Confidence:    heuristicConfidence,
	}

	for _, c := range insights.TopCategories {
		if c.Category == model.CategoryUncategorized {
			insights.Suggestions = append(insights.Suggestions, Suggestion{
				Category: c.Category,
				Text: fmt.Sprintf("%.2f of spend is uncategorized; add rules or assign categories to sharpen this report",
					c.Total),
			})
			continue
		}
		saving := c.Total * savingsFraction
		insights.Suggestions = append(insights.Suggestions, Suggestion{
			Category:         c.Category,
			EstimatedSavings: saving,
			Text: fmt.Sprintf("trimming %s by %d%% would save about %.2f",
				c.Category, int(savingsFraction*100), saving),
		})
	}

	insights.Summary = summarize(total, insights.TopCategories)
	return insights, nil
}

func summarize(total float64, top []service.CategoryTotal) string {
	if total == 0 || len(top) == 0 {
		return "no spending recorded in this window"
	}
	names := make([]string, 0, len(top))
	for _, c := range top {
		names = append(names, c.Category)
	}
	return fmt.Sprintf("spent %.2f in this window, led by %s", total, strings.Join(names, ", "))
}

func topN[T any](items []T, n int) []T {
	if len(items) > n {
		items = items[:n]
	}
	return append([]T(nil), items...)
}
