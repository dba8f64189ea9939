// Package report shapes committed transaction data into spending summaries
// and advisory insights.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerflow/ledgerflow/internal/service"
)

// Window is a reporting date range. Zero bounds mean unbounded on that
// side.
type Window struct {
	Start time.Time
	End   time.Time
}

// Service answers reporting queries over the storage layer.
type Service struct {
	store service.Storage
}

// NewService creates a reporting service.
func NewService(store service.Storage) *Service {
	return &Service{store: store}
}

// Categories returns per-category debit totals for the window, largest
// first.
func (s *Service) Categories(ctx context.Context, owner string, w Window) ([]service.CategoryTotal, error) {
	totals, err := s.store.GetCategoryTotals(ctx, owner, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("failed to compute category totals: %w", err)
	}
	return totals, nil
}

// Merchants returns per-merchant debit totals for the window, largest
// first.
func (s *Service) Merchants(ctx context.Context, owner string, w Window) ([]service.MerchantTotal, error) {
	totals, err := s.store.GetMerchantTotals(ctx, owner, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("failed to compute merchant totals: %w", err)
	}
	return totals, nil
}

// Trend returns month-by-month debit totals for the window in
// chronological order.
func (s *Service) Trend(ctx context.Context, owner string, w Window) ([]service.TrendPoint, error) {
	points, err := s.store.GetTrendSeries(ctx, owner, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("failed to compute trend series: %w", err)
	}
	return points, nil
}

// Insights produces an advisory digest of the window using the given
// advisor.
func (s *Service) Insights(ctx context.Context, owner string, w Window, advisor Advisor) (*Insights, error) {
	categories, err := s.Categories(ctx, owner, w)
	if err != nil {
		return nil, err
	}
	merchants, err := s.Merchants(ctx, owner, w)
	if err != nil {
		return nil, err
	}
	return advisor.Advise(ctx, AdvisorInput{
		Owner:      owner,
		Window:     w,
		Categories: categories,
		Merchants:  merchants,
	})
}
