package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerflow/ledgerflow/internal/model"
	"github.com/ledgerflow/ledgerflow/internal/service"
)

// Aggregates are spending reports, so they sum debits only. Credits would
// cancel spend and make every category look cheaper than it is.

func aggregateWindow(owner string, start, end time.Time) (string, []any, error) {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return "", nil, ErrInvalidDateRange
	}

	where := ` WHERE owner = ? AND direction = ?`
	args := []any{owner, string(model.DirectionDebit)}
	if !start.IsZero() {
		where += ` AND transaction_date >= ?`
		args = append(args, start)
	}
	if !end.IsZero() {
		where += ` AND transaction_date <= ?`
		args = append(args, end)
	}
	return where, args, nil
}

// GetCategoryTotals returns per-category debit totals for the window,
// largest spend first.
func (s *SQLiteStorage) GetCategoryTotals(ctx context.Context, owner string, start, end time.Time) ([]service.CategoryTotal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(owner, "owner"); err != nil {
		return nil, err
	}

	where, args, err := aggregateWindow(owner, start, end)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, ROUND(SUM(amount), 2) AS total, COUNT(*) AS cnt
		FROM transactions`+where+`
		GROUP BY category
		ORDER BY total DESC, category ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query category totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totals []service.CategoryTotal
	for rows.Next() {
		var t service.CategoryTotal
		if err := rows.Scan(&t.Category, &t.Total, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate category totals: %w", err)
	}
	return totals, nil
}

// GetMerchantTotals returns per-merchant debit totals for the window,
// largest spend first.
func (s *SQLiteStorage) GetMerchantTotals(ctx context.Context, owner string, start, end time.Time) ([]service.MerchantTotal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(owner, "owner"); err != nil {
		return nil, err
	}

	where, args, err := aggregateWindow(owner, start, end)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT merchant_normalized, ROUND(SUM(amount), 2) AS total, COUNT(*) AS cnt
		FROM transactions`+where+`
		GROUP BY merchant_normalized
		ORDER BY total DESC, merchant_normalized ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchant totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totals []service.MerchantTotal
	for rows.Next() {
		var t service.MerchantTotal
		if err := rows.Scan(&t.Merchant, &t.Total, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan merchant total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate merchant totals: %w", err)
	}
	return totals, nil
}

// GetTrendSeries returns month-by-month debit totals for the window in
// chronological order. Months with no transactions are absent, not zero.
func (s *SQLiteStorage) GetTrendSeries(ctx context.Context, owner string, start, end time.Time) ([]service.TrendPoint, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(owner, "owner"); err != nil {
		return nil, err
	}

	where, args, err := aggregateWindow(owner, start, end)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m', transaction_date) AS period,
		       ROUND(SUM(amount), 2) AS total, COUNT(*) AS cnt
		FROM transactions`+where+`
		GROUP BY period
		ORDER BY period ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trend series: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var points []service.TrendPoint
	for rows.Next() {
		var p service.TrendPoint
		if err := rows.Scan(&p.Period, &p.Total, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trend series: %w", err)
	}
	return points, nil
}
