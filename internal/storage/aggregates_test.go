package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow/ledgerflow/internal/model"
)

func seedAggregateData(t *testing.T, store *SQLiteStorage) {
	t.Helper()
	ctx := context.Background()
	imp := createTestImport(t, store, "alice")

	rows := []struct {
		merchant  string
		category  string
		direction model.TransactionDirection
		month     time.Month
		day       int
		amount    float64
	}{
		{"whole foods", "groceries_other", model.DirectionDebit, time.March, 2, 80.00},
		{"whole foods", "groceries_other", model.DirectionDebit, time.March, 16, 95.50},
		{"netflix", "subscriptions", model.DirectionDebit, time.March, 5, 15.99},
		{"netflix", "subscriptions", model.DirectionDebit, time.April, 5, 15.99},
		{"shell oil", "transportation", model.DirectionDebit, time.April, 12, 42.10},
		{"employer inc", "income", model.DirectionCredit, time.March, 15, 2500.00},
	}
	for _, r := range rows {
		txn := &model.Transaction{
			Owner:              "alice",
			SourceImportID:     imp.ID,
			Date:               time.Date(2024, r.month, r.day, 0, 0, 0, 0, time.UTC),
			DescriptionRaw:     r.merchant,
			MerchantNormalized: r.merchant,
			Amount:             r.amount,
			Currency:           "USD",
			Direction:          r.direction,
			Category:           r.category,
		}
		txn.DedupeFingerprint = txn.Fingerprint()
		_, err := store.InsertTransactionIfAbsent(ctx, txn)
		require.NoError(t, err)
	}
}

func TestSQLiteStorage_GetCategoryTotals(t *testing.T) {
	store := createTestStorage(t)
	seedAggregateData(t, store)

	totals, err := store.GetCategoryTotals(context.Background(), "alice", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, totals, 3, "credits are excluded from spend totals")

	assert.Equal(t, "groceries_other", totals[0].Category)
	assert.InDelta(t, 175.50, totals[0].Total, 0.001)
	assert.Equal(t, 2, totals[0].Count)

	// Ordered by total descending.
	assert.Equal(t, "transportation", totals[1].Category)
	assert.Equal(t, "subscriptions", totals[2].Category)
}

func TestSQLiteStorage_GetCategoryTotalsTieBreaksByName(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	imp := createTestImport(t, store, "alice")

	// Two categories landing on the same total must come back in name order.
	rows := []struct {
		merchant string
		category string
		day      int
		amount   float64
	}{
		{"corner deli", "eating_out", 3, 12.00},
		{"thai palace", "eating_out", 9, 18.00},
		{"corner store", "groceries_other", 5, 30.00},
	}
	for _, r := range rows {
		txn := &model.Transaction{
			Owner:              "alice",
			SourceImportID:     imp.ID,
			Date:               time.Date(2024, time.March, r.day, 0, 0, 0, 0, time.UTC),
			DescriptionRaw:     r.merchant,
			MerchantNormalized: r.merchant,
			Amount:             r.amount,
			Currency:           "USD",
			Direction:          model.DirectionDebit,
			Category:           r.category,
		}
		txn.DedupeFingerprint = txn.Fingerprint()
		_, err := store.InsertTransactionIfAbsent(ctx, txn)
		require.NoError(t, err)
	}

	totals, err := store.GetCategoryTotals(ctx, "alice", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, totals, 2)

	assert.Equal(t, "eating_out", totals[0].Category)
	assert.InDelta(t, 30.00, totals[0].Total, 0.001)
	assert.Equal(t, "groceries_other", totals[1].Category)
	assert.InDelta(t, 30.00, totals[1].Total, 0.001)
}

func TestSQLiteStorage_GetMerchantTotalsWindowed(t *testing.T) {
	store := createTestStorage(t)
	seedAggregateData(t, store)

	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
	totals, err := store.GetMerchantTotals(context.Background(), "alice", start, end)
	require.NoError(t, err)
	require.Len(t, totals, 2)

	assert.Equal(t, "shell oil", totals[0].Merchant)
	assert.InDelta(t, 42.10, totals[0].Total, 0.001)
	assert.Equal(t, "netflix", totals[1].Merchant)
}

func TestSQLiteStorage_GetTrendSeries(t *testing.T) {
	store := createTestStorage(t)
	seedAggregateData(t, store)

	points, err := store.GetTrendSeries(context.Background(), "alice", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "2024-03", points[0].Period)
	assert.InDelta(t, 191.49, points[0].Total, 0.001)
	assert.Equal(t, 3, points[0].Count)

	assert.Equal(t, "2024-04", points[1].Period)
	assert.InDelta(t, 58.09, points[1].Total, 0.001)
}

func TestSQLiteStorage_AggregatesRejectInvertedWindow(t *testing.T) {
	store := createTestStorage(t)

	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.GetCategoryTotals(context.Background(), "alice", start, end)
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}
