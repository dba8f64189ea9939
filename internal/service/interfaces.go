// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/ledgerflow/ledgerflow/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
// Owner is always required; the rest are optional.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Owner     string
	Category  string
	Limit     int
	Offset    int
}

// InsertOutcome reports what a fingerprint-guarded insert did.
type InsertOutcome struct {
	// ExistingID is the committed transaction holding the fingerprint when
	// Inserted is false.
	ExistingID string
	Inserted   bool
}

// BulkResolveResult is the outcome of a bulk duplicate-review resolution.
type BulkResolveResult struct {
	Action              model.ReviewAction
	Resolved            int
	CreatedTransactions int
}

// CategoryTotal is one row of the category spend aggregate.
type CategoryTotal struct {
	Category string
	Total    float64
	Count    int
}

// MerchantTotal is one row of the merchant spend aggregate.
type MerchantTotal struct {
	Merchant string
	Total    float64
	Count    int
}

// TrendPoint is one period of a spend trend series.
type TrendPoint struct {
	Period string // e.g. "2024-03"
	Total  float64
	Count  int
}

// Storage defines the contract for the persistence layer.
type Storage interface {
	// Statement import operations
	CreateImport(ctx context.Context, imp *model.StatementImport) error
	GetImport(ctx context.Context, id string) (*model.StatementImport, error)
	ListImports(ctx context.Context, owner string) ([]model.StatementImport, error)
	TransitionImport(ctx context.Context, id string, status model.ImportStatus, errorMessage string) error
	UpdateImportProgress(ctx context.Context, id string, totalRows, processedRows int) error
	GetOrCreateManualImport(ctx context.Context, owner string) (*model.StatementImport, error)

	// Transaction operations
	InsertTransactionIfAbsent(ctx context.Context, txn *model.Transaction) (InsertOutcome, error)
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	FindTransactionByNaturalKey(ctx context.Context, txn *model.Transaction) (string, error)
	GetMerchantHistory(ctx context.Context, owner, merchant string, limit int) ([]model.Transaction, error)
	SetTransactionCategory(ctx context.Context, id, category string, confidence float64, userAssigned bool) error
	ApplyCategoryUpdates(ctx context.Context, updates []model.Transaction) error

	// Duplicate review operations
	CreateDuplicateReview(ctx context.Context, review *model.DuplicateReview) error
	GetDuplicateReview(ctx context.Context, id string) (*model.DuplicateReview, error)
	ListDuplicateReviews(ctx context.Context, owner string, status model.ReviewStatus) ([]model.DuplicateReview, error)
	ResolveDuplicateReview(ctx context.Context, id string, action model.ReviewAction, note string) (string, error)
	BulkResolveDuplicateReviews(ctx context.Context, owner, importID string, action model.ReviewAction, expectedPending int) (*BulkResolveResult, error)

	// Classification rule operations
	CreateRule(ctx context.Context, rule *model.ClassificationRule) error
	GetRule(ctx context.Context, id string) (*model.ClassificationRule, error)
	ListRules(ctx context.Context, owner string, activeOnly bool) ([]model.ClassificationRule, error)
	UpdateRule(ctx context.Context, rule *model.ClassificationRule) error
	DeleteRule(ctx context.Context, id string) error
	ReplaceRules(ctx context.Context, owner string, rules []model.ClassificationRule, merge bool) error

	// Category operations
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, name string) (*model.Category, error)

	// Aggregation (read-only)
	GetCategoryTotals(ctx context.Context, owner string, start, end time.Time) ([]CategoryTotal, error)
	GetMerchantTotals(ctx context.Context, owner string, start, end time.Time) ([]MerchantTotal, error)
	GetTrendSeries(ctx context.Context, owner string, start, end time.Time) ([]TrendPoint, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}
