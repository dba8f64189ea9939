package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgerflow/ledgerflow/internal/model"
)

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var direction string
	var postedDate sql.NullTime

	err := row.Scan(
		&txn.ID, &txn.Owner, &txn.SourceImportID, &txn.Date, &postedDate,
		&txn.DescriptionRaw, &txn.MerchantNormalized, &txn.Amount, &txn.Currency, &direction,
		&txn.Category, &txn.CategoryConfidence, &txn.IsUserAssigned, &txn.DedupeFingerprint, &txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Direction = model.TransactionDirection(direction)
	if postedDate.Valid {
		t := postedDate.Time
		txn.PostedDate = &t
	}
	return &txn, nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txns, nil
}

// nullableTime converts an optional timestamp into a driver value.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
