package model

import "time"

// ImportStatus tracks the lifecycle of one statement ingestion run.
type ImportStatus string

// Import status constants. Transitions are monotonic: queued → processing →
// completed, or queued/processing → failed. StatusManual marks the synthetic
// import that owns hand-entered transactions and never transitions.
const (
	ImportStatusQueued     ImportStatus = "queued"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
	ImportStatusManual     ImportStatus = "manual"
)

// Terminal reports whether no further status transitions are allowed.
func (s ImportStatus) Terminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed
}

// CanTransitionTo reports whether moving to the target status is a legal
// forward transition.
func (s ImportStatus) CanTransitionTo(target ImportStatus) bool {
	switch s {
	case ImportStatusQueued:
		return target == ImportStatusProcessing || target == ImportStatusFailed
	case ImportStatusProcessing:
		return target == ImportStatusCompleted || target == ImportStatusFailed
	default:
		return false
	}
}

// StatementImport records one ingestion run of a statement file.
// ProcessedRows counts rows examined (accepted, queued as duplicates, or
// rejected as invalid alike) so progress polling is monotonic even when a
// re-run routes every row to review.
type StatementImport struct {
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	ID            string
	Owner         string
	Filename      string
	ErrorMessage  string
	Status        ImportStatus
	TotalRows     int
	ProcessedRows int
}
