package model

import "time"

// Category represents a named spending bucket. Every transaction's category
// must reference an existing category or the uncategorized sentinel.
type Category struct {
	CreatedAt time.Time
	Name      string
	ID        int
	IsActive  bool
}
