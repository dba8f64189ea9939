package engine

import "github.com/ledgerflow/ledgerflow/internal/model"

// ReclassifyCounts is the auditable result of a re-classification pass.
type ReclassifyCounts struct {
	Scanned             int
	Changed             int
	Unchanged           int
	SkippedUserAssigned int
}

// Reclassify re-runs the rule stage over already-committed transactions,
// returning the rows whose category changed plus counts for every row
// scanned. Transactions a human has categorized are skipped unless
// includeUserAssigned is set; when such a row is included and changed, the
// user-assigned mark is cleared because the category is rule-owned again.
//
// Only the rule stage runs here: a rule edit should never reshuffle
// recurrence decisions, and a row that no rule matches keeps its current
// category rather than being downgraded to uncategorized.
func (c *Classifier) Reclassify(txns []model.Transaction, includeUserAssigned bool) ([]model.Transaction, ReclassifyCounts) {
	counts := ReclassifyCounts{Scanned: len(txns)}
	var updates []model.Transaction

	for _, txn := range txns {
		if txn.IsUserAssigned && !includeUserAssigned {
			counts.SkippedUserAssigned++
			continue
		}

		result, matched := c.matchRules(&txn, "")
		if !matched {
			counts.Unchanged++
			continue
		}

		if txn.Category == result.Category && txn.CategoryConfidence == result.Confidence {
			counts.Unchanged++
			continue
		}

		txn.Category = result.Category
		txn.CategoryConfidence = result.Confidence
		txn.IsUserAssigned = false
		updates = append(updates, txn)
		counts.Changed++
	}

	return updates, counts
}
