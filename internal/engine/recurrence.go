package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ledgerflow/ledgerflow/internal/model"
)

// RecurrenceOptions tunes the recurring-charge heuristic.
type RecurrenceOptions struct {
	// Category assigned when a recurring charge is detected.
	Category string
	// Confidence assigned on detection.
	Confidence float64
	// MinOccurrences is the minimum number of prior transactions (same
	// merchant, same amount) required before recurrence is considered.
	MinOccurrences int
	// AmountTolerance is the maximum absolute difference for two amounts to
	// count as "the same charge".
	AmountTolerance float64
}

// knownPeriods are the charge cadences the detector recognizes, with the
// allowed day-count window for the mean interval.
var knownPeriods = []struct {
	name    string
	minDays float64
	maxDays float64
}{
	{"weekly", 6, 8},
	{"monthly", 27, 33},
	{"quarterly", 85, 97},
	{"yearly", 355, 375},
}

// RecurrenceDetector classifies merchant/amount pairs that recur at a
// roughly periodic interval, catching subscriptions no rule covers yet.
type RecurrenceDetector struct {
	opts RecurrenceOptions
}

// NewRecurrenceDetector creates a detector. Zero-valued options get
// defaults: category "subscriptions", confidence 0.6, two prior
// occurrences, one-cent amount tolerance.
func NewRecurrenceDetector(opts RecurrenceOptions) *RecurrenceDetector {
	if opts.Category == "" {
		opts.Category = "subscriptions"
	}
	if opts.Confidence == 0 {
		opts.Confidence = 0.6
	}
	if opts.MinOccurrences == 0 {
		opts.MinOccurrences = 2
	}
	if opts.AmountTolerance == 0 {
		opts.AmountTolerance = 0.01
	}
	return &RecurrenceDetector{opts: opts}
}

// Detect reports whether the draft looks like the next instance of a
// recurring charge, given the owner's prior transactions for the same
// merchant. The intervals between consecutive occurrences (prior ones plus
// the draft) must all sit inside one known period window.
func (d *RecurrenceDetector) Detect(draft *model.Transaction, history []model.Transaction) (Result, bool) {
	if draft.Direction != model.DirectionDebit {
		return Result{}, false
	}

	var dates []time.Time
	for _, txn := range history {
		if txn.MerchantNormalized != draft.MerchantNormalized {
			continue
		}
		if txn.Direction != draft.Direction {
			continue
		}
		if math.Abs(txn.Amount-draft.Amount) > d.opts.AmountTolerance {
			continue
		}
		dates = append(dates, txn.Date)
	}

	if len(dates) < d.opts.MinOccurrences {
		return Result{}, false
	}

	dates = append(dates, draft.Date)
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	intervals := make([]float64, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		days := dates[i].Sub(dates[i-1]).Hours() / 24
		if days == 0 {
			// Same-day repeats are duplicates or burst charges, not a cadence.
			return Result{}, false
		}
		intervals = append(intervals, days)
	}

	for _, period := range knownPeriods {
		if intervalsWithin(intervals, period.minDays, period.maxDays) {
			return Result{
				Category:   d.opts.Category,
				Confidence: d.opts.Confidence,
				Rationale:  fmt.Sprintf("recurrence:%s:%s", period.name, draft.MerchantNormalized),
			}, true
		}
	}

	return Result{}, false
}

func intervalsWithin(intervals []float64, minDays, maxDays float64) bool {
	for _, days := range intervals {
		if days < minDays || days > maxDays {
			return false
		}
	}
	return true
}
