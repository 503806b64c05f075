package ledger

import (
	"slices"

	"github.com/sheikh-saqib/rewards-points-ledger/internal/models"
)

// sortedByTime returns a copy of log ordered by timestamp. Entries with
// equal timestamps keep their insertion order.
func sortedByTime(log []models.Transaction) []models.Transaction {
	out := slices.Clone(log)
	slices.SortStableFunc(out, func(a, b models.Transaction) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out
}

// ValidateInsert checks that adding candidate to log keeps the candidate
// payer's running total non-negative at the candidate's position in time.
// Entries sharing the candidate's timestamp count as earlier.
//
// Only the insertion point is checked. Later entries of the same payer,
// whose running totals also shift by candidate.Points, are not re-verified.
func ValidateInsert(log []models.Transaction, candidate models.Transaction) error {
	if candidate.Points >= 0 {
		return nil
	}

	var (
		totals = make(map[string]int64)
		seen   bool
	)
	for _, tx := range sortedByTime(log) {
		if tx.Timestamp.After(candidate.Timestamp) {
			break
		}
		totals[tx.Payer] += tx.Points
		if tx.Payer == candidate.Payer {
			seen = true
		}
	}

	if !seen || totals[candidate.Payer]+candidate.Points < 0 {
		return ErrHistoricalNegative
	}
	return nil
}
