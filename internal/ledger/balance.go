package ledger

import (
	"math"

	"github.com/sheikh-saqib/rewards-points-ledger/internal/models"
)

// Balances sums the raw log per payer.
func Balances(log []models.Transaction) map[string]int64 {
	out := make(map[string]int64)
	for _, tx := range log {
		out[tx.Payer] += tx.Points
	}
	return out
}

// Total sums every entry in the log.
func Total(log []models.Transaction) int64 {
	var total int64
	for _, tx := range log {
		total += tx.Points
	}
	return total
}

// CheckCapacity rejects points that would push the user's gross credits or
// gross debits past math.MaxInt64. While both stay in range, every running
// total over any subset of the log fits in an int64, so Balances, Total,
// ValidateInsert and Allocate never wrap.
//
// Spends keep the bound on their own: a deduction never exceeds the
// current total, so gross debits stay at or below gross credits.
func CheckCapacity(log []models.Transaction, points int64) error {
	var credits, debits int64
	for _, tx := range log {
		if tx.Points > 0 {
			credits += tx.Points
		} else {
			debits -= tx.Points
		}
	}

	if points > 0 && points > math.MaxInt64-credits {
		return ErrPointsOverflow
	}
	if points < 0 && points < -(math.MaxInt64-debits) {
		return ErrPointsOverflow
	}
	return nil
}
