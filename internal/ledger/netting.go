package ledger

import (
	"fmt"

	"github.com/sheikh-saqib/rewards-points-ledger/internal/models"
)

// lot is a private, mutable copy of a contribution used while netting.
type lot struct {
	tx        models.Transaction
	remaining int64
}

// Net absorbs every deduction record into the oldest earlier contributions
// of the same payer and returns a fresh log of what is left, in time order.
// Every returned entry has Points > 0 and per-payer totals are preserved.
// log itself is not modified.
func Net(log []models.Transaction) ([]models.Transaction, error) {
	sorted := sortedByTime(log)

	lots := make([]*lot, 0, len(sorted))
	open := make(map[string][]*lot)

	for _, tx := range sorted {
		if tx.Points >= 0 {
			l := &lot{tx: tx, remaining: tx.Points}
			lots = append(lots, l)
			if tx.Points > 0 {
				open[tx.Payer] = append(open[tx.Payer], l)
			}
			continue
		}

		owed := -tx.Points
		queue := open[tx.Payer]
		for owed > 0 && len(queue) > 0 {
			head := queue[0]
			take := min(owed, head.remaining)
			head.remaining -= take
			owed -= take
			if head.remaining == 0 {
				queue = queue[1:]
			}
		}
		open[tx.Payer] = queue

		if owed > 0 {
			return nil, fmt.Errorf("%w: payer %q has %d unabsorbed points at %s",
				ErrLedgerInconsistency, tx.Payer, owed, tx.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
		}
	}

	netted := make([]models.Transaction, 0, len(lots))
	for _, l := range lots {
		if l.remaining == 0 {
			continue
		}
		tx := l.tx
		tx.Points = l.remaining
		netted = append(netted, tx)
	}
	return netted, nil
}
