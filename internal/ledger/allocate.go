package ledger

import (
	"fmt"

	"github.com/sheikh-saqib/rewards-points-ledger/internal/models"
)

// Allocation is the amount taken from one payer by a spend.
type Allocation struct {
	Payer  string
	Amount int64
}

// Allocate walks netted oldest first across all payers and takes points
// until requested is covered. Allocations are returned in the order each
// payer was first drawn from and always sum to requested.
func Allocate(netted []models.Transaction, requested int64) ([]Allocation, error) {
	if requested < 0 {
		return nil, ErrNegativeSpend
	}

	var available int64
	for _, tx := range netted {
		available += tx.Points
	}
	if requested > available {
		return nil, ErrInsufficientPoints
	}

	var (
		out       []Allocation
		index     = make(map[string]int)
		remaining = requested
	)
	for _, tx := range sortedByTime(netted) {
		if remaining == 0 {
			break
		}
		take := min(remaining, tx.Points)
		if take <= 0 {
			continue
		}
		i, ok := index[tx.Payer]
		if !ok {
			i = len(out)
			index[tx.Payer] = i
			out = append(out, Allocation{Payer: tx.Payer})
		}
		out[i].Amount += take
		remaining -= take
	}

	if remaining > 0 {
		return nil, fmt.Errorf("%w: %d points left undeducted", ErrLedgerInconsistency, remaining)
	}
	return out, nil
}
