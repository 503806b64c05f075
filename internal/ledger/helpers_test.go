package ledger

import (
	"time"

	"github.com/sheikh-saqib/rewards-points-ledger/internal/models"
)

var t0 = time.Date(2020, 11, 2, 14, 0, 0, 0, time.UTC)

func at(h int) time.Time { return t0.Add(time.Duration(h) * time.Hour) }

func entry(payer string, points int64, ts time.Time) models.Transaction {
	return models.Transaction{Payer: payer, Points: points, Timestamp: ts}
}
