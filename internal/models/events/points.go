package events

import (
	"time"

	"github.com/sheikh-saqib/rewards-points-ledger/internal/models"
)

const (
	TopicContributionAdded = "contribution_added"
	TopicPointsSpent       = "points_spent"
)

type ContributionAdded struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Payer         string    `json:"payer"`
	Points        int64     `json:"points"`
	Timestamp     time.Time `json:"timestamp"`
}

type PointsSpent struct {
	UserID     string             `json:"user_id"`
	Requested  int64              `json:"requested"`
	Deductions []models.Deduction `json:"deductions"`
	OccurredAt time.Time          `json:"occurred_at"`
}
