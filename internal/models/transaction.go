package models

import "time"

// Transaction is a single signed point entry in a user's log.
// Positive points are contributions, negative points are deduction records
// written by a spend. Transactions are never mutated once stored.
type Transaction struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Payer     string    `json:"payer" db:"payer"`
	Points    int64     `json:"points" db:"points"`
	Timestamp time.Time `json:"timestamp" db:"occurred_at"`
}

// Deduction is what a spend reports back per payer. Points is negative.
type Deduction struct {
	Payer     string    `json:"payer"`
	Points    int64     `json:"points"`
	Timestamp time.Time `json:"timestamp"`
}
