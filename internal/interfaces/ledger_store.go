package interfaces

import (
	"context"

	"github.com/sheikh-saqib/rewards-points-ledger/internal/models"
)

// LedgerStore owns every user's transaction log.
//
// AppendTransactions must be atomic: either every transaction becomes
// visible to readers or none does.
type LedgerStore interface {
	CreateUser(ctx context.Context, userID string) error
	UserExists(ctx context.Context, userID string) (bool, error)
	ListUsers(ctx context.Context) ([]string, error)
	GetTransactions(ctx context.Context, userID string) ([]models.Transaction, error)
	AppendTransactions(ctx context.Context, userID string, txs ...models.Transaction) error
}
