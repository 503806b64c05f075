package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/sheikh-saqib/rewards-points-ledger/internal/interfaces"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/models"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/storage"
)

// MemoryLedgerStore keeps every user's log in memory.
// A batch append happens under the write lock, so readers never observe a
// partially appended spend.
type MemoryLedgerStore struct {
	mu    sync.RWMutex
	users map[string][]models.Transaction
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		users: make(map[string][]models.Transaction),
	}
}

func (m *MemoryLedgerStore) CreateUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[userID]; exists {
		return storage.ErrUserExists
	}
	m.users[userID] = make([]models.Transaction, 0)
	return nil
}

func (m *MemoryLedgerStore) UserExists(_ context.Context, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.users[userID]
	return exists, nil
}

func (m *MemoryLedgerStore) ListUsers(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// GetTransactions returns a copy of the user's log in insertion order.
func (m *MemoryLedgerStore) GetTransactions(_ context.Context, userID string) ([]models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log, exists := m.users[userID]
	if !exists {
		return nil, storage.ErrUserNotFound
	}
	return slices.Clone(log), nil
}

func (m *MemoryLedgerStore) AppendTransactions(_ context.Context, userID string, txs ...models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	log, exists := m.users[userID]
	if !exists {
		return storage.ErrUserNotFound
	}
	m.users[userID] = append(log, txs...)
	return nil
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
