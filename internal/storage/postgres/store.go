package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sheikh-saqib/rewards-points-ledger/internal/interfaces"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/models"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/storage"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS point_transactions (
	seq         BIGSERIAL PRIMARY KEY,
	id          UUID NOT NULL UNIQUE,
	user_id     TEXT NOT NULL REFERENCES users(id),
	payer       TEXT NOT NULL,
	points      BIGINT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS point_transactions_user_idx ON point_transactions (user_id, seq);
`

type PostgresLedgerStore struct {
	db *sqlx.DB
}

func NewPostgresLedgerStore(db *sqlx.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// Migrate creates the ledger tables if they do not exist yet.
func (p *PostgresLedgerStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

func (p *PostgresLedgerStore) CreateUser(ctx context.Context, userID string) error {
	const query = `INSERT INTO users (id) VALUES ($1)`

	_, err := p.db.ExecContext(ctx, query, userID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return storage.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("create user %q: %w", userID, err)
	}
	return nil
}

func (p *PostgresLedgerStore) UserExists(ctx context.Context, userID string) (bool, error) {
	return userExists(ctx, p.db, userID)
}

func userExists(ctx context.Context, q sqlx.QueryerContext, userID string) (bool, error) {
	const query = `SELECT 1 FROM users WHERE id = $1 LIMIT 1`

	var exists int
	err := q.QueryRowxContext(ctx, query, userID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup user %q: %w", userID, err)
	}
	return true, nil
}

func (p *PostgresLedgerStore) ListUsers(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM users ORDER BY id`

	ids := []string{}
	if err := p.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}

// GetTransactions returns the user's log in insertion order.
func (p *PostgresLedgerStore) GetTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	const query = `SELECT id, user_id, payer, points, occurred_at FROM point_transactions
	WHERE user_id = $1 ORDER BY seq`

	ok, err := p.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	txs := []models.Transaction{}
	if err := p.db.SelectContext(ctx, &txs, query, userID); err != nil {
		return nil, fmt.Errorf("load transactions for %q: %w", userID, err)
	}
	return txs, nil
}

// AppendTransactions inserts every transaction in one SQL transaction.
func (p *PostgresLedgerStore) AppendTransactions(ctx context.Context, userID string, txs ...models.Transaction) error {
	const query = `INSERT INTO point_transactions (id, user_id, payer, points, occurred_at)
	VALUES (:id, :user_id, :payer, :points, :occurred_at)`

	dbTx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	ok, err := userExists(ctx, dbTx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrUserNotFound
	}

	for _, tx := range txs {
		tx.UserID = userID
		tx.Timestamp = tx.Timestamp.UTC()
		if _, err := dbTx.NamedExecContext(ctx, query, tx); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}
	return dbTx.Commit()
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
