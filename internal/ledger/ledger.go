// Package ledger implements the reward points accounting engine: validated
// insertion into a per-user transaction log, netting of earlier spends, and
// FIFO deduction across payers.
package ledger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sheikh-saqib/rewards-points-ledger/internal/clock"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/interfaces"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/models"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/models/events"
)

// Service is the entry point for every ledger operation.
// Mutations of one user's log are serialized by a per-user mutex; reads go
// straight to the store, which only exposes fully appended batches.
type Service struct {
	store     interfaces.LedgerStore
	publisher interfaces.EventPublisher
	clock     clock.Clock
	logger    *slog.Logger

	muMap map[string]*sync.Mutex // one mutex per user id
	mapMu sync.Mutex             // protects muMap
}

type Option func(*Service)

func WithPublisher(p interfaces.EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService wires a Service on top of store. Without options it uses the
// wall clock, discards events and logs through slog.Default.
func NewService(store interfaces.LedgerStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		clock:  clock.Real(),
		logger: slog.Default(),
		muMap:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) getUserLock(userID string) *sync.Mutex {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	if _, exists := s.muMap[userID]; !exists {
		s.muMap[userID] = &sync.Mutex{}
	}
	return s.muMap[userID]
}

// RegisterUser creates an empty log for userID.
func (s *Service) RegisterUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUser
	}
	if err := s.store.CreateUser(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("user registered", "user_id", userID)
	return nil
}

func (s *Service) requireUser(ctx context.Context, userID string) error {
	ok, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

// AddContribution records points from payer at timestamp. Negative points
// are accepted only when the payer's running total at timestamp covers
// them.
func (s *Service) AddContribution(ctx context.Context, userID, payer string, points int64, timestamp time.Time) (models.Transaction, error) {
	if payer == "" {
		return models.Transaction{}, ErrEmptyPayer
	}
	if timestamp.IsZero() {
		return models.Transaction{}, ErrMissingTimestamp
	}
	// Postgres keeps microseconds; truncating here makes both stores order
	// entries identically.
	timestamp = timestamp.Truncate(time.Microsecond)
	if timestamp.After(s.clock.Now()) {
		return models.Transaction{}, ErrFutureTimestamp
	}

	// Users are never removed, so checking before locking is safe and keeps
	// unknown ids out of muMap.
	if err := s.requireUser(ctx, userID); err != nil {
		return models.Transaction{}, err
	}

	mu := s.getUserLock(userID)
	mu.Lock()
	defer mu.Unlock()

	log, err := s.store.GetTransactions(ctx, userID)
	if err != nil {
		return models.Transaction{}, err
	}
	if err := CheckCapacity(log, points); err != nil {
		s.logger.Debug("contribution rejected", "user_id", userID, "payer", payer, "points", points, "error", err)
		return models.Transaction{}, err
	}

	tx := models.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Payer:     payer,
		Points:    points,
		Timestamp: timestamp,
	}
	if err := ValidateInsert(log, tx); err != nil {
		s.logger.Debug("contribution rejected", "user_id", userID, "payer", payer, "points", points, "error", err)
		return models.Transaction{}, err
	}

	if err := s.store.AppendTransactions(ctx, userID, tx); err != nil {
		return models.Transaction{}, err
	}

	s.logger.Info("contribution added", "user_id", userID, "payer", payer, "points", points, "transaction_id", tx.ID)
	s.publish(ctx, events.TopicContributionAdded, userID, events.ContributionAdded{
		TransactionID: tx.ID,
		UserID:        userID,
		Payer:         payer,
		Points:        points,
		Timestamp:     timestamp,
	})
	return tx, nil
}

// Spend deducts points from the user's oldest available points first,
// across payers, and appends one deduction record per payer drawn from.
// A zero spend succeeds without touching the log.
func (s *Service) Spend(ctx context.Context, userID string, points int64) ([]models.Deduction, error) {
	if points < 0 {
		return nil, ErrNegativeSpend
	}

	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	mu := s.getUserLock(userID)
	mu.Lock()
	defer mu.Unlock()

	log, err := s.store.GetTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	if points > Total(log) {
		s.logger.Debug("spend rejected", "user_id", userID, "points", points, "error", ErrInsufficientPoints)
		return nil, ErrInsufficientPoints
	}
	if points == 0 {
		return []models.Deduction{}, nil
	}

	netted, err := Net(log)
	if err != nil {
		s.logger.Error("netting failed", "user_id", userID, "error", err)
		return nil, err
	}
	allocations, err := Allocate(netted, points)
	if err != nil {
		if IsValidation(err) {
			return nil, err
		}
		s.logger.Error("allocation failed", "user_id", userID, "error", err)
		return nil, err
	}

	now := s.clock.Now().Truncate(time.Microsecond)
	records := make([]models.Transaction, 0, len(allocations))
	deductions := make([]models.Deduction, 0, len(allocations))
	for _, a := range allocations {
		records = append(records, models.Transaction{
			ID:        uuid.NewString(),
			UserID:    userID,
			Payer:     a.Payer,
			Points:    -a.Amount,
			Timestamp: now,
		})
		deductions = append(deductions, models.Deduction{
			Payer:     a.Payer,
			Points:    -a.Amount,
			Timestamp: now,
		})
	}

	if err := s.store.AppendTransactions(ctx, userID, records...); err != nil {
		return nil, err
	}

	s.logger.Info("points spent", "user_id", userID, "points", points, "payers", len(deductions))
	s.publish(ctx, events.TopicPointsSpent, userID, events.PointsSpent{
		UserID:     userID,
		Requested:  points,
		Deductions: deductions,
		OccurredAt: now,
	})
	return deductions, nil
}

// Balances returns the net points per payer for the user.
func (s *Service) Balances(ctx context.Context, userID string) (map[string]int64, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	log, err := s.store.GetTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Balances(log), nil
}

// History returns the user's raw log in time order.
func (s *Service) History(ctx context.Context, userID string) ([]models.Transaction, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	log, err := s.store.GetTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sortedByTime(log), nil
}

// publish runs after the ledger change is committed, so a failure is only
// logged.
func (s *Service) publish(ctx context.Context, topic, userID string, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, userID, event); err != nil {
		s.logger.Warn("event publish failed", "topic", topic, "user_id", userID, "error", err)
	}
}
