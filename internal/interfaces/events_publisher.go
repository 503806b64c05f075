package interfaces

import "context"

// EventPublisher delivers domain events after a ledger change commits.
// key groups events that must stay ordered relative to each other.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}
