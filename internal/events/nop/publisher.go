// Package nop provides an EventPublisher that drops every event, used
// when no broker is configured.
package nop

import (
	"context"

	"github.com/sheikh-saqib/rewards-points-ledger/internal/interfaces"
)

type Publisher struct{}

func (Publisher) Publish(context.Context, string, string, any) error { return nil }

func (Publisher) Close() error { return nil }

var _ interfaces.EventPublisher = Publisher{}
