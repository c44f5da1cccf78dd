// Package services orchestrates ledger, goal and import operations across
// the store, the history cache and the event bus.
package services

import (
	"context"

	"dinamifin/internal/amqp"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, evt *amqp.LedgerEvent) error
}

// CacheInvalidator is satisfied by *history.Service.
type CacheInvalidator interface {
	Invalidate(userID int64)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(int64) {}
