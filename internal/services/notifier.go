package services

import (
	"context"

	"dinamifin/internal/amqp"
	"dinamifin/internal/log"
)

// notifier fans a successful write out to the history cache and the event
// bus. Publish failures are logged, never returned: the write already
// succeeded locally.
type notifier struct {
	publisher   EventPublisher
	invalidator CacheInvalidator
	logger      *log.Logger
}

func newNotifier(p EventPublisher, inv CacheInvalidator, logger *log.Logger) notifier {
	if inv == nil {
		inv = noopInvalidator{}
	}
	return notifier{publisher: p, invalidator: inv, logger: logger}
}

func (n notifier) changed(ctx context.Context, evt *amqp.LedgerEvent) {
	n.invalidator.Invalidate(evt.UserID)

	if n.publisher == nil {
		n.logger.DebugContext(ctx, "AMQP publisher not configured, skipping event", log.FieldOperation, evt.Op)
		return
	}
	if err := n.publisher.PublishLedgerEvent(ctx, evt); err != nil {
		n.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventID, evt.ID, log.FieldOperation, evt.Op, log.FieldUserID, evt.UserID, log.FieldError, err)
	}
}
