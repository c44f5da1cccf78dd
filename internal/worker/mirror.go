// Package worker mirrors ledger events from the bus into the journal.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"dinamifin/internal/amqp"
	"dinamifin/internal/cache"
	"dinamifin/internal/log"
)

// JournalWriter is satisfied by *google.Journal.
type JournalWriter interface {
	AppendEvent(ctx context.Context, evt *amqp.LedgerEvent) (string, error)
}

// EventSource is satisfied by *amqp.Client.
type EventSource interface {
	ConsumeLedgerEvents(ctx context.Context, handler amqp.Handler) error
}

const (
	seenSize = 4096
	seenTTL  = 24 * time.Hour
)

// MirrorWorker appends every event once. Redelivered events whose ID was
// already written are acknowledged without a second row.
type MirrorWorker struct {
	journal JournalWriter
	seen    *cache.LRUCache[struct{}]
	logger  *log.Logger

	mirrored atomic.Int64
	skipped  atomic.Int64
}

func NewMirrorWorker(journal JournalWriter, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &MirrorWorker{
		journal: journal,
		seen:    cache.NewLRUCache[struct{}](seenSize, seenTTL),
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// Handle is an amqp.Handler. A returned error makes the bus requeue evt.
func (w *MirrorWorker) Handle(ctx context.Context, evt *amqp.LedgerEvent) error {
	if _, dup := w.seen.Get(evt.ID); dup {
		w.skipped.Add(1)
		w.logger.DebugContext(ctx, "Skipping duplicate event", log.FieldEventID, evt.ID)
		return nil
	}

	ref, err := w.journal.AppendEvent(ctx, evt)
	if err != nil {
		return fmt.Errorf("mirror event %s: %w", evt.ID, err)
	}
	w.seen.Set(evt.ID, struct{}{})
	w.mirrored.Add(1)

	w.logger.InfoContext(ctx, "Event mirrored",
		log.FieldEventID, evt.ID,
		log.FieldOperation, evt.Op,
		log.FieldUserID, evt.UserID,
		log.FieldKind, evt.Kind,
		"sheets_ref", ref)
	return nil
}

// Run consumes from src until ctx ends.
func (w *MirrorWorker) Run(ctx context.Context, src EventSource) error {
	w.logger.InfoContext(ctx, "Mirror worker started")
	err := src.ConsumeLedgerEvents(ctx, w.Handle)
	w.logger.InfoContext(ctx, "Mirror worker stopped",
		"mirrored", w.mirrored.Load(), "skipped", w.skipped.Load())
	return err
}

// Stats reports how many events were written and how many were duplicates.
func (w *MirrorWorker) Stats() (mirrored, skipped int64) {
	return w.mirrored.Load(), w.skipped.Load()
}
