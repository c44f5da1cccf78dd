package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventOp names the mutation an event reports.
type EventOp string

const (
	OpRecordCreated EventOp = "record_created"
	OpRecordUpdated EventOp = "record_updated"
	OpRecordDeleted EventOp = "record_deleted"
	OpGoalUpserted  EventOp = "goal_upserted"
	OpGoalDeleted   EventOp = "goal_deleted"
	OpImported      EventOp = "imported"
)

// LedgerEvent is published after every successful ledger or goal write.
// It carries enough to append a journal row without reading the database.
type LedgerEvent struct {
	ID          string    `json:"id"`
	Op          EventOp   `json:"op"`
	UserID      int64     `json:"user_id"`
	Kind        string    `json:"kind"`
	Date        string    `json:"date,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Category    string    `json:"category,omitempty"`
	Count       int       `json:"count,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewLedgerEvent stamps a fresh ULID and the current time.
func NewLedgerEvent(op EventOp, userID int64, kind string) *LedgerEvent {
	return &LedgerEvent{
		ID:        ulid.Make().String(),
		Op:        op,
		UserID:    userID,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
}

func (m *LedgerEvent) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("event id is empty")
	}
	if _, err := ulid.ParseStrict(m.ID); err != nil {
		return fmt.Errorf("event id %q: %w", m.ID, err)
	}
	if m.UserID <= 0 {
		return fmt.Errorf("event %s: invalid user id %d", m.ID, m.UserID)
	}
	switch m.Op {
	case OpRecordCreated, OpRecordUpdated, OpRecordDeleted, OpGoalUpserted, OpGoalDeleted, OpImported:
	default:
		return fmt.Errorf("event %s: unknown op %q", m.ID, m.Op)
	}
	return nil
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes and validates an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
