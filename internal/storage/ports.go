package storage

import (
	"context"
	"errors"
	"time"

	"dinamifin/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Ports implemented by both the SQL repository and the memory store.
type (
	RecordStore interface {
		// CreateRecord fails with ErrConflict when the (user, kind, date) slot is taken.
		CreateRecord(ctx context.Context, r core.LedgerRecord) error
		// UpdateRecord fails with ErrNotFound when the slot is empty.
		UpdateRecord(ctx context.Context, r core.LedgerRecord) error
		DeleteRecord(ctx context.Context, userID int64, kind core.Kind, date core.Date) error
		GetRecord(ctx context.Context, userID int64, kind core.Kind, date core.Date) (core.LedgerRecord, error)
		ListRecords(ctx context.Context, userID int64, kind core.Kind) ([]core.LedgerRecord, error)
		QueryRecords(ctx context.Context, userID int64, kind core.Kind, r core.DateRange) ([]core.LedgerRecord, error)
		SumRecords(ctx context.Context, userID int64, kind core.Kind, r core.DateRange) (core.Money, error)
	}

	GoalStore interface {
		UpsertGoal(ctx context.Context, g core.Goal) error
		DeleteGoal(ctx context.Context, userID int64, kind core.GoalKind, month core.Date) error
		GetGoal(ctx context.Context, userID int64, kind core.GoalKind, month core.Date) (core.Goal, error)
		// LatestGoal returns the goal with the greatest month, or ErrNotFound.
		LatestGoal(ctx context.Context, userID int64, kind core.GoalKind) (core.Goal, error)
		ListGoals(ctx context.Context, userID int64, kind core.GoalKind) ([]core.Goal, error)
		QueryGoals(ctx context.Context, userID int64, kind core.GoalKind, r core.DateRange) ([]core.Goal, error)
	}

	Importer interface {
		// ImportRecords upserts every record of the batch or none of them.
		ImportRecords(ctx context.Context, batch ImportBatch) error
	}

	Store interface {
		RecordStore
		GoalStore
		Importer
		Ping(ctx context.Context) error
		Close() error
	}
)

// ImportBatch is one bulk upload of ledger rows of a single kind.
type ImportBatch struct {
	ID        string
	UserID    int64
	Kind      core.Kind
	Records   []core.LedgerRecord
	CreatedAt time.Time
}
