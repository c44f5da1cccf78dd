package services

import (
	"context"
	"fmt"
	"time"

	"dinamifin/internal/amqp"
	"dinamifin/internal/core"
	"dinamifin/internal/log"
	"dinamifin/internal/storage"
)

// LedgerService manages dated ledger records, one per user, kind and day.
type LedgerService struct {
	store  storage.RecordStore
	notify notifier
	now    func() time.Time
	logger *log.Logger
}

func NewLedgerService(store storage.RecordStore, publisher EventPublisher, inv CacheInvalidator, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentLedger)
	return &LedgerService{
		store:  store,
		notify: newNotifier(publisher, inv, logger),
		now:    core.Now,
		logger: logger,
	}
}

// WithClock overrides the clock used for current-month totals.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

func normalize(r core.LedgerRecord) (core.LedgerRecord, error) {
	r.Category = core.NormalizeCategory(r.Category)
	r.Amount = core.NewMoney(r.Amount.Decimal())
	if err := r.Validate(); err != nil {
		return core.LedgerRecord{}, err
	}
	return r, nil
}

// Create stores a new record. A record already present for the same day
// yields storage.ErrConflict; callers should update instead.
func (s *LedgerService) Create(ctx context.Context, r core.LedgerRecord) (core.LedgerRecord, error) {
	r, err := normalize(r)
	if err != nil {
		return core.LedgerRecord{}, err
	}
	if err := s.store.CreateRecord(ctx, r); err != nil {
		return core.LedgerRecord{}, fmt.Errorf("create %s: %w", r.Kind, err)
	}
	s.changed(ctx, amqp.OpRecordCreated, r)
	return r, nil
}

// RecordPatch holds the fields of an update. A nil field keeps the stored
// value.
type RecordPatch struct {
	Amount   *core.Money
	Category *string
}

// Update merges patch into the stored record of that day and revalidates
// the result. A missing record yields storage.ErrNotFound.
func (s *LedgerService) Update(ctx context.Context, userID int64, kind core.Kind, date core.Date, patch RecordPatch) (core.LedgerRecord, error) {
	if err := validateKey(userID, kind); err != nil {
		return core.LedgerRecord{}, err
	}
	r, err := s.store.GetRecord(ctx, userID, kind, date)
	if err != nil {
		return core.LedgerRecord{}, fmt.Errorf("update %s: %w", kind, err)
	}
	if patch.Amount != nil {
		r.Amount = *patch.Amount
	}
	if patch.Category != nil {
		r.Category = *patch.Category
	}
	r, err = normalize(r)
	if err != nil {
		return core.LedgerRecord{}, err
	}
	if err := s.store.UpdateRecord(ctx, r); err != nil {
		return core.LedgerRecord{}, fmt.Errorf("update %s: %w", r.Kind, err)
	}
	s.changed(ctx, amqp.OpRecordUpdated, r)
	return r, nil
}

func (s *LedgerService) Delete(ctx context.Context, userID int64, kind core.Kind, date core.Date) error {
	if err := validateKey(userID, kind); err != nil {
		return err
	}
	if err := s.store.DeleteRecord(ctx, userID, kind, date); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	s.changed(ctx, amqp.OpRecordDeleted, core.LedgerRecord{UserID: userID, Kind: kind, Date: date})
	return nil
}

func (s *LedgerService) Get(ctx context.Context, userID int64, kind core.Kind, date core.Date) (core.LedgerRecord, error) {
	if err := validateKey(userID, kind); err != nil {
		return core.LedgerRecord{}, err
	}
	return s.store.GetRecord(ctx, userID, kind, date)
}

func (s *LedgerService) List(ctx context.Context, userID int64, kind core.Kind) ([]core.LedgerRecord, error) {
	if err := validateKey(userID, kind); err != nil {
		return nil, err
	}
	return s.store.ListRecords(ctx, userID, kind)
}

// MonthTotal is the sum of one kind over a calendar month.
type MonthTotal struct {
	Month string     `json:"month"`
	Total core.Money `json:"total"`
}

// CurrentMonthTotal sums the whole current calendar month.
func (s *LedgerService) CurrentMonthTotal(ctx context.Context, userID int64, kind core.Kind) (MonthTotal, error) {
	if err := validateKey(userID, kind); err != nil {
		return MonthTotal{}, err
	}
	first := core.DateOf(s.now()).FirstOfMonth()
	last := core.DateOf(first.AddDate(0, 1, -1))

	total, err := s.store.SumRecords(ctx, userID, kind, core.DateRange{From: first, To: last})
	if err != nil {
		return MonthTotal{}, fmt.Errorf("current month %s total: %w", kind, err)
	}
	return MonthTotal{Month: first.MonthKey(), Total: total}, nil
}

func (s *LedgerService) changed(ctx context.Context, op amqp.EventOp, r core.LedgerRecord) {
	evt := amqp.NewLedgerEvent(op, r.UserID, string(r.Kind))
	evt.Date = r.Date.String()
	evt.AmountCents = r.Amount.Cents()
	evt.Category = r.Category

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogLedgerMutation(ctx, string(op), r.UserID, string(r.Kind), r.Date.String(), r.Amount.String())
	s.notify.changed(ctx, evt)
}

func validateKey(userID int64, kind core.Kind) error {
	if userID <= 0 {
		return core.ErrInvalidUser
	}
	if !kind.Valid() {
		return core.ErrInvalidKind
	}
	return nil
}
