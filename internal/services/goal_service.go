package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dinamifin/internal/amqp"
	"dinamifin/internal/core"
	"dinamifin/internal/log"
	"dinamifin/internal/storage"
)

// GoalService manages per-month goals.
type GoalService struct {
	store  storage.GoalStore
	notify notifier
	now    func() time.Time
	logger *log.Logger
}

func NewGoalService(store storage.GoalStore, publisher EventPublisher, inv CacheInvalidator, logger *log.Logger) *GoalService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentGoals)
	return &GoalService{
		store:  store,
		notify: newNotifier(publisher, inv, logger),
		now:    core.Now,
		logger: logger,
	}
}

func (s *GoalService) WithClock(now func() time.Time) *GoalService {
	s.now = now
	return s
}

// Upsert sets the goal for a month. A zero month means the current one;
// any day of the month is accepted and normalised to day 1.
func (s *GoalService) Upsert(ctx context.Context, g core.Goal) (core.Goal, error) {
	if g.Month.IsZero() {
		g.Month = core.DateOf(s.now())
	}
	g.Month = g.Month.FirstOfMonth()
	g.Value = core.NewMoney(g.Value.Decimal())
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	if err := s.store.UpsertGoal(ctx, g); err != nil {
		return core.Goal{}, fmt.Errorf("upsert %s: %w", g.Kind, err)
	}

	evt := amqp.NewLedgerEvent(amqp.OpGoalUpserted, g.UserID, string(g.Kind))
	evt.Date = g.Month.String()
	evt.AmountCents = g.Value.Cents()
	s.notify.changed(ctx, evt)
	return g, nil
}

func (s *GoalService) Delete(ctx context.Context, userID int64, kind core.GoalKind, month core.Date) error {
	if err := validateGoalKey(userID, kind); err != nil {
		return err
	}
	month = month.FirstOfMonth()
	if err := s.store.DeleteGoal(ctx, userID, kind, month); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}

	evt := amqp.NewLedgerEvent(amqp.OpGoalDeleted, userID, string(kind))
	evt.Date = month.String()
	s.notify.changed(ctx, evt)
	return nil
}

func (s *GoalService) List(ctx context.Context, userID int64, kind core.GoalKind) ([]core.Goal, error) {
	if err := validateGoalKey(userID, kind); err != nil {
		return nil, err
	}
	return s.store.ListGoals(ctx, userID, kind)
}

// CurrentGoal is the goal in force for a kind, nil when none was ever set.
type CurrentGoal struct {
	Kind core.GoalKind `json:"kind"`
	Goal *core.Goal    `json:"-"`
}

// Current returns, per goal kind, this month's goal or else the most
// recent one on record.
func (s *GoalService) Current(ctx context.Context, userID int64) ([]CurrentGoal, error) {
	if userID <= 0 {
		return nil, core.ErrInvalidUser
	}
	month := core.DateOf(s.now()).FirstOfMonth()

	out := make([]CurrentGoal, 0, len(core.GoalKinds))
	for _, kind := range core.GoalKinds {
		g, err := s.store.GetGoal(ctx, userID, kind, month)
		if errors.Is(err, storage.ErrNotFound) {
			g, err = s.store.LatestGoal(ctx, userID, kind)
		}
		switch {
		case errors.Is(err, storage.ErrNotFound):
			out = append(out, CurrentGoal{Kind: kind})
		case err != nil:
			return nil, fmt.Errorf("current %s: %w", kind, err)
		default:
			out = append(out, CurrentGoal{Kind: kind, Goal: &g})
		}
	}
	return out, nil
}

func validateGoalKey(userID int64, kind core.GoalKind) error {
	if userID <= 0 {
		return core.ErrInvalidUser
	}
	if !kind.Valid() {
		return core.ErrInvalidGoalKind
	}
	return nil
}
