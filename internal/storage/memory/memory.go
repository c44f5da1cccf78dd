// Package memory is an in-process storage.Store used by the memory
// backend and by tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"dinamifin/internal/core"
	"dinamifin/internal/storage"
)

type recordKey struct {
	user int64
	kind core.Kind
	date string
}

type goalKey struct {
	user  int64
	kind  core.GoalKind
	month string
}

type Store struct {
	mu      sync.RWMutex
	records map[recordKey]core.LedgerRecord
	goals   map[goalKey]core.Goal
	imports []storage.ImportBatch
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		records: make(map[recordKey]core.LedgerRecord),
		goals:   make(map[goalKey]core.Goal),
	}
}

func rk(userID int64, kind core.Kind, d core.Date) recordKey {
	return recordKey{user: userID, kind: kind, date: d.String()}
}

func gk(userID int64, kind core.GoalKind, m core.Date) goalKey {
	return goalKey{user: userID, kind: kind, month: m.String()}
}

func (s *Store) CreateRecord(_ context.Context, r core.LedgerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := rk(r.UserID, r.Kind, r.Date)
	if _, ok := s.records[k]; ok {
		return fmt.Errorf("%s record for %s: %w", r.Kind, r.Date, storage.ErrConflict)
	}
	s.records[k] = r
	return nil
}

func (s *Store) UpdateRecord(_ context.Context, r core.LedgerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := rk(r.UserID, r.Kind, r.Date)
	if _, ok := s.records[k]; !ok {
		return fmt.Errorf("%s record for %s: %w", r.Kind, r.Date, storage.ErrNotFound)
	}
	s.records[k] = r
	return nil
}

func (s *Store) DeleteRecord(_ context.Context, userID int64, kind core.Kind, date core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := rk(userID, kind, date)
	if _, ok := s.records[k]; !ok {
		return fmt.Errorf("%s record for %s: %w", kind, date, storage.ErrNotFound)
	}
	delete(s.records, k)
	return nil
}

func (s *Store) GetRecord(_ context.Context, userID int64, kind core.Kind, date core.Date) (core.LedgerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[rk(userID, kind, date)]
	if !ok {
		return core.LedgerRecord{}, fmt.Errorf("%s record for %s: %w", kind, date, storage.ErrNotFound)
	}
	return r, nil
}

func (s *Store) ListRecords(ctx context.Context, userID int64, kind core.Kind) ([]core.LedgerRecord, error) {
	return s.filterRecords(userID, kind, nil), nil
}

func (s *Store) QueryRecords(_ context.Context, userID int64, kind core.Kind, r core.DateRange) ([]core.LedgerRecord, error) {
	return s.filterRecords(userID, kind, &r), nil
}

func (s *Store) SumRecords(_ context.Context, userID int64, kind core.Kind, r core.DateRange) (core.Money, error) {
	var total core.Money
	for _, rec := range s.filterRecords(userID, kind, &r) {
		total = total.Add(rec.Amount)
	}
	return total, nil
}

func (s *Store) filterRecords(userID int64, kind core.Kind, r *core.DateRange) []core.LedgerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.LedgerRecord{}
	for k, rec := range s.records {
		if k.user != userID || k.kind != kind {
			continue
		}
		if r != nil && !r.Contains(rec.Date) {
			continue
		}
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b core.LedgerRecord) int { return a.Date.Compare(b.Date.Time) })
	return out
}

func (s *Store) ImportRecords(_ context.Context, batch storage.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range batch.Records {
		s.records[rk(r.UserID, r.Kind, r.Date)] = r
	}
	s.imports = append(s.imports, batch)
	return nil
}

// Imports returns the batches applied so far.
func (s *Store) Imports() []storage.ImportBatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.imports)
}

func (s *Store) UpsertGoal(_ context.Context, g core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[gk(g.UserID, g.Kind, g.Month)] = g
	return nil
}

func (s *Store) DeleteGoal(_ context.Context, userID int64, kind core.GoalKind, month core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := gk(userID, kind, month)
	if _, ok := s.goals[k]; !ok {
		return fmt.Errorf("%s for %s: %w", kind, month.MonthKey(), storage.ErrNotFound)
	}
	delete(s.goals, k)
	return nil
}

func (s *Store) GetGoal(_ context.Context, userID int64, kind core.GoalKind, month core.Date) (core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[gk(userID, kind, month)]
	if !ok {
		return core.Goal{}, fmt.Errorf("%s for %s: %w", kind, month.MonthKey(), storage.ErrNotFound)
	}
	return g, nil
}

func (s *Store) LatestGoal(_ context.Context, userID int64, kind core.GoalKind) (core.Goal, error) {
	goals := s.filterGoals(userID, kind, nil)
	if len(goals) == 0 {
		return core.Goal{}, fmt.Errorf("%s: %w", kind, storage.ErrNotFound)
	}
	return goals[len(goals)-1], nil
}

func (s *Store) ListGoals(_ context.Context, userID int64, kind core.GoalKind) ([]core.Goal, error) {
	return s.filterGoals(userID, kind, nil), nil
}

func (s *Store) QueryGoals(_ context.Context, userID int64, kind core.GoalKind, r core.DateRange) ([]core.Goal, error) {
	return s.filterGoals(userID, kind, &r), nil
}

func (s *Store) filterGoals(userID int64, kind core.GoalKind, r *core.DateRange) []core.Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Goal{}
	for k, g := range s.goals {
		if k.user != userID || k.kind != kind {
			continue
		}
		if r != nil && !r.Contains(g.Month) {
			continue
		}
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b core.Goal) int { return cmp.Compare(a.Month.String(), b.Month.String()) })
	return out
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
