package history

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dinamifin/internal/core"
)

type fakeStore struct {
	mu      sync.Mutex
	records []core.LedgerRecord
	goals   []core.Goal
	err     error
	calls   atomic.Int32
	gotFrom core.Date
	gotTo   core.Date
}

func (f *fakeStore) QueryRecords(_ context.Context, userID int64, kind core.Kind, r core.DateRange) ([]core.LedgerRecord, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotFrom, f.gotTo = r.From, r.To
	if f.err != nil {
		return nil, f.err
	}
	var out []core.LedgerRecord
	for _, rec := range f.records {
		if rec.UserID == userID && rec.Kind == kind && r.Contains(rec.Date) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) QueryGoals(_ context.Context, userID int64, kind core.GoalKind, r core.DateRange) ([]core.Goal, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []core.Goal
	for _, g := range f.goals {
		if g.UserID == userID && g.Kind == kind && r.Contains(g.Month) {
			out = append(out, g)
		}
	}
	return out, nil
}

func fixedClock(y, m, d int) func() time.Time {
	return func() time.Time { return time.Date(y, time.Month(m), d, 10, 0, 0, 0, time.UTC) }
}

func TestService_Ledger(t *testing.T) {
	store := &fakeStore{records: []core.LedgerRecord{
		{UserID: 1, Kind: core.KindExpense, Date: core.NewDate(2024, 1, 5), Amount: core.MoneyFromFloat(100)},
		{UserID: 1, Kind: core.KindExpense, Date: core.NewDate(2024, 1, 20), Amount: core.MoneyFromFloat(50)},
		{UserID: 1, Kind: core.KindExpense, Date: core.NewDate(2024, 3, 1), Amount: core.MoneyFromFloat(30)},
		{UserID: 1, Kind: core.KindIncome, Date: core.NewDate(2024, 2, 1), Amount: core.MoneyFromFloat(1000)},
		{UserID: 2, Kind: core.KindExpense, Date: core.NewDate(2024, 2, 1), Amount: core.MoneyFromFloat(7)},
	}}
	svc := NewService(store, store, WithClock(fixedClock(2024, 3, 15)))

	got, err := svc.Ledger(context.Background(), 1, core.KindExpense, "6m")
	if err != nil {
		t.Fatal(err)
	}

	// 6m on 2024-03-15 starts 2023-10-01.
	if store.gotFrom.String() != "2023-10-01" || store.gotTo.String() != "2024-03-15" {
		t.Fatalf("queried %s..%s", store.gotFrom, store.gotTo)
	}
	wantTotals(t, got, []MonthBucket{
		{Period: "2023-10"},
		{Period: "2023-11"},
		{Period: "2023-12"},
		{Period: "2024-01", Total: core.MoneyFromFloat(150)},
		{Period: "2024-02"},
		{Period: "2024-03", Total: core.MoneyFromFloat(30)},
	})
}

func TestService_GoalsMerge(t *testing.T) {
	store := &fakeStore{
		records: []core.LedgerRecord{
			{UserID: 1, Kind: core.KindExpense, Date: core.NewDate(2024, 2, 10), Amount: core.MoneyFromFloat(80)},
		},
		goals: []core.Goal{
			{UserID: 1, Kind: core.GoalExpense, Month: core.NewDate(2024, 1, 1), Value: core.MoneyFromFloat(200)},
			{UserID: 1, Kind: core.GoalSaving, Month: core.NewDate(2024, 1, 1), Value: core.MoneyFromFloat(5)},
		},
	}
	svc := NewService(store, store, WithClock(fixedClock(2024, 6, 15)))

	got, err := svc.Goals(context.Background(), 1, core.GoalExpense, "1y")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
	if got[0].Period != "2024-01" || !got[0].Real.IsZero() || !got[0].Goal.Equal(core.MoneyFromFloat(200)) {
		t.Fatalf("first bucket = %+v", got[0])
	}
	if got[1].Period != "2024-02" || !got[1].Real.Equal(core.MoneyFromFloat(80)) || !got[1].Goal.IsZero() {
		t.Fatalf("second bucket = %+v", got[1])
	}
}

func TestService_Errors(t *testing.T) {
	storeErr := errors.New("connection refused")

	tests := []struct {
		name   string
		series string
		token  string
		err    error
		want   error
	}{
		{"invalid period", "income", "2w", nil, ErrInvalidPeriod},
		{"unknown series", "loans", "1y", nil, ErrUnknownSeries},
		{"store down on ledger series", "income", "1y", storeErr, ErrStoreUnavailable},
		{"store down on goal series", "saving_goal", "1y", storeErr, ErrStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{err: tt.err}
			svc := NewService(store, store, WithClock(fixedClock(2024, 6, 15)))

			_, err := svc.Series(context.Background(), 1, tt.series, tt.token)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if tt.err != nil && !errors.Is(err, tt.err) {
				t.Fatalf("store error should be wrapped, got %v", err)
			}
		})
	}
}

func TestService_InvalidPeriodSkipsStore(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, store)
	if _, err := svc.Ledger(context.Background(), 1, core.KindIncome, "2w"); err == nil {
		t.Fatal("expected error")
	}
	if n := store.calls.Load(); n != 0 {
		t.Fatalf("store should not be queried, got %d calls", n)
	}
}

func TestService_CacheAndInvalidate(t *testing.T) {
	store := &fakeStore{records: []core.LedgerRecord{
		{UserID: 1, Kind: core.KindSaving, Date: core.NewDate(2024, 6, 1), Amount: core.MoneyFromFloat(10)},
	}}
	svc := NewService(store, store, WithClock(fixedClock(2024, 6, 15)), WithCache(16, time.Hour))
	ctx := context.Background()

	first, err := svc.Ledger(ctx, 1, core.KindSaving, "1m")
	if err != nil {
		t.Fatal(err)
	}
	// Mutating a returned slice must not leak into the cache.
	first[0].Total = core.MoneyFromFloat(-1)

	second, err := svc.Ledger(ctx, 1, core.KindSaving, "1m")
	if err != nil {
		t.Fatal(err)
	}
	if n := store.calls.Load(); n != 1 {
		t.Fatalf("expected 1 store call, got %d", n)
	}
	if !second[0].Total.Equal(core.MoneyFromFloat(10)) {
		t.Fatalf("cached value corrupted: %s", second[0].Total)
	}

	store.mu.Lock()
	store.records = append(store.records, core.LedgerRecord{
		UserID: 1, Kind: core.KindSaving, Date: core.NewDate(2024, 6, 2), Amount: core.MoneyFromFloat(5),
	})
	store.mu.Unlock()
	svc.Invalidate(1)

	third, err := svc.Ledger(ctx, 1, core.KindSaving, "1m")
	if err != nil {
		t.Fatal(err)
	}
	if n := store.calls.Load(); n != 2 {
		t.Fatalf("expected 2 store calls, got %d", n)
	}
	if !third[0].Total.Equal(core.MoneyFromFloat(15)) {
		t.Fatalf("expected fresh total 15, got %s", third[0].Total)
	}
}

func TestService_Snapshot(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, store, WithClock(fixedClock(2024, 6, 15)), WithCache(0, 0))

	results, err := svc.Snapshot(context.Background(), 1, "6m")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 7 {
		t.Fatalf("expected 7 series, got %d", len(results))
	}
	for _, r := range results {
		if r.Series.IsGoal() {
			if len(r.Goals) != 0 {
				t.Fatalf("%s: expected no goal buckets, got %v", r.Series.Name, r.Goals)
			}
			continue
		}
		if len(r.Totals) != 6 {
			t.Fatalf("%s: expected 6 dense buckets, got %d", r.Series.Name, len(r.Totals))
		}
	}
}

// gatedStore blocks every record query until release is closed.
type gatedStore struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGatedStore() *gatedStore {
	return &gatedStore{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) QueryRecords(ctx context.Context, userID int64, kind core.Kind, _ core.DateRange) ([]core.LedgerRecord, error) {
	g.calls.Add(1)
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []core.LedgerRecord{
		{UserID: userID, Kind: kind, Date: core.NewDate(2024, 6, 3), Amount: core.MoneyFromFloat(42)},
	}, nil
}

func (g *gatedStore) QueryGoals(context.Context, int64, core.GoalKind, core.DateRange) ([]core.Goal, error) {
	return nil, nil
}

func TestService_CancelledCallerDoesNotFailSharedComputation(t *testing.T) {
	store := newGatedStore()
	svc := NewService(store, store, WithClock(fixedClock(2024, 6, 15)), WithCache(16, time.Hour))

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.Ledger(leaderCtx, 1, core.KindExpense, "1m")
		leaderErr <- err
	}()
	<-store.entered

	type outcome struct {
		buckets []MonthBucket
		err     error
	}
	follower := make(chan outcome, 1)
	go func() {
		b, err := svc.Ledger(context.Background(), 1, core.KindExpense, "1m")
		follower <- outcome{b, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) || errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("leader: expected context.Canceled, got %v", err)
	}

	close(store.release)
	got := <-follower
	if got.err != nil {
		t.Fatalf("follower should not see the leader's cancellation: %v", got.err)
	}
	if len(got.buckets) != 1 || !got.buckets[0].Total.Equal(core.MoneyFromFloat(42)) {
		t.Fatalf("unexpected buckets %+v", got.buckets)
	}

	// The shared result was cached even though the flight was joined.
	if _, err := svc.Ledger(context.Background(), 1, core.KindExpense, "1m"); err != nil {
		t.Fatal(err)
	}
	if n := store.calls.Load(); n != 1 {
		t.Fatalf("expected 1 store call, got %d", n)
	}
}

func TestService_InvalidateDuringComputationSkipsCache(t *testing.T) {
	store := newGatedStore()
	svc := NewService(store, store, WithClock(fixedClock(2024, 6, 15)), WithCache(16, time.Hour))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Ledger(ctx, 1, core.KindExpense, "1m")
		done <- err
	}()
	<-store.entered
	svc.Invalidate(1)
	close(store.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Ledger(ctx, 1, core.KindExpense, "1m"); err != nil {
		t.Fatal(err)
	}
	if n := store.calls.Load(); n != 2 {
		t.Fatalf("stale result was cached: expected 2 store calls, got %d", n)
	}
}
