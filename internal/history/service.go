// Package history resolves lookback periods and folds ledger records and
// goals into monthly series for charting.
package history

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"dinamifin/internal/cache"
	"dinamifin/internal/core"
	"dinamifin/internal/log"
)

// RecordReader returns a user's ledger records of one kind whose date falls
// inside r, in any order.
type RecordReader interface {
	QueryRecords(ctx context.Context, userID int64, kind core.Kind, r core.DateRange) ([]core.LedgerRecord, error)
}

// GoalReader returns a user's goals of one kind whose month falls inside r.
type GoalReader interface {
	QueryGoals(ctx context.Context, userID int64, kind core.GoalKind, r core.DateRange) ([]core.Goal, error)
}

const (
	defaultCacheSize    = 512
	defaultCacheTTL     = time.Minute
	defaultQueryTimeout = 7 * time.Second
)

// Result is a computed series. Exactly one of Totals and Goals is set,
// depending on the series' bucketing policy.
type Result struct {
	Series Series
	Period Period
	Window Window
	Totals []MonthBucket
	Goals  []GoalBucket
}

func (r Result) clone() Result {
	r.Totals = slices.Clone(r.Totals)
	r.Goals = slices.Clone(r.Goals)
	return r
}

// Service computes history series on top of the record store.
type Service struct {
	records RecordReader
	goals   GoalReader
	policy  PeriodPolicy
	now     func() time.Time
	timeout time.Duration
	logger  *log.Logger

	cache  *cache.LRUCache[Result]
	flight singleflight.Group

	mu   sync.Mutex
	gens map[int64]uint64
}

type Option func(*Service)

// WithClock injects the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPolicy(p PeriodPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithCache sizes the result cache. size <= 0 disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Service) { s.cache = cache.NewLRUCache[Result](size, ttl) }
}

func WithQueryTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(records RecordReader, goals GoalReader, opts ...Option) *Service {
	s := &Service{
		records: records,
		goals:   goals,
		policy:  DefaultPolicy,
		now:     core.Now,
		timeout: defaultQueryTimeout,
		cache:   cache.NewLRUCache[Result](defaultCacheSize, defaultCacheTTL),
		gens:    make(map[int64]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(log.ComponentHistory)
	return s
}

// Cache exposes the result cache so callers can register it for cleanup.
func (s *Service) Cache() *cache.LRUCache[Result] {
	return s.cache
}

// Ledger returns the dense monthly totals of one ledger kind.
func (s *Service) Ledger(ctx context.Context, userID int64, kind core.Kind, token string) ([]MonthBucket, error) {
	res, err := s.Series(ctx, userID, string(kind), token)
	if err != nil {
		return nil, err
	}
	return res.Totals, nil
}

// Goals returns the sparse actual-vs-goal series of one goal kind.
func (s *Service) Goals(ctx context.Context, userID int64, kind core.GoalKind, token string) ([]GoalBucket, error) {
	res, err := s.Series(ctx, userID, string(kind), token)
	if err != nil {
		return nil, err
	}
	return res.Goals, nil
}

// Series resolves token against today and computes the named series.
func (s *Service) Series(ctx context.Context, userID int64, name, token string) (Result, error) {
	series, err := SeriesFor(name)
	if err != nil {
		return Result{}, err
	}
	period, err := ParsePeriod(token)
	if err != nil {
		return Result{}, err
	}
	window, err := s.policy.Resolve(period, s.now())
	if err != nil {
		return Result{}, err
	}

	key := cacheKey(userID, series.Name, period, window.End)
	if cached, ok := s.cache.Get(key); ok {
		s.logger.DebugContext(ctx, "History served from cache", log.FieldUserID, userID, log.FieldSeries, series.Name)
		return cached.clone(), nil
	}

	// The shared computation outlives any single caller; each caller
	// still stops waiting when its own context ends.
	gen := s.generation(userID)
	ch := s.flight.DoChan(fmt.Sprintf("%s|g%d", key, gen), func() (any, error) {
		res, err := s.compute(context.WithoutCancel(ctx), userID, series, period, window)
		if err != nil {
			return Result{}, err
		}
		s.cacheIfCurrent(key, userID, gen, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case out := <-ch:
		if out.Err != nil {
			s.logger.ErrorContext(ctx, "History computation failed",
				log.FieldUserID, userID, log.FieldSeries, series.Name, log.FieldPeriod, period, log.FieldError, out.Err)
			return Result{}, out.Err
		}
		return out.Val.(Result).clone(), nil
	}
}

// cacheIfCurrent stores res unless userID was invalidated after gen was
// read. The check and the write happen under one lock so an Invalidate
// cannot slip between them.
func (s *Service) cacheIfCurrent(key string, userID int64, gen uint64, res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[userID] == gen {
		s.cache.Set(key, res)
	}
}

// Snapshot computes every series for one user and period.
func (s *Service) Snapshot(ctx context.Context, userID int64, token string) ([]Result, error) {
	all := AllSeries()
	out := make([]Result, len(all))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, series := range all {
		g.Go(func() error {
			res, err := s.Series(gctx, userID, series.Name, token)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Invalidate drops every cached series of userID. Computations already in
// flight for the user will not populate the cache.
func (s *Service) Invalidate(userID int64) {
	s.mu.Lock()
	s.gens[userID]++
	s.mu.Unlock()

	if n := s.cache.DeletePrefix(fmt.Sprintf("%d|", userID)); n > 0 {
		s.logger.Debug("History cache invalidated", log.FieldUserID, userID, "entries", n)
	}
}

func (s *Service) generation(userID int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[userID]
}

func (s *Service) compute(ctx context.Context, userID int64, series Series, period Period, window Window) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res := Result{Series: series, Period: period, Window: window}

	if series.Bucketing == DenseFill {
		records, err := s.records.QueryRecords(ctx, userID, series.Kind, window.Range())
		if err != nil {
			return Result{}, &StoreUnavailableError{Op: "query " + string(series.Kind), Err: err}
		}
		totals, err := Aggregate(core.RecordsAsValuers(records), window.Start, window.End)
		if err != nil {
			return Result{}, err
		}
		res.Totals = totals
		return res, nil
	}

	var (
		records []core.LedgerRecord
		goals   []core.Goal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.records.QueryRecords(gctx, userID, series.Kind, window.Range())
		if err != nil {
			return &StoreUnavailableError{Op: "query " + string(series.Kind), Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		goals, err = s.goals.QueryGoals(gctx, userID, series.Goal, window.Range())
		if err != nil {
			return &StoreUnavailableError{Op: "query " + string(series.Goal), Err: err}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res.Goals = AggregateGoals(core.RecordsAsValuers(records), core.GoalsAsValuers(goals))
	return res, nil
}

func cacheKey(userID int64, series string, p Period, end core.Date) string {
	return fmt.Sprintf("%d|%s|%s|%s", userID, series, p, end)
}
