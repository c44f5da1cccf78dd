package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	KindIncome     Kind = "income"
	KindExpense    Kind = "expense"
	KindSaving     Kind = "saving"
	KindInvestment Kind = "investment"
)

const (
	GoalExpense    GoalKind = "expense_goal"
	GoalSaving     GoalKind = "saving_goal"
	GoalInvestment GoalKind = "investment_goal"
)

type (
	// Kind names a ledger stream.
	Kind string

	// GoalKind names a goal stream; each one pairs with a ledger Kind.
	GoalKind string

	// LedgerRecord is one dated entry of a user's ledger. At most one
	// record exists per (user, kind, date).
	LedgerRecord struct {
		UserID   int64
		Kind     Kind
		Date     Date
		Amount   Money
		Category string // empty for income
	}

	// Goal is a per-month target for a goal kind. Month is always the
	// first day of the month.
	Goal struct {
		UserID int64
		Kind   GoalKind
		Month  Date
		Value  Money
	}

	// Valuer is what the history aggregators fold: a date and a number.
	Valuer interface {
		RecordDate() Date
		NumericValue() Money
	}
)

var (
	ErrInvalidUser     = errors.New("invalid user id")
	ErrInvalidKind     = errors.New("invalid kind")
	ErrInvalidGoalKind = errors.New("invalid goal kind")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidValue    = errors.New("invalid goal value")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidInput    = errors.New("invalid input")
)

// Kinds lists every ledger kind in display order.
var Kinds = []Kind{KindIncome, KindExpense, KindSaving, KindInvestment}

// GoalKinds lists every goal kind in display order.
var GoalKinds = []GoalKind{GoalExpense, GoalSaving, GoalInvestment}

var goalLedger = map[GoalKind]Kind{
	GoalExpense:    KindExpense,
	GoalSaving:     KindSaving,
	GoalInvestment: KindInvestment,
}

// ParseKind maps a path segment to a ledger kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindSaving, KindInvestment:
		return true
	}
	return false
}

// Goal returns the goal kind paired with k. Income has none.
func (k Kind) Goal() (GoalKind, bool) {
	for g, l := range goalLedger {
		if l == k {
			return g, true
		}
	}
	return "", false
}

// ParseGoalKind accepts both "expense_goal" and the bare ledger name "expense".
func ParseGoalKind(s string) (GoalKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	g := GoalKind(s)
	if _, ok := goalLedger[g]; ok {
		return g, nil
	}
	if g, ok := Kind(s).Goal(); ok {
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGoalKind, s)
}

func (g GoalKind) Valid() bool {
	_, ok := goalLedger[g]
	return ok
}

// Ledger returns the ledger kind whose actuals are compared against g.
func (g GoalKind) Ledger() Kind {
	return goalLedger[g]
}

func (r LedgerRecord) RecordDate() Date { return r.Date }
func (r LedgerRecord) NumericValue() Money { return r.Amount }

func (g Goal) RecordDate() Date { return g.Month }
func (g Goal) NumericValue() Money { return g.Value }

func (r LedgerRecord) Validate() error {
	if r.UserID <= 0 {
		return ErrInvalidUser
	}
	if !r.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return ValidateCategory(r.Kind, r.Category)
}

func (g Goal) Validate() error {
	if g.UserID <= 0 {
		return ErrInvalidUser
	}
	if !g.Kind.Valid() {
		return ErrInvalidGoalKind
	}
	if err := g.Month.Validate(); err != nil {
		return err
	}
	if g.Month.Day() != 1 {
		return fmt.Errorf("%w: goal month must start on day 1", ErrInvalidDate)
	}
	if g.Value.IsNegative() {
		return ErrInvalidValue
	}
	return nil
}

// RecordsAsValuers adapts a record slice for the aggregators.
func RecordsAsValuers(records []LedgerRecord) []Valuer {
	out := make([]Valuer, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}

// GoalsAsValuers adapts a goal slice for the aggregators.
func GoalsAsValuers(goals []Goal) []Valuer {
	out := make([]Valuer, len(goals))
	for i, g := range goals {
		out[i] = g
	}
	return out
}

// DateRange is an inclusive day range.
type DateRange struct {
	From Date
	To   Date
}

// Contains reports whether d falls inside the range, bounds included.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.From.Time) && !d.After(r.To.Time)
}

// Now is the wall clock used where no clock is injected.
var Now = func() time.Time { return time.Now().UTC() }

var validationErrors = []error{
	ErrInvalidUser, ErrInvalidKind, ErrInvalidGoalKind, ErrInvalidAmount,
	ErrInvalidValue, ErrInvalidCategory, ErrInvalidDate, ErrInvalidMonth,
	ErrInvalidInput,
}

// IsValidation reports whether err stems from rejected input rather than a
// failing dependency.
func IsValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
