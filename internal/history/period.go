package history

import (
	"slices"
	"strings"
	"time"

	"dinamifin/internal/core"
)

// Period is a lookback token such as "1y".
type Period string

const (
	Period1M Period = "1m"
	Period6M Period = "6m"
	Period1Y Period = "1y"
	Period3Y Period = "3y"
	Period5Y Period = "5y"

	DefaultPeriod = Period1Y
)

// Number of whole months before the current one included in each window.
var periodMonthsBack = map[Period]int{
	Period1M: 0,
	Period6M: 5,
	Period1Y: 12,
	Period3Y: 36,
	Period5Y: 60,
}

// Window is an inclusive [Start, End] day range.
type Window struct {
	Start core.Date
	End   core.Date
}

// Range converts the window for store queries.
func (w Window) Range() core.DateRange {
	return core.DateRange{From: w.Start, To: w.End}
}

// PeriodPolicy turns a period token and a reference day into a window.
type PeriodPolicy interface {
	Resolve(p Period, today time.Time) (Window, error)
}

// CalendarMonthPolicy anchors windows on calendar months: the window ends
// today and starts on the first day of the month N months back.
type CalendarMonthPolicy struct{}

func (CalendarMonthPolicy) Resolve(p Period, today time.Time) (Window, error) {
	n, ok := periodMonthsBack[p]
	if !ok {
		return Window{}, &InvalidPeriodError{Token: string(p)}
	}
	end := core.DateOf(today)
	// time.Date normalises month underflow into earlier years.
	start := core.NewDate(end.Year(), end.Month()-n, 1)
	return Window{Start: start, End: end}, nil
}

// DefaultPolicy is the policy used when none is configured.
var DefaultPolicy PeriodPolicy = CalendarMonthPolicy{}

// ParsePeriod validates a raw token. Matching is case-insensitive.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := periodMonthsBack[p]; !ok {
		return "", &InvalidPeriodError{Token: s}
	}
	return p, nil
}

// Periods returns the supported tokens from shortest to longest.
func Periods() []Period {
	out := make([]Period, 0, len(periodMonthsBack))
	for p := range periodMonthsBack {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Period) int {
		return periodMonthsBack[a] - periodMonthsBack[b]
	})
	return out
}

// Resolve parses token and resolves it with DefaultPolicy.
func Resolve(token string, today time.Time) (Window, error) {
	p, err := ParsePeriod(token)
	if err != nil {
		return Window{}, err
	}
	return DefaultPolicy.Resolve(p, today)
}
