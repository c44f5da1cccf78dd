package history

import (
	"errors"
	"fmt"
	"strings"

	"dinamifin/internal/core"
)

var (
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrInvalidRange     = errors.New("invalid range")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUnknownSeries    = errors.New("unknown series")
)

// InvalidPeriodError reports a period token outside the supported set.
type InvalidPeriodError struct {
	Token string
}

func (e *InvalidPeriodError) Error() string {
	names := make([]string, 0, len(periodMonthsBack))
	for _, p := range Periods() {
		names = append(names, string(p))
	}
	return fmt.Sprintf("invalid period %q: must be one of %s", e.Token, strings.Join(names, ", "))
}

func (e *InvalidPeriodError) Is(target error) bool { return target == ErrInvalidPeriod }

// InvalidRangeError reports a window whose start is after its end.
type InvalidRangeError struct {
	Start core.Date
	End   core.Date
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: start %s is after end %s", e.Start, e.End)
}

func (e *InvalidRangeError) Is(target error) bool { return target == ErrInvalidRange }

// StoreUnavailableError wraps a failed record or goal query.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

func (e *StoreUnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }
