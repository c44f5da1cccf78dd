package history

import (
	"maps"
	"slices"

	"dinamifin/internal/core"
)

// MonthBucket is one month of a dense ledger series.
type MonthBucket struct {
	Period string     `json:"period"`
	Total  core.Money `json:"total"`
}

// GoalBucket is one month of a sparse actual-vs-goal series.
type GoalBucket struct {
	Period string     `json:"period"`
	Real   core.Money `json:"real"`
	Goal   core.Money `json:"goal"`
}

// BucketingPolicy selects how months are emitted.
type BucketingPolicy string

const (
	// DenseFill emits every month of the window, zero when empty.
	DenseFill BucketingPolicy = "dense"
	// SparseUnion emits only months present in either input stream.
	SparseUnion BucketingPolicy = "sparse"
)

// Aggregate folds records into one bucket per calendar month from start's
// month to end's month inclusive. Records in other months are ignored.
func Aggregate(records []core.Valuer, start, end core.Date) ([]MonthBucket, error) {
	if start.After(end.Time) {
		return nil, &InvalidRangeError{Start: start, End: end}
	}

	months := monthsBetween(start, end)
	buckets := make([]MonthBucket, len(months))
	index := make(map[string]int, len(months))
	for i, m := range months {
		buckets[i] = MonthBucket{Period: m}
		index[m] = i
	}

	for _, r := range records {
		i, ok := index[r.RecordDate().MonthKey()]
		if !ok {
			continue
		}
		buckets[i].Total = buckets[i].Total.Add(r.NumericValue())
	}
	return buckets, nil
}

// AggregateGoals merges actuals and goals by month. A month appears when
// either stream has an entry for it; the missing side is zero.
func AggregateGoals(real, goals []core.Valuer) []GoalBucket {
	byMonth := make(map[string]GoalBucket, len(real)+len(goals))

	for _, r := range real {
		key := r.RecordDate().MonthKey()
		b := byMonth[key]
		b.Period = key
		b.Real = b.Real.Add(r.NumericValue())
		byMonth[key] = b
	}
	for _, g := range goals {
		key := g.RecordDate().MonthKey()
		b := byMonth[key]
		b.Period = key
		b.Goal = b.Goal.Add(g.NumericValue())
		byMonth[key] = b
	}

	out := make([]GoalBucket, 0, len(byMonth))
	for _, key := range slices.Sorted(maps.Keys(byMonth)) {
		out = append(out, byMonth[key])
	}
	return out
}

func monthsBetween(start, end core.Date) []string {
	var months []string
	last := end.FirstOfMonth()
	for cur := start.FirstOfMonth(); !cur.After(last.Time); cur = core.DateOf(cur.AddDate(0, 1, 0)) {
		months = append(months, cur.MonthKey())
	}
	return months
}
