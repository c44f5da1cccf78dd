package history

import (
	"fmt"

	"dinamifin/internal/core"
)

// Series describes one chartable history stream and how it is bucketed.
type Series struct {
	Name      string
	Kind      core.Kind     // ledger stream providing actuals
	Goal      core.GoalKind // empty for plain ledger series
	Bucketing BucketingPolicy
}

// IsGoal reports whether the series compares actuals against goals.
func (s Series) IsGoal() bool { return s.Goal != "" }

var seriesOrder, seriesByName = buildSeries()

func buildSeries() ([]Series, map[string]Series) {
	var order []Series
	for _, k := range core.Kinds {
		order = append(order, Series{Name: string(k), Kind: k, Bucketing: DenseFill})
	}
	for _, g := range core.GoalKinds {
		order = append(order, Series{Name: string(g), Kind: g.Ledger(), Goal: g, Bucketing: SparseUnion})
	}
	byName := make(map[string]Series, len(order))
	for _, s := range order {
		byName[s.Name] = s
	}
	return order, byName
}

// SeriesFor looks a series up by its public name ("expense", "saving_goal", ...).
func SeriesFor(name string) (Series, error) {
	s, ok := seriesByName[name]
	if !ok {
		return Series{}, fmt.Errorf("%w: %q", ErrUnknownSeries, name)
	}
	return s, nil
}

// AllSeries returns every series, ledger kinds first.
func AllSeries() []Series {
	return append([]Series(nil), seriesOrder...)
}
