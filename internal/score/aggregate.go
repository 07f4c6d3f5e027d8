package score

import "github.com/Clark-Hu/screen-catalog/internal/domain"

// WithAdded folds a new score into agg.
func WithAdded(agg domain.Aggregate, s int) domain.Aggregate {
	n := float64(agg.Count)
	return domain.Aggregate{
		Count:   agg.Count + 1,
		Average: (agg.Average*n + float64(s)) / (n + 1),
	}
}

// WithReplaced swaps oldScore for newScore without changing the count.
func WithReplaced(agg domain.Aggregate, oldScore, newScore int) domain.Aggregate {
	if agg.Count <= 0 {
		// A record exists, so the stored aggregate is out of step. Restart
		// from the one score we know about.
		return domain.Aggregate{Count: 1, Average: float64(newScore)}
	}
	n := float64(agg.Count)
	return domain.Aggregate{
		Count:   agg.Count,
		Average: (agg.Average*n - float64(oldScore) + float64(newScore)) / n,
	}
}

// WithRemoved takes s out of agg. Removing the last (or only) score resets
// the aggregate to zero.
func WithRemoved(agg domain.Aggregate, s int) domain.Aggregate {
	if agg.Count <= 1 {
		return domain.Aggregate{}
	}
	n := float64(agg.Count)
	return domain.Aggregate{
		Count:   agg.Count - 1,
		Average: (agg.Average*n - float64(s)) / (n - 1),
	}
}
