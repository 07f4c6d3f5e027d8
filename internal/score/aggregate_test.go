package score_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Clark-Hu/screen-catalog/internal/domain"
	"github.com/Clark-Hu/screen-catalog/internal/score"
)

const tolerance = 1e-9

func TestWithAdded(t *testing.T) {
	tests := []struct {
		name  string
		start domain.Aggregate
		score int
		want  domain.Aggregate
	}{
		{"empty", domain.Aggregate{}, 8, domain.Aggregate{Count: 1, Average: 8}},
		{"second", domain.Aggregate{Count: 1, Average: 8}, 6, domain.Aggregate{Count: 2, Average: 7}},
		{"fractional", domain.Aggregate{Count: 2, Average: 7}, 10, domain.Aggregate{Count: 3, Average: 8}},
		{"low", domain.Aggregate{Count: 3, Average: 2}, 1, domain.Aggregate{Count: 4, Average: 1.75}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := score.WithAdded(tt.start, tt.score)
			assert.Equal(t, tt.want.Count, got.Count)
			assert.InDelta(t, tt.want.Average, got.Average, tolerance)
		})
	}
}

func TestWithReplaced(t *testing.T) {
	tests := []struct {
		name          string
		start         domain.Aggregate
		oldVal, newVal int
		want          domain.Aggregate
	}{
		{"raise", domain.Aggregate{Count: 2, Average: 7}, 8, 10, domain.Aggregate{Count: 2, Average: 8}},
		{"lower", domain.Aggregate{Count: 2, Average: 8}, 10, 2, domain.Aggregate{Count: 2, Average: 4}},
		{"unchanged", domain.Aggregate{Count: 3, Average: 5}, 5, 5, domain.Aggregate{Count: 3, Average: 5}},
		{"single", domain.Aggregate{Count: 1, Average: 3}, 3, 9, domain.Aggregate{Count: 1, Average: 9}},
		{"out of step", domain.Aggregate{}, 4, 7, domain.Aggregate{Count: 1, Average: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := score.WithReplaced(tt.start, tt.oldVal, tt.newVal)
			assert.Equal(t, tt.want.Count, got.Count)
			assert.InDelta(t, tt.want.Average, got.Average, tolerance)
		})
	}
}

func TestWithRemoved(t *testing.T) {
	tests := []struct {
		name  string
		start domain.Aggregate
		score int
		want  domain.Aggregate
	}{
		{"two to one", domain.Aggregate{Count: 2, Average: 8}, 6, domain.Aggregate{Count: 1, Average: 10}},
		{"last", domain.Aggregate{Count: 1, Average: 10}, 10, domain.Aggregate{}},
		{"already empty", domain.Aggregate{}, 5, domain.Aggregate{}},
		{"negative count", domain.Aggregate{Count: -1, Average: 3}, 5, domain.Aggregate{}},
		{"three to two", domain.Aggregate{Count: 3, Average: 6}, 9, domain.Aggregate{Count: 2, Average: 4.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := score.WithRemoved(tt.start, tt.score)
			assert.Equal(t, tt.want.Count, got.Count)
			assert.InDelta(t, tt.want.Average, got.Average, tolerance)
		})
	}
}
