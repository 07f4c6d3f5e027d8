package domain

import "time"

// Kind selects which target type a score record belongs to.
type Kind string

const (
	// KindRating scores an episode.
	KindRating Kind = "rating"
	// KindReview scores a movie and carries review text.
	KindReview Kind = "review"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindRating || k == KindReview
}

// Score bounds, inclusive.
const (
	MinScore = 1
	MaxScore = 10
)

// Aggregate is the running (count, average) pair stored on a target.
// Average is 0 whenever Count is 0.
type Aggregate struct {
	Count   int64
	Average float64
}

// Sum returns the total of all scores folded into the aggregate.
func (a Aggregate) Sum() float64 {
	return a.Average * float64(a.Count)
}

// ReviewText is the prose attached to a review.
type ReviewText struct {
	Content string
	Comment *string
	Spoiler bool
}

// ScoreRecord is one subject's score on one target. There is at most one
// record per (kind, subject, target).
type ScoreRecord struct {
	ID        string
	Kind      Kind
	SubjectID string
	TargetID  string
	Score     int
	Review    *ReviewText
	// Username is only filled by listings that join the subject.
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
