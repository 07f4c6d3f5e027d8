// Package score keeps the (count, average) aggregate stored on episodes and
// movies in step with the individual ratings and reviews that feed it.
//
// Every mutation runs inside one storage transaction that locks the target
// row first, so concurrent writers on the same target are serialized and no
// update is lost. Writers on different targets never wait on each other.
package score

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Clark-Hu/screen-catalog/internal/apperror"
	"github.com/Clark-Hu/screen-catalog/internal/domain"
	"github.com/Clark-Hu/screen-catalog/internal/metrics"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 25 * time.Millisecond

	// MaxReviewContent caps review bodies, in runes.
	MaxReviewContent = 10000
)

// Op names a maintainer operation.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
)

// Change describes a committed mutation and the aggregate it produced.
type Change struct {
	Kind          domain.Kind
	Op            Op
	Record        domain.ScoreRecord
	PreviousScore int
	Aggregate     domain.Aggregate
	At            time.Time
}

// Notifier is told about every committed change. Implementations must not
// block the caller for long and must swallow their own failures.
type Notifier interface {
	Notify(ctx context.Context, change Change)
}

// Options tunes a Maintainer. Zero values fall back to defaults; a negative
// RetryBackoff retries immediately.
type Options struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	Notifier     Notifier
	Logger       *zap.Logger
}

// Submission is the input of Add and Update.
type Submission struct {
	Kind      domain.Kind
	SubjectID string
	TargetID  string
	Score     int
	Review    *domain.ReviewText
}

// Maintainer applies add, update and remove operations to score records and
// their target aggregates.
type Maintainer struct {
	store    Store
	attempts int
	backoff  time.Duration
	notifier Notifier
	logger   *zap.Logger
}

// NewMaintainer builds a Maintainer over store.
func NewMaintainer(store Store, opts Options) *Maintainer {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = 0
	} else if opts.RetryBackoff == 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Maintainer{
		store:    store,
		attempts: opts.MaxAttempts,
		backoff:  opts.RetryBackoff,
		notifier: opts.Notifier,
		logger:   logger,
	}
}

// Add creates the subject's score on the target and folds it into the
// target aggregate.
func (m *Maintainer) Add(ctx context.Context, sub Submission) (domain.ScoreRecord, error) {
	if err := validateSubmission(sub); err != nil {
		m.observeRejected(sub.Kind, OpAdd)
		return domain.ScoreRecord{}, err
	}

	change, err := m.run(ctx, sub.Kind, OpAdd, func(ctx context.Context, tx Tx) (Change, error) {
		ok, err := tx.SubjectExists(ctx, sub.SubjectID)
		if err != nil {
			return Change{}, fmt.Errorf("check subject: %w", err)
		}
		if !ok {
			return Change{}, apperror.NotFound(apperror.ResourceSubject, sub.SubjectID)
		}

		agg, err := lockTarget(ctx, tx, sub.Kind, sub.TargetID)
		if err != nil {
			return Change{}, err
		}

		_, err = tx.FindRecord(ctx, sub.Kind, sub.SubjectID, sub.TargetID)
		switch {
		case err == nil:
			return Change{}, &apperror.DuplicateScoreError{SubjectID: sub.SubjectID, TargetID: sub.TargetID}
		case !errors.Is(err, ErrNoRows):
			return Change{}, fmt.Errorf("find score record: %w", err)
		}

		rec, err := tx.InsertRecord(ctx, domain.ScoreRecord{
			Kind:      sub.Kind,
			SubjectID: sub.SubjectID,
			TargetID:  sub.TargetID,
			Score:     sub.Score,
			Review:    sub.Review,
		})
		if err != nil {
			if errors.Is(err, ErrDuplicate) {
				return Change{}, &apperror.DuplicateScoreError{SubjectID: sub.SubjectID, TargetID: sub.TargetID}
			}
			return Change{}, fmt.Errorf("insert score record: %w", err)
		}

		next := WithAdded(agg, sub.Score)
		if err := tx.SaveAggregate(ctx, sub.Kind, sub.TargetID, next); err != nil {
			return Change{}, fmt.Errorf("save aggregate: %w", err)
		}
		return Change{Record: rec, Aggregate: next}, nil
	})
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	return change.Record, nil
}

// Update replaces the score (and review text, for reviews) of an existing
// record. The record and aggregate are written even when the score is
// unchanged.
func (m *Maintainer) Update(ctx context.Context, sub Submission) (domain.ScoreRecord, error) {
	if err := validateSubmission(sub); err != nil {
		m.observeRejected(sub.Kind, OpUpdate)
		return domain.ScoreRecord{}, err
	}

	change, err := m.run(ctx, sub.Kind, OpUpdate, func(ctx context.Context, tx Tx) (Change, error) {
		agg, err := lockTarget(ctx, tx, sub.Kind, sub.TargetID)
		if err != nil {
			return Change{}, err
		}

		existing, err := tx.FindRecord(ctx, sub.Kind, sub.SubjectID, sub.TargetID)
		if err != nil {
			if errors.Is(err, ErrNoRows) {
				return Change{}, apperror.NotFound(apperror.ResourceScoreRecord, sub.SubjectID+"/"+sub.TargetID)
			}
			return Change{}, fmt.Errorf("find score record: %w", err)
		}

		previous := existing.Score
		existing.Score = sub.Score
		existing.Review = sub.Review
		rec, err := tx.UpdateRecord(ctx, existing)
		if err != nil {
			return Change{}, fmt.Errorf("update score record: %w", err)
		}

		next := WithReplaced(agg, previous, sub.Score)
		if err := tx.SaveAggregate(ctx, sub.Kind, sub.TargetID, next); err != nil {
			return Change{}, fmt.Errorf("save aggregate: %w", err)
		}
		return Change{Record: rec, PreviousScore: previous, Aggregate: next}, nil
	})
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	return change.Record, nil
}

// Remove deletes the subject's record on the target and returns it.
func (m *Maintainer) Remove(ctx context.Context, kind domain.Kind, subjectID, targetID string) (domain.ScoreRecord, error) {
	if err := validateAddress(kind, subjectID, "targetId", targetID); err != nil {
		m.observeRejected(kind, OpRemove)
		return domain.ScoreRecord{}, err
	}

	change, err := m.run(ctx, kind, OpRemove, func(ctx context.Context, tx Tx) (Change, error) {
		agg, err := lockTarget(ctx, tx, kind, targetID)
		if err != nil {
			return Change{}, err
		}
		rec, err := tx.FindRecord(ctx, kind, subjectID, targetID)
		if err != nil {
			if errors.Is(err, ErrNoRows) {
				return Change{}, apperror.NotFound(apperror.ResourceScoreRecord, subjectID+"/"+targetID)
			}
			return Change{}, fmt.Errorf("find score record: %w", err)
		}
		return removeLocked(ctx, tx, rec, agg)
	})
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	return change.Record, nil
}

// RemoveByID deletes a record addressed by its id. Records owned by another
// subject are reported as not found.
func (m *Maintainer) RemoveByID(ctx context.Context, kind domain.Kind, subjectID, recordID string) (domain.ScoreRecord, error) {
	if err := validateAddress(kind, subjectID, "recordId", recordID); err != nil {
		m.observeRejected(kind, OpRemove)
		return domain.ScoreRecord{}, err
	}

	change, err := m.run(ctx, kind, OpRemove, func(ctx context.Context, tx Tx) (Change, error) {
		found, err := getOwnedRecord(ctx, tx, kind, subjectID, recordID)
		if err != nil {
			return Change{}, err
		}
		agg, err := lockTarget(ctx, tx, kind, found.TargetID)
		if err != nil {
			return Change{}, err
		}
		// Re-read under the target lock; the first read raced with writers.
		rec, err := getOwnedRecord(ctx, tx, kind, subjectID, recordID)
		if err != nil {
			return Change{}, err
		}
		return removeLocked(ctx, tx, rec, agg)
	})
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	return change.Record, nil
}

func removeLocked(ctx context.Context, tx Tx, rec domain.ScoreRecord, agg domain.Aggregate) (Change, error) {
	if err := tx.DeleteRecord(ctx, rec.Kind, rec.ID); err != nil {
		return Change{}, fmt.Errorf("delete score record: %w", err)
	}
	next := WithRemoved(agg, rec.Score)
	if err := tx.SaveAggregate(ctx, rec.Kind, rec.TargetID, next); err != nil {
		return Change{}, fmt.Errorf("save aggregate: %w", err)
	}
	return Change{Record: rec, PreviousScore: rec.Score, Aggregate: next}, nil
}

func lockTarget(ctx context.Context, tx Tx, kind domain.Kind, targetID string) (domain.Aggregate, error) {
	agg, err := tx.LockTarget(ctx, kind, targetID)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return domain.Aggregate{}, apperror.NotFound(apperror.ResourceTarget, targetID)
		}
		return domain.Aggregate{}, fmt.Errorf("lock target: %w", err)
	}
	return agg, nil
}

func getOwnedRecord(ctx context.Context, tx Tx, kind domain.Kind, subjectID, recordID string) (domain.ScoreRecord, error) {
	rec, err := tx.GetRecord(ctx, kind, recordID)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return domain.ScoreRecord{}, apperror.NotFound(apperror.ResourceScoreRecord, recordID)
		}
		return domain.ScoreRecord{}, fmt.Errorf("get score record: %w", err)
	}
	if rec.SubjectID != subjectID {
		return domain.ScoreRecord{}, apperror.NotFound(apperror.ResourceScoreRecord, recordID)
	}
	return rec, nil
}

// run executes fn in a transaction, retrying on ErrConflict with a linear
// backoff. The notifier is called only after a successful commit.
func (m *Maintainer) run(ctx context.Context, kind domain.Kind, op Op, fn func(ctx context.Context, tx Tx) (Change, error)) (Change, error) {
	start := time.Now()

	var (
		change   Change
		err      error
		attempts int
	)
	for {
		attempts++
		err = m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			c, err := fn(ctx, tx)
			if err != nil {
				return err
			}
			change = c
			return nil
		})
		if !errors.Is(err, ErrConflict) || attempts >= m.attempts {
			break
		}

		metrics.IncScoreRetry(string(kind), string(op))
		m.logger.Debug("score: retrying conflicted transaction",
			zap.String("kind", string(kind)),
			zap.String("op", string(op)),
			zap.Int("attempt", attempts),
			zap.Error(err))

		if werr := sleep(ctx, time.Duration(attempts)*m.backoff); werr != nil {
			err = werr
			break
		}
	}

	err = m.translate(kind, op, attempts, err)
	metrics.ObserveScoreOperation(string(kind), string(op), outcome(err), time.Since(start))
	if err != nil {
		return Change{}, err
	}

	change.Kind = kind
	change.Op = op
	change.At = time.Now().UTC()
	if m.notifier != nil {
		m.notifier.Notify(ctx, change)
	}
	return change, nil
}

func (m *Maintainer) translate(kind domain.Kind, op Op, attempts int, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConflict):
		m.logger.Warn("score: giving up on conflicted transaction",
			zap.String("kind", string(kind)),
			zap.String("op", string(op)),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return &apperror.TransientFailureError{Op: string(op), Attempts: attempts, Err: err}
	case errors.Is(err, ErrUnavailable):
		m.logger.Error("score: storage unavailable",
			zap.String("kind", string(kind)),
			zap.String("op", string(op)),
			zap.Error(err))
		return &apperror.StorageUnavailableError{Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &apperror.TransientFailureError{Op: string(op), Attempts: attempts, Err: err}
	default:
		return err
	}
}

func (m *Maintainer) observeRejected(kind domain.Kind, op Op) {
	metrics.ObserveScoreOperation(string(kind), string(op), "invalid", 0)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperror.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return "duplicate"
	case errors.Is(err, apperror.ErrTransient):
		return "transient"
	case errors.Is(err, apperror.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func validateSubmission(sub Submission) error {
	if err := validateAddress(sub.Kind, sub.SubjectID, "targetId", sub.TargetID); err != nil {
		return err
	}
	if sub.Score < domain.MinScore || sub.Score > domain.MaxScore {
		return apperror.Invalid("score", fmt.Sprintf("must be an integer between %d and %d", domain.MinScore, domain.MaxScore))
	}

	switch sub.Kind {
	case domain.KindRating:
		if sub.Review != nil {
			return apperror.Invalid("review", "ratings do not carry review text")
		}
	case domain.KindReview:
		if sub.Review == nil || strings.TrimSpace(sub.Review.Content) == "" {
			return apperror.Invalid("content", "is required")
		}
		if utf8.RuneCountInString(sub.Review.Content) > MaxReviewContent {
			return apperror.Invalid("content", fmt.Sprintf("must be at most %d characters", MaxReviewContent))
		}
	}
	return nil
}

func validateAddress(kind domain.Kind, subjectID, keyField, key string) error {
	if !kind.Valid() {
		return apperror.Invalid("kind", fmt.Sprintf("unknown score kind %q", kind))
	}
	if strings.TrimSpace(subjectID) == "" {
		return apperror.Invalid("subjectId", "is required")
	}
	if strings.TrimSpace(key) == "" {
		return apperror.Invalid(keyField, "is required")
	}
	return nil
}
