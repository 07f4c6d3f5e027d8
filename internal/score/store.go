package score

import (
	"context"
	"errors"

	"github.com/Clark-Hu/screen-catalog/internal/domain"
)

// Storage signals. Store implementations wrap their driver errors with one of
// these so the maintainer can decide what to retry.
var (
	// ErrNoRows means the looked-up row does not exist.
	ErrNoRows = errors.New("score: no rows")
	// ErrDuplicate means a unique index rejected an insert.
	ErrDuplicate = errors.New("score: duplicate record")
	// ErrConflict means the transaction lost a serialization race or a
	// deadlock and may succeed if run again.
	ErrConflict = errors.New("score: transaction conflict")
	// ErrUnavailable means the storage connection is gone.
	ErrUnavailable = errors.New("score: storage unavailable")
)

// Tx is the set of reads and writes the maintainer performs inside one
// storage transaction.
type Tx interface {
	SubjectExists(ctx context.Context, subjectID string) (bool, error)
	// LockTarget locks the target row until the transaction ends and returns
	// its current aggregate.
	LockTarget(ctx context.Context, kind domain.Kind, targetID string) (domain.Aggregate, error)
	FindRecord(ctx context.Context, kind domain.Kind, subjectID, targetID string) (domain.ScoreRecord, error)
	GetRecord(ctx context.Context, kind domain.Kind, recordID string) (domain.ScoreRecord, error)
	InsertRecord(ctx context.Context, rec domain.ScoreRecord) (domain.ScoreRecord, error)
	UpdateRecord(ctx context.Context, rec domain.ScoreRecord) (domain.ScoreRecord, error)
	DeleteRecord(ctx context.Context, kind domain.Kind, recordID string) error
	SaveAggregate(ctx context.Context, kind domain.Kind, targetID string, agg domain.Aggregate) error
}

// Store runs fn inside a transaction. The transaction commits only when fn
// returns nil; any error rolls everything back.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
