package score_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Clark-Hu/screen-catalog/internal/domain"
	"github.com/Clark-Hu/screen-catalog/internal/score"
)

// memStore is an in-memory score.Store. Transactions run one at a time
// against a copy of the state that is swapped in on commit.
type memStore struct {
	mu sync.Mutex

	subjects map[string]bool
	targets  map[domain.Kind]map[string]domain.Aggregate
	records  map[string]domain.ScoreRecord
	nextID   int

	// conflicts makes the next N commits fail with score.ErrConflict.
	conflicts   int
	unavailable bool

	txCount     int
	updateCount int
}

func newMemStore() *memStore {
	return &memStore{
		subjects: map[string]bool{},
		targets: map[domain.Kind]map[string]domain.Aggregate{
			domain.KindRating: {},
			domain.KindReview: {},
		},
		records: map[string]domain.ScoreRecord{},
	}
}

func (s *memStore) addSubject(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[id] = true
}

func (s *memStore) addTarget(kind domain.Kind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[kind][id] = domain.Aggregate{}
}

func (s *memStore) aggregate(kind domain.Kind, id string) domain.Aggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targets[kind][id]
}

func (s *memStore) liveScores(kind domain.Kind, targetID string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, rec := range s.records {
		if rec.Kind == kind && rec.TargetID == targetID {
			out = append(out, rec.Score)
		}
	}
	return out
}

func (s *memStore) transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx score.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txCount++
	if s.unavailable {
		return fmt.Errorf("dial tcp: %w", score.ErrUnavailable)
	}

	tx := &memTx{
		store:   s,
		targets: make(map[domain.Kind]map[string]domain.Aggregate, len(s.targets)),
		records: make(map[string]domain.ScoreRecord, len(s.records)),
		nextID:  s.nextID,
	}
	for kind, byID := range s.targets {
		cp := make(map[string]domain.Aggregate, len(byID))
		for id, agg := range byID {
			cp[id] = agg
		}
		tx.targets[kind] = cp
	}
	for id, rec := range s.records {
		tx.records[id] = rec
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if s.conflicts > 0 {
		s.conflicts--
		return fmt.Errorf("commit: %w", score.ErrConflict)
	}

	s.targets = tx.targets
	s.records = tx.records
	s.nextID = tx.nextID
	s.updateCount += tx.updates
	return nil
}

type memTx struct {
	store   *memStore
	targets map[domain.Kind]map[string]domain.Aggregate
	records map[string]domain.ScoreRecord
	nextID  int
	updates int
}

func (t *memTx) SubjectExists(_ context.Context, subjectID string) (bool, error) {
	return t.store.subjects[subjectID], nil
}

func (t *memTx) LockTarget(_ context.Context, kind domain.Kind, targetID string) (domain.Aggregate, error) {
	agg, ok := t.targets[kind][targetID]
	if !ok {
		return domain.Aggregate{}, score.ErrNoRows
	}
	return agg, nil
}

func (t *memTx) FindRecord(_ context.Context, kind domain.Kind, subjectID, targetID string) (domain.ScoreRecord, error) {
	for _, rec := range t.records {
		if rec.Kind == kind && rec.SubjectID == subjectID && rec.TargetID == targetID {
			return rec, nil
		}
	}
	return domain.ScoreRecord{}, score.ErrNoRows
}

func (t *memTx) GetRecord(_ context.Context, kind domain.Kind, recordID string) (domain.ScoreRecord, error) {
	rec, ok := t.records[recordID]
	if !ok || rec.Kind != kind {
		return domain.ScoreRecord{}, score.ErrNoRows
	}
	return rec, nil
}

func (t *memTx) InsertRecord(ctx context.Context, rec domain.ScoreRecord) (domain.ScoreRecord, error) {
	if _, err := t.FindRecord(ctx, rec.Kind, rec.SubjectID, rec.TargetID); err == nil {
		return domain.ScoreRecord{}, score.ErrDuplicate
	}
	t.nextID++
	now := time.Now().UTC()
	rec.ID = fmt.Sprintf("rec-%d", t.nextID)
	rec.CreatedAt = now
	rec.UpdatedAt = now
	t.records[rec.ID] = rec
	return rec, nil
}

func (t *memTx) UpdateRecord(_ context.Context, rec domain.ScoreRecord) (domain.ScoreRecord, error) {
	if _, ok := t.records[rec.ID]; !ok {
		return domain.ScoreRecord{}, score.ErrNoRows
	}
	rec.UpdatedAt = time.Now().UTC()
	t.records[rec.ID] = rec
	t.updates++
	return rec, nil
}

func (t *memTx) DeleteRecord(_ context.Context, _ domain.Kind, recordID string) error {
	if _, ok := t.records[recordID]; !ok {
		return score.ErrNoRows
	}
	delete(t.records, recordID)
	return nil
}

func (t *memTx) SaveAggregate(_ context.Context, kind domain.Kind, targetID string, agg domain.Aggregate) error {
	if _, ok := t.targets[kind][targetID]; !ok {
		return score.ErrNoRows
	}
	t.targets[kind][targetID] = agg
	return nil
}
