package repository

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/screen-catalog/internal/apperror"
	"github.com/Clark-Hu/screen-catalog/internal/domain"
	"github.com/Clark-Hu/screen-catalog/internal/score"
)

// scoreTable describes where one kind of score record and its target live.
type scoreTable struct {
	records   string
	targetCol string
	targets   string
	countCol  string
	columns   string
}

var scoreTables = map[domain.Kind]scoreTable{
	domain.KindRating: {
		records:   "ratings",
		targetCol: "episode_id",
		targets:   "episodes",
		countCol:  "rating_count",
		columns:   "id, user_id, episode_id, score, NULL::text, NULL::text, false, created_at, updated_at",
	},
	domain.KindReview: {
		records:   "reviews",
		targetCol: "movie_id",
		targets:   "movies",
		countCol:  "review_count",
		columns:   "id, user_id, movie_id, score, content, comment, is_spoiler, created_at, updated_at",
	},
}

func tableFor(kind domain.Kind) (scoreTable, error) {
	t, ok := scoreTables[kind]
	if !ok {
		return scoreTable{}, fmt.Errorf("unknown score kind %q", kind)
	}
	return t, nil
}

// ScoresRepository is the PostgreSQL implementation of score.Store.
type ScoresRepository struct {
	pool *pgxpool.Pool
}

var _ score.Store = (*ScoresRepository)(nil)

// InTx runs fn in a READ COMMITTED transaction. Target rows are locked with
// SELECT ... FOR UPDATE, which is what serializes writers on one target.
func (r *ScoresRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx score.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify(err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &scoreTx{tx: tx}); err != nil {
		return err
	}
	return classify(tx.Commit(ctx))
}

// ListReviews returns the reviews of a movie, newest first.
func (r *ScoresRepository) ListReviews(ctx context.Context, movieID string, limit int) ([]domain.ScoreRecord, error) {
	if uuid.Validate(movieID) != nil {
		return []domain.ScoreRecord{}, nil
	}
	if limit <= 0 {
		limit = defaultListLimit
	} else if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
        SELECT r.id, r.user_id, r.movie_id, r.score, r.content, r.comment, r.is_spoiler,
               r.created_at, r.updated_at, u.username
        FROM reviews r JOIN users u ON u.id = r.user_id
        WHERE r.movie_id = $1
        ORDER BY r.created_at DESC, r.id DESC
        LIMIT %d`, limit), movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.ScoreRecord, 0)
	for rows.Next() {
		var username string
		rec, err := scanRecord(rows, domain.KindReview, &username)
		if err != nil {
			return nil, err
		}
		rec.Username = username
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetRecord reads the subject's record on a target outside of any
// maintainer transaction.
func (r *ScoresRepository) GetRecord(ctx context.Context, kind domain.Kind, subjectID, targetID string) (domain.ScoreRecord, error) {
	tx := &scoreTx{tx: r.pool}
	rec, err := tx.FindRecord(ctx, kind, subjectID, targetID)
	if err != nil {
		if errors.Is(err, score.ErrNoRows) {
			return domain.ScoreRecord{}, apperror.NotFound(apperror.ResourceScoreRecord, subjectID+"/"+targetID)
		}
		return domain.ScoreRecord{}, err
	}
	return rec, nil
}

// querier is satisfied by both pgx.Tx and the pool.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scoreTx struct {
	tx querier
}

func (t *scoreTx) SubjectExists(ctx context.Context, subjectID string) (bool, error) {
	if uuid.Validate(subjectID) != nil {
		return false, nil
	}
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, subjectID).Scan(&exists)
	if err != nil {
		return false, classify(err)
	}
	return exists, nil
}

func (t *scoreTx) LockTarget(ctx context.Context, kind domain.Kind, targetID string) (domain.Aggregate, error) {
	tbl, err := tableFor(kind)
	if err != nil {
		return domain.Aggregate{}, err
	}
	if uuid.Validate(targetID) != nil {
		return domain.Aggregate{}, score.ErrNoRows
	}
	var agg domain.Aggregate
	query := fmt.Sprintf(`SELECT %s, average_score FROM %s WHERE id = $1 FOR UPDATE`, tbl.countCol, tbl.targets)
	if err := t.tx.QueryRow(ctx, query, targetID).Scan(&agg.Count, &agg.Average); err != nil {
		return domain.Aggregate{}, classify(err)
	}
	return agg, nil
}

func (t *scoreTx) FindRecord(ctx context.Context, kind domain.Kind, subjectID, targetID string) (domain.ScoreRecord, error) {
	tbl, err := tableFor(kind)
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	if uuid.Validate(subjectID) != nil || uuid.Validate(targetID) != nil {
		return domain.ScoreRecord{}, score.ErrNoRows
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 AND %s = $2`, tbl.columns, tbl.records, tbl.targetCol)
	rec, err := scanRecord(t.tx.QueryRow(ctx, query, subjectID, targetID), kind)
	if err != nil {
		return domain.ScoreRecord{}, classify(err)
	}
	return rec, nil
}

func (t *scoreTx) GetRecord(ctx context.Context, kind domain.Kind, recordID string) (domain.ScoreRecord, error) {
	tbl, err := tableFor(kind)
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	if uuid.Validate(recordID) != nil {
		return domain.ScoreRecord{}, score.ErrNoRows
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, tbl.columns, tbl.records)
	rec, err := scanRecord(t.tx.QueryRow(ctx, query, recordID), kind)
	if err != nil {
		return domain.ScoreRecord{}, classify(err)
	}
	return rec, nil
}

func (t *scoreTx) InsertRecord(ctx context.Context, rec domain.ScoreRecord) (domain.ScoreRecord, error) {
	tbl, err := tableFor(rec.Kind)
	if err != nil {
		return domain.ScoreRecord{}, err
	}

	var row pgx.Row
	if rec.Kind == domain.KindReview {
		content, comment, spoiler := reviewArgs(rec.Review)
		row = t.tx.QueryRow(ctx, fmt.Sprintf(`
            INSERT INTO reviews (user_id, movie_id, score, content, comment, is_spoiler)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING %s`, tbl.columns),
			rec.SubjectID, rec.TargetID, rec.Score, content, comment, spoiler)
	} else {
		row = t.tx.QueryRow(ctx, fmt.Sprintf(`
            INSERT INTO ratings (user_id, episode_id, score)
            VALUES ($1, $2, $3)
            RETURNING %s`, tbl.columns),
			rec.SubjectID, rec.TargetID, rec.Score)
	}

	stored, err := scanRecord(row, rec.Kind)
	if err != nil {
		return domain.ScoreRecord{}, classify(err)
	}
	return stored, nil
}

func (t *scoreTx) UpdateRecord(ctx context.Context, rec domain.ScoreRecord) (domain.ScoreRecord, error) {
	tbl, err := tableFor(rec.Kind)
	if err != nil {
		return domain.ScoreRecord{}, err
	}

	var row pgx.Row
	if rec.Kind == domain.KindReview {
		content, comment, spoiler := reviewArgs(rec.Review)
		row = t.tx.QueryRow(ctx, fmt.Sprintf(`
            UPDATE reviews
            SET score = $2, content = $3, comment = $4, is_spoiler = $5, updated_at = now()
            WHERE id = $1
            RETURNING %s`, tbl.columns),
			rec.ID, rec.Score, content, comment, spoiler)
	} else {
		row = t.tx.QueryRow(ctx, fmt.Sprintf(`
            UPDATE ratings SET score = $2, updated_at = now()
            WHERE id = $1
            RETURNING %s`, tbl.columns),
			rec.ID, rec.Score)
	}

	stored, err := scanRecord(row, rec.Kind)
	if err != nil {
		return domain.ScoreRecord{}, classify(err)
	}
	return stored, nil
}

func (t *scoreTx) DeleteRecord(ctx context.Context, kind domain.Kind, recordID string) error {
	tbl, err := tableFor(kind)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, tbl.records), recordID)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return score.ErrNoRows
	}
	return nil
}

func (t *scoreTx) SaveAggregate(ctx context.Context, kind domain.Kind, targetID string, agg domain.Aggregate) error {
	tbl, err := tableFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, average_score = $3, updated_at = now() WHERE id = $1`,
		tbl.targets, tbl.countCol)
	tag, err := t.tx.Exec(ctx, query, targetID, agg.Count, agg.Average)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return score.ErrNoRows
	}
	return nil
}

func reviewArgs(review *domain.ReviewText) (string, *string, bool) {
	if review == nil {
		return "", nil, false
	}
	return review.Content, review.Comment, review.Spoiler
}

// scanRecord reads the record columns, then any extra destinations the
// query selected after them.
func scanRecord(row pgx.Row, kind domain.Kind, extra ...any) (domain.ScoreRecord, error) {
	var (
		rec     = domain.ScoreRecord{Kind: kind}
		content *string
		comment *string
		spoiler bool
	)
	dest := []any{&rec.ID, &rec.SubjectID, &rec.TargetID, &rec.Score, &content, &comment, &spoiler,
		&rec.CreatedAt, &rec.UpdatedAt}
	err := row.Scan(append(dest, extra...)...)
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	if kind == domain.KindReview && content != nil {
		rec.Review = &domain.ReviewText{Content: *content, Comment: comment, Spoiler: spoiler}
	}
	return rec, nil
}

// classify wraps driver errors with the score storage signals.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", score.ErrNoRows, err)
	}
	if pgErr := pgErrorOf(err); pgErr != nil {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %v", score.ErrConflict, err)
		case pgUniqueViolation:
			return fmt.Errorf("%w: %v", score.ErrDuplicate, err)
		case pgInvalidTextRepr:
			return fmt.Errorf("%w: %v", score.ErrNoRows, err)
		case pgAdminShutdown, pgCrashShutdown, pgCannotConnectNow:
			return fmt.Errorf("%w: %v", score.ErrUnavailable, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", score.ErrUnavailable, err)
	}
	return err
}
