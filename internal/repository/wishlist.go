package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/screen-catalog/internal/apperror"
	"github.com/Clark-Hu/screen-catalog/internal/domain"
)

// WishlistRepository stores the movies a user wants to watch.
type WishlistRepository struct {
	pool *pgxpool.Pool
}

// Add puts a movie on a user's wishlist. Adding the same movie twice is a
// conflict.
func (r *WishlistRepository) Add(ctx context.Context, userID, movieID string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO wishlist_entries (user_id, movie_id) VALUES ($1, $2)`, userID, movieID)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return apperror.Conflict("wishlist entry", movieID)
		case pgForeignKeyViolation:
			if fkTarget(err, "movie") == "user" {
				return apperror.NotFound(apperror.ResourceSubject, userID)
			}
			return apperror.NotFound("movie", movieID)
		case pgInvalidTextRepr:
			return apperror.NotFound("movie", movieID)
		}
		return err
	}
	return nil
}

// Remove takes a movie off a user's wishlist.
func (r *WishlistRepository) Remove(ctx context.Context, userID, movieID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM wishlist_entries WHERE user_id = $1 AND movie_id = $2`, userID, movieID)
	if err != nil {
		return lookupErr(err, "wishlist entry", movieID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("wishlist entry", movieID)
	}
	return nil
}

// List returns a user's wishlist, most recently added first.
func (r *WishlistRepository) List(ctx context.Context, userID string) ([]domain.WishlistEntry, error) {
	query := fmt.Sprintf(`
        SELECT w.user_id, w.added_at, %s
        FROM wishlist_entries w JOIN movies m ON m.id = w.movie_id
        WHERE w.user_id = $1
        ORDER BY w.added_at DESC, m.id`, movieColumns)
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		if pgCode(err) == pgInvalidTextRepr {
			return []domain.WishlistEntry{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.WishlistEntry, 0)
	for rows.Next() {
		var e domain.WishlistEntry
		m := &e.Movie
		err := rows.Scan(&e.UserID, &e.AddedAt,
			&m.ID, &m.Name, &m.Description, &m.ImageURL, &m.TrailerURL, &m.TVSeries, &m.ReleaseYear,
			&m.DirectorID, &m.Reviews.Count, &m.Reviews.Average, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		if pgCode(err) == pgInvalidTextRepr {
			return []domain.WishlistEntry{}, nil
		}
		return nil, err
	}
	return entries, nil
}
