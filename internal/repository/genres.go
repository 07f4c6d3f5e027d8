package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/screen-catalog/internal/apperror"
	"github.com/Clark-Hu/screen-catalog/internal/domain"
)

// GenresRepository stores genres and their links to movies.
type GenresRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a genre. Names are unique.
func (r *GenresRepository) Create(ctx context.Context, name string, description *string) (domain.Genre, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO genres (name, description) VALUES ($1, $2) RETURNING id, name, description`, name, description)
	genre, err := scanGenre(row)
	if err != nil {
		return domain.Genre{}, writeErr(err, "genre", name)
	}
	return genre, nil
}

// GetByID fetches a genre.
func (r *GenresRepository) GetByID(ctx context.Context, id string) (domain.Genre, error) {
	genre, err := scanGenre(r.pool.QueryRow(ctx, `SELECT id, name, description FROM genres WHERE id = $1`, id))
	if err != nil {
		return domain.Genre{}, lookupErr(err, "genre", id)
	}
	return genre, nil
}

// Delete removes a genre and its movie links.
func (r *GenresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM genres WHERE id = $1`, id)
	if err != nil {
		return lookupErr(err, "genre", id)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("genre", id)
	}
	return nil
}

// List returns all genres by name.
func (r *GenresRepository) List(ctx context.Context) ([]domain.Genre, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM genres ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collectGenres(rows)
}

// ListByMovie returns the genres attached to a movie.
func (r *GenresRepository) ListByMovie(ctx context.Context, movieID string) ([]domain.Genre, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT g.id, g.name, g.description
        FROM genres g JOIN movie_genres mg ON mg.genre_id = g.id
        WHERE mg.movie_id = $1
        ORDER BY g.name`, movieID)
	if err != nil {
		return nil, err
	}
	return collectGenres(rows)
}

// Attach links a genre to a movie. Linking twice is a no-op.
func (r *GenresRepository) Attach(ctx context.Context, movieID, genreID string) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO movie_genres (movie_id, genre_id) VALUES ($1, $2)
        ON CONFLICT DO NOTHING`, movieID, genreID)
	if err != nil {
		switch pgCode(err) {
		case pgForeignKeyViolation:
			if fkTarget(err, "genre") == "movie" {
				return apperror.NotFound("movie", movieID)
			}
			return apperror.NotFound("genre", genreID)
		case pgInvalidTextRepr:
			return apperror.NotFound("movie genre", movieID+"/"+genreID)
		}
		return err
	}
	return nil
}

// Detach removes the link between a movie and a genre.
func (r *GenresRepository) Detach(ctx context.Context, movieID, genreID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM movie_genres WHERE movie_id = $1 AND genre_id = $2`, movieID, genreID)
	if err != nil {
		return lookupErr(err, "movie genre", movieID+"/"+genreID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("movie genre", movieID+"/"+genreID)
	}
	return nil
}

func collectGenres(rows pgx.Rows) ([]domain.Genre, error) {
	defer rows.Close()

	genres := make([]domain.Genre, 0)
	for rows.Next() {
		genre, err := scanGenre(rows)
		if err != nil {
			return nil, err
		}
		genres = append(genres, genre)
	}
	return genres, rows.Err()
}

func scanGenre(row pgx.Row) (domain.Genre, error) {
	var g domain.Genre
	err := row.Scan(&g.ID, &g.Name, &g.Description)
	return g, err
}
