package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/screen-catalog/internal/apperror"
	"github.com/Clark-Hu/screen-catalog/internal/domain"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	pool *pgxpool.Pool
}

const movieColumns = `
    m.id,
    m.name,
    m.description,
    m.image_url,
    m.trailer_url,
    m.tv_series,
    m.release_year,
    m.director_id,
    m.review_count,
    m.average_score,
    m.created_at,
    m.updated_at
`

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// MovieCreateParams bundles the fields required to create a movie.
type MovieCreateParams struct {
	Name        string
	Description *string
	ImageURL    *string
	TrailerURL  *string
	TVSeries    bool
	ReleaseYear *int
	DirectorID  *string
}

// MovieUpdateParams carries a partial update; nil fields are left unchanged.
// Review aggregates are never writable through here.
type MovieUpdateParams struct {
	Name        *string
	Description *string
	ImageURL    *string
	TrailerURL  *string
	TVSeries    *bool
	ReleaseYear *int
	DirectorID  *string
}

// MovieMetadata is enrichment data from the external metadata provider.
type MovieMetadata struct {
	Description *string
	ImageURL    *string
	TrailerURL  *string
	ReleaseYear *int
}

// MovieListFilters encapsulates search options.
type MovieListFilters struct {
	Name       *string
	Genre      *string
	GenreID    *string
	TVSeries   *bool
	DirectorID *string
	ActorID    *string
	Limit      int
}

// Create inserts a new movie row and returns the stored entity.
func (r *MoviesRepository) Create(ctx context.Context, params MovieCreateParams) (domain.Movie, error) {
	query := fmt.Sprintf(`
        INSERT INTO movies AS m (name, description, image_url, trailer_url, tv_series, release_year, director_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING %s
    `, movieColumns)

	row := r.pool.QueryRow(ctx, query, params.Name, params.Description, params.ImageURL, params.TrailerURL,
		params.TVSeries, params.ReleaseYear, params.DirectorID)
	movie, err := scanMovie(row)
	if err != nil {
		return domain.Movie{}, writeErr(err, "movie", params.Name)
	}
	return movie, nil
}

// GetByID fetches a movie by its identifier.
func (r *MoviesRepository) GetByID(ctx context.Context, id string) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies m WHERE m.id = $1`, movieColumns)
	movie, err := scanMovie(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Movie{}, lookupErr(err, "movie", id)
	}
	return movie, nil
}

// Update applies a partial update to the descriptive columns of a movie.
func (r *MoviesRepository) Update(ctx context.Context, id string, params MovieUpdateParams) (domain.Movie, error) {
	query := fmt.Sprintf(`
        UPDATE movies AS m
        SET name = COALESCE($2, m.name),
            description = COALESCE($3, m.description),
            image_url = COALESCE($4, m.image_url),
            trailer_url = COALESCE($5, m.trailer_url),
            tv_series = COALESCE($6, m.tv_series),
            release_year = COALESCE($7, m.release_year),
            director_id = COALESCE($8, m.director_id),
            updated_at = now()
        WHERE m.id = $1
        RETURNING %s
    `, movieColumns)

	row := r.pool.QueryRow(ctx, query, id, params.Name, params.Description, params.ImageURL, params.TrailerURL,
		params.TVSeries, params.ReleaseYear, params.DirectorID)
	movie, err := scanMovie(row)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return domain.Movie{}, apperror.NotFound("director", derefOr(params.DirectorID, ""))
		}
		return domain.Movie{}, lookupErr(err, "movie", id)
	}
	return movie, nil
}

// ApplyMetadata fills columns that are still empty with provider data.
// Values set by an operator always win.
func (r *MoviesRepository) ApplyMetadata(ctx context.Context, id string, meta MovieMetadata) (domain.Movie, error) {
	query := fmt.Sprintf(`
        UPDATE movies AS m
        SET description = COALESCE(m.description, $2),
            image_url = COALESCE(m.image_url, $3),
            trailer_url = COALESCE(m.trailer_url, $4),
            release_year = COALESCE(m.release_year, $5),
            updated_at = now()
        WHERE m.id = $1
        RETURNING %s
    `, movieColumns)

	row := r.pool.QueryRow(ctx, query, id, meta.Description, meta.ImageURL, meta.TrailerURL, meta.ReleaseYear)
	movie, err := scanMovie(row)
	if err != nil {
		return domain.Movie{}, lookupErr(err, "movie", id)
	}
	return movie, nil
}

// Delete removes a movie together with its seasons, episodes and scores.
func (r *MoviesRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM movies WHERE id = $1`, id)
	if err != nil {
		return lookupErr(err, "movie", id)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("movie", id)
	}
	return nil
}

// List returns movies that match the provided filters, newest first.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters) ([]domain.Movie, error) {
	if filters.Limit <= 0 {
		filters.Limit = defaultListLimit
	} else if filters.Limit > maxListLimit {
		filters.Limit = maxListLimit
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Name != nil && strings.TrimSpace(*filters.Name) != "" {
		where = append(where, fmt.Sprintf("m.name ILIKE %s", arg("%"+strings.TrimSpace(*filters.Name)+"%")))
	}
	if filters.Genre != nil && strings.TrimSpace(*filters.Genre) != "" {
		where = append(where, fmt.Sprintf(`EXISTS (
            SELECT 1 FROM movie_genres mg JOIN genres g ON g.id = mg.genre_id
            WHERE mg.movie_id = m.id AND g.name ILIKE %s)`, arg(strings.TrimSpace(*filters.Genre))))
	}
	if filters.GenreID != nil {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM movie_genres mg WHERE mg.movie_id = m.id AND mg.genre_id = %s)", arg(*filters.GenreID)))
	}
	if filters.TVSeries != nil {
		where = append(where, fmt.Sprintf("m.tv_series = %s", arg(*filters.TVSeries)))
	}
	if filters.DirectorID != nil {
		where = append(where, fmt.Sprintf("m.director_id = %s", arg(*filters.DirectorID)))
	}
	if filters.ActorID != nil {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM movie_actors ma WHERE ma.movie_id = m.id AND ma.actor_id = %s)", arg(*filters.ActorID)))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(movieColumns)
	queryBuilder.WriteString(" FROM movies m")

	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY m.created_at DESC, m.id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	rows, err := r.pool.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, err
	}
	return collectMovies(rows)
}

func collectMovies(rows pgx.Rows) ([]domain.Movie, error) {
	defer rows.Close()

	items := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var movie domain.Movie
	err := row.Scan(
		&movie.ID,
		&movie.Name,
		&movie.Description,
		&movie.ImageURL,
		&movie.TrailerURL,
		&movie.TVSeries,
		&movie.ReleaseYear,
		&movie.DirectorID,
		&movie.Reviews.Count,
		&movie.Reviews.Average,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	)
	if err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
