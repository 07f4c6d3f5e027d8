package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/screen-catalog/internal/apperror"
	"github.com/Clark-Hu/screen-catalog/internal/domain"
)

// SeasonsRepository stores the seasons of TV series.
type SeasonsRepository struct {
	pool *pgxpool.Pool
}

const seasonColumns = `id, movie_id, number, created_at`

// Create adds season number to a movie. Numbers are unique per movie.
func (r *SeasonsRepository) Create(ctx context.Context, movieID string, number int) (domain.Season, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO seasons (movie_id, number) VALUES ($1, $2) RETURNING `+seasonColumns, movieID, number)
	season, err := scanSeason(row)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation || pgCode(err) == pgInvalidTextRepr {
			return domain.Season{}, apperror.NotFound("movie", movieID)
		}
		return domain.Season{}, writeErr(err, "season", fmt.Sprintf("%s/%d", movieID, number))
	}
	return season, nil
}

// GetByID fetches a season without its episodes.
func (r *SeasonsRepository) GetByID(ctx context.Context, id string) (domain.Season, error) {
	season, err := scanSeason(r.pool.QueryRow(ctx, `SELECT `+seasonColumns+` FROM seasons WHERE id = $1`, id))
	if err != nil {
		return domain.Season{}, lookupErr(err, "season", id)
	}
	return season, nil
}

// ListByMovie returns the seasons of a movie ordered by number.
func (r *SeasonsRepository) ListByMovie(ctx context.Context, movieID string) ([]domain.Season, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+seasonColumns+` FROM seasons WHERE movie_id = $1 ORDER BY number`, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seasons := make([]domain.Season, 0)
	for rows.Next() {
		season, err := scanSeason(rows)
		if err != nil {
			return nil, err
		}
		seasons = append(seasons, season)
	}
	return seasons, rows.Err()
}

// Delete removes a season and, through the cascade, its episodes and ratings.
func (r *SeasonsRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM seasons WHERE id = $1`, id)
	if err != nil {
		return lookupErr(err, "season", id)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("season", id)
	}
	return nil
}

func scanSeason(row pgx.Row) (domain.Season, error) {
	var s domain.Season
	err := row.Scan(&s.ID, &s.MovieID, &s.Number, &s.CreatedAt)
	return s, err
}

// EpisodesRepository stores episodes. Rating aggregates are maintained by the
// score maintainer only.
type EpisodesRepository struct {
	pool *pgxpool.Pool
}

const episodeColumns = `
    id, season_id, number, title, summary, poster_url, trailer_url,
    rating_count, average_score, created_at, updated_at
`

// EpisodeCreateParams bundles the fields required to create an episode.
type EpisodeCreateParams struct {
	SeasonID   string
	Number     int
	Title      *string
	Summary    *string
	PosterURL  *string
	TrailerURL *string
}

// EpisodeUpdateParams carries a partial update; nil fields are left unchanged.
type EpisodeUpdateParams struct {
	Title      *string
	Summary    *string
	PosterURL  *string
	TrailerURL *string
}

// Create inserts an episode into a season. Numbers are unique per season.
func (r *EpisodesRepository) Create(ctx context.Context, params EpisodeCreateParams) (domain.Episode, error) {
	query := fmt.Sprintf(`
        INSERT INTO episodes (season_id, number, title, summary, poster_url, trailer_url)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING %s
    `, episodeColumns)

	row := r.pool.QueryRow(ctx, query, params.SeasonID, params.Number, params.Title, params.Summary,
		params.PosterURL, params.TrailerURL)
	episode, err := scanEpisode(row)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation || pgCode(err) == pgInvalidTextRepr {
			return domain.Episode{}, apperror.NotFound("season", params.SeasonID)
		}
		return domain.Episode{}, writeErr(err, "episode", fmt.Sprintf("%s/%d", params.SeasonID, params.Number))
	}
	return episode, nil
}

// GetByID fetches an episode by identifier.
func (r *EpisodesRepository) GetByID(ctx context.Context, id string) (domain.Episode, error) {
	query := fmt.Sprintf(`SELECT %s FROM episodes WHERE id = $1`, episodeColumns)
	episode, err := scanEpisode(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Episode{}, lookupErr(err, "episode", id)
	}
	return episode, nil
}

// ListBySeason returns the episodes of a season ordered by number.
func (r *EpisodesRepository) ListBySeason(ctx context.Context, seasonID string) ([]domain.Episode, error) {
	query := fmt.Sprintf(`SELECT %s FROM episodes WHERE season_id = $1 ORDER BY number`, episodeColumns)
	rows, err := r.pool.Query(ctx, query, seasonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	episodes := make([]domain.Episode, 0)
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, episode)
	}
	return episodes, rows.Err()
}

// Update applies a partial update to the descriptive columns of an episode.
func (r *EpisodesRepository) Update(ctx context.Context, id string, params EpisodeUpdateParams) (domain.Episode, error) {
	query := fmt.Sprintf(`
        UPDATE episodes
        SET title = COALESCE($2, title),
            summary = COALESCE($3, summary),
            poster_url = COALESCE($4, poster_url),
            trailer_url = COALESCE($5, trailer_url),
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, episodeColumns)

	row := r.pool.QueryRow(ctx, query, id, params.Title, params.Summary, params.PosterURL, params.TrailerURL)
	episode, err := scanEpisode(row)
	if err != nil {
		return domain.Episode{}, lookupErr(err, "episode", id)
	}
	return episode, nil
}

// Delete removes an episode and its ratings.
func (r *EpisodesRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM episodes WHERE id = $1`, id)
	if err != nil {
		return lookupErr(err, "episode", id)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("episode", id)
	}
	return nil
}

func scanEpisode(row pgx.Row) (domain.Episode, error) {
	var e domain.Episode
	err := row.Scan(
		&e.ID,
		&e.SeasonID,
		&e.Number,
		&e.Title,
		&e.Summary,
		&e.PosterURL,
		&e.TrailerURL,
		&e.Ratings.Count,
		&e.Ratings.Average,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	return e, err
}
