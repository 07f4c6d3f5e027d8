package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/screen-catalog/internal/apperror"
	"github.com/Clark-Hu/screen-catalog/internal/domain"
	"github.com/Clark-Hu/screen-catalog/internal/store"
)

const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgInvalidTextRepr      = "22P02"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgAdminShutdown        = "57P01"
	pgCrashShutdown        = "57P02"
	pgCannotConnectNow     = "57P03"
)

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Users     *UsersRepository
	Movies    *MoviesRepository
	Seasons   *SeasonsRepository
	Episodes  *EpisodesRepository
	Genres    *GenresRepository
	Directors *PeopleRepository
	Actors    *PeopleRepository
	Cast      *CastRepository
	Wishlist  *WishlistRepository
	Scores    *ScoresRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Users:     &UsersRepository{pool: pool},
		Movies:    &MoviesRepository{pool: pool},
		Seasons:   &SeasonsRepository{pool: pool},
		Episodes:  &EpisodesRepository{pool: pool},
		Genres:    &GenresRepository{pool: pool},
		Directors: &PeopleRepository{pool: pool, role: domain.RoleDirector, table: "directors"},
		Actors:    &PeopleRepository{pool: pool, role: domain.RoleActor, table: "actors"},
		Cast:      &CastRepository{pool: pool},
		Wishlist:  &WishlistRepository{pool: pool},
		Scores:    &ScoresRepository{pool: pool},
	}
}

// MovieDetail loads a movie with its director, genres, cast and seasons.
func (r *Repository) MovieDetail(ctx context.Context, id string) (domain.MovieDetail, error) {
	movie, err := r.Movies.GetByID(ctx, id)
	if err != nil {
		return domain.MovieDetail{}, err
	}
	detail := domain.MovieDetail{Movie: movie}

	if movie.DirectorID != nil {
		director, err := r.Directors.GetByID(ctx, *movie.DirectorID)
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return domain.MovieDetail{}, err
		}
		if err == nil {
			detail.Director = &director
		}
	}
	if detail.Genres, err = r.Genres.ListByMovie(ctx, id); err != nil {
		return domain.MovieDetail{}, err
	}
	if detail.Cast, err = r.Cast.ListByMovie(ctx, id); err != nil {
		return domain.MovieDetail{}, err
	}
	if detail.Seasons, err = r.Seasons.ListByMovie(ctx, id); err != nil {
		return domain.MovieDetail{}, err
	}
	return detail, nil
}

// SeasonWithEpisodes loads a season and its episodes ordered by number.
func (r *Repository) SeasonWithEpisodes(ctx context.Context, id string) (domain.Season, error) {
	season, err := r.Seasons.GetByID(ctx, id)
	if err != nil {
		return domain.Season{}, err
	}
	if season.Episodes, err = r.Episodes.ListBySeason(ctx, id); err != nil {
		return domain.Season{}, err
	}
	return season, nil
}

func pgErrorOf(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}

func pgCode(err error) string {
	if pgErr := pgErrorOf(err); pgErr != nil {
		return pgErr.Code
	}
	return ""
}

// lookupErr maps a failed single-row lookup. Malformed ids can never match a
// row, so they are reported as not found as well.
func lookupErr(err error, resource, key string) error {
	if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == pgInvalidTextRepr {
		return apperror.NotFound(resource, key)
	}
	return err
}

// fkTarget guesses which referenced entity was missing from the violated
// constraint name, e.g. "seasons_movie_id_fkey" -> "movie".
func fkTarget(err error, fallback string) string {
	pgErr := pgErrorOf(err)
	if pgErr == nil {
		return fallback
	}
	for _, candidate := range []string{"user", "movie", "season", "episode", "genre", "actor", "director"} {
		if strings.Contains(pgErr.ConstraintName, "_"+candidate+"_id_") {
			return candidate
		}
	}
	return fallback
}

// writeErr maps insert/update failures onto catalog errors.
func writeErr(err error, resource, key string) error {
	switch pgCode(err) {
	case pgUniqueViolation:
		return apperror.Conflict(resource, key)
	case pgForeignKeyViolation:
		return apperror.NotFound(fkTarget(err, resource), "")
	case pgInvalidTextRepr:
		return apperror.Invalid("id", "malformed identifier")
	case pgCheckViolation:
		return apperror.Invalid(resource, "violates a check constraint")
	}
	return lookupErr(err, resource, key)
}
