package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/screen-catalog/internal/apperror"
	"github.com/Clark-Hu/screen-catalog/internal/domain"
	"github.com/Clark-Hu/screen-catalog/internal/testutil/pgtest"
)

type testEnv struct {
	ctx        context.Context
	repository *Repository
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	return &testEnv{
		ctx:        context.Background(),
		repository: NewWithPool(pgtest.New(t)),
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func mustCreateMovie(t testing.TB, env *testEnv, name string) domain.Movie {
	t.Helper()
	movie, err := env.repository.Movies.Create(env.ctx, MovieCreateParams{Name: name})
	require.NoError(t, err, "create movie %q", name)
	return movie
}

func mustCreateUser(t testing.TB, env *testEnv, username string) domain.User {
	t.Helper()
	user, err := env.repository.Users.Create(env.ctx, UserCreateParams{Username: username})
	require.NoError(t, err, "create user %q", username)
	return user
}

func mustCreateEpisode(t testing.TB, env *testEnv, movieID string) domain.Episode {
	t.Helper()
	season, err := env.repository.Seasons.Create(env.ctx, movieID, 1)
	require.NoError(t, err)
	episode, err := env.repository.Episodes.Create(env.ctx, EpisodeCreateParams{SeasonID: season.ID, Number: 1})
	require.NoError(t, err)
	return episode
}

func TestMoviesRepository_CreateGetUpdateDelete(t *testing.T) {
	env := newTestEnv(t)
	movies := env.repository.Movies

	director, err := env.repository.Directors.Create(env.ctx, PersonCreateParams{Name: "Ava Lind"})
	require.NoError(t, err)

	movie, err := movies.Create(env.ctx, MovieCreateParams{
		Name:        "Northern Lights",
		ReleaseYear: intPtr(2019),
		DirectorID:  &director.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Aggregate{}, movie.Reviews)
	require.NotNil(t, movie.DirectorID)
	assert.Equal(t, director.ID, *movie.DirectorID)

	updated, err := movies.Update(env.ctx, movie.ID, MovieUpdateParams{Description: strPtr("Slow and cold."), TVSeries: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, "Northern Lights", updated.Name)
	assert.Equal(t, "Slow and cold.", *updated.Description)
	assert.True(t, updated.TVSeries)
	assert.Equal(t, 2019, *updated.ReleaseYear)

	enriched, err := movies.ApplyMetadata(env.ctx, movie.ID, MovieMetadata{
		Description: strPtr("Provider text"),
		ImageURL:    strPtr("https://img.example/nl.jpg"),
		ReleaseYear: intPtr(1999),
	})
	require.NoError(t, err)
	assert.Equal(t, "Slow and cold.", *enriched.Description, "operator values win")
	assert.Equal(t, 2019, *enriched.ReleaseYear)
	assert.Equal(t, "https://img.example/nl.jpg", *enriched.ImageURL)

	_, err = movies.Update(env.ctx, movie.ID, MovieUpdateParams{DirectorID: strPtr(uuid.NewString())})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = movies.Create(env.ctx, MovieCreateParams{Name: "Orphan", DirectorID: strPtr(uuid.NewString())})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	require.NoError(t, movies.Delete(env.ctx, movie.ID))
	_, err = movies.GetByID(env.ctx, movie.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, movies.Delete(env.ctx, movie.ID), apperror.ErrNotFound)
}

func TestMoviesRepository_ListFilters(t *testing.T) {
	env := newTestEnv(t)
	repo := env.repository

	director, err := repo.Directors.Create(env.ctx, PersonCreateParams{Name: "Ines Moreau"})
	require.NoError(t, err)
	actor, err := repo.Actors.Create(env.ctx, PersonCreateParams{Name: "Tomas Berg"})
	require.NoError(t, err)
	drama, err := repo.Genres.Create(env.ctx, "Drama", nil)
	require.NoError(t, err)

	harbor, err := repo.Movies.Create(env.ctx, MovieCreateParams{Name: "The Harbor", DirectorID: &director.ID})
	require.NoError(t, err)
	series, err := repo.Movies.Create(env.ctx, MovieCreateParams{Name: "Harbor Nights", TVSeries: true})
	require.NoError(t, err)
	other := mustCreateMovie(t, env, "Desert Run")

	require.NoError(t, repo.Genres.Attach(env.ctx, harbor.ID, drama.ID))
	require.NoError(t, repo.Genres.Attach(env.ctx, harbor.ID, drama.ID), "attach is idempotent")
	require.NoError(t, repo.Cast.Upsert(env.ctx, other.ID, actor.ID, strPtr("Driver")))

	ids := func(ms []domain.Movie) []string {
		out := make([]string, 0, len(ms))
		for _, m := range ms {
			out = append(out, m.ID)
		}
		return out
	}

	cases := map[string]struct {
		filters MovieListFilters
		want    []string
	}{
		"all newest first": {MovieListFilters{}, []string{other.ID, series.ID, harbor.ID}},
		"name substring":   {MovieListFilters{Name: strPtr("harbor")}, []string{series.ID, harbor.ID}},
		"genre by name":    {MovieListFilters{Genre: strPtr("drama")}, []string{harbor.ID}},
		"genre by id":      {MovieListFilters{GenreID: &drama.ID}, []string{harbor.ID}},
		"tv series":        {MovieListFilters{TVSeries: boolPtr(true)}, []string{series.ID}},
		"director":         {MovieListFilters{DirectorID: &director.ID}, []string{harbor.ID}},
		"actor":            {MovieListFilters{ActorID: &actor.ID}, []string{other.ID}},
		"limit":            {MovieListFilters{Limit: 1}, []string{other.ID}},
		"no match":         {MovieListFilters{Name: strPtr("zzz")}, []string{}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := repo.Movies.List(env.ctx, tc.filters)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(got))
		})
	}
}

func TestRepository_MovieDetail(t *testing.T) {
	env := newTestEnv(t)
	repo := env.repository

	director, err := repo.Directors.Create(env.ctx, PersonCreateParams{Name: "Kai Oyelaran"})
	require.NoError(t, err)
	movie, err := repo.Movies.Create(env.ctx, MovieCreateParams{Name: "Tides", TVSeries: true, DirectorID: &director.ID})
	require.NoError(t, err)

	actor, err := repo.Actors.Create(env.ctx, PersonCreateParams{Name: "Mara Quell"})
	require.NoError(t, err)
	require.NoError(t, repo.Cast.Upsert(env.ctx, movie.ID, actor.ID, strPtr("Keeper")))
	require.NoError(t, repo.Cast.Upsert(env.ctx, movie.ID, actor.ID, strPtr("Lighthouse Keeper")))

	genre, err := repo.Genres.Create(env.ctx, "Mystery", strPtr("Whodunits"))
	require.NoError(t, err)
	require.NoError(t, repo.Genres.Attach(env.ctx, movie.ID, genre.ID))

	s2, err := repo.Seasons.Create(env.ctx, movie.ID, 2)
	require.NoError(t, err)
	s1, err := repo.Seasons.Create(env.ctx, movie.ID, 1)
	require.NoError(t, err)

	detail, err := repo.MovieDetail(env.ctx, movie.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Director)
	assert.Equal(t, "Kai Oyelaran", detail.Director.Name)
	assert.Equal(t, domain.RoleDirector, detail.Director.Role)
	require.Len(t, detail.Cast, 1)
	assert.Equal(t, "Lighthouse Keeper", *detail.Cast[0].RoleName)
	require.Len(t, detail.Genres, 1)
	assert.Equal(t, "Mystery", detail.Genres[0].Name)
	require.Len(t, detail.Seasons, 2)
	assert.Equal(t, []string{s1.ID, s2.ID}, []string{detail.Seasons[0].ID, detail.Seasons[1].ID})

	require.NoError(t, repo.Directors.Delete(env.ctx, director.ID))
	detail, err = repo.MovieDetail(env.ctx, movie.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Director)

	require.NoError(t, repo.Cast.Remove(env.ctx, movie.ID, actor.ID))
	assert.ErrorIs(t, repo.Cast.Remove(env.ctx, movie.ID, actor.ID), apperror.ErrNotFound)
	require.NoError(t, repo.Genres.Detach(env.ctx, movie.ID, genre.ID))
	assert.ErrorIs(t, repo.Genres.Detach(env.ctx, movie.ID, genre.ID), apperror.ErrNotFound)

	_, err = repo.MovieDetail(env.ctx, uuid.NewString())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestSeasonsAndEpisodes(t *testing.T) {
	env := newTestEnv(t)
	repo := env.repository
	movie := mustCreateMovie(t, env, "Long Winter")

	season, err := repo.Seasons.Create(env.ctx, movie.ID, 1)
	require.NoError(t, err)

	_, err = repo.Seasons.Create(env.ctx, movie.ID, 1)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	_, err = repo.Seasons.Create(env.ctx, uuid.NewString(), 1)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = repo.Seasons.Create(env.ctx, movie.ID, 0)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	ep2, err := repo.Episodes.Create(env.ctx, EpisodeCreateParams{SeasonID: season.ID, Number: 2, Title: strPtr("Thaw")})
	require.NoError(t, err)
	ep1, err := repo.Episodes.Create(env.ctx, EpisodeCreateParams{SeasonID: season.ID, Number: 1, Title: strPtr("Frost")})
	require.NoError(t, err)
	assert.Equal(t, domain.Aggregate{}, ep1.Ratings)

	_, err = repo.Episodes.Create(env.ctx, EpisodeCreateParams{SeasonID: season.ID, Number: 2})
	assert.ErrorIs(t, err, apperror.ErrConflict)
	_, err = repo.Episodes.Create(env.ctx, EpisodeCreateParams{SeasonID: uuid.NewString(), Number: 1})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	updated, err := repo.Episodes.Update(env.ctx, ep2.ID, EpisodeUpdateParams{Summary: strPtr("Spring comes.")})
	require.NoError(t, err)
	assert.Equal(t, "Thaw", *updated.Title)
	assert.Equal(t, "Spring comes.", *updated.Summary)

	loaded, err := repo.SeasonWithEpisodes(env.ctx, season.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Episodes, 2)
	assert.Equal(t, ep1.ID, loaded.Episodes[0].ID)
	assert.Equal(t, ep2.ID, loaded.Episodes[1].ID)

	require.NoError(t, repo.Seasons.Delete(env.ctx, season.ID))
	_, err = repo.Episodes.GetByID(env.ctx, ep1.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "episodes cascade with their season")
}

func TestUsersAndWishlist(t *testing.T) {
	env := newTestEnv(t)
	repo := env.repository

	user, err := repo.Users.Create(env.ctx, UserCreateParams{Username: "nadia", PhoneNumber: strPtr("+15550100")})
	require.NoError(t, err)
	_, err = repo.Users.Create(env.ctx, UserCreateParams{Username: "nadia"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	got, err := repo.Users.GetByID(env.ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "nadia", got.Username)

	first := mustCreateMovie(t, env, "First")
	second := mustCreateMovie(t, env, "Second")

	require.NoError(t, repo.Wishlist.Add(env.ctx, user.ID, first.ID))
	require.NoError(t, repo.Wishlist.Add(env.ctx, user.ID, second.ID))
	assert.ErrorIs(t, repo.Wishlist.Add(env.ctx, user.ID, first.ID), apperror.ErrConflict)
	assert.ErrorIs(t, repo.Wishlist.Add(env.ctx, user.ID, uuid.NewString()), apperror.ErrNotFound)
	assert.ErrorIs(t, repo.Wishlist.Add(env.ctx, uuid.NewString(), first.ID), apperror.ErrNotFound)

	entries, err := repo.Wishlist.List(env.ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].Movie.ID)
	assert.Equal(t, "Second", entries[0].Movie.Name)

	require.NoError(t, repo.Wishlist.Remove(env.ctx, user.ID, second.ID))
	assert.ErrorIs(t, repo.Wishlist.Remove(env.ctx, user.ID, second.ID), apperror.ErrNotFound)

	entries, err = repo.Wishlist.List(env.ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func BenchmarkMoviesRepositoryCreate(b *testing.B) {
	env := newTestEnv(b)

	for i := 0; i < b.N; i++ {
		_, err := env.repository.Movies.Create(env.ctx, MovieCreateParams{Name: fmt.Sprintf("Bench Movie %d", i)})
		if err != nil {
			b.Fatalf("create movie: %v", err)
		}
	}
}
