package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Clark-Hu/screen-catalog/internal/repository"
)

func BenchmarkHandleAddRating(b *testing.B) {
	srv := buildTestServer(b)
	ctx := context.Background()

	movie, err := srv.repo.Movies.Create(ctx, repository.MovieCreateParams{Name: "Benchmark Series", TVSeries: true})
	if err != nil {
		b.Fatalf("create movie: %v", err)
	}
	season, err := srv.repo.Seasons.Create(ctx, movie.ID, 1)
	if err != nil {
		b.Fatalf("create season: %v", err)
	}
	episode, err := srv.repo.Episodes.Create(ctx, repository.EpisodeCreateParams{SeasonID: season.ID, Number: 1})
	if err != nil {
		b.Fatalf("create episode: %v", err)
	}

	tokens := make([]string, b.N)
	for i := range tokens {
		user, err := srv.repo.Users.Create(ctx, repository.UserCreateParams{Username: fmt.Sprintf("bench-%d", i)})
		if err != nil {
			b.Fatalf("create user: %v", err)
		}
		tokens[i] = userToken(b, user.ID)
	}
	path := "/episodes/" + episode.ID + "/rating"
	handler := srv.Handler()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(fmt.Sprintf(`{"score":%d}`, i%10+1)))
		req.Header.Set("Authorization", "Bearer "+tokens[i])
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			b.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
		}
	}
}
