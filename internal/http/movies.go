package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Clark-Hu/screen-catalog/internal/apperror"
	"github.com/Clark-Hu/screen-catalog/internal/domain"
	"github.com/Clark-Hu/screen-catalog/internal/metadata"
	"github.com/Clark-Hu/screen-catalog/internal/repository"
)

const (
	maxNameLength = 150
	maxURLLength  = 500
	minYear       = 1870
	maxYear       = 2100
)

type movieRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ImageURL    *string `json:"imageUrl"`
	TrailerURL  *string `json:"trailerUrl"`
	TVSeries    *bool   `json:"tvSeries"`
	ReleaseYear *int    `json:"releaseYear"`
	DirectorID  *string `json:"directorId"`
}

type movieListResponse struct {
	Items []movieResponse `json:"items"`
}

type movieResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description,omitempty"`
	ImageURL     *string   `json:"imageUrl,omitempty"`
	TrailerURL   *string   `json:"trailerUrl,omitempty"`
	TVSeries     bool      `json:"tvSeries"`
	ReleaseYear  *int      `json:"releaseYear,omitempty"`
	DirectorID   *string   `json:"directorId,omitempty"`
	ReviewCount  int64     `json:"reviewCount"`
	AverageScore float64   `json:"averageScore"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type movieDetailResponse struct {
	movieResponse
	Director *personResponse  `json:"director"`
	Genres   []genreResponse  `json:"genres"`
	Cast     []castResponse   `json:"cast"`
	Seasons  []seasonResponse `json:"seasons"`
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	filters, err := buildMovieFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	movies, err := s.repo.Movies.List(r.Context(), filters)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, movieListResponse{Items: toMovieResponses(movies)})
}

func buildMovieFilters(query url.Values) (repository.MovieListFilters, error) {
	var filters repository.MovieListFilters

	if val := strings.TrimSpace(query.Get("name")); val != "" {
		filters.Name = &val
	}
	if val := strings.TrimSpace(query.Get("genre")); val != "" {
		filters.Genre = &val
	}
	if val := strings.TrimSpace(query.Get("tvSeries")); val != "" {
		tv, err := strconv.ParseBool(val)
		if err != nil {
			return filters, fmt.Errorf("invalid tvSeries value")
		}
		filters.TVSeries = &tv
	}
	if val := strings.TrimSpace(query.Get("directorId")); val != "" {
		id, err := uuid.Parse(val)
		if err != nil {
			return filters, fmt.Errorf("invalid directorId value")
		}
		director := id.String()
		filters.DirectorID = &director
	}
	if val := strings.TrimSpace(query.Get("actorId")); val != "" {
		id, err := uuid.Parse(val)
		if err != nil {
			return filters, fmt.Errorf("invalid actorId value")
		}
		actor := id.String()
		filters.ActorID = &actor
	}
	limit, err := parseLimit(query)
	if err != nil {
		return filters, err
	}
	filters.Limit = limit
	return filters, nil
}

// parseLimit reads ?limit=. Zero means the repository default; values above
// the maximum are capped by the repository.
func parseLimit(query url.Values) (int, error) {
	val := strings.TrimSpace(query.Get("limit"))
	if val == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(val)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit value")
	}
	return limit, nil
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "movieID")
	if !ok {
		return
	}
	detail, err := s.repo.MovieDetail(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieDetailResponse(detail))
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	var req movieRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		s.writeError(w, r, apperror.Invalid("name", "is required"))
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	params := repository.MovieCreateParams{
		Name:        strings.TrimSpace(*req.Name),
		Description: normalizeStringPtr(req.Description),
		ImageURL:    normalizeStringPtr(req.ImageURL),
		TrailerURL:  normalizeStringPtr(req.TrailerURL),
		ReleaseYear: req.ReleaseYear,
		DirectorID:  normalizeStringPtr(req.DirectorID),
	}
	if req.TVSeries != nil {
		params.TVSeries = *req.TVSeries
	}

	movie, err := s.repo.Movies.Create(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	movie = s.enrichMovie(r.Context(), movie)

	w.Header().Set("Location", fmt.Sprintf("/movies/%s", movie.ID))
	s.respondJSON(w, http.StatusCreated, toMovieResponse(movie))
}

// enrichMovie fills missing descriptive fields from the metadata upstream.
// Failures only cost the enrichment, never the create.
func (s *Server) enrichMovie(ctx context.Context, movie domain.Movie) domain.Movie {
	if movie.Description != nil && movie.ImageURL != nil && movie.TrailerURL != nil && movie.ReleaseYear != nil {
		return movie
	}

	timeout := time.Duration(s.cfg.MetadataTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := s.metadata.Fetch(ctx, movie.Name)
	if err != nil {
		if !errors.Is(err, metadata.ErrNotFound) {
			s.logger.Warn("metadata fetch failed", zap.String("movie", movie.Name), zap.Error(err))
		}
		return movie
	}
	if result.Empty() {
		return movie
	}

	updated, err := s.repo.Movies.ApplyMetadata(ctx, movie.ID, repository.MovieMetadata{
		Description: firstNonNil(movie.Description, result.Description),
		ImageURL:    firstNonNil(movie.ImageURL, result.ImageURL),
		TrailerURL:  firstNonNil(movie.TrailerURL, result.TrailerURL),
		ReleaseYear: firstNonNil(movie.ReleaseYear, result.ReleaseYear),
	})
	if err != nil {
		s.logger.Warn("apply movie metadata failed", zap.String("movie_id", movie.ID), zap.Error(err))
		return movie
	}
	return updated
}

func (s *Server) handleUpdateMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "movieID")
	if !ok {
		return
	}
	var req movieRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		s.writeError(w, r, apperror.Invalid("name", "cannot be blank"))
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	movie, err := s.repo.Movies.Update(r.Context(), id, repository.MovieUpdateParams{
		Name:        normalizeStringPtr(req.Name),
		Description: normalizeStringPtr(req.Description),
		ImageURL:    normalizeStringPtr(req.ImageURL),
		TrailerURL:  normalizeStringPtr(req.TrailerURL),
		TVSeries:    req.TVSeries,
		ReleaseYear: req.ReleaseYear,
		DirectorID:  normalizeStringPtr(req.DirectorID),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "movieID")
	if !ok {
		return
	}
	if err := s.repo.Movies.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req movieRequest) validate() error {
	if err := validateLength("name", req.Name, maxNameLength); err != nil {
		return err
	}
	if err := validateLength("imageUrl", req.ImageURL, maxURLLength); err != nil {
		return err
	}
	if err := validateLength("trailerUrl", req.TrailerURL, maxURLLength); err != nil {
		return err
	}
	if req.ReleaseYear != nil && (*req.ReleaseYear < minYear || *req.ReleaseYear > maxYear) {
		return apperror.Invalid("releaseYear", fmt.Sprintf("must be between %d and %d", minYear, maxYear))
	}
	return validateUUIDPtr("directorId", normalizeStringPtr(req.DirectorID))
}

func toMovieResponse(movie domain.Movie) movieResponse {
	return movieResponse{
		ID:           movie.ID,
		Name:         movie.Name,
		Description:  movie.Description,
		ImageURL:     movie.ImageURL,
		TrailerURL:   movie.TrailerURL,
		TVSeries:     movie.TVSeries,
		ReleaseYear:  movie.ReleaseYear,
		DirectorID:   movie.DirectorID,
		ReviewCount:  movie.Reviews.Count,
		AverageScore: roundToOneDecimal(movie.Reviews.Average),
		CreatedAt:    movie.CreatedAt,
		UpdatedAt:    movie.UpdatedAt,
	}
}

func toMovieResponses(movies []domain.Movie) []movieResponse {
	items := make([]movieResponse, 0, len(movies))
	for _, movie := range movies {
		items = append(items, toMovieResponse(movie))
	}
	return items
}

func toMovieDetailResponse(detail domain.MovieDetail) movieDetailResponse {
	resp := movieDetailResponse{
		movieResponse: toMovieResponse(detail.Movie),
		Genres:        toGenreResponses(detail.Genres),
		Cast:          make([]castResponse, 0, len(detail.Cast)),
		Seasons:       make([]seasonResponse, 0, len(detail.Seasons)),
	}
	if detail.Director != nil {
		director := toPersonResponse(*detail.Director)
		resp.Director = &director
	}
	for _, member := range detail.Cast {
		resp.Cast = append(resp.Cast, castResponse{personResponse: toPersonResponse(member.Person), Character: member.RoleName})
	}
	for _, season := range detail.Seasons {
		resp.Seasons = append(resp.Seasons, toSeasonResponse(season))
	}
	return resp
}
