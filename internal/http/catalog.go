package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Clark-Hu/screen-catalog/internal/apperror"
	"github.com/Clark-Hu/screen-catalog/internal/domain"
	"github.com/Clark-Hu/screen-catalog/internal/repository"
)

type seasonRequest struct {
	Number int `json:"number"`
}

type seasonResponse struct {
	ID        string            `json:"id"`
	MovieID   string            `json:"movieId"`
	Number    int               `json:"number"`
	CreatedAt time.Time         `json:"createdAt"`
	Episodes  []episodeResponse `json:"episodes,omitempty"`
}

type episodeRequest struct {
	Number     int     `json:"number"`
	Title      *string `json:"title"`
	Summary    *string `json:"summary"`
	PosterURL  *string `json:"posterUrl"`
	TrailerURL *string `json:"trailerUrl"`
}

type episodeResponse struct {
	ID           string    `json:"id"`
	SeasonID     string    `json:"seasonId"`
	Number       int       `json:"number"`
	Title        *string   `json:"title,omitempty"`
	Summary      *string   `json:"summary,omitempty"`
	PosterURL    *string   `json:"posterUrl,omitempty"`
	TrailerURL   *string   `json:"trailerUrl,omitempty"`
	RatingCount  int64     `json:"ratingCount"`
	AverageScore float64   `json:"averageScore"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type genreRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type genreResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type personRequest struct {
	Name         string  `json:"name"`
	Introduction *string `json:"introduction"`
	ImageURL     *string `json:"imageUrl"`
}

type personUpdateRequest struct {
	Name         *string `json:"name"`
	Introduction *string `json:"introduction"`
	ImageURL     *string `json:"imageUrl"`
}

type personResponse struct {
	ID           string    `json:"id"`
	Role         string    `json:"role"`
	Name         string    `json:"name"`
	Introduction *string   `json:"introduction,omitempty"`
	ImageURL     *string   `json:"imageUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type personDetailResponse struct {
	personResponse
	Movies []movieResponse `json:"movies"`
}

type castRequest struct {
	Character *string `json:"character"`
}

type castResponse struct {
	personResponse
	Character *string `json:"character,omitempty"`
}

func (s *Server) handleCreateSeason(w http.ResponseWriter, r *http.Request) {
	movieID, ok := s.pathID(w, r, "movieID")
	if !ok {
		return
	}
	var req seasonRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Number < 1 {
		s.writeError(w, r, apperror.Invalid("number", "must be at least 1"))
		return
	}

	season, err := s.repo.Seasons.Create(r.Context(), movieID, req.Number)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/seasons/%s", season.ID))
	s.respondJSON(w, http.StatusCreated, toSeasonResponse(season))
}

func (s *Server) handleGetSeason(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "seasonID")
	if !ok {
		return
	}
	season, err := s.repo.SeasonWithEpisodes(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toSeasonResponse(season))
}

func (s *Server) handleDeleteSeason(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "seasonID")
	if !ok {
		return
	}
	if err := s.repo.Seasons.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateEpisode(w http.ResponseWriter, r *http.Request) {
	seasonID, ok := s.pathID(w, r, "seasonID")
	if !ok {
		return
	}
	var req episodeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Number < 1 {
		s.writeError(w, r, apperror.Invalid("number", "must be at least 1"))
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	episode, err := s.repo.Episodes.Create(r.Context(), repository.EpisodeCreateParams{
		SeasonID:   seasonID,
		Number:     req.Number,
		Title:      normalizeStringPtr(req.Title),
		Summary:    normalizeStringPtr(req.Summary),
		PosterURL:  normalizeStringPtr(req.PosterURL),
		TrailerURL: normalizeStringPtr(req.TrailerURL),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/episodes/%s", episode.ID))
	s.respondJSON(w, http.StatusCreated, toEpisodeResponse(episode))
}

func (s *Server) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "episodeID")
	if !ok {
		return
	}
	episode, err := s.repo.Episodes.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toEpisodeResponse(episode))
}

// handleUpdateEpisode edits descriptive fields. The episode number is fixed
// once created.
func (s *Server) handleUpdateEpisode(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "episodeID")
	if !ok {
		return
	}
	var req episodeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Number != 0 {
		s.writeError(w, r, apperror.Invalid("number", "cannot be changed"))
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	episode, err := s.repo.Episodes.Update(r.Context(), id, repository.EpisodeUpdateParams{
		Title:      normalizeStringPtr(req.Title),
		Summary:    normalizeStringPtr(req.Summary),
		PosterURL:  normalizeStringPtr(req.PosterURL),
		TrailerURL: normalizeStringPtr(req.TrailerURL),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toEpisodeResponse(episode))
}

func (s *Server) handleDeleteEpisode(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "episodeID")
	if !ok {
		return
	}
	if err := s.repo.Episodes.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req episodeRequest) validate() error {
	if err := validateLength("title", req.Title, 200); err != nil {
		return err
	}
	if err := validateLength("posterUrl", req.PosterURL, maxURLLength); err != nil {
		return err
	}
	return validateLength("trailerUrl", req.TrailerURL, maxURLLength)
}

func (s *Server) handleListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.repo.Genres.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": toGenreResponses(genres)})
}

func (s *Server) handleCreateGenre(w http.ResponseWriter, r *http.Request) {
	var req genreRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		s.writeError(w, r, apperror.Invalid("name", "is required"))
		return
	}
	if err := validateLength("name", &name, maxNameLength); err != nil {
		s.writeError(w, r, err)
		return
	}

	genre, err := s.repo.Genres.Create(r.Context(), name, normalizeStringPtr(req.Description))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, toGenreResponse(genre))
}

func (s *Server) handleDeleteGenre(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "genreID")
	if !ok {
		return
	}
	if err := s.repo.Genres.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGenreMovies(w http.ResponseWriter, r *http.Request) {
	genreID, ok := s.pathID(w, r, "genreID")
	if !ok {
		return
	}
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if _, err := s.repo.Genres.GetByID(r.Context(), genreID); err != nil {
		s.writeError(w, r, err)
		return
	}

	movies, err := s.repo.Movies.List(r.Context(), repository.MovieListFilters{GenreID: &genreID, Limit: limit})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, movieListResponse{Items: toMovieResponses(movies)})
}

func (s *Server) handleAttachGenre(w http.ResponseWriter, r *http.Request) {
	movieID, ok := s.pathID(w, r, "movieID")
	if !ok {
		return
	}
	genreID, ok := s.pathID(w, r, "genreID")
	if !ok {
		return
	}
	if err := s.repo.Genres.Attach(r.Context(), movieID, genreID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDetachGenre(w http.ResponseWriter, r *http.Request) {
	movieID, ok := s.pathID(w, r, "movieID")
	if !ok {
		return
	}
	genreID, ok := s.pathID(w, r, "genreID")
	if !ok {
		return
	}
	if err := s.repo.Genres.Detach(r.Context(), movieID, genreID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreatePerson(people *repository.PeopleRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req personRequest
		if err := decodeJSONBody(w, r, &req); err != nil {
			s.respondDecodeError(w, err)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			s.writeError(w, r, apperror.Invalid("name", "is required"))
			return
		}
		if err := validateLength("name", &name, maxNameLength); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := validateLength("imageUrl", req.ImageURL, maxURLLength); err != nil {
			s.writeError(w, r, err)
			return
		}

		person, err := people.Create(r.Context(), repository.PersonCreateParams{
			Name:         name,
			Introduction: normalizeStringPtr(req.Introduction),
			ImageURL:     normalizeStringPtr(req.ImageURL),
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/%ss/%s", person.Role, person.ID))
		s.respondJSON(w, http.StatusCreated, toPersonResponse(person))
	}
}

func (s *Server) handleListPeople(people *repository.PeopleRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := people.List(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		items := make([]personResponse, 0, len(list))
		for _, person := range list {
			items = append(items, toPersonResponse(person))
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
	}
}

func (s *Server) handleUpdatePerson(people *repository.PeopleRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.pathID(w, r, "personID")
		if !ok {
			return
		}
		var req personUpdateRequest
		if err := decodeJSONBody(w, r, &req); err != nil {
			s.respondDecodeError(w, err)
			return
		}
		if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
			s.writeError(w, r, apperror.Invalid("name", "cannot be blank"))
			return
		}
		if err := validateLength("name", req.Name, maxNameLength); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := validateLength("imageUrl", req.ImageURL, maxURLLength); err != nil {
			s.writeError(w, r, err)
			return
		}

		person, err := people.Update(r.Context(), id, repository.PersonUpdateParams{
			Name:         normalizeStringPtr(req.Name),
			Introduction: normalizeStringPtr(req.Introduction),
			ImageURL:     normalizeStringPtr(req.ImageURL),
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusOK, toPersonResponse(person))
	}
}

func (s *Server) handleDeletePerson(people *repository.PeopleRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.pathID(w, r, "personID")
		if !ok {
			return
		}
		if err := people.Delete(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleGetPerson returns a person together with their filmography.
func (s *Server) handleGetPerson(people *repository.PeopleRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.pathID(w, r, "personID")
		if !ok {
			return
		}
		person, err := people.GetByID(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		filters := repository.MovieListFilters{Limit: 100}
		if people.Role() == domain.RoleDirector {
			filters.DirectorID = &id
		} else {
			filters.ActorID = &id
		}
		movies, err := s.repo.Movies.List(r.Context(), filters)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusOK, personDetailResponse{
			personResponse: toPersonResponse(person),
			Movies:         toMovieResponses(movies),
		})
	}
}

func (s *Server) handleUpsertCast(w http.ResponseWriter, r *http.Request) {
	movieID, ok := s.pathID(w, r, "movieID")
	if !ok {
		return
	}
	actorID, ok := s.pathID(w, r, "personID")
	if !ok {
		return
	}
	// The body is optional; an actor can be credited without a character.
	var req castRequest
	if err := decodeJSONBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.respondDecodeError(w, err)
		return
	}
	if err := validateLength("character", req.Character, maxNameLength); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.repo.Cast.Upsert(r.Context(), movieID, actorID, normalizeStringPtr(req.Character)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveCast(w http.ResponseWriter, r *http.Request) {
	movieID, ok := s.pathID(w, r, "movieID")
	if !ok {
		return
	}
	actorID, ok := s.pathID(w, r, "personID")
	if !ok {
		return
	}
	if err := s.repo.Cast.Remove(r.Context(), movieID, actorID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toSeasonResponse(season domain.Season) seasonResponse {
	resp := seasonResponse{
		ID:        season.ID,
		MovieID:   season.MovieID,
		Number:    season.Number,
		CreatedAt: season.CreatedAt,
	}
	for _, episode := range season.Episodes {
		resp.Episodes = append(resp.Episodes, toEpisodeResponse(episode))
	}
	return resp
}

func toEpisodeResponse(episode domain.Episode) episodeResponse {
	return episodeResponse{
		ID:           episode.ID,
		SeasonID:     episode.SeasonID,
		Number:       episode.Number,
		Title:        episode.Title,
		Summary:      episode.Summary,
		PosterURL:    episode.PosterURL,
		TrailerURL:   episode.TrailerURL,
		RatingCount:  episode.Ratings.Count,
		AverageScore: roundToOneDecimal(episode.Ratings.Average),
		CreatedAt:    episode.CreatedAt,
		UpdatedAt:    episode.UpdatedAt,
	}
}

func toGenreResponse(genre domain.Genre) genreResponse {
	return genreResponse{ID: genre.ID, Name: genre.Name, Description: genre.Description}
}

func toGenreResponses(genres []domain.Genre) []genreResponse {
	items := make([]genreResponse, 0, len(genres))
	for _, genre := range genres {
		items = append(items, toGenreResponse(genre))
	}
	return items
}

func toPersonResponse(person domain.Person) personResponse {
	return personResponse{
		ID:           person.ID,
		Role:         string(person.Role),
		Name:         person.Name,
		Introduction: person.Introduction,
		ImageURL:     person.ImageURL,
		CreatedAt:    person.CreatedAt,
	}
}
