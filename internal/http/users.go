package httpserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Clark-Hu/screen-catalog/internal/apperror"
	"github.com/Clark-Hu/screen-catalog/internal/domain"
	"github.com/Clark-Hu/screen-catalog/internal/repository"
)

const maxUsernameLength = 64

type userRequest struct {
	Username    string  `json:"username"`
	PhoneNumber *string `json:"phoneNumber"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	PhoneNumber *string   `json:"phoneNumber,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type wishlistEntryResponse struct {
	Movie   movieResponse `json:"movie"`
	AddedAt time.Time     `json:"addedAt"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		s.writeError(w, r, apperror.Invalid("username", "is required"))
		return
	}
	if err := validateLength("username", &username, maxUsernameLength); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.repo.Users.Create(r.Context(), repository.UserCreateParams{
		Username:    username,
		PhoneNumber: normalizeStringPtr(req.PhoneNumber),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/users/%s", user.ID))
	s.respondJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "userID")
	if !ok {
		return
	}
	user, err := s.repo.Users.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleListWishlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.subject(w, r)
	if !ok {
		return
	}
	entries, err := s.repo.Wishlist.List(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]wishlistEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, wishlistEntryResponse{Movie: toMovieResponse(e.Movie), AddedAt: e.AddedAt})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleAddWishlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.subject(w, r)
	if !ok {
		return
	}
	movieID, ok := s.pathID(w, r, "movieID")
	if !ok {
		return
	}
	if err := s.repo.Wishlist.Add(r.Context(), userID, movieID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveWishlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.subject(w, r)
	if !ok {
		return
	}
	movieID, ok := s.pathID(w, r, "movieID")
	if !ok {
		return
	}
	if err := s.repo.Wishlist.Remove(r.Context(), userID, movieID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Username:    user.Username,
		PhoneNumber: user.PhoneNumber,
		CreatedAt:   user.CreatedAt,
	}
}
