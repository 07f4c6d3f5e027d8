package httpserver

import (
	"net/http"
	"time"

	"github.com/Clark-Hu/screen-catalog/internal/domain"
	"github.com/Clark-Hu/screen-catalog/internal/score"
)

type ratingRequest struct {
	Score int `json:"score"`
}

type reviewRequest struct {
	Score   int     `json:"score"`
	Content string  `json:"content"`
	Comment *string `json:"comment"`
	Spoiler bool    `json:"spoiler"`
}

type scoreResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username,omitempty"`
	TargetID  string    `json:"targetId"`
	Score     int       `json:"score"`
	Content   *string   `json:"content,omitempty"`
	Comment   *string   `json:"comment,omitempty"`
	Spoiler   *bool     `json:"spoiler,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type scoreListResponse struct {
	Items []scoreResponse `json:"items"`
}

// scoreSubmission reads the caller, the target and the body of a score write.
func (s *Server) scoreSubmission(w http.ResponseWriter, r *http.Request, kind domain.Kind, targetParam string) (score.Submission, bool) {
	subjectID, ok := s.subject(w, r)
	if !ok {
		return score.Submission{}, false
	}
	targetID, ok := s.pathID(w, r, targetParam)
	if !ok {
		return score.Submission{}, false
	}
	sub := score.Submission{Kind: kind, SubjectID: subjectID, TargetID: targetID}

	switch kind {
	case domain.KindReview:
		var req reviewRequest
		if err := decodeJSONBody(w, r, &req); err != nil {
			s.respondDecodeError(w, err)
			return score.Submission{}, false
		}
		sub.Score = req.Score
		sub.Review = &domain.ReviewText{
			Content: req.Content,
			Comment: normalizeStringPtr(req.Comment),
			Spoiler: req.Spoiler,
		}
	default:
		var req ratingRequest
		if err := decodeJSONBody(w, r, &req); err != nil {
			s.respondDecodeError(w, err)
			return score.Submission{}, false
		}
		sub.Score = req.Score
	}
	return sub, true
}

func (s *Server) addScore(kind domain.Kind, targetParam string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, ok := s.scoreSubmission(w, r, kind, targetParam)
		if !ok {
			return
		}
		rec, err := s.scores.Add(r.Context(), sub)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusCreated, toScoreResponse(rec))
	}
}

func (s *Server) updateScore(kind domain.Kind, targetParam string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, ok := s.scoreSubmission(w, r, kind, targetParam)
		if !ok {
			return
		}
		rec, err := s.scores.Update(r.Context(), sub)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusOK, toScoreResponse(rec))
	}
}

func (s *Server) removeScore(kind domain.Kind, targetParam string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, ok := s.subject(w, r)
		if !ok {
			return
		}
		targetID, ok := s.pathID(w, r, targetParam)
		if !ok {
			return
		}
		rec, err := s.scores.Remove(r.Context(), kind, subjectID, targetID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusOK, toScoreResponse(rec))
	}
}

// getScore returns the caller's own score on a target.
func (s *Server) getScore(kind domain.Kind, targetParam string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, ok := s.subject(w, r)
		if !ok {
			return
		}
		targetID, ok := s.pathID(w, r, targetParam)
		if !ok {
			return
		}
		rec, err := s.repo.Scores.GetRecord(r.Context(), kind, subjectID, targetID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusOK, toScoreResponse(rec))
	}
}

func (s *Server) removeScoreByID(kind domain.Kind, recordParam string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, ok := s.subject(w, r)
		if !ok {
			return
		}
		recordID, ok := s.pathID(w, r, recordParam)
		if !ok {
			return
		}
		rec, err := s.scores.RemoveByID(r.Context(), kind, subjectID, recordID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusOK, toScoreResponse(rec))
	}
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	movieID, ok := s.pathID(w, r, "movieID")
	if !ok {
		return
	}
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if _, err := s.repo.Movies.GetByID(r.Context(), movieID); err != nil {
		s.writeError(w, r, err)
		return
	}

	reviews, err := s.repo.Scores.ListReviews(r.Context(), movieID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]scoreResponse, 0, len(reviews))
	for _, rec := range reviews {
		items = append(items, toScoreResponse(rec))
	}
	s.respondJSON(w, http.StatusOK, scoreListResponse{Items: items})
}

func toScoreResponse(rec domain.ScoreRecord) scoreResponse {
	resp := scoreResponse{
		ID:        rec.ID,
		Kind:      string(rec.Kind),
		UserID:    rec.SubjectID,
		Username:  rec.Username,
		TargetID:  rec.TargetID,
		Score:     rec.Score,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.Review != nil {
		content := rec.Review.Content
		spoiler := rec.Review.Spoiler
		resp.Content = &content
		resp.Comment = rec.Review.Comment
		resp.Spoiler = &spoiler
	}
	return resp
}
