package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Clark-Hu/screen-catalog/internal/apperror"
	"github.com/Clark-Hu/screen-catalog/internal/auth"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Warn("failed to encode response", zap.Error(err))
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	case errors.As(err, &maxBytesError):
		s.respondError(w, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "Request body too large")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

// writeError maps domain errors onto HTTP responses. Anything unrecognised
// is logged and reported as a 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *apperror.ValidationError
		duplicate  *apperror.DuplicateScoreError
	)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.As(err, &validation):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", validation.Error())
	case errors.As(err, &duplicate):
		s.respondError(w, http.StatusConflict, "ALREADY_SCORED", "already scored")
	case errors.Is(err, apperror.ErrConflict):
		s.respondError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, apperror.ErrTransient):
		w.Header().Set("Retry-After", "1")
		s.respondError(w, http.StatusServiceUnavailable, "TRY_AGAIN", "try again")
	case errors.Is(err, apperror.ErrUnavailable):
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "storage unavailable")
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

// pathID reads a UUID path parameter. Anything that is not a UUID cannot name
// an existing row, so it is answered with 404 directly.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return "", false
	}
	return id.String(), true
}

// subject returns the authenticated user id. Tokens whose subject is not a
// user id are rejected.
func (s *Server) subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return "", false
	}
	id, err := uuid.Parse(uid)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token subject is not a user id")
		return "", false
	}
	return id.String(), true
}

func normalizeStringPtr(ptr *string) *string {
	if ptr == nil {
		return nil
	}
	val := strings.TrimSpace(*ptr)
	if val == "" {
		return nil
	}
	return &val
}

func firstNonNil[T any](primary, fallback *T) *T {
	if primary != nil {
		return primary
	}
	return fallback
}

func roundToOneDecimal(value float64) float64 {
	return math.Round(value*10) / 10.0
}

func validateUUIDPtr(field string, value *string) error {
	if value == nil {
		return nil
	}
	if _, err := uuid.Parse(*value); err != nil {
		return apperror.Invalid(field, "must be a UUID")
	}
	return nil
}

func validateLength(field string, value *string, max int) error {
	if value != nil && len([]rune(*value)) > max {
		return apperror.Invalid(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return nil
}
