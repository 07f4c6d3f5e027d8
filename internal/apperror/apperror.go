// Package apperror defines the typed errors returned across the catalog
// service. Each type unwraps to one of the package sentinels so callers can
// branch with errors.Is and still recover details with errors.As.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrTransient   = errors.New("transient failure")
	ErrUnavailable = errors.New("storage unavailable")
)

// Resource names used by the score maintainer.
const (
	ResourceSubject     = "subject"
	ResourceTarget      = "target"
	ResourceScoreRecord = "score record"
)

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

// ValidationError reports malformed input. It is always raised before any
// storage access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// DuplicateScoreError is returned when a subject scores a target twice.
type DuplicateScoreError struct {
	SubjectID string
	TargetID  string
}

func (e *DuplicateScoreError) Error() string {
	return fmt.Sprintf("subject %s already scored target %s", e.SubjectID, e.TargetID)
}

func (e *DuplicateScoreError) Unwrap() error { return ErrConflict }

// ConflictError reports a uniqueness clash on a catalog entity, e.g. a genre
// name or wishlist entry that already exists.
type ConflictError struct {
	Resource string
	Key      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Resource, e.Key)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Conflict builds a ConflictError.
func Conflict(resource, key string) *ConflictError {
	return &ConflictError{Resource: resource, Key: key}
}

// TransientFailureError is returned once the bounded retries for a
// contended transaction are exhausted. Callers may try again later.
type TransientFailureError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientFailureError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *TransientFailureError) Unwrap() []error { return []error{ErrTransient, e.Err} }

// StorageUnavailableError wraps a lost or unreachable storage connection.
type StorageUnavailableError struct {
	Err error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Err)
}

func (e *StorageUnavailableError) Unwrap() []error { return []error{ErrUnavailable, e.Err} }
