// Package service provides application-level operations for conflicts,
// suggestions, feedback and notifications.
package service

import (
	"errors"
	"fmt"
)

// Common service errors. Service methods return sentinel errors for expected
// conditions so callers can check them with errors.Is; unexpected errors are
// wrapped in ConflictServiceError. The API layer maps sentinels to HTTP
// status codes.
var (
	// ErrConflictNotFound indicates that the conflict does not exist.
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrSuggestionNotFound indicates that the suggestion does not exist.
	ErrSuggestionNotFound = errors.New("suggestion not found")

	// ErrNotificationNotFound indicates that the notification does not exist.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrConflictNotActive indicates a terminal transition was attempted on a
	// conflict that is already resolved or ignored.
	ErrConflictNotActive = errors.New("conflict is not active")

	// ErrSuggestionNotCurrent indicates feedback was submitted for a
	// suggestion that is already selected or superseded. Feedback on a stale
	// suggestion would double-count in the learning entries, so it is
	// rejected up front.
	ErrSuggestionNotCurrent = errors.New("suggestion is not current")
)

// ConflictServiceError wraps unexpected errors from the service with context.
type ConflictServiceError struct {
	// Operation is the operation that failed (e.g. "submit_feedback").
	Operation string
	// Message is a human-readable description of the error.
	Message string
	// Err is the underlying error that caused the failure.
	Err error
}

// Error implements the error interface for ConflictServiceError.
func (e *ConflictServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conflict service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("conflict service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ConflictServiceError) Unwrap() error {
	return e.Err
}
