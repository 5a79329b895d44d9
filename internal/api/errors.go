package api

import (
	"errors"
	"net/http"

	"github.com/tasktide/conflict-engine/internal/engine"
	"github.com/tasktide/conflict-engine/internal/service"
	"github.com/tasktide/conflict-engine/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrConflictNotFound),
		errors.Is(err, service.ErrSuggestionNotFound),
		errors.Is(err, service.ErrNotificationNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrConflictNotActive),
		errors.Is(err, service.ErrSuggestionNotCurrent),
		errors.Is(err, engine.ErrScanInProgress),
		errors.Is(err, store.ErrActiveConflictExists):
		return http.StatusConflict

	case errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message based
// on the error type.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrConflictNotFound):
		return "Conflict not found"
	case errors.Is(err, service.ErrSuggestionNotFound):
		return "Suggestion not found"
	case errors.Is(err, service.ErrNotificationNotFound):
		return "Notification not found"
	case errors.Is(err, service.ErrConflictNotActive):
		return "Conflict is no longer active"
	case errors.Is(err, service.ErrSuggestionNotCurrent):
		return "Suggestion is no longer open for feedback"
	case errors.Is(err, engine.ErrScanInProgress):
		return "A scan is already running for this scope"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"
	default:
		return "An unexpected error occurred"
	}
}
