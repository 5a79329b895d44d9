// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidConflictType is returned when a conflict type is not one of
	// the known detector types.
	ErrInvalidConflictType = errors.New("invalid conflict type")

	// ErrInvalidSeverity is returned when a severity value is unknown.
	ErrInvalidSeverity = errors.New("invalid severity")

	// ErrInvalidConflictStatus is returned when a conflict status is unknown.
	ErrInvalidConflictStatus = errors.New("invalid conflict status")

	// ErrInvalidResolutionType is returned when a resolution type is not one
	// of the known candidate types.
	ErrInvalidResolutionType = errors.New("invalid resolution type")

	// ErrInvalidFeedbackOutcome is returned when a feedback outcome is
	// neither accepted nor rejected.
	ErrInvalidFeedbackOutcome = errors.New("invalid feedback outcome")

	// ErrInvalidRating is returned when an effectiveness rating is outside
	// the 1-5 range.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrConflictNotActive is returned when a terminal state transition is
	// attempted on a conflict that is already resolved or ignored.
	ErrConflictNotActive = errors.New("conflict is not active")
)
