package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FeedbackOutcome is the user's verdict on a suggestion.
type FeedbackOutcome string

// Known feedback outcomes.
const (
	FeedbackOutcomeAccepted FeedbackOutcome = "accepted"
	FeedbackOutcomeRejected FeedbackOutcome = "rejected"
)

// IsValid reports whether the outcome is one of the known outcomes.
func (o FeedbackOutcome) IsValid() bool {
	switch o {
	case FeedbackOutcomeAccepted, FeedbackOutcomeRejected:
		return true
	}
	return false
}

// FeedbackRecord captures a user's reaction to a resolution suggestion.
// Records are immutable once created; they feed the learning store and are
// never updated or deleted.
type FeedbackRecord struct {
	ID           uuid.UUID       `json:"id"`
	SuggestionID uuid.UUID       `json:"suggestion_id"`
	Outcome      FeedbackOutcome `json:"outcome"`

	// Rating is the optional 1-5 effectiveness rating; nil when the user
	// accepted or rejected without rating.
	Rating *int `json:"rating,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewFeedbackRecord creates a new FeedbackRecord for a suggestion.
// Returns an error if validation fails.
func NewFeedbackRecord(
	suggestionID uuid.UUID,
	outcome FeedbackOutcome,
	rating *int,
) (*FeedbackRecord, error) {
	record := &FeedbackRecord{
		ID:           uuid.New(),
		SuggestionID: suggestionID,
		Outcome:      outcome,
		Rating:       rating,
		CreatedAt:    time.Now().UTC(),
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}

// Validate checks if the FeedbackRecord has valid data.
// Returns an error if any field fails validation.
func (r *FeedbackRecord) Validate() error {
	if r.ID == uuid.Nil {
		return fmt.Errorf("%w: feedback ID cannot be empty", ErrInvalidID)
	}

	if r.SuggestionID == uuid.Nil {
		return fmt.Errorf("%w: suggestion ID cannot be empty", ErrInvalidID)
	}

	if !r.Outcome.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidFeedbackOutcome, r.Outcome)
	}

	if r.Rating != nil && (*r.Rating < 1 || *r.Rating > 5) {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, *r.Rating)
	}

	return nil
}
