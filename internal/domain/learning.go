package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LearningEntry accumulates feedback outcomes for one
// (scope-or-global, conflict type, resolution type) key. The ranker reads
// the entry's ConfidenceAdjustment at ranking time; the learning store
// updates it on every feedback record.
//
// Two entries exist per (conflict type, resolution type) pair: one scoped to
// a project (ScopeID set) and one global (ScopeID nil). The ranker blends
// them, trusting the scoped entry more as its sample size grows.
type LearningEntry struct {
	ID uuid.UUID `json:"id"`

	// ScopeID is nil for the global entry.
	ScopeID *uuid.UUID `json:"scope_id,omitempty"`

	ConflictType   ConflictType   `json:"conflict_type"`
	ResolutionType ResolutionType `json:"resolution_type"`

	TimesSuggested int     `json:"times_suggested"`
	TimesAccepted  int     `json:"times_accepted"`
	RatingSum      int     `json:"rating_sum"`
	SuccessRate    float64 `json:"success_rate"`

	// ConfidenceAdjustment is the learned signed delta applied to base
	// heuristic scores at ranking time, bounded by the engine's
	// MaxAdjustment setting.
	ConfidenceAdjustment float64 `json:"confidence_adjustment"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewLearningEntry creates a zeroed LearningEntry for the given key.
// A nil scopeID creates the global entry.
func NewLearningEntry(
	scopeID *uuid.UUID,
	conflictType ConflictType,
	resolutionType ResolutionType,
) (*LearningEntry, error) {
	entry := &LearningEntry{
		ID:             uuid.New(),
		ScopeID:        scopeID,
		ConflictType:   conflictType,
		ResolutionType: resolutionType,
		UpdatedAt:      time.Now().UTC(),
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	return entry, nil
}

// Validate checks if the LearningEntry has valid data.
// Returns an error if any field fails validation.
func (e *LearningEntry) Validate() error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("%w: learning entry ID cannot be empty", ErrInvalidID)
	}

	if e.ScopeID != nil && *e.ScopeID == uuid.Nil {
		return fmt.Errorf("%w: scoped entry cannot have nil scope ID", ErrInvalidID)
	}

	if !e.ConflictType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidConflictType, e.ConflictType)
	}

	if !e.ResolutionType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidResolutionType, e.ResolutionType)
	}

	if e.TimesAccepted > e.TimesSuggested {
		return fmt.Errorf("%w: times accepted cannot exceed times suggested", ErrValidation)
	}

	return nil
}

// IsGlobal reports whether this is the global (scope-independent) entry.
func (e *LearningEntry) IsGlobal() bool {
	return e.ScopeID == nil
}
