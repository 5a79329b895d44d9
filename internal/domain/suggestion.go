package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResolutionType identifies the remediation a suggestion proposes.
type ResolutionType string

// Known resolution types.
const (
	ResolutionTypeReassign   ResolutionType = "reassign"
	ResolutionTypeReschedule ResolutionType = "reschedule"
	ResolutionTypeSplit      ResolutionType = "split"
	ResolutionTypeEscalate   ResolutionType = "escalate"
	ResolutionTypeIgnore     ResolutionType = "ignore"
)

// resolutionTypePriority fixes the tie-break order for ranking: when two
// candidates have identical final scores they order by this list, never by
// insertion order, so ranked output is deterministic.
var resolutionTypePriority = map[ResolutionType]int{
	ResolutionTypeReassign:   0,
	ResolutionTypeReschedule: 1,
	ResolutionTypeSplit:      2,
	ResolutionTypeEscalate:   3,
	ResolutionTypeIgnore:     4,
}

// IsValid reports whether the resolution type is one of the known types.
func (t ResolutionType) IsValid() bool {
	_, ok := resolutionTypePriority[t]
	return ok
}

// Priority returns the fixed tie-break rank of the resolution type; lower
// ranks sort first. Unknown types sort last.
func (t ResolutionType) Priority() int {
	if p, ok := resolutionTypePriority[t]; ok {
		return p
	}
	return len(resolutionTypePriority)
}

// SuggestionStatus is the lifecycle state of a resolution suggestion.
type SuggestionStatus string

// Suggestion lifecycle states. Each detection pass generates a fresh set of
// current suggestions and marks the previous set superseded, preserving the
// audit trail; a user acting on a suggestion marks it selected.
const (
	SuggestionStatusCurrent    SuggestionStatus = "current"
	SuggestionStatusSuperseded SuggestionStatus = "superseded"
	SuggestionStatusSelected   SuggestionStatus = "selected"
)

// IsValid reports whether the status is one of the known states.
func (s SuggestionStatus) IsValid() bool {
	switch s {
	case SuggestionStatusCurrent, SuggestionStatusSuperseded, SuggestionStatusSelected:
		return true
	}
	return false
}

// ResolutionSuggestion is one typed remediation candidate for a conflict,
// scored by the confidence ranker.
type ResolutionSuggestion struct {
	ID         uuid.UUID        `json:"id"`
	ConflictID uuid.UUID        `json:"conflict_id"`
	Type       ResolutionType   `json:"type"`
	Params     json.RawMessage  `json:"params"`
	Confidence float64          `json:"confidence"`
	Rationale  string           `json:"rationale"`

	// SuccessRateSnapshot records the historical success rate for this
	// (conflict type, resolution type) at ranking time, for audit.
	SuccessRateSnapshot float64 `json:"success_rate_snapshot"`

	Status    SuggestionStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// ReassignParams is the structured parameter payload for reassign suggestions.
type ReassignParams struct {
	TaskID           uuid.UUID `json:"task_id"`
	TargetAssigneeID uuid.UUID `json:"target_assignee_id"`
	SkillMatch       float64   `json:"skill_match"`
}

// RescheduleParams is the structured parameter payload for reschedule
// suggestions.
type RescheduleParams struct {
	TaskID   uuid.UUID `json:"task_id"`
	NewStart time.Time `json:"new_start"`
	NewDue   time.Time `json:"new_due"`
}

// SplitParams is the structured parameter payload for split suggestions.
type SplitParams struct {
	TaskID     uuid.UUID `json:"task_id"`
	PartCount  int       `json:"part_count"`
	PartEffort float64   `json:"part_effort"`
}

// NewResolutionSuggestion creates a new current suggestion for a conflict.
// Returns an error if validation fails.
func NewResolutionSuggestion(
	conflictID uuid.UUID,
	resolutionType ResolutionType,
	params json.RawMessage,
	confidence float64,
	rationale string,
	successRateSnapshot float64,
) (*ResolutionSuggestion, error) {
	suggestion := &ResolutionSuggestion{
		ID:                  uuid.New(),
		ConflictID:          conflictID,
		Type:                resolutionType,
		Params:              params,
		Confidence:          confidence,
		Rationale:           rationale,
		SuccessRateSnapshot: successRateSnapshot,
		Status:              SuggestionStatusCurrent,
		CreatedAt:           time.Now().UTC(),
	}

	if err := suggestion.Validate(); err != nil {
		return nil, err
	}

	return suggestion, nil
}

// Validate checks if the ResolutionSuggestion has valid data.
// Returns an error if any field fails validation.
func (s *ResolutionSuggestion) Validate() error {
	if s.ID == uuid.Nil {
		return fmt.Errorf("%w: suggestion ID cannot be empty", ErrInvalidID)
	}

	if s.ConflictID == uuid.Nil {
		return fmt.Errorf("%w: conflict ID cannot be empty", ErrInvalidID)
	}

	if !s.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidResolutionType, s.Type)
	}

	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be in [0, 1]", ErrValidation)
	}

	if !s.Status.IsValid() {
		return fmt.Errorf("%w: invalid suggestion status %q", ErrValidation, s.Status)
	}

	return nil
}
