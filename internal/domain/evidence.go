package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Evidence payloads carry the detector-specific magnitude and supporting
// facts for a conflict. Each conflict type has exactly one payload shape;
// DecodeEvidence switches exhaustively on the conflict type so a new
// detector cannot be added without extending the union.

// OverloadEvidence is the payload for resource_overload conflicts.
type OverloadEvidence struct {
	AssigneeID     uuid.UUID `json:"assignee_id"`
	CommittedDays  float64   `json:"committed_days"`
	CapacityDays   float64   `json:"capacity_days"`
	OverloadRatio  float64   `json:"overload_ratio"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
}

// ScheduleEvidence is the payload for schedule_infeasible conflicts.
type ScheduleEvidence struct {
	// ViolationDays is the magnitude: how many days the schedule is off by.
	ViolationDays float64 `json:"violation_days"`

	// PredecessorID and SuccessorID are set for finish-to-start violations;
	// both are Nil for single-task infeasible windows.
	PredecessorID uuid.UUID `json:"predecessor_id,omitempty"`
	SuccessorID   uuid.UUID `json:"successor_id,omitempty"`
}

// DependencyEvidence is the payload for dependency_violation conflicts.
type DependencyEvidence struct {
	// Cycle holds the task IDs forming a dependency cycle, in walk order.
	// Empty for blocked-chain violations.
	Cycle []uuid.UUID `json:"cycle,omitempty"`

	// BlockedTaskID is the task whose upstream chain is entirely incomplete
	// and overdue. Nil for cycle violations.
	BlockedTaskID uuid.UUID `json:"blocked_task_id,omitempty"`

	// ChainLength is the number of incomplete overdue predecessors found.
	ChainLength int `json:"chain_length,omitempty"`
}

// EncodeEvidence serializes an evidence payload to the JSON form stored on a
// Conflict. The payload must match the conflict type it will be stored with.
func EncodeEvidence(payload any) (json.RawMessage, error) {
	switch payload.(type) {
	case OverloadEvidence, *OverloadEvidence,
		ScheduleEvidence, *ScheduleEvidence,
		DependencyEvidence, *DependencyEvidence:
		// Known payload shape.
	default:
		return nil, fmt.Errorf("%w: unknown evidence payload type %T", ErrValidation, payload)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode evidence: %w", err)
	}
	return raw, nil
}

// DecodeEvidence deserializes a conflict's evidence payload into the typed
// form for its conflict type. Returns ErrInvalidConflictType for unknown
// types so serialization boundaries stay exhaustive.
func DecodeEvidence(conflictType ConflictType, raw json.RawMessage) (any, error) {
	switch conflictType {
	case ConflictTypeResourceOverload:
		var ev OverloadEvidence
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode overload evidence: %w", err)
		}
		return ev, nil
	case ConflictTypeScheduleInfeasible:
		var ev ScheduleEvidence
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode schedule evidence: %w", err)
		}
		return ev, nil
	case ConflictTypeDependencyViolation:
		var ev DependencyEvidence
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode dependency evidence: %w", err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidConflictType, conflictType)
	}
}
