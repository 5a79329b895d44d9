package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConflictType identifies which detector produced a conflict.
type ConflictType string

// Known conflict types.
const (
	ConflictTypeResourceOverload    ConflictType = "resource_overload"
	ConflictTypeScheduleInfeasible  ConflictType = "schedule_infeasible"
	ConflictTypeDependencyViolation ConflictType = "dependency_violation"
)

// IsValid reports whether the conflict type is one of the known types.
func (t ConflictType) IsValid() bool {
	switch t {
	case ConflictTypeResourceOverload, ConflictTypeScheduleInfeasible, ConflictTypeDependencyViolation:
		return true
	}
	return false
}

// Severity expresses how badly a conflict impacts the schedule, derived from
// the detector's magnitude.
type Severity string

// Severity levels, ordered from least to most impactful.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid reports whether the severity is one of the known levels.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ConflictStatus is the lifecycle state of a conflict.
type ConflictStatus string

// Conflict lifecycle states. Resolved and ignored are terminal for a
// fingerprint; a re-detected occurrence creates a fresh active conflict.
const (
	ConflictStatusActive   ConflictStatus = "active"
	ConflictStatusResolved ConflictStatus = "resolved"
	ConflictStatusIgnored  ConflictStatus = "ignored"
)

// IsValid reports whether the status is one of the known states.
func (s ConflictStatus) IsValid() bool {
	switch s {
	case ConflictStatusActive, ConflictStatusResolved, ConflictStatusIgnored:
		return true
	}
	return false
}

// Resolution notes recorded when a conflict leaves the active state without
// an explicit user-selected suggestion.
const (
	// ResolutionNoteAutoCleared marks conflicts closed because a re-scan no
	// longer detected the underlying issue.
	ResolutionNoteAutoCleared = "auto-cleared"
)

// Conflict represents one detected scheduling or resourcing problem within a
// scope. Its identity for deduplication purposes is the Fingerprint; at most
// one active conflict per (scope, fingerprint) exists at any time.
type Conflict struct {
	ID             uuid.UUID       `json:"id"`
	ScopeID        uuid.UUID       `json:"scope_id"`
	Fingerprint    string          `json:"fingerprint"`
	Type           ConflictType    `json:"type"`
	Severity       Severity        `json:"severity"`
	Status         ConflictStatus  `json:"status"`
	TaskIDs        []uuid.UUID     `json:"task_ids"`
	UserIDs        []uuid.UUID     `json:"user_ids"`
	Evidence       json.RawMessage `json:"evidence"`
	DetectedAt     time.Time       `json:"detected_at"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	ResolutionNote string          `json:"resolution_note,omitempty"`
}

// NewConflict creates a new active Conflict for the given scope. The affected
// task IDs are stored sorted so the fingerprint and all downstream output are
// deterministic regardless of detector emission order.
// Returns an error if validation fails.
func NewConflict(
	scopeID uuid.UUID,
	conflictType ConflictType,
	severity Severity,
	taskIDs []uuid.UUID,
	userIDs []uuid.UUID,
	evidence json.RawMessage,
) (*Conflict, error) {
	sortedTasks := sortedIDs(taskIDs)

	conflict := &Conflict{
		ID:          uuid.New(),
		ScopeID:     scopeID,
		Fingerprint: Fingerprint(scopeID, conflictType, taskIDs),
		Type:        conflictType,
		Severity:    severity,
		Status:      ConflictStatusActive,
		TaskIDs:     sortedTasks,
		UserIDs:     sortedIDs(userIDs),
		Evidence:    evidence,
		DetectedAt:  time.Now().UTC(),
	}

	if err := conflict.Validate(); err != nil {
		return nil, err
	}

	return conflict, nil
}

// Validate checks if the Conflict has valid data.
// Returns an error if any field fails validation.
func (c *Conflict) Validate() error {
	if c.ID == uuid.Nil {
		return fmt.Errorf("%w: conflict ID cannot be empty", ErrInvalidID)
	}

	if c.ScopeID == uuid.Nil {
		return fmt.Errorf("%w: scope ID cannot be empty", ErrInvalidID)
	}

	if !c.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidConflictType, c.Type)
	}

	if !c.Severity.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, c.Severity)
	}

	if !c.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidConflictStatus, c.Status)
	}

	if len(c.TaskIDs) == 0 {
		return fmt.Errorf("%w: conflict must reference at least one task", ErrValidation)
	}

	if c.Fingerprint == "" {
		return fmt.Errorf("%w: fingerprint cannot be empty", ErrValidation)
	}

	return nil
}

// Resolve transitions the conflict to the resolved state with the given note.
// The transition is terminal. Returns ErrConflictNotActive if the conflict is
// not currently active.
func (c *Conflict) Resolve(note string, now time.Time) error {
	if c.Status != ConflictStatusActive {
		return ErrConflictNotActive
	}

	resolvedAt := now.UTC()
	c.Status = ConflictStatusResolved
	c.ResolvedAt = &resolvedAt
	c.ResolutionNote = note
	return nil
}

// Ignore transitions the conflict to the ignored state with the given reason.
// The transition is terminal. Returns ErrConflictNotActive if the conflict is
// not currently active.
func (c *Conflict) Ignore(reason string, now time.Time) error {
	if c.Status != ConflictStatusActive {
		return ErrConflictNotActive
	}

	resolvedAt := now.UTC()
	c.Status = ConflictStatusIgnored
	c.ResolvedAt = &resolvedAt
	c.ResolutionNote = reason
	return nil
}

// Fingerprint computes the stable identity of a conflict occurrence: a hex
// SHA-256 over the scope ID, conflict type and the sorted affected task IDs.
// Two detections of the same underlying problem always produce the same
// fingerprint, which is what makes repeated scans idempotent.
func Fingerprint(scopeID uuid.UUID, conflictType ConflictType, taskIDs []uuid.UUID) string {
	ids := sortedIDs(taskIDs)

	parts := make([]string, 0, len(ids)+2)
	parts = append(parts, scopeID.String(), string(conflictType))
	for _, id := range ids {
		parts = append(parts, id.String())
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// sortedIDs returns a sorted copy of the given IDs with duplicates removed.
func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].String(), out[j].String()) < 0
	})
	return out
}
