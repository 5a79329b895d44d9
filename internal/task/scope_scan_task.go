package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/engine"
)

// Common errors.
var (
	ErrNilScanner   = errors.New("scanner cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
	ErrEmptyScopeID = errors.New("scope ID cannot be empty")
)

// ScopeScanner runs a full detection pass over one scope. Satisfied by
// *engine.Scanner.
type ScopeScanner interface {
	ScanScope(ctx context.Context, scopeID uuid.UUID) (*engine.ScanReport, error)
}

// scopeScanPayload represents the serialized data stored in the task.
type scopeScanPayload struct {
	ScopeID uuid.UUID `json:"scope_id"`
}

// ScopeScanTask implements the Task interface for running one scope scan in
// the background.
type ScopeScanTask struct {
	id      uuid.UUID
	scopeID uuid.UUID
	scanner ScopeScanner
	logger  *slog.Logger
	status  TaskStatus
}

// NewScopeScanTask creates a new scope scan task.
func NewScopeScanTask(
	scopeID uuid.UUID,
	scanner ScopeScanner,
	logger *slog.Logger,
) (*ScopeScanTask, error) {
	if scanner == nil {
		return nil, ErrNilScanner
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if scopeID == uuid.Nil {
		return nil, ErrEmptyScopeID
	}

	return &ScopeScanTask{
		id:      uuid.New(),
		scopeID: scopeID,
		scanner: scanner,
		logger:  logger.With(slog.String("task_type", TaskTypeScopeScan), slog.String("scope_id", scopeID.String())),
		status:  TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier.
func (t *ScopeScanTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier.
func (t *ScopeScanTask) Type() string {
	return TaskTypeScopeScan
}

// Payload returns the task data as a byte slice.
func (t *ScopeScanTask) Payload() []byte {
	data, err := json.Marshal(scopeScanPayload{ScopeID: t.scopeID})
	if err != nil {
		t.logger.Error("failed to marshal task payload", slog.String("error", err.Error()))
		return []byte{}
	}
	return data
}

// Status returns the current task status.
func (t *ScopeScanTask) Status() TaskStatus {
	return t.status
}

// Execute runs the scan. A scope already being scanned counts as a failure so
// the runner records it; the caller that wants the result simply re-submits
// once the running scan finishes.
func (t *ScopeScanTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing
	t.logger.Info("starting scope scan task")

	if err := ctx.Err(); err != nil {
		t.status = TaskStatusFailed
		t.logger.Error("task cancelled by context", slog.String("error", err.Error()))
		return fmt.Errorf("task cancelled by context: %w", err)
	}

	report, err := t.scanner.ScanScope(ctx, t.scopeID)
	if err != nil {
		t.status = TaskStatusFailed
		if errors.Is(err, engine.ErrScanInProgress) {
			t.logger.Warn("scope already being scanned", slog.String("error", err.Error()))
		} else {
			t.logger.Error("scope scan failed", slog.String("error", err.Error()))
		}
		return fmt.Errorf("scope scan failed: %w", err)
	}

	t.status = TaskStatusCompleted
	t.logger.Info("scope scan task completed",
		slog.Int("detected", report.Detected),
		slog.Int("created", report.Created),
		slog.Int("auto_cleared", report.AutoCleared),
		slog.Int("active", report.Active))
	return nil
}
