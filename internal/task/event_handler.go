package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/events"
)

// TaskFactory creates tasks for a scope. Satisfied by *ScopeScanTaskFactory.
type TaskFactory interface {
	CreateTask(scopeID uuid.UUID) (Task, error)
}

// TaskSubmitter accepts tasks for background processing. Satisfied by
// *TaskRunner.
type TaskSubmitter interface {
	Submit(ctx context.Context, task Task) error
}

// ScanRequestEventHandler implements the events.EventHandler interface,
// turning scan request events into persisted background tasks.
type ScanRequestEventHandler struct {
	factory   TaskFactory
	submitter TaskSubmitter
	logger    *slog.Logger
}

// NewScanRequestEventHandler creates an event handler that uses the given
// factory to create tasks and submits them to the provided submitter.
func NewScanRequestEventHandler(
	factory TaskFactory,
	submitter TaskSubmitter,
	logger *slog.Logger,
) *ScanRequestEventHandler {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if submitter == nil {
		panic("submitter cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ScanRequestEventHandler{
		factory:   factory,
		submitter: submitter,
		logger:    logger.With(slog.String("component", "scan_request_event_handler")),
	}
}

// HandleEvent processes scan request events by creating and submitting scope
// scan tasks. Events of other types are ignored.
func (h *ScanRequestEventHandler) HandleEvent(ctx context.Context, event *events.ScanRequestEvent) error {
	if event.Type != TaskTypeScopeScan {
		h.logger.Debug("ignoring event with unsupported type",
			slog.String("event_type", event.Type),
			slog.String("event_id", event.ID.String()))
		return nil
	}

	var payload struct {
		ScopeID string `json:"scope_id"`
	}
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("failed to unmarshal payload",
			slog.String("error", err.Error()),
			slog.String("event_id", event.ID.String()))
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	scopeID, err := uuid.Parse(payload.ScopeID)
	if err != nil {
		h.logger.Error("invalid scope ID",
			slog.String("error", err.Error()),
			slog.String("scope_id", payload.ScopeID),
			slog.String("event_id", event.ID.String()))
		return fmt.Errorf("invalid scope ID: %w", err)
	}

	task, err := h.factory.CreateTask(scopeID)
	if err != nil {
		h.logger.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("scope_id", scopeID.String()),
			slog.String("event_id", event.ID.String()))
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.submitter.Submit(ctx, task); err != nil {
		h.logger.Error("failed to submit task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID().String()),
			slog.String("scope_id", scopeID.String()),
			slog.String("event_id", event.ID.String()))
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Info("scan task created and submitted",
		slog.String("task_id", task.ID().String()),
		slog.String("scope_id", scopeID.String()),
		slog.String("event_id", event.ID.String()))
	return nil
}

// Ensure ScanRequestEventHandler implements events.EventHandler.
var _ events.EventHandler = (*ScanRequestEventHandler)(nil)
