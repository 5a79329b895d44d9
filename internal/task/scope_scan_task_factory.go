package task

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ScopeScanTaskFactory creates ScopeScanTask instances, both fresh ones for
// new requests and rehydrated ones for tasks recovered from the database.
type ScopeScanTaskFactory struct {
	scanner ScopeScanner
	logger  *slog.Logger
}

// NewScopeScanTaskFactory creates a new factory for ScopeScanTasks.
func NewScopeScanTaskFactory(scanner ScopeScanner, logger *slog.Logger) *ScopeScanTaskFactory {
	if scanner == nil {
		panic("scanner cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ScopeScanTaskFactory{
		scanner: scanner,
		logger:  logger.With(slog.String("component", "scope_scan_task_factory")),
	}
}

// CreateTask creates a new ScopeScanTask for the specified scope.
func (f *ScopeScanTaskFactory) CreateTask(scopeID uuid.UUID) (Task, error) {
	return NewScopeScanTask(scopeID, f.scanner, f.logger)
}

// RehydrateTask rebuilds an executable task from a persisted row, keeping the
// stored task ID so status updates land on the original record.
func (f *ScopeScanTaskFactory) RehydrateTask(id uuid.UUID, status TaskStatus, payload []byte) (Task, error) {
	var data scopeScanPayload
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scope scan payload: %w", err)
	}

	task, err := NewScopeScanTask(data.ScopeID, f.scanner, f.logger)
	if err != nil {
		return nil, err
	}
	task.id = id
	task.status = status
	return task, nil
}
