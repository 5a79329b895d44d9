package task

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasktide/conflict-engine/internal/engine"
	"github.com/tasktide/conflict-engine/internal/events"
)

// recordingSubmitter captures submitted tasks.
type recordingSubmitter struct {
	submitted []Task
	err       error
}

func (s *recordingSubmitter) Submit(ctx context.Context, task Task) error {
	if s.err != nil {
		return s.err
	}
	s.submitted = append(s.submitted, task)
	return nil
}

func scanEvent(t *testing.T, eventType string, scopeID uuid.UUID) *events.ScanRequestEvent {
	t.Helper()
	event, err := events.NewScanRequestEvent(eventType, map[string]string{
		"scope_id": scopeID.String(),
	})
	require.NoError(t, err)
	return event
}

func TestScanRequestEventHandler_HandleEvent(t *testing.T) {
	logger := discardLogger()

	t.Run("creates and submits a scan task", func(t *testing.T) {
		factory := NewScopeScanTaskFactory(&stubScanner{report: &engine.ScanReport{}}, logger)
		submitter := &recordingSubmitter{}
		handler := NewScanRequestEventHandler(factory, submitter, logger)

		scopeID := uuid.New()
		err := handler.HandleEvent(context.Background(), scanEvent(t, TaskTypeScopeScan, scopeID))
		require.NoError(t, err)

		require.Len(t, submitter.submitted, 1)
		assert.Equal(t, TaskTypeScopeScan, submitter.submitted[0].Type())
	})

	t.Run("ignores events of other types", func(t *testing.T) {
		factory := NewScopeScanTaskFactory(&stubScanner{}, logger)
		submitter := &recordingSubmitter{}
		handler := NewScanRequestEventHandler(factory, submitter, logger)

		err := handler.HandleEvent(context.Background(), scanEvent(t, "something_else", uuid.New()))
		assert.NoError(t, err)
		assert.Empty(t, submitter.submitted)
	})

	t.Run("rejects a malformed scope ID", func(t *testing.T) {
		factory := NewScopeScanTaskFactory(&stubScanner{}, logger)
		submitter := &recordingSubmitter{}
		handler := NewScanRequestEventHandler(factory, submitter, logger)

		event, err := events.NewScanRequestEvent(TaskTypeScopeScan, map[string]string{
			"scope_id": "not-a-uuid",
		})
		require.NoError(t, err)

		err = handler.HandleEvent(context.Background(), event)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid scope ID")
		assert.Empty(t, submitter.submitted)
	})

	t.Run("propagates submit failures", func(t *testing.T) {
		factory := NewScopeScanTaskFactory(&stubScanner{}, logger)
		submitter := &recordingSubmitter{err: errors.New("queue is full")}
		handler := NewScanRequestEventHandler(factory, submitter, logger)

		err := handler.HandleEvent(context.Background(), scanEvent(t, TaskTypeScopeScan, uuid.New()))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to submit task")
	})
}
