package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasktide/conflict-engine/internal/engine"
)

// stubScanner implements ScopeScanner for testing.
type stubScanner struct {
	report  *engine.ScanReport
	err     error
	scanned []uuid.UUID
}

func (s *stubScanner) ScanScope(ctx context.Context, scopeID uuid.UUID) (*engine.ScanReport, error) {
	s.scanned = append(s.scanned, scopeID)
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

func TestNewScopeScanTask(t *testing.T) {
	scanner := &stubScanner{report: &engine.ScanReport{}}
	logger := discardLogger()

	t.Run("valid task", func(t *testing.T) {
		task, err := NewScopeScanTask(uuid.New(), scanner, logger)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, task.ID())
		assert.Equal(t, TaskTypeScopeScan, task.Type())
		assert.Equal(t, TaskStatusPending, task.Status())
	})

	t.Run("nil scanner", func(t *testing.T) {
		_, err := NewScopeScanTask(uuid.New(), nil, logger)
		assert.ErrorIs(t, err, ErrNilScanner)
	})

	t.Run("nil logger", func(t *testing.T) {
		_, err := NewScopeScanTask(uuid.New(), scanner, nil)
		assert.ErrorIs(t, err, ErrNilLogger)
	})

	t.Run("empty scope ID", func(t *testing.T) {
		_, err := NewScopeScanTask(uuid.Nil, scanner, logger)
		assert.ErrorIs(t, err, ErrEmptyScopeID)
	})
}

func TestScopeScanTask_Payload(t *testing.T) {
	scopeID := uuid.New()
	task, err := NewScopeScanTask(scopeID, &stubScanner{}, discardLogger())
	require.NoError(t, err)

	var payload struct {
		ScopeID uuid.UUID `json:"scope_id"`
	}
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, scopeID, payload.ScopeID)
}

func TestScopeScanTask_Execute(t *testing.T) {
	scopeID := uuid.New()

	t.Run("successful scan", func(t *testing.T) {
		scanner := &stubScanner{report: &engine.ScanReport{
			ScopeID:  scopeID,
			Detected: 3,
			Created:  2,
			Active:   2,
		}}
		task, err := NewScopeScanTask(scopeID, scanner, discardLogger())
		require.NoError(t, err)

		err = task.Execute(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, TaskStatusCompleted, task.Status())
		assert.Equal(t, []uuid.UUID{scopeID}, scanner.scanned)
	})

	t.Run("scan failure", func(t *testing.T) {
		scanner := &stubScanner{err: errors.New("snapshot broken")}
		task, err := NewScopeScanTask(scopeID, scanner, discardLogger())
		require.NoError(t, err)

		err = task.Execute(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "scope scan failed")
		assert.Equal(t, TaskStatusFailed, task.Status())
	})

	t.Run("scan already in progress", func(t *testing.T) {
		scanner := &stubScanner{err: engine.ErrScanInProgress}
		task, err := NewScopeScanTask(scopeID, scanner, discardLogger())
		require.NoError(t, err)

		err = task.Execute(context.Background())
		assert.ErrorIs(t, err, engine.ErrScanInProgress)
		assert.Equal(t, TaskStatusFailed, task.Status())
	})

	t.Run("cancelled context", func(t *testing.T) {
		scanner := &stubScanner{report: &engine.ScanReport{}}
		task, err := NewScopeScanTask(scopeID, scanner, discardLogger())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err = task.Execute(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, TaskStatusFailed, task.Status())
		assert.Empty(t, scanner.scanned)
	})
}

func TestScopeScanTaskFactory_RehydrateTask(t *testing.T) {
	scanner := &stubScanner{report: &engine.ScanReport{}}
	factory := NewScopeScanTaskFactory(scanner, discardLogger())

	t.Run("rehydrates with the stored identity", func(t *testing.T) {
		scopeID := uuid.New()
		original, err := factory.CreateTask(scopeID)
		require.NoError(t, err)

		storedID := uuid.New()
		rehydrated, err := factory.RehydrateTask(storedID, TaskStatusPending, original.Payload())
		require.NoError(t, err)

		assert.Equal(t, storedID, rehydrated.ID())
		assert.Equal(t, TaskStatusPending, rehydrated.Status())
		assert.JSONEq(t, string(original.Payload()), string(rehydrated.Payload()))

		// The rehydrated task must still be executable.
		require.NoError(t, rehydrated.Execute(context.Background()))
		assert.Equal(t, []uuid.UUID{scopeID}, scanner.scanned)
	})

	t.Run("rejects a corrupt payload", func(t *testing.T) {
		_, err := factory.RehydrateTask(uuid.New(), TaskStatusPending, []byte("not json"))
		assert.Error(t, err)
	})

	t.Run("rejects a payload without a scope", func(t *testing.T) {
		payload, err := json.Marshal(map[string]any{"created": time.Now()})
		require.NoError(t, err)

		_, err = factory.RehydrateTask(uuid.New(), TaskStatusPending, payload)
		assert.ErrorIs(t, err, ErrEmptyScopeID)
	})
}
