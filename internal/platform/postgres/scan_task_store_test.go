package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasktide/conflict-engine/internal/task"
)

// stubRehydrator implements TaskRehydrator for testing.
type stubRehydrator struct {
	err error
}

func (r *stubRehydrator) RehydrateTask(id uuid.UUID, status task.TaskStatus, payload []byte) (task.Task, error) {
	if r.err != nil {
		return nil, r.err
	}
	t := task.NewMockTask(id, task.TaskTypeScopeScan, payload)
	t.TaskStatus = status
	return t, nil
}

func scanTaskPayload(t *testing.T) []byte {
	t.Helper()

	data, err := json.Marshal(map[string]string{"scope_id": uuid.NewString()})
	require.NoError(t, err)
	return data
}

func TestPostgresTaskStore_SaveTask(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgresTaskStore(db, &stubRehydrator{}, nil)

	mockTask := task.NewMockTask(uuid.New(), task.TaskTypeScopeScan, scanTaskPayload(t))

	mock.ExpectExec("INSERT INTO scan_tasks").
		WithArgs(mockTask.ID(), task.TaskTypeScopeScan, mockTask.Payload(),
			task.TaskStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SaveTask(context.Background(), mockTask)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_UpdateTaskStatus(t *testing.T) {
	t.Run("updates the row", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewPostgresTaskStore(db, &stubRehydrator{}, nil)
		taskID := uuid.New()

		mock.ExpectExec("UPDATE scan_tasks").
			WithArgs(task.TaskStatusFailed, "scan failed", sqlmock.AnyArg(), taskID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.UpdateTaskStatus(context.Background(), taskID, task.TaskStatusFailed, "scan failed")
		assert.NoError(t, err)
	})

	t.Run("missing task is a no-op", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewPostgresTaskStore(db, &stubRehydrator{}, nil)

		mock.ExpectExec("UPDATE scan_tasks").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.UpdateTaskStatus(context.Background(), uuid.New(), task.TaskStatusCompleted, "")
		assert.NoError(t, err)
	})
}

func TestPostgresTaskStore_GetPendingTasks(t *testing.T) {
	t.Run("rehydrates rows into executable tasks", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewPostgresTaskStore(db, &stubRehydrator{}, nil)

		first := uuid.New()
		second := uuid.New()
		rows := sqlmock.NewRows([]string{"id", "status", "payload"}).
			AddRow(first.String(), "pending", scanTaskPayload(t)).
			AddRow(second.String(), "pending", scanTaskPayload(t))
		mock.ExpectQuery("SELECT (.+) FROM scan_tasks").
			WithArgs(task.TaskStatusPending).
			WillReturnRows(rows)

		tasks, err := store.GetPendingTasks(context.Background())
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, first, tasks[0].ID())
		assert.Equal(t, second, tasks[1].ID())
	})

	t.Run("skips rows that cannot be rehydrated", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewPostgresTaskStore(db, &stubRehydrator{err: errors.New("corrupt payload")}, nil)

		rows := sqlmock.NewRows([]string{"id", "status", "payload"}).
			AddRow(uuid.New().String(), "pending", scanTaskPayload(t))
		mock.ExpectQuery("SELECT (.+) FROM scan_tasks").
			WithArgs(task.TaskStatusPending).
			WillReturnRows(rows)

		tasks, err := store.GetPendingTasks(context.Background())
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})
}
