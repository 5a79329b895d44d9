package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/platform/logger"
	"github.com/tasktide/conflict-engine/internal/store"
	"github.com/tasktide/conflict-engine/internal/task"
)

// TaskRehydrator rebuilds an executable task from its persisted row.
// Satisfied by *task.ScopeScanTaskFactory.
type TaskRehydrator interface {
	RehydrateTask(id uuid.UUID, status task.TaskStatus, payload []byte) (task.Task, error)
}

// PostgresTaskStore implements the task.TaskStore interface using a
// PostgreSQL database as the storage backend. Recovered rows are turned back
// into executable tasks through the rehydrator, so the runner can resume work
// across restarts.
type PostgresTaskStore struct {
	db         store.DBTX
	rehydrator TaskRehydrator
	logger     *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// task.TaskStore interface. If logger is nil, a default logger is used.
func NewPostgresTaskStore(db store.DBTX, rehydrator TaskRehydrator, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if rehydrator == nil {
		panic("rehydrator cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:         db,
		rehydrator: rehydrator,
		logger:     logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements task.TaskStore.
var _ task.TaskStore = (*PostgresTaskStore)(nil)

// SaveTask implements task.TaskStore.SaveTask.
func (s *PostgresTaskStore) SaveTask(ctx context.Context, t task.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO scan_tasks (id, type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query,
		t.ID(),
		t.Type(),
		t.Payload(),
		t.Status(),
		now,
		now,
	)
	if err != nil {
		log.Error("failed to save task",
			slog.String("task_id", t.ID().String()),
			slog.String("task_type", t.Type()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to save task to database: %w", err)
	}

	return nil
}

// UpdateTaskStatus implements task.TaskStore.UpdateTaskStatus. Updating a
// task that no longer exists is a no-op.
func (s *PostgresTaskStore) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status task.TaskStatus, errorMsg string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE scan_tasks
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := s.db.ExecContext(ctx, query,
		status,
		errorMsg,
		time.Now().UTC(),
		taskID,
	)
	if err != nil {
		log.Error("failed to update task status",
			slog.String("task_id", taskID.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to update task status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("task_id", taskID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		log.Warn("no task found with ID to update status", slog.String("task_id", taskID.String()))
	}

	return nil
}

// GetPendingTasks implements task.TaskStore.GetPendingTasks.
func (s *PostgresTaskStore) GetPendingTasks(ctx context.Context) ([]task.Task, error) {
	return s.getTasksByStatus(ctx, task.TaskStatusPending, 0)
}

// GetProcessingTasks implements task.TaskStore.GetProcessingTasks.
func (s *PostgresTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]task.Task, error) {
	return s.getTasksByStatus(ctx, task.TaskStatusProcessing, olderThan)
}

// getTasksByStatus fetches tasks by status with an optional age filter and
// rehydrates each row into an executable task. Rows the rehydrator cannot
// rebuild (unknown type, corrupt payload) are skipped with an error log
// rather than failing recovery of the rest.
func (s *PostgresTaskStore) getTasksByStatus(ctx context.Context, status task.TaskStatus, olderThan time.Duration) ([]task.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, status, payload
		FROM scan_tasks
		WHERE status = $1
	`
	args := []any{status}
	if olderThan > 0 {
		query += ` AND updated_at < $2`
		args = append(args, time.Now().UTC().Add(-olderThan))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks by status",
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query tasks by status: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Error("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var tasks []task.Task
	for rows.Next() {
		var (
			id         uuid.UUID
			taskStatus task.TaskStatus
			payload    []byte
		)
		if err := rows.Scan(&id, &taskStatus, &payload); err != nil {
			log.Error("failed to scan task row",
				slog.String("status", string(status)),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}

		t, err := s.rehydrator.RehydrateTask(id, taskStatus, payload)
		if err != nil {
			log.Error("failed to rehydrate task, skipping",
				slog.String("task_id", id.String()),
				slog.String("error", err.Error()))
			continue
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows",
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// WithTx implements task.TaskStore.WithTx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) task.TaskStore {
	return &PostgresTaskStore{
		db:         tx,
		rehydrator: s.rehydrator,
		logger:     s.logger,
	}
}
