package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/engine"
	"github.com/tasktide/conflict-engine/internal/platform/logger"
	"github.com/tasktide/conflict-engine/internal/store"
)

// PostgresSnapshotSource builds fact sets from the project_tasks and
// project_assignees tables that the task domain syncs into this database.
// Both tables are read with plain SELECTs; the snapshot is only as
// consistent as the sync feeding them, which is acceptable because
// detectors re-run on the next scan anyway.
type PostgresSnapshotSource struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSnapshotSource creates a new PostgresSnapshotSource.
func NewPostgresSnapshotSource(db store.DBTX, logger *slog.Logger) *PostgresSnapshotSource {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSnapshotSource{
		db:     db,
		logger: logger.With(slog.String("component", "postgres_snapshot_source")),
	}
}

// Snapshot implements engine.SnapshotSource. Query failures are wrapped in
// engine.ErrDataUnavailable so the scanner can tell a broken data feed from
// a detector bug.
func (s *PostgresSnapshotSource) Snapshot(ctx context.Context, scopeID uuid.UUID) (*domain.FactSet, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	tasks, err := s.loadTasks(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading tasks for scope %s: %v", engine.ErrDataUnavailable, scopeID, err)
	}

	assignees, err := s.loadAssignees(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading assignees for scope %s: %v", engine.ErrDataUnavailable, scopeID, err)
	}

	log.Debug("snapshot taken",
		slog.String("scope_id", scopeID.String()),
		slog.Int("task_count", len(tasks)),
		slog.Int("assignee_count", len(assignees)))

	return &domain.FactSet{
		ScopeID:    scopeID,
		Tasks:      tasks,
		Assignees:  assignees,
		SnapshotAt: time.Now().UTC(),
	}, nil
}

func (s *PostgresSnapshotSource) loadTasks(ctx context.Context, scopeID uuid.UUID) (map[uuid.UUID]*domain.Task, error) {
	query := `
		SELECT id, assignee_id, start_date, due_date, effort_days, status, depends_on
		FROM project_tasks
		WHERE scope_id = $1`

	rows, err := s.db.QueryContext(ctx, query, scopeID)
	if err != nil {
		return nil, fmt.Errorf("querying project tasks: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error("error closing rows", slog.String("error", closeErr.Error()))
		}
	}()

	tasks := make(map[uuid.UUID]*domain.Task)
	for rows.Next() {
		var (
			t           domain.Task
			assigneeID  uuid.NullUUID
			start, due  sql.NullTime
			status      string
			dependsData []byte
		)
		if err := rows.Scan(&t.ID, &assigneeID, &start, &due, &t.EffortDays, &status, &dependsData); err != nil {
			return nil, fmt.Errorf("scanning project task: %w", err)
		}

		if assigneeID.Valid {
			t.AssigneeID = assigneeID.UUID
		}
		if start.Valid {
			t.StartDate = start.Time
		}
		if due.Valid {
			t.DueDate = due.Time
		}
		t.Status = domain.TaskStatus(status)

		t.DependsOn, err = decodeIDs(dependsData)
		if err != nil {
			return nil, fmt.Errorf("decoding dependency list for task %s: %w", t.ID, err)
		}

		tasks[t.ID] = &t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project tasks: %w", err)
	}

	return tasks, nil
}

func (s *PostgresSnapshotSource) loadAssignees(ctx context.Context, scopeID uuid.UUID) (map[uuid.UUID]*domain.Assignee, error) {
	query := `
		SELECT id, weekly_capacity_days, skills
		FROM project_assignees
		WHERE scope_id = $1`

	rows, err := s.db.QueryContext(ctx, query, scopeID)
	if err != nil {
		return nil, fmt.Errorf("querying project assignees: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error("error closing rows", slog.String("error", closeErr.Error()))
		}
	}()

	assignees := make(map[uuid.UUID]*domain.Assignee)
	for rows.Next() {
		var (
			a          domain.Assignee
			skillsData []byte
		)
		if err := rows.Scan(&a.ID, &a.WeeklyCapacityDays, &skillsData); err != nil {
			return nil, fmt.Errorf("scanning project assignee: %w", err)
		}

		if len(skillsData) > 0 {
			if err := json.Unmarshal(skillsData, &a.Skills); err != nil {
				return nil, fmt.Errorf("decoding skills for assignee %s: %w", a.ID, err)
			}
		}

		assignees[a.ID] = &a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project assignees: %w", err)
	}

	return assignees, nil
}

// Compile-time check that PostgresSnapshotSource satisfies engine.SnapshotSource.
var _ engine.SnapshotSource = (*PostgresSnapshotSource)(nil)
