package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/engine"
)

func TestPostgresSnapshotSource_Snapshot(t *testing.T) {
	scopeID := uuid.New()

	t.Run("builds a fact set from both tables", func(t *testing.T) {
		db, mock := newMockDB(t)
		source := NewPostgresSnapshotSource(db, nil)

		taskA := uuid.New()
		taskB := uuid.New()
		assignee := uuid.New()
		start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
		due := start.AddDate(0, 0, 10)

		taskRows := sqlmock.NewRows([]string{
			"id", "assignee_id", "start_date", "due_date", "effort_days", "status", "depends_on",
		}).
			AddRow(taskA.String(), assignee.String(), start, due, 5.0, "in_progress", []byte(`[]`)).
			AddRow(taskB.String(), nil, nil, due, 2.5, "todo", []byte(`["`+taskA.String()+`"]`))
		mock.ExpectQuery("SELECT (.+) FROM project_tasks").
			WithArgs(scopeID).
			WillReturnRows(taskRows)

		assigneeRows := sqlmock.NewRows([]string{"id", "weekly_capacity_days", "skills"}).
			AddRow(assignee.String(), 5.0, []byte(`["backend","sql"]`))
		mock.ExpectQuery("SELECT (.+) FROM project_assignees").
			WithArgs(scopeID).
			WillReturnRows(assigneeRows)

		facts, err := source.Snapshot(context.Background(), scopeID)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())

		assert.Equal(t, scopeID, facts.ScopeID)
		assert.False(t, facts.SnapshotAt.IsZero())
		require.Len(t, facts.Tasks, 2)

		first := facts.Tasks[taskA]
		require.NotNil(t, first)
		assert.Equal(t, assignee, first.AssigneeID)
		assert.True(t, first.IsAssigned())
		assert.Equal(t, domain.TaskStatusInProgress, first.Status)
		assert.Empty(t, first.DependsOn)

		second := facts.Tasks[taskB]
		require.NotNil(t, second)
		assert.False(t, second.IsAssigned())
		assert.True(t, second.StartDate.IsZero())
		assert.Equal(t, []uuid.UUID{taskA}, second.DependsOn)

		require.Len(t, facts.Assignees, 1)
		assert.True(t, facts.Assignees[assignee].HasSkill("backend"))
	})

	t.Run("empty scope yields an empty fact set", func(t *testing.T) {
		db, mock := newMockDB(t)
		source := NewPostgresSnapshotSource(db, nil)

		mock.ExpectQuery("SELECT (.+) FROM project_tasks").
			WithArgs(scopeID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "assignee_id", "start_date", "due_date", "effort_days", "status", "depends_on",
			}))
		mock.ExpectQuery("SELECT (.+) FROM project_assignees").
			WithArgs(scopeID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "weekly_capacity_days", "skills"}))

		facts, err := source.Snapshot(context.Background(), scopeID)
		require.NoError(t, err)
		assert.True(t, facts.IsEmpty())
	})

	t.Run("query failure wraps the data-unavailable sentinel", func(t *testing.T) {
		db, mock := newMockDB(t)
		source := NewPostgresSnapshotSource(db, nil)

		mock.ExpectQuery("SELECT (.+) FROM project_tasks").
			WithArgs(scopeID).
			WillReturnError(assert.AnError)

		facts, err := source.Snapshot(context.Background(), scopeID)
		assert.Nil(t, facts)
		assert.ErrorIs(t, err, engine.ErrDataUnavailable)
	})
}
