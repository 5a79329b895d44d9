package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/store"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func validConflict(t *testing.T) *domain.Conflict {
	t.Helper()

	conflict, err := domain.NewConflict(
		uuid.New(),
		domain.ConflictTypeResourceOverload,
		domain.SeverityHigh,
		[]uuid.UUID{uuid.New(), uuid.New()},
		[]uuid.UUID{uuid.New()},
		json.RawMessage(`{"overload_ratio":1.5}`),
	)
	require.NoError(t, err)
	return conflict
}

func TestPostgresConflictStore_Create(t *testing.T) {
	t.Run("maps unique violation to active conflict sentinel", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewPostgresConflictStore(db, nil)

		mock.ExpectExec("INSERT INTO conflicts").
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolationCode})

		err := s.Create(context.Background(), validConflict(t))
		assert.ErrorIs(t, err, store.ErrActiveConflictExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("encodes ID lists as JSON arrays", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewPostgresConflictStore(db, nil)
		conflict := validConflict(t)

		taskIDs, err := json.Marshal(conflict.TaskIDs)
		require.NoError(t, err)
		userIDs, err := json.Marshal(conflict.UserIDs)
		require.NoError(t, err)

		mock.ExpectExec("INSERT INTO conflicts").
			WithArgs(
				conflict.ID, conflict.ScopeID, conflict.Fingerprint,
				conflict.Type, conflict.Severity, conflict.Status,
				taskIDs, userIDs, []byte(conflict.Evidence),
				conflict.DetectedAt, conflict.ResolvedAt, conflict.ResolutionNote,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Create(context.Background(), conflict))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects invalid conflict before touching the database", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewPostgresConflictStore(db, nil)

		conflict := validConflict(t)
		conflict.TaskIDs = nil

		err := s.Create(context.Background(), conflict)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresConflictStore_GetByID(t *testing.T) {
	columns := []string{
		"id", "scope_id", "fingerprint", "type", "severity", "status",
		"task_ids", "user_ids", "evidence", "detected_at", "resolved_at", "resolution_note",
	}

	t.Run("decodes stored row including ID lists", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewPostgresConflictStore(db, nil)

		id := uuid.New()
		scopeID := uuid.New()
		taskA := uuid.New()
		taskB := uuid.New()
		userA := uuid.New()
		detectedAt := time.Now().UTC().Truncate(time.Microsecond)
		resolvedAt := detectedAt.Add(time.Hour)

		taskIDs, err := json.Marshal([]uuid.UUID{taskA, taskB})
		require.NoError(t, err)
		userIDs, err := json.Marshal([]uuid.UUID{userA})
		require.NoError(t, err)

		mock.ExpectQuery("SELECT (.+) FROM conflicts").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				id.String(), scopeID.String(), "fp", "resource_overload", "high", "resolved",
				taskIDs, userIDs, []byte(`{"overload_ratio":1.5}`),
				detectedAt, resolvedAt, domain.ResolutionNoteAutoCleared,
			))

		conflict, err := s.GetByID(context.Background(), id)
		require.NoError(t, err)

		assert.Equal(t, id, conflict.ID)
		assert.Equal(t, domain.ConflictTypeResourceOverload, conflict.Type)
		assert.Equal(t, domain.ConflictStatusResolved, conflict.Status)
		assert.Equal(t, []uuid.UUID{taskA, taskB}, conflict.TaskIDs)
		assert.Equal(t, []uuid.UUID{userA}, conflict.UserIDs)
		require.NotNil(t, conflict.ResolvedAt)
		assert.Equal(t, resolvedAt, *conflict.ResolvedAt)
		assert.Equal(t, domain.ResolutionNoteAutoCleared, conflict.ResolutionNote)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps missing row to not found sentinel", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewPostgresConflictStore(db, nil)

		id := uuid.New()
		mock.ExpectQuery("SELECT (.+) FROM conflicts").
			WithArgs(id).
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, store.ErrConflictNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresConflictStore_Update(t *testing.T) {
	t.Run("maps zero rows affected to not found sentinel", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewPostgresConflictStore(db, nil)

		mock.ExpectExec("UPDATE conflicts").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.Update(context.Background(), validConflict(t))
		assert.ErrorIs(t, err, store.ErrConflictNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
