package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/platform/logger"
	"github.com/tasktide/conflict-engine/internal/store"
)

// PostgresConflictStore implements the store.ConflictStore interface using a
// PostgreSQL database as the storage backend.
type PostgresConflictStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresConflictStore creates a new PostgreSQL implementation of the
// ConflictStore interface. The caller owns the database handle or
// transaction. If logger is nil, a default logger is used.
func NewPostgresConflictStore(db store.DBTX, logger *slog.Logger) *PostgresConflictStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresConflictStore{
		db:     db,
		logger: logger.With(slog.String("component", "conflict_store")),
	}
}

// Ensure PostgresConflictStore implements store.ConflictStore.
var _ store.ConflictStore = (*PostgresConflictStore)(nil)

// Create implements store.ConflictStore.Create.
// The partial unique index on active (scope_id, fingerprint) pairs makes a
// second active occurrence fail with store.ErrActiveConflictExists.
func (s *PostgresConflictStore) Create(ctx context.Context, conflict *domain.Conflict) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := conflict.Validate(); err != nil {
		log.Warn("conflict validation failed during create",
			slog.String("error", err.Error()),
			slog.String("conflict_id", conflict.ID.String()))
		return err
	}

	taskIDs, err := encodeIDs(conflict.TaskIDs)
	if err != nil {
		return err
	}
	userIDs, err := encodeIDs(conflict.UserIDs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO conflicts (id, scope_id, fingerprint, type, severity, status,
			task_ids, user_ids, evidence, detected_at, resolved_at, resolution_note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		conflict.ID,
		conflict.ScopeID,
		conflict.Fingerprint,
		conflict.Type,
		conflict.Severity,
		conflict.Status,
		taskIDs,
		userIDs,
		[]byte(conflict.Evidence),
		conflict.DetectedAt,
		conflict.ResolvedAt,
		conflict.ResolutionNote,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			log.Warn("active conflict already exists for fingerprint",
				slog.String("scope_id", conflict.ScopeID.String()),
				slog.String("fingerprint", conflict.Fingerprint))
			return fmt.Errorf("%w: scope %s", store.ErrActiveConflictExists, conflict.ScopeID)
		}

		log.Error("failed to create conflict",
			slog.String("error", err.Error()),
			slog.String("conflict_id", conflict.ID.String()))
		return err
	}

	log.Debug("conflict created",
		slog.String("conflict_id", conflict.ID.String()),
		slog.String("scope_id", conflict.ScopeID.String()),
		slog.String("type", string(conflict.Type)))
	return nil
}

const conflictColumns = `id, scope_id, fingerprint, type, severity, status,
	task_ids, user_ids, evidence, detected_at, resolved_at, resolution_note`

// GetByID implements store.ConflictStore.GetByID.
// Returns store.ErrConflictNotFound if the conflict does not exist.
func (s *PostgresConflictStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conflict, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + conflictColumns + `
		FROM conflicts
		WHERE id = $1
	`
	conflict, err := scanConflict(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("conflict not found", slog.String("conflict_id", id.String()))
			return nil, store.ErrConflictNotFound
		}
		log.Error("failed to get conflict by ID",
			slog.String("error", err.Error()),
			slog.String("conflict_id", id.String()))
		return nil, err
	}

	return conflict, nil
}

// ListActiveByScope implements store.ConflictStore.ListActiveByScope.
func (s *PostgresConflictStore) ListActiveByScope(ctx context.Context, scopeID uuid.UUID) ([]*domain.Conflict, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + conflictColumns + `
		FROM conflicts
		WHERE scope_id = $1 AND status = $2
		ORDER BY detected_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, scopeID, domain.ConflictStatusActive)
	if err != nil {
		log.Error("failed to query active conflicts",
			slog.String("error", err.Error()),
			slog.String("scope_id", scopeID.String()))
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Error("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var conflicts []*domain.Conflict
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			log.Error("failed to scan conflict row", slog.String("error", err.Error()))
			return nil, err
		}
		conflicts = append(conflicts, conflict)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning conflict rows", slog.String("error", err.Error()))
		return nil, err
	}

	if conflicts == nil {
		conflicts = []*domain.Conflict{}
	}
	return conflicts, nil
}

// Update implements store.ConflictStore.Update.
// Returns store.ErrConflictNotFound if the conflict does not exist.
func (s *PostgresConflictStore) Update(ctx context.Context, conflict *domain.Conflict) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := conflict.Validate(); err != nil {
		log.Warn("conflict validation failed during update",
			slog.String("error", err.Error()),
			slog.String("conflict_id", conflict.ID.String()))
		return err
	}

	taskIDs, err := encodeIDs(conflict.TaskIDs)
	if err != nil {
		return err
	}
	userIDs, err := encodeIDs(conflict.UserIDs)
	if err != nil {
		return err
	}

	query := `
		UPDATE conflicts
		SET severity = $1, status = $2, task_ids = $3, user_ids = $4,
			evidence = $5, resolved_at = $6, resolution_note = $7
		WHERE id = $8
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		conflict.Severity,
		conflict.Status,
		taskIDs,
		userIDs,
		[]byte(conflict.Evidence),
		conflict.ResolvedAt,
		conflict.ResolutionNote,
		conflict.ID,
	)
	if err != nil {
		log.Error("failed to update conflict",
			slog.String("error", err.Error()),
			slog.String("conflict_id", conflict.ID.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.String("conflict_id", conflict.ID.String()))
		return err
	}
	if rowsAffected == 0 {
		log.Debug("conflict not found for update",
			slog.String("conflict_id", conflict.ID.String()))
		return store.ErrConflictNotFound
	}

	return nil
}

// WithTx implements store.ConflictStore.WithTx.
func (s *PostgresConflictStore) WithTx(tx *sql.Tx) store.ConflictStore {
	return &PostgresConflictStore{
		db:     tx,
		logger: s.logger,
	}
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanConflict reads one conflict row in conflictColumns order.
func scanConflict(row rowScanner) (*domain.Conflict, error) {
	var (
		conflict       domain.Conflict
		conflictType   string
		severity       string
		status         string
		taskIDs        []byte
		userIDs        []byte
		evidence       []byte
		resolvedAt     sql.NullTime
		resolutionNote sql.NullString
	)

	err := row.Scan(
		&conflict.ID,
		&conflict.ScopeID,
		&conflict.Fingerprint,
		&conflictType,
		&severity,
		&status,
		&taskIDs,
		&userIDs,
		&evidence,
		&conflict.DetectedAt,
		&resolvedAt,
		&resolutionNote,
	)
	if err != nil {
		return nil, err
	}

	conflict.Type = domain.ConflictType(conflictType)
	conflict.Severity = domain.Severity(severity)
	conflict.Status = domain.ConflictStatus(status)
	conflict.Evidence = evidence
	if resolvedAt.Valid {
		t := resolvedAt.Time
		conflict.ResolvedAt = &t
	}
	conflict.ResolutionNote = resolutionNote.String

	if conflict.TaskIDs, err = decodeIDs(taskIDs); err != nil {
		return nil, err
	}
	if conflict.UserIDs, err = decodeIDs(userIDs); err != nil {
		return nil, err
	}

	return &conflict, nil
}
