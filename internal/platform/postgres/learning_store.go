package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/platform/logger"
	"github.com/tasktide/conflict-engine/internal/store"
)

// PostgresLearningStore implements the store.LearningStore interface using a
// PostgreSQL database as the storage backend.
//
// The learning_entries table keys rows by (scope_id, conflict_type,
// resolution_type) where a NULL scope_id is the global entry. Uniqueness is
// enforced by an expression index that coalesces the NULL scope to the zero
// UUID, which the upserts below target.
type PostgresLearningStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresLearningStore creates a new PostgreSQL implementation of the
// LearningStore interface. If logger is nil, a default logger is used.
func NewPostgresLearningStore(db store.DBTX, logger *slog.Logger) *PostgresLearningStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresLearningStore{
		db:     db,
		logger: logger.With(slog.String("component", "learning_store")),
	}
}

// Ensure PostgresLearningStore implements store.LearningStore.
var _ store.LearningStore = (*PostgresLearningStore)(nil)

const learningColumns = `id, scope_id, conflict_type, resolution_type,
	times_suggested, times_accepted, rating_sum, success_rate,
	confidence_adjustment, updated_at`

// learningConflictTarget matches the expression unique index on
// learning_entries.
const learningConflictTarget = `(COALESCE(scope_id, '00000000-0000-0000-0000-000000000000'::uuid), conflict_type, resolution_type)`

// GetPair implements store.LearningStore.GetPair. Both entries are fetched in
// a single query; either may be nil when no history exists yet.
func (s *PostgresLearningStore) GetPair(
	ctx context.Context,
	scopeID uuid.UUID,
	conflictType domain.ConflictType,
	resolutionType domain.ResolutionType,
) (*domain.LearningEntry, *domain.LearningEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + learningColumns + `
		FROM learning_entries
		WHERE conflict_type = $1 AND resolution_type = $2
			AND (scope_id = $3 OR scope_id IS NULL)
	`
	rows, err := s.db.QueryContext(ctx, query, conflictType, resolutionType, scopeID)
	if err != nil {
		log.Error("failed to query learning entry pair",
			slog.String("error", err.Error()),
			slog.String("scope_id", scopeID.String()),
			slog.String("conflict_type", string(conflictType)),
			slog.String("resolution_type", string(resolutionType)))
		return nil, nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Error("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var scoped, global *domain.LearningEntry
	for rows.Next() {
		entry, err := scanLearningEntry(rows)
		if err != nil {
			log.Error("failed to scan learning entry row", slog.String("error", err.Error()))
			return nil, nil, err
		}
		if entry.IsGlobal() {
			global = entry
		} else {
			scoped = entry
		}
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning learning entry rows", slog.String("error", err.Error()))
		return nil, nil, err
	}

	return scoped, global, nil
}

// GetForUpdate implements store.LearningStore.GetForUpdate. The row lock
// serializes concurrent feedback processing for the same key; a missing row
// is created zeroed before being locked.
func (s *PostgresLearningStore) GetForUpdate(
	ctx context.Context,
	scopeID *uuid.UUID,
	conflictType domain.ConflictType,
	resolutionType domain.ResolutionType,
) (*domain.LearningEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	entry, err := s.selectForUpdate(ctx, scopeID, conflictType, resolutionType)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to lock learning entry",
			slog.String("error", err.Error()),
			slog.String("conflict_type", string(conflictType)),
			slog.String("resolution_type", string(resolutionType)))
		return nil, err
	}

	fresh, err := domain.NewLearningEntry(scopeID, conflictType, resolutionType)
	if err != nil {
		return nil, err
	}
	if err := s.insertIgnoringDuplicate(ctx, fresh); err != nil {
		log.Error("failed to create learning entry",
			slog.String("error", err.Error()),
			slog.String("conflict_type", string(conflictType)),
			slog.String("resolution_type", string(resolutionType)))
		return nil, err
	}

	// Re-select to lock whichever row won the insert race.
	entry, err = s.selectForUpdate(ctx, scopeID, conflictType, resolutionType)
	if err != nil {
		log.Error("failed to lock learning entry after create",
			slog.String("error", err.Error()),
			slog.String("conflict_type", string(conflictType)),
			slog.String("resolution_type", string(resolutionType)))
		return nil, err
	}
	return entry, nil
}

func (s *PostgresLearningStore) selectForUpdate(
	ctx context.Context,
	scopeID *uuid.UUID,
	conflictType domain.ConflictType,
	resolutionType domain.ResolutionType,
) (*domain.LearningEntry, error) {
	query := `
		SELECT ` + learningColumns + `
		FROM learning_entries
		WHERE conflict_type = $1 AND resolution_type = $2
			AND scope_id IS NOT DISTINCT FROM $3
		FOR UPDATE
	`
	return scanLearningEntry(s.db.QueryRowContext(ctx, query, conflictType, resolutionType, scopeID))
}

func (s *PostgresLearningStore) insertIgnoringDuplicate(ctx context.Context, entry *domain.LearningEntry) error {
	query := `
		INSERT INTO learning_entries (id, scope_id, conflict_type, resolution_type,
			times_suggested, times_accepted, rating_sum, success_rate,
			confidence_adjustment, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT ` + learningConflictTarget + ` DO NOTHING
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.ScopeID,
		entry.ConflictType,
		entry.ResolutionType,
		entry.TimesSuggested,
		entry.TimesAccepted,
		entry.RatingSum,
		entry.SuccessRate,
		entry.ConfidenceAdjustment,
		entry.UpdatedAt,
	)
	return err
}

// Upsert implements store.LearningStore.Upsert.
func (s *PostgresLearningStore) Upsert(ctx context.Context, entry *domain.LearningEntry) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := entry.Validate(); err != nil {
		log.Warn("learning entry validation failed during upsert",
			slog.String("error", err.Error()),
			slog.String("entry_id", entry.ID.String()))
		return err
	}

	query := `
		INSERT INTO learning_entries (id, scope_id, conflict_type, resolution_type,
			times_suggested, times_accepted, rating_sum, success_rate,
			confidence_adjustment, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT ` + learningConflictTarget + ` DO UPDATE SET
			times_suggested = EXCLUDED.times_suggested,
			times_accepted = EXCLUDED.times_accepted,
			rating_sum = EXCLUDED.rating_sum,
			success_rate = EXCLUDED.success_rate,
			confidence_adjustment = EXCLUDED.confidence_adjustment,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.ScopeID,
		entry.ConflictType,
		entry.ResolutionType,
		entry.TimesSuggested,
		entry.TimesAccepted,
		entry.RatingSum,
		entry.SuccessRate,
		entry.ConfidenceAdjustment,
		entry.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to upsert learning entry",
			slog.String("error", err.Error()),
			slog.String("entry_id", entry.ID.String()))
		return err
	}

	return nil
}

// IncrementSuggested implements store.LearningStore.IncrementSuggested.
// Both the scoped and global entries are bumped; each upsert creates the
// entry on first sight of the key.
func (s *PostgresLearningStore) IncrementSuggested(
	ctx context.Context,
	scopeID uuid.UUID,
	conflictType domain.ConflictType,
	resolutionType domain.ResolutionType,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.incrementOne(ctx, &scopeID, conflictType, resolutionType); err != nil {
		log.Error("failed to increment scoped suggestion counter",
			slog.String("error", err.Error()),
			slog.String("scope_id", scopeID.String()),
			slog.String("conflict_type", string(conflictType)),
			slog.String("resolution_type", string(resolutionType)))
		return err
	}

	if err := s.incrementOne(ctx, nil, conflictType, resolutionType); err != nil {
		log.Error("failed to increment global suggestion counter",
			slog.String("error", err.Error()),
			slog.String("conflict_type", string(conflictType)),
			slog.String("resolution_type", string(resolutionType)))
		return err
	}

	return nil
}

func (s *PostgresLearningStore) incrementOne(
	ctx context.Context,
	scopeID *uuid.UUID,
	conflictType domain.ConflictType,
	resolutionType domain.ResolutionType,
) error {
	query := `
		INSERT INTO learning_entries (id, scope_id, conflict_type, resolution_type,
			times_suggested, times_accepted, rating_sum, success_rate,
			confidence_adjustment, updated_at)
		VALUES ($1, $2, $3, $4, 1, 0, 0, 0, 0, $5)
		ON CONFLICT ` + learningConflictTarget + ` DO UPDATE SET
			times_suggested = learning_entries.times_suggested + 1,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(), scopeID, conflictType, resolutionType, time.Now().UTC())
	return err
}

// WithTx implements store.LearningStore.WithTx.
func (s *PostgresLearningStore) WithTx(tx *sql.Tx) store.LearningStore {
	return &PostgresLearningStore{
		db:     tx,
		logger: s.logger,
	}
}

// scanLearningEntry reads one learning entry row in learningColumns order.
func scanLearningEntry(row rowScanner) (*domain.LearningEntry, error) {
	var (
		entry          domain.LearningEntry
		scopeID        uuid.NullUUID
		conflictType   string
		resolutionType string
	)

	err := row.Scan(
		&entry.ID,
		&scopeID,
		&conflictType,
		&resolutionType,
		&entry.TimesSuggested,
		&entry.TimesAccepted,
		&entry.RatingSum,
		&entry.SuccessRate,
		&entry.ConfidenceAdjustment,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if scopeID.Valid {
		id := scopeID.UUID
		entry.ScopeID = &id
	}
	entry.ConflictType = domain.ConflictType(conflictType)
	entry.ResolutionType = domain.ResolutionType(resolutionType)
	return &entry, nil
}
