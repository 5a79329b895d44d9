package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/platform/logger"
	"github.com/tasktide/conflict-engine/internal/store"
)

// PostgresSuggestionStore implements the store.SuggestionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSuggestionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSuggestionStore creates a new PostgreSQL implementation of the
// SuggestionStore interface. If logger is nil, a default logger is used.
func NewPostgresSuggestionStore(db store.DBTX, logger *slog.Logger) *PostgresSuggestionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSuggestionStore{
		db:     db,
		logger: logger.With(slog.String("component", "suggestion_store")),
	}
}

// Ensure PostgresSuggestionStore implements store.SuggestionStore.
var _ store.SuggestionStore = (*PostgresSuggestionStore)(nil)

const suggestionColumns = `id, conflict_id, type, params, confidence,
	rationale, success_rate_snapshot, status, created_at`

// CreateMultiple implements store.SuggestionStore.CreateMultiple.
func (s *PostgresSuggestionStore) CreateMultiple(ctx context.Context, suggestions []*domain.ResolutionSuggestion) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(suggestions) == 0 {
		return nil
	}

	query := `
		INSERT INTO resolution_suggestions (id, conflict_id, type, params,
			confidence, rationale, success_rate_snapshot, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		log.Error("failed to prepare suggestion insert", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Error("failed to close statement", slog.String("error", closeErr.Error()))
		}
	}()

	for _, suggestion := range suggestions {
		if err := suggestion.Validate(); err != nil {
			log.Warn("suggestion validation failed during create",
				slog.String("error", err.Error()),
				slog.String("suggestion_id", suggestion.ID.String()))
			return err
		}

		_, err = stmt.ExecContext(
			ctx,
			suggestion.ID,
			suggestion.ConflictID,
			suggestion.Type,
			[]byte(suggestion.Params),
			suggestion.Confidence,
			suggestion.Rationale,
			suggestion.SuccessRateSnapshot,
			suggestion.Status,
			suggestion.CreatedAt,
		)
		if err != nil {
			log.Error("failed to insert suggestion",
				slog.String("error", err.Error()),
				slog.String("suggestion_id", suggestion.ID.String()))
			return err
		}
	}

	log.Debug("suggestions created",
		slog.Int("count", len(suggestions)),
		slog.String("conflict_id", suggestions[0].ConflictID.String()))
	return nil
}

// GetByID implements store.SuggestionStore.GetByID.
// Returns store.ErrSuggestionNotFound if the suggestion does not exist.
func (s *PostgresSuggestionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ResolutionSuggestion, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + suggestionColumns + `
		FROM resolution_suggestions
		WHERE id = $1
	`
	suggestion, err := scanSuggestion(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("suggestion not found", slog.String("suggestion_id", id.String()))
			return nil, store.ErrSuggestionNotFound
		}
		log.Error("failed to get suggestion by ID",
			slog.String("error", err.Error()),
			slog.String("suggestion_id", id.String()))
		return nil, err
	}

	return suggestion, nil
}

// ListCurrentByConflict implements store.SuggestionStore.ListCurrentByConflict.
// Ordering uses confidence descending with the fixed resolution-type priority
// as the tie-break, so the ranked order survives a round trip through storage.
func (s *PostgresSuggestionStore) ListCurrentByConflict(ctx context.Context, conflictID uuid.UUID) ([]*domain.ResolutionSuggestion, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + suggestionColumns + `
		FROM resolution_suggestions
		WHERE conflict_id = $1 AND status <> $2
		ORDER BY confidence DESC,
			CASE type
				WHEN 'reassign' THEN 0
				WHEN 'reschedule' THEN 1
				WHEN 'split' THEN 2
				WHEN 'escalate' THEN 3
				WHEN 'ignore' THEN 4
				ELSE 5
			END ASC
	`
	rows, err := s.db.QueryContext(ctx, query, conflictID, domain.SuggestionStatusSuperseded)
	if err != nil {
		log.Error("failed to query current suggestions",
			slog.String("error", err.Error()),
			slog.String("conflict_id", conflictID.String()))
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Error("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var suggestions []*domain.ResolutionSuggestion
	for rows.Next() {
		suggestion, err := scanSuggestion(rows)
		if err != nil {
			log.Error("failed to scan suggestion row", slog.String("error", err.Error()))
			return nil, err
		}
		suggestions = append(suggestions, suggestion)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning suggestion rows", slog.String("error", err.Error()))
		return nil, err
	}

	if suggestions == nil {
		suggestions = []*domain.ResolutionSuggestion{}
	}
	return suggestions, nil
}

// SupersedeByConflict implements store.SuggestionStore.SupersedeByConflict.
// Superseding zero rows is not an error: the first pass over a conflict has
// nothing to supersede.
func (s *PostgresSuggestionStore) SupersedeByConflict(ctx context.Context, conflictID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE resolution_suggestions
		SET status = $1
		WHERE conflict_id = $2 AND status = $3
	`
	result, err := s.db.ExecContext(ctx, query,
		domain.SuggestionStatusSuperseded, conflictID, domain.SuggestionStatusCurrent)
	if err != nil {
		log.Error("failed to supersede suggestions",
			slog.String("error", err.Error()),
			slog.String("conflict_id", conflictID.String()))
		return err
	}

	if rowsAffected, err := result.RowsAffected(); err == nil && rowsAffected > 0 {
		log.Debug("suggestions superseded",
			slog.Int64("count", rowsAffected),
			slog.String("conflict_id", conflictID.String()))
	}
	return nil
}

// MarkSelected implements store.SuggestionStore.MarkSelected.
// Returns store.ErrSuggestionNotFound if the suggestion does not exist.
func (s *PostgresSuggestionStore) MarkSelected(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE resolution_suggestions
		SET status = $1
		WHERE id = $2
	`
	result, err := s.db.ExecContext(ctx, query, domain.SuggestionStatusSelected, id)
	if err != nil {
		log.Error("failed to mark suggestion selected",
			slog.String("error", err.Error()),
			slog.String("suggestion_id", id.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.String("suggestion_id", id.String()))
		return err
	}
	if rowsAffected == 0 {
		log.Debug("suggestion not found for selection", slog.String("suggestion_id", id.String()))
		return store.ErrSuggestionNotFound
	}

	return nil
}

// WithTx implements store.SuggestionStore.WithTx.
func (s *PostgresSuggestionStore) WithTx(tx *sql.Tx) store.SuggestionStore {
	return &PostgresSuggestionStore{
		db:     tx,
		logger: s.logger,
	}
}

// scanSuggestion reads one suggestion row in suggestionColumns order.
func scanSuggestion(row rowScanner) (*domain.ResolutionSuggestion, error) {
	var (
		suggestion     domain.ResolutionSuggestion
		resolutionType string
		params         []byte
		status         string
	)

	err := row.Scan(
		&suggestion.ID,
		&suggestion.ConflictID,
		&resolutionType,
		&params,
		&suggestion.Confidence,
		&suggestion.Rationale,
		&suggestion.SuccessRateSnapshot,
		&status,
		&suggestion.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	suggestion.Type = domain.ResolutionType(resolutionType)
	suggestion.Params = params
	suggestion.Status = domain.SuggestionStatus(status)
	return &suggestion, nil
}
