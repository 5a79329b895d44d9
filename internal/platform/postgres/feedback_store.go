package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/platform/logger"
	"github.com/tasktide/conflict-engine/internal/store"
)

// PostgresFeedbackStore implements the store.FeedbackStore interface using a
// PostgreSQL database as the storage backend. Feedback rows are append-only.
type PostgresFeedbackStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresFeedbackStore creates a new PostgreSQL implementation of the
// FeedbackStore interface. If logger is nil, a default logger is used.
func NewPostgresFeedbackStore(db store.DBTX, logger *slog.Logger) *PostgresFeedbackStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresFeedbackStore{
		db:     db,
		logger: logger.With(slog.String("component", "feedback_store")),
	}
}

// Ensure PostgresFeedbackStore implements store.FeedbackStore.
var _ store.FeedbackStore = (*PostgresFeedbackStore)(nil)

// Create implements store.FeedbackStore.Create.
func (s *PostgresFeedbackStore) Create(ctx context.Context, record *domain.FeedbackRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := record.Validate(); err != nil {
		log.Warn("feedback record validation failed during create",
			slog.String("error", err.Error()),
			slog.String("feedback_id", record.ID.String()))
		return err
	}

	query := `
		INSERT INTO feedback_records (id, suggestion_id, outcome, rating, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.SuggestionID,
		record.Outcome,
		record.Rating,
		record.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create feedback record",
			slog.String("error", err.Error()),
			slog.String("feedback_id", record.ID.String()))
		return err
	}

	log.Debug("feedback record created",
		slog.String("feedback_id", record.ID.String()),
		slog.String("suggestion_id", record.SuggestionID.String()),
		slog.String("outcome", string(record.Outcome)))
	return nil
}

// ListBySuggestion implements store.FeedbackStore.ListBySuggestion.
func (s *PostgresFeedbackStore) ListBySuggestion(ctx context.Context, suggestionID uuid.UUID) ([]*domain.FeedbackRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, suggestion_id, outcome, rating, created_at
		FROM feedback_records
		WHERE suggestion_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, suggestionID)
	if err != nil {
		log.Error("failed to query feedback records",
			slog.String("error", err.Error()),
			slog.String("suggestion_id", suggestionID.String()))
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Error("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var records []*domain.FeedbackRecord
	for rows.Next() {
		var (
			record  domain.FeedbackRecord
			outcome string
			rating  sql.NullInt64
		)
		err := rows.Scan(&record.ID, &record.SuggestionID, &outcome, &rating, &record.CreatedAt)
		if err != nil {
			log.Error("failed to scan feedback row", slog.String("error", err.Error()))
			return nil, err
		}

		record.Outcome = domain.FeedbackOutcome(outcome)
		if rating.Valid {
			value := int(rating.Int64)
			record.Rating = &value
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning feedback rows", slog.String("error", err.Error()))
		return nil, err
	}

	if records == nil {
		records = []*domain.FeedbackRecord{}
	}
	return records, nil
}

// WithTx implements store.FeedbackStore.WithTx.
func (s *PostgresFeedbackStore) WithTx(tx *sql.Tx) store.FeedbackStore {
	return &PostgresFeedbackStore{
		db:     tx,
		logger: s.logger,
	}
}
