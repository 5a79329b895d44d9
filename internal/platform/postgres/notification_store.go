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

// PostgresNotificationStore implements the store.NotificationStore interface
// using a PostgreSQL database as the storage backend. The unique constraint
// on (conflict_id, user_id) is what makes Ensure idempotent.
type PostgresNotificationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresNotificationStore creates a new PostgreSQL implementation of the
// NotificationStore interface. If logger is nil, a default logger is used.
func NewPostgresNotificationStore(db store.DBTX, logger *slog.Logger) *PostgresNotificationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresNotificationStore{
		db:     db,
		logger: logger.With(slog.String("component", "notification_store")),
	}
}

// Ensure PostgresNotificationStore implements store.NotificationStore.
var _ store.NotificationStore = (*PostgresNotificationStore)(nil)

// Ensure implements store.NotificationStore.Ensure. ON CONFLICT DO NOTHING
// makes the insert race-free: a concurrent caller that loses the race sees
// zero rows affected and reports created=false with no error, because the
// desired row exists either way.
func (s *PostgresNotificationStore) Ensure(ctx context.Context, notification *domain.Notification) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := notification.Validate(); err != nil {
		log.Warn("notification validation failed during ensure",
			slog.String("error", err.Error()),
			slog.String("notification_id", notification.ID.String()))
		return false, err
	}

	query := `
		INSERT INTO notifications (id, conflict_id, user_id, channel, acknowledged, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (conflict_id, user_id) DO NOTHING
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		notification.ID,
		notification.ConflictID,
		notification.UserID,
		notification.Channel,
		notification.Acknowledged,
		notification.CreatedAt,
	)
	if err != nil {
		// A serialization-level duplicate that slips past DO NOTHING still
		// means the row exists.
		if isUniqueViolation(err, "") {
			return false, nil
		}

		log.Error("failed to ensure notification",
			slog.String("error", err.Error()),
			slog.String("conflict_id", notification.ConflictID.String()),
			slog.String("user_id", notification.UserID.String()))
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.String("notification_id", notification.ID.String()))
		return false, err
	}

	created := rowsAffected > 0
	if created {
		log.Debug("notification created",
			slog.String("notification_id", notification.ID.String()),
			slog.String("conflict_id", notification.ConflictID.String()),
			slog.String("user_id", notification.UserID.String()))
	}
	return created, nil
}

// ListByConflict implements store.NotificationStore.ListByConflict.
func (s *PostgresNotificationStore) ListByConflict(ctx context.Context, conflictID uuid.UUID) ([]*domain.Notification, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, conflict_id, user_id, channel, acknowledged, created_at
		FROM notifications
		WHERE conflict_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, conflictID)
	if err != nil {
		log.Error("failed to query notifications",
			slog.String("error", err.Error()),
			slog.String("conflict_id", conflictID.String()))
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Error("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var notifications []*domain.Notification
	for rows.Next() {
		var (
			notification domain.Notification
			channel      string
		)
		err := rows.Scan(
			&notification.ID,
			&notification.ConflictID,
			&notification.UserID,
			&channel,
			&notification.Acknowledged,
			&notification.CreatedAt,
		)
		if err != nil {
			log.Error("failed to scan notification row", slog.String("error", err.Error()))
			return nil, err
		}

		notification.Channel = domain.NotificationChannel(channel)
		notifications = append(notifications, &notification)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning notification rows", slog.String("error", err.Error()))
		return nil, err
	}

	if notifications == nil {
		notifications = []*domain.Notification{}
	}
	return notifications, nil
}

// Acknowledge implements store.NotificationStore.Acknowledge.
// Returns store.ErrNotificationNotFound if the notification does not exist.
func (s *PostgresNotificationStore) Acknowledge(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE notifications
		SET acknowledged = TRUE
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		log.Error("failed to acknowledge notification",
			slog.String("error", err.Error()),
			slog.String("notification_id", id.String()))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.String("notification_id", id.String()))
		return err
	}
	if rowsAffected == 0 {
		log.Debug("notification not found for acknowledge", slog.String("notification_id", id.String()))
		return store.ErrNotificationNotFound
	}

	return nil
}

// WithTx implements store.NotificationStore.WithTx.
func (s *PostgresNotificationStore) WithTx(tx *sql.Tx) store.NotificationStore {
	return &PostgresNotificationStore{
		db:     tx,
		logger: s.logger,
	}
}
