package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
)

// NotificationStore defines the interface for notification persistence.
type NotificationStore interface {
	// Ensure atomically inserts the notification unless one already exists
	// for its (conflict ID, user ID) pair. Returns true if a row was
	// created, false if the pair was already present. Losing an insert race
	// to a concurrent caller reports false with a nil error: the desired
	// row exists, which is success.
	Ensure(ctx context.Context, notification *domain.Notification) (created bool, err error)

	// ListByConflict retrieves all notifications for a conflict.
	ListByConflict(ctx context.Context, conflictID uuid.UUID) ([]*domain.Notification, error)

	// Acknowledge marks a notification acknowledged.
	// Returns ErrNotificationNotFound if the notification does not exist.
	Acknowledge(ctx context.Context, id uuid.UUID) error

	// WithTx returns a NotificationStore bound to the given transaction.
	WithTx(tx *sql.Tx) NotificationStore
}
