package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/platform/logger"
	"github.com/tasktide/conflict-engine/internal/store"
)

// NotificationGuarantor ensures every user a conflict names has exactly one
// notification row for it, no matter how many times or from how many paths
// it is invoked. Idempotency rests on the storage layer's uniqueness
// guarantee, not on caller discipline.
type NotificationGuarantor struct {
	conflicts     store.ConflictStore
	notifications store.NotificationStore
	channel       domain.NotificationChannel
	logger        *slog.Logger
}

// NewNotificationGuarantor creates a NotificationGuarantor delivering on the
// given channel.
func NewNotificationGuarantor(
	conflicts store.ConflictStore,
	notifications store.NotificationStore,
	channel domain.NotificationChannel,
	log *slog.Logger,
) *NotificationGuarantor {
	if conflicts == nil {
		panic("conflict store cannot be nil")
	}
	if notifications == nil {
		panic("notification store cannot be nil")
	}
	if !channel.IsValid() {
		panic("notification channel must be valid")
	}
	if log == nil {
		log = slog.Default()
	}

	return &NotificationGuarantor{
		conflicts:     conflicts,
		notifications: notifications,
		channel:       channel,
		logger:        log.With(slog.String("component", "notification_guarantor")),
	}
}

// EnsureForConflict creates any missing notifications for the conflict's
// affected users and returns how many rows were newly created. Conflicts
// that are no longer active are skipped without error.
func (g *NotificationGuarantor) EnsureForConflict(ctx context.Context, conflict *domain.Conflict) (int, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	if conflict.Status != domain.ConflictStatusActive {
		log.Debug("skipping notifications for inactive conflict",
			slog.String("conflict_id", conflict.ID.String()),
			slog.String("status", string(conflict.Status)))
		return 0, nil
	}

	created := 0
	for _, userID := range conflict.UserIDs {
		notification, err := domain.NewNotification(conflict.ID, userID, g.channel)
		if err != nil {
			return created, fmt.Errorf("failed to build notification: %w", err)
		}

		wasCreated, err := g.notifications.Ensure(ctx, notification)
		if err != nil {
			return created, fmt.Errorf("failed to ensure notification: %w", err)
		}
		if wasCreated {
			created++
		}
	}

	if created > 0 {
		log.Info("created notifications",
			slog.String("conflict_id", conflict.ID.String()),
			slog.Int("created", created))
	}
	return created, nil
}

// EnsureByConflictID loads the conflict and ensures its notifications.
// Returns store.ErrConflictNotFound if the conflict does not exist.
func (g *NotificationGuarantor) EnsureByConflictID(ctx context.Context, conflictID uuid.UUID) (int, error) {
	conflict, err := g.conflicts.GetByID(ctx, conflictID)
	if err != nil {
		return 0, err
	}
	return g.EnsureForConflict(ctx, conflict)
}
