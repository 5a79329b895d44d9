package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationChannel is the delivery channel for a notification.
type NotificationChannel string

// Known delivery channels.
const (
	NotificationChannelInApp NotificationChannel = "in_app"
	NotificationChannelEmail NotificationChannel = "email"
)

// IsValid reports whether the channel is one of the known channels.
func (c NotificationChannel) IsValid() bool {
	switch c {
	case NotificationChannelInApp, NotificationChannelEmail:
		return true
	}
	return false
}

// Notification tells one affected user about one active conflict. The
// storage layer enforces uniqueness on (conflict ID, user ID) so the
// guarantor can be invoked any number of times, from any delivery path,
// without ever producing duplicates.
type Notification struct {
	ID           uuid.UUID           `json:"id"`
	ConflictID   uuid.UUID           `json:"conflict_id"`
	UserID       uuid.UUID           `json:"user_id"`
	Channel      NotificationChannel `json:"channel"`
	Acknowledged bool                `json:"acknowledged"`
	CreatedAt    time.Time           `json:"created_at"`
}

// NewNotification creates a new unacknowledged notification.
// Returns an error if validation fails.
func NewNotification(
	conflictID uuid.UUID,
	userID uuid.UUID,
	channel NotificationChannel,
) (*Notification, error) {
	notification := &Notification{
		ID:         uuid.New(),
		ConflictID: conflictID,
		UserID:     userID,
		Channel:    channel,
		CreatedAt:  time.Now().UTC(),
	}

	if err := notification.Validate(); err != nil {
		return nil, err
	}

	return notification, nil
}

// Validate checks if the Notification has valid data.
// Returns an error if any field fails validation.
func (n *Notification) Validate() error {
	if n.ID == uuid.Nil {
		return fmt.Errorf("%w: notification ID cannot be empty", ErrInvalidID)
	}

	if n.ConflictID == uuid.Nil {
		return fmt.Errorf("%w: conflict ID cannot be empty", ErrInvalidID)
	}

	if n.UserID == uuid.Nil {
		return fmt.Errorf("%w: user ID cannot be empty", ErrInvalidID)
	}

	if !n.Channel.IsValid() {
		return fmt.Errorf("%w: invalid notification channel %q", ErrValidation, n.Channel)
	}

	return nil
}
