package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ScanRequestEvent asks for a background task of the given type to be
// created. It carries only serialized data so emitters never depend on the
// task package.
type ScanRequestEvent struct {
	// ID is a unique identifier for this event.
	ID uuid.UUID `json:"id"`

	// Type names the task type that should be created.
	Type string `json:"type"`

	// Payload contains the task-specific data serialized as JSON.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created.
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *ScanRequestEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewScanRequestEvent creates a new ScanRequestEvent with the specified type
// and payload.
func NewScanRequestEvent(eventType string, payload any) (*ScanRequestEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &ScanRequestEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler is implemented by components that process scan request events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *ScanRequestEvent) error
}

// EventEmitter is implemented by components that publish scan request events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *ScanRequestEvent) error
}
