package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScanRequestEvent(t *testing.T) {
	type testPayload struct {
		ScopeID uuid.UUID `json:"scope_id"`
	}

	payload := testPayload{ScopeID: uuid.New()}

	eventType := "scope_scan"
	event, err := NewScanRequestEvent(eventType, payload)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, eventType, event.Type)
	assert.NotNil(t, event.Payload)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)

	var decoded testPayload
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	assert.Equal(t, payload.ScopeID, decoded.ScopeID)
}

func TestScanRequestEvent_UnmarshalPayload(t *testing.T) {
	scopeID := uuid.New()
	event, err := NewScanRequestEvent("scope_scan", map[string]string{
		"scope_id": scopeID.String(),
	})
	require.NoError(t, err)

	var payload struct {
		ScopeID string `json:"scope_id"`
	}
	require.NoError(t, event.UnmarshalPayload(&payload))
	assert.Equal(t, scopeID.String(), payload.ScopeID)
}

// MockEventHandler implements the EventHandler interface for testing.
type MockEventHandler struct {
	// LastEvent is the last event received by this handler.
	LastEvent *ScanRequestEvent
	// HandlerError is returned from HandleEvent.
	HandlerError error
	// HandledCount counts events handled.
	HandledCount int
}

// HandleEvent implements the EventHandler interface.
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *ScanRequestEvent) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}
