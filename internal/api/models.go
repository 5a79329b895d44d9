package api

import (
	"encoding/json"
	"time"

	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/service"
)

// ConflictResponse represents the response data for a conflict.
type ConflictResponse struct {
	ID             string          `json:"id"`
	ScopeID        string          `json:"scope_id"`
	Fingerprint    string          `json:"fingerprint"`
	Type           string          `json:"type"`
	Severity       string          `json:"severity"`
	Status         string          `json:"status"`
	TaskIDs        []string        `json:"task_ids"`
	UserIDs        []string        `json:"user_ids"`
	Evidence       json.RawMessage `json:"evidence"`
	DetectedAt     time.Time       `json:"detected_at"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	ResolutionNote string          `json:"resolution_note,omitempty"`
}

// SuggestionResponse represents the response data for a resolution
// suggestion.
type SuggestionResponse struct {
	ID                  string          `json:"id"`
	ConflictID          string          `json:"conflict_id"`
	Type                string          `json:"type"`
	Params              json.RawMessage `json:"params"`
	Confidence          float64         `json:"confidence"`
	Rationale           string          `json:"rationale"`
	SuccessRateSnapshot float64         `json:"success_rate_snapshot"`
	Status              string          `json:"status"`
	CreatedAt           time.Time       `json:"created_at"`
}

// NotificationResponse represents the response data for a notification.
type NotificationResponse struct {
	ID           string    `json:"id"`
	ConflictID   string    `json:"conflict_id"`
	UserID       string    `json:"user_id"`
	Channel      string    `json:"channel"`
	Acknowledged bool      `json:"acknowledged"`
	CreatedAt    time.Time `json:"created_at"`
}

// SubmitFeedbackRequest represents the request body for suggestion feedback.
type SubmitFeedbackRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=accepted rejected"`
	Rating  *int   `json:"rating"  validate:"omitempty,gte=1,lte=5"`
}

// FeedbackResponse represents the response data for a recorded feedback.
type FeedbackResponse struct {
	ID           string    `json:"id"`
	SuggestionID string    `json:"suggestion_id"`
	Outcome      string    `json:"outcome"`
	Rating       *int      `json:"rating,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// IgnoreConflictRequest represents the request body for ignoring a conflict.
type IgnoreConflictRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// ScanRequestedResponse acknowledges an accepted scan request.
type ScanRequestedResponse struct {
	ScopeID string `json:"scope_id"`
	Status  string `json:"status"`
}

// ConflictSummaryResponse pairs an active conflict with its top-ranked
// suggestion in a synchronous scan response.
type ConflictSummaryResponse struct {
	Conflict      ConflictResponse    `json:"conflict"`
	TopSuggestion *SuggestionResponse `json:"top_suggestion,omitempty"`
}

// EnsureNotificationsResponse reports the outcome of a notification ensure
// call.
type EnsureNotificationsResponse struct {
	ConflictID string `json:"conflict_id"`
	Created    int    `json:"created"`
}

// conflictToResponse converts a domain.Conflict to a ConflictResponse.
func conflictToResponse(conflict *domain.Conflict) ConflictResponse {
	taskIDs := make([]string, 0, len(conflict.TaskIDs))
	for _, id := range conflict.TaskIDs {
		taskIDs = append(taskIDs, id.String())
	}
	userIDs := make([]string, 0, len(conflict.UserIDs))
	for _, id := range conflict.UserIDs {
		userIDs = append(userIDs, id.String())
	}

	return ConflictResponse{
		ID:             conflict.ID.String(),
		ScopeID:        conflict.ScopeID.String(),
		Fingerprint:    conflict.Fingerprint,
		Type:           string(conflict.Type),
		Severity:       string(conflict.Severity),
		Status:         string(conflict.Status),
		TaskIDs:        taskIDs,
		UserIDs:        userIDs,
		Evidence:       conflict.Evidence,
		DetectedAt:     conflict.DetectedAt,
		ResolvedAt:     conflict.ResolvedAt,
		ResolutionNote: conflict.ResolutionNote,
	}
}

// suggestionToResponse converts a domain.ResolutionSuggestion to a
// SuggestionResponse.
func suggestionToResponse(suggestion *domain.ResolutionSuggestion) SuggestionResponse {
	return SuggestionResponse{
		ID:                  suggestion.ID.String(),
		ConflictID:          suggestion.ConflictID.String(),
		Type:                string(suggestion.Type),
		Params:              suggestion.Params,
		Confidence:          suggestion.Confidence,
		Rationale:           suggestion.Rationale,
		SuccessRateSnapshot: suggestion.SuccessRateSnapshot,
		Status:              string(suggestion.Status),
		CreatedAt:           suggestion.CreatedAt,
	}
}

// summaryToResponse converts a service.ConflictSummary to a
// ConflictSummaryResponse.
func summaryToResponse(summary *service.ConflictSummary) ConflictSummaryResponse {
	response := ConflictSummaryResponse{
		Conflict: conflictToResponse(summary.Conflict),
	}
	if summary.TopSuggestion != nil {
		top := suggestionToResponse(summary.TopSuggestion)
		response.TopSuggestion = &top
	}
	return response
}

// notificationToResponse converts a domain.Notification to a
// NotificationResponse.
func notificationToResponse(notification *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:           notification.ID.String(),
		ConflictID:   notification.ConflictID.String(),
		UserID:       notification.UserID.String(),
		Channel:      string(notification.Channel),
		Acknowledged: notification.Acknowledged,
		CreatedAt:    notification.CreatedAt,
	}
}

// feedbackToResponse converts a domain.FeedbackRecord to a FeedbackResponse.
func feedbackToResponse(record *domain.FeedbackRecord) FeedbackResponse {
	return FeedbackResponse{
		ID:           record.ID.String(),
		SuggestionID: record.SuggestionID.String(),
		Outcome:      string(record.Outcome),
		Rating:       record.Rating,
		CreatedAt:    record.CreatedAt,
	}
}
