package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/api/shared"
	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/service"
)

// ConflictHandler handles conflict-related HTTP requests.
type ConflictHandler struct {
	conflictService service.ConflictService
	validator       *validator.Validate
}

// NewConflictHandler creates a new ConflictHandler.
func NewConflictHandler(conflictService service.ConflictService) *ConflictHandler {
	if conflictService == nil {
		panic("conflictService cannot be nil")
	}

	return &ConflictHandler{
		conflictService: conflictService,
		validator:       validator.New(),
	}
}

// urlParamUUID extracts and parses a UUID path parameter, writing a 400
// response when the value is malformed.
func urlParamUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// ScanScope handles POST /scopes/{scopeID}/scan requests. By default the
// scan runs inline and the response carries every active conflict with its
// top-ranked suggestion. With ?async=true the scan is queued as a background
// task instead and the response only acknowledges the request. A scope
// already being scanned answers 409.
func (h *ConflictHandler) ScanScope(w http.ResponseWriter, r *http.Request) {
	scopeID, ok := urlParamUUID(w, r, "scopeID")
	if !ok {
		return
	}

	if r.URL.Query().Get("async") == "true" {
		if err := h.conflictService.RequestScan(r.Context(), scopeID); err != nil {
			shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
			return
		}
		shared.RespondWithJSON(w, r, http.StatusAccepted, ScanRequestedResponse{
			ScopeID: scopeID.String(),
			Status:  "scan_requested",
		})
		return
	}

	summaries, err := h.conflictService.ScanScope(r.Context(), scopeID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]ConflictSummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		responses = append(responses, summaryToResponse(summary))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// ListConflicts handles GET /scopes/{scopeID}/conflicts requests.
func (h *ConflictHandler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	scopeID, ok := urlParamUUID(w, r, "scopeID")
	if !ok {
		return
	}

	conflicts, err := h.conflictService.ListActiveConflicts(r.Context(), scopeID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]ConflictResponse, 0, len(conflicts))
	for _, conflict := range conflicts {
		responses = append(responses, conflictToResponse(conflict))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// GetConflict handles GET /conflicts/{conflictID} requests.
func (h *ConflictHandler) GetConflict(w http.ResponseWriter, r *http.Request) {
	conflictID, ok := urlParamUUID(w, r, "conflictID")
	if !ok {
		return
	}

	conflict, err := h.conflictService.GetConflict(r.Context(), conflictID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, conflictToResponse(conflict))
}

// GetSuggestions handles GET /conflicts/{conflictID}/suggestions requests.
func (h *ConflictHandler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	conflictID, ok := urlParamUUID(w, r, "conflictID")
	if !ok {
		return
	}

	suggestions, err := h.conflictService.GetSuggestions(r.Context(), conflictID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]SuggestionResponse, 0, len(suggestions))
	for _, suggestion := range suggestions {
		responses = append(responses, suggestionToResponse(suggestion))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// SubmitFeedback handles POST /suggestions/{suggestionID}/feedback requests.
func (h *ConflictHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	suggestionID, ok := urlParamUUID(w, r, "suggestionID")
	if !ok {
		return
	}

	var req SubmitFeedbackRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	record, err := h.conflictService.SubmitFeedback(r.Context(), suggestionID,
		domain.FeedbackOutcome(req.Outcome), req.Rating)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, feedbackToResponse(record))
}

// IgnoreConflict handles POST /conflicts/{conflictID}/ignore requests.
func (h *ConflictHandler) IgnoreConflict(w http.ResponseWriter, r *http.Request) {
	conflictID, ok := urlParamUUID(w, r, "conflictID")
	if !ok {
		return
	}

	// Body is optional; an empty reason gets a default downstream.
	var req IgnoreConflictRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}

	if err := h.conflictService.IgnoreConflict(r.Context(), conflictID, req.Reason); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EnsureNotifications handles POST /conflicts/{conflictID}/notifications
// requests. Safe to call any number of times.
func (h *ConflictHandler) EnsureNotifications(w http.ResponseWriter, r *http.Request) {
	conflictID, ok := urlParamUUID(w, r, "conflictID")
	if !ok {
		return
	}

	created, err := h.conflictService.EnsureNotifications(r.Context(), conflictID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, EnsureNotificationsResponse{
		ConflictID: conflictID.String(),
		Created:    created,
	})
}

// ListNotifications handles GET /conflicts/{conflictID}/notifications
// requests.
func (h *ConflictHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	conflictID, ok := urlParamUUID(w, r, "conflictID")
	if !ok {
		return
	}

	notifications, err := h.conflictService.ListNotifications(r.Context(), conflictID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]NotificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		responses = append(responses, notificationToResponse(notification))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// AcknowledgeNotification handles POST /notifications/{notificationID}/ack
// requests.
func (h *ConflictHandler) AcknowledgeNotification(w http.ResponseWriter, r *http.Request) {
	notificationID, ok := urlParamUUID(w, r, "notificationID")
	if !ok {
		return
	}

	if err := h.conflictService.AcknowledgeNotification(r.Context(), notificationID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
