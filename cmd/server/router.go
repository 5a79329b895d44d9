package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tasktide/conflict-engine/internal/api"
	apiMiddleware "github.com/tasktide/conflict-engine/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))

	conflictHandler := api.NewConflictHandler(app.conflictService)

	r.Route("/api", func(r chi.Router) {
		// Scan and conflict listing per scope
		r.Post("/scopes/{scopeID}/scan", conflictHandler.ScanScope)
		r.Get("/scopes/{scopeID}/conflicts", conflictHandler.ListConflicts)

		// Individual conflicts
		r.Get("/conflicts/{conflictID}", conflictHandler.GetConflict)
		r.Get("/conflicts/{conflictID}/suggestions", conflictHandler.GetSuggestions)
		r.Post("/conflicts/{conflictID}/ignore", conflictHandler.IgnoreConflict)

		// Notifications
		r.Post("/conflicts/{conflictID}/notifications", conflictHandler.EnsureNotifications)
		r.Get("/conflicts/{conflictID}/notifications", conflictHandler.ListNotifications)
		r.Post("/notifications/{notificationID}/ack", conflictHandler.AcknowledgeNotification)

		// Feedback
		r.Post("/suggestions/{suggestionID}/feedback", conflictHandler.SubmitFeedback)
	})

	// Health check endpoint
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
