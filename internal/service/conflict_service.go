package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/domain/ranking"
	"github.com/tasktide/conflict-engine/internal/engine"
	"github.com/tasktide/conflict-engine/internal/events"
	"github.com/tasktide/conflict-engine/internal/store"
	"github.com/tasktide/conflict-engine/internal/task"
)

// NotificationGuarantor delivers the at-most-once notification guarantee for
// a conflict. Satisfied by *engine.NotificationGuarantor.
type NotificationGuarantor interface {
	EnsureByConflictID(ctx context.Context, conflictID uuid.UUID) (int, error)
}

// ScopeScanner runs a detection pass over a scope. Satisfied by
// *engine.Scanner.
type ScopeScanner interface {
	ScanScope(ctx context.Context, scopeID uuid.UUID) (*engine.ScanReport, error)
}

// ConflictSummary pairs an active conflict with its current top-ranked
// suggestion, as returned by a synchronous scan.
type ConflictSummary struct {
	Conflict *domain.Conflict

	// TopSuggestion is nil when no candidate could be generated for the
	// conflict type.
	TopSuggestion *domain.ResolutionSuggestion
}

// ConflictService provides the application-level operations over conflicts,
// their ranked suggestions and the feedback loop that tunes future ranking.
type ConflictService interface {
	// RequestScan asks for a background detection pass over a scope. The
	// scan runs asynchronously; callers poll the conflict list for results.
	RequestScan(ctx context.Context, scopeID uuid.UUID) error

	// ScanScope runs a detection pass over a scope and waits for it, then
	// returns every active conflict paired with its top-ranked suggestion.
	// Returns engine.ErrScanInProgress when another scan holds the scope.
	ScanScope(ctx context.Context, scopeID uuid.UUID) ([]*ConflictSummary, error)

	// GetConflict retrieves one conflict by ID.
	GetConflict(ctx context.Context, conflictID uuid.UUID) (*domain.Conflict, error)

	// ListActiveConflicts retrieves the active conflicts for a scope.
	ListActiveConflicts(ctx context.Context, scopeID uuid.UUID) ([]*domain.Conflict, error)

	// GetSuggestions retrieves the current ranked suggestions for a conflict.
	GetSuggestions(ctx context.Context, conflictID uuid.UUID) ([]*domain.ResolutionSuggestion, error)

	// SubmitFeedback records a user's verdict on a suggestion and folds it
	// into the learning entries for the suggestion's key. Accepting a
	// suggestion marks it selected and resolves its conflict. Only current
	// suggestions take feedback; selected or superseded ones return
	// ErrSuggestionNotCurrent.
	SubmitFeedback(
		ctx context.Context,
		suggestionID uuid.UUID,
		outcome domain.FeedbackOutcome,
		rating *int,
	) (*domain.FeedbackRecord, error)

	// IgnoreConflict transitions an active conflict to the ignored state.
	// Ignoring never feeds the learning loop.
	IgnoreConflict(ctx context.Context, conflictID uuid.UUID, reason string) error

	// EnsureNotifications guarantees notifications exist for every affected
	// user of a conflict, returning how many were newly created.
	EnsureNotifications(ctx context.Context, conflictID uuid.UUID) (int, error)

	// ListNotifications retrieves the notifications for a conflict.
	ListNotifications(ctx context.Context, conflictID uuid.UUID) ([]*domain.Notification, error)

	// AcknowledgeNotification marks a notification acknowledged.
	AcknowledgeNotification(ctx context.Context, notificationID uuid.UUID) error
}

// conflictServiceImpl implements the ConflictService interface.
type conflictServiceImpl struct {
	db            *sql.DB
	conflicts     store.ConflictStore
	suggestions   store.SuggestionStore
	feedback      store.FeedbackStore
	learning      store.LearningStore
	ranker        ranking.Service
	guarantor     NotificationGuarantor
	scanner       ScopeScanner
	eventEmitter  events.EventEmitter
	notifications store.NotificationStore
	logger        *slog.Logger
}

// NewConflictService creates a new ConflictService.
// It returns an error if any of the required dependencies are nil.
func NewConflictService(
	db *sql.DB,
	conflicts store.ConflictStore,
	suggestions store.SuggestionStore,
	feedback store.FeedbackStore,
	learning store.LearningStore,
	ranker ranking.Service,
	guarantor NotificationGuarantor,
	scanner ScopeScanner,
	eventEmitter events.EventEmitter,
	notifications store.NotificationStore,
	logger *slog.Logger,
) (ConflictService, error) {
	switch {
	case db == nil:
		return nil, &ConflictServiceError{Operation: "create_service", Message: "db cannot be nil"}
	case conflicts == nil:
		return nil, &ConflictServiceError{Operation: "create_service", Message: "conflicts store cannot be nil"}
	case suggestions == nil:
		return nil, &ConflictServiceError{Operation: "create_service", Message: "suggestions store cannot be nil"}
	case feedback == nil:
		return nil, &ConflictServiceError{Operation: "create_service", Message: "feedback store cannot be nil"}
	case learning == nil:
		return nil, &ConflictServiceError{Operation: "create_service", Message: "learning store cannot be nil"}
	case ranker == nil:
		return nil, &ConflictServiceError{Operation: "create_service", Message: "ranker cannot be nil"}
	case guarantor == nil:
		return nil, &ConflictServiceError{Operation: "create_service", Message: "guarantor cannot be nil"}
	case scanner == nil:
		return nil, &ConflictServiceError{Operation: "create_service", Message: "scanner cannot be nil"}
	case eventEmitter == nil:
		return nil, &ConflictServiceError{Operation: "create_service", Message: "eventEmitter cannot be nil"}
	case notifications == nil:
		return nil, &ConflictServiceError{Operation: "create_service", Message: "notifications store cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &conflictServiceImpl{
		db:            db,
		conflicts:     conflicts,
		suggestions:   suggestions,
		feedback:      feedback,
		learning:      learning,
		ranker:        ranker,
		guarantor:     guarantor,
		scanner:       scanner,
		eventEmitter:  eventEmitter,
		notifications: notifications,
		logger:        logger.With(slog.String("component", "conflict_service")),
	}, nil
}

// RequestScan emits a scan request event; the task layer turns it into a
// persisted background task.
func (s *conflictServiceImpl) RequestScan(ctx context.Context, scopeID uuid.UUID) error {
	payload := struct {
		ScopeID uuid.UUID `json:"scope_id"`
	}{ScopeID: scopeID}

	event, err := events.NewScanRequestEvent(task.TaskTypeScopeScan, payload)
	if err != nil {
		s.logger.Error("failed to create scan request event",
			slog.String("error", err.Error()),
			slog.String("scope_id", scopeID.String()))
		return &ConflictServiceError{Operation: "request_scan", Message: "failed to create event", Err: err}
	}

	if err := s.eventEmitter.EmitEvent(ctx, event); err != nil {
		s.logger.Error("failed to emit scan request event",
			slog.String("error", err.Error()),
			slog.String("scope_id", scopeID.String()),
			slog.String("event_id", event.ID.String()))
		return &ConflictServiceError{Operation: "request_scan", Message: "failed to emit event", Err: err}
	}

	s.logger.Info("scan requested",
		slog.String("scope_id", scopeID.String()),
		slog.String("event_id", event.ID.String()))
	return nil
}

// ScanScope runs a detection pass inline and returns the post-scan state of
// the scope: every active conflict joined with its top-ranked current
// suggestion. engine.ErrScanInProgress passes through so the caller can
// report the collision instead of a generic failure.
func (s *conflictServiceImpl) ScanScope(ctx context.Context, scopeID uuid.UUID) ([]*ConflictSummary, error) {
	report, err := s.scanner.ScanScope(ctx, scopeID)
	if err != nil {
		if errors.Is(err, engine.ErrScanInProgress) {
			return nil, err
		}
		return nil, &ConflictServiceError{Operation: "scan_scope", Message: "scan failed", Err: err}
	}

	conflicts, err := s.conflicts.ListActiveByScope(ctx, scopeID)
	if err != nil {
		return nil, &ConflictServiceError{Operation: "scan_scope", Message: "failed to list active conflicts", Err: err}
	}

	summaries := make([]*ConflictSummary, 0, len(conflicts))
	for _, conflict := range conflicts {
		suggestions, err := s.suggestions.ListCurrentByConflict(ctx, conflict.ID)
		if err != nil {
			return nil, &ConflictServiceError{Operation: "scan_scope", Message: "failed to list suggestions", Err: err}
		}
		summary := &ConflictSummary{Conflict: conflict}
		if len(suggestions) > 0 {
			// ListCurrentByConflict orders by confidence, so the head
			// is the top-ranked candidate.
			summary.TopSuggestion = suggestions[0]
		}
		summaries = append(summaries, summary)
	}

	s.logger.Info("synchronous scan completed",
		slog.String("scope_id", scopeID.String()),
		slog.Int("detected", report.Detected),
		slog.Int("created", report.Created),
		slog.Int("auto_cleared", report.AutoCleared),
		slog.Int("active", len(summaries)))
	return summaries, nil
}

// GetConflict retrieves one conflict by ID.
func (s *conflictServiceImpl) GetConflict(ctx context.Context, conflictID uuid.UUID) (*domain.Conflict, error) {
	conflict, err := s.conflicts.GetByID(ctx, conflictID)
	if err != nil {
		if errors.Is(err, store.ErrConflictNotFound) {
			return nil, ErrConflictNotFound
		}
		return nil, &ConflictServiceError{Operation: "get_conflict", Message: "failed to retrieve conflict", Err: err}
	}

	// Reading an active conflict repairs its notifications the same way the
	// scope listing does; a sweep failure never fails the read.
	if conflict.Status == domain.ConflictStatusActive {
		if _, err := s.guarantor.EnsureByConflictID(ctx, conflict.ID); err != nil {
			s.logger.Warn("notification sweep failed for conflict",
				slog.String("conflict_id", conflict.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	return conflict, nil
}

// ListActiveConflicts retrieves the active conflicts for a scope.
func (s *conflictServiceImpl) ListActiveConflicts(ctx context.Context, scopeID uuid.UUID) ([]*domain.Conflict, error) {
	conflicts, err := s.conflicts.ListActiveByScope(ctx, scopeID)
	if err != nil {
		return nil, &ConflictServiceError{Operation: "list_conflicts", Message: "failed to list active conflicts", Err: err}
	}

	// Self-healing sweep: any conflict whose notifications were lost to a
	// crash between detection and delivery gets them re-created here. A
	// sweep failure never fails the listing.
	for _, conflict := range conflicts {
		if _, err := s.guarantor.EnsureByConflictID(ctx, conflict.ID); err != nil {
			s.logger.Warn("notification sweep failed for conflict",
				slog.String("conflict_id", conflict.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	return conflicts, nil
}

// GetSuggestions retrieves the current ranked suggestions for a conflict.
// The conflict is loaded first so a missing conflict reports not-found rather
// than an empty list.
func (s *conflictServiceImpl) GetSuggestions(ctx context.Context, conflictID uuid.UUID) ([]*domain.ResolutionSuggestion, error) {
	if _, err := s.GetConflict(ctx, conflictID); err != nil {
		return nil, err
	}

	suggestions, err := s.suggestions.ListCurrentByConflict(ctx, conflictID)
	if err != nil {
		return nil, &ConflictServiceError{Operation: "get_suggestions", Message: "failed to list suggestions", Err: err}
	}
	return suggestions, nil
}

// SubmitFeedback records the feedback and updates both learning entries for
// the suggestion's key in one transaction. The scoped and global entries are
// locked and recomputed so concurrent feedback for the same key serializes.
func (s *conflictServiceImpl) SubmitFeedback(
	ctx context.Context,
	suggestionID uuid.UUID,
	outcome domain.FeedbackOutcome,
	rating *int,
) (*domain.FeedbackRecord, error) {
	suggestion, err := s.suggestions.GetByID(ctx, suggestionID)
	if err != nil {
		if errors.Is(err, store.ErrSuggestionNotFound) {
			return nil, ErrSuggestionNotFound
		}
		return nil, &ConflictServiceError{Operation: "submit_feedback", Message: "failed to retrieve suggestion", Err: err}
	}

	// Only current suggestions take feedback. A second accept on an already
	// selected suggestion would push TimesAccepted past TimesSuggested and
	// corrupt the learning entry, so stale suggestions are rejected here
	// before anything is written.
	if suggestion.Status != domain.SuggestionStatusCurrent {
		return nil, ErrSuggestionNotCurrent
	}

	conflict, err := s.conflicts.GetByID(ctx, suggestion.ConflictID)
	if err != nil {
		if errors.Is(err, store.ErrConflictNotFound) {
			return nil, ErrConflictNotFound
		}
		return nil, &ConflictServiceError{Operation: "submit_feedback", Message: "failed to retrieve conflict", Err: err}
	}

	record, err := domain.NewFeedbackRecord(suggestionID, outcome, rating)
	if err != nil {
		return nil, &ConflictServiceError{Operation: "submit_feedback", Message: "invalid feedback", Err: err}
	}

	now := time.Now().UTC()
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.feedback.WithTx(tx).Create(ctx, record); err != nil {
			return fmt.Errorf("failed to save feedback record: %w", err)
		}

		if outcome == domain.FeedbackOutcomeAccepted {
			if err := s.suggestions.WithTx(tx).MarkSelected(ctx, suggestionID); err != nil {
				return fmt.Errorf("failed to mark suggestion selected: %w", err)
			}

			if conflict.Status == domain.ConflictStatusActive {
				note := fmt.Sprintf("resolved via %s suggestion", suggestion.Type)
				if err := conflict.Resolve(note, now); err != nil {
					return err
				}
				if err := s.conflicts.WithTx(tx).Update(ctx, conflict); err != nil {
					return fmt.Errorf("failed to resolve conflict: %w", err)
				}
			}
		}

		txLearning := s.learning.WithTx(tx)
		for _, scopeID := range []*uuid.UUID{&conflict.ScopeID, nil} {
			entry, err := txLearning.GetForUpdate(ctx, scopeID, conflict.Type, suggestion.Type)
			if err != nil {
				return fmt.Errorf("failed to lock learning entry: %w", err)
			}

			updated, err := s.ranker.RecordFeedback(entry, outcome, rating, now)
			if err != nil {
				return fmt.Errorf("failed to apply feedback to learning entry: %w", err)
			}

			if err := txLearning.Upsert(ctx, updated); err != nil {
				return fmt.Errorf("failed to persist learning entry: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		s.logger.Error("failed to submit feedback",
			slog.String("error", err.Error()),
			slog.String("suggestion_id", suggestionID.String()),
			slog.String("outcome", string(outcome)))
		return nil, &ConflictServiceError{Operation: "submit_feedback", Message: "transaction failed", Err: err}
	}

	s.logger.Info("feedback recorded",
		slog.String("suggestion_id", suggestionID.String()),
		slog.String("conflict_id", conflict.ID.String()),
		slog.String("outcome", string(outcome)))
	return record, nil
}

// IgnoreConflict transitions an active conflict to the ignored state. The
// learning entries are deliberately untouched: ignoring expresses "stop
// telling me about this", not a verdict on any suggestion.
func (s *conflictServiceImpl) IgnoreConflict(ctx context.Context, conflictID uuid.UUID, reason string) error {
	conflict, err := s.conflicts.GetByID(ctx, conflictID)
	if err != nil {
		if errors.Is(err, store.ErrConflictNotFound) {
			return ErrConflictNotFound
		}
		return &ConflictServiceError{Operation: "ignore_conflict", Message: "failed to retrieve conflict", Err: err}
	}

	if reason == "" {
		reason = "ignored by user"
	}
	if err := conflict.Ignore(reason, time.Now().UTC()); err != nil {
		if errors.Is(err, domain.ErrConflictNotActive) {
			return ErrConflictNotActive
		}
		return &ConflictServiceError{Operation: "ignore_conflict", Message: "failed to transition conflict", Err: err}
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.conflicts.WithTx(tx).Update(ctx, conflict)
	})
	if err != nil {
		s.logger.Error("failed to ignore conflict",
			slog.String("error", err.Error()),
			slog.String("conflict_id", conflictID.String()))
		return &ConflictServiceError{Operation: "ignore_conflict", Message: "failed to persist transition", Err: err}
	}

	s.logger.Info("conflict ignored", slog.String("conflict_id", conflictID.String()))
	return nil
}

// EnsureNotifications delegates to the notification guarantor.
func (s *conflictServiceImpl) EnsureNotifications(ctx context.Context, conflictID uuid.UUID) (int, error) {
	created, err := s.guarantor.EnsureByConflictID(ctx, conflictID)
	if err != nil {
		if errors.Is(err, store.ErrConflictNotFound) {
			return 0, ErrConflictNotFound
		}
		return 0, &ConflictServiceError{Operation: "ensure_notifications", Message: "failed to ensure notifications", Err: err}
	}
	return created, nil
}

// ListNotifications retrieves the notifications for a conflict.
func (s *conflictServiceImpl) ListNotifications(ctx context.Context, conflictID uuid.UUID) ([]*domain.Notification, error) {
	if _, err := s.GetConflict(ctx, conflictID); err != nil {
		return nil, err
	}

	notifications, err := s.notifications.ListByConflict(ctx, conflictID)
	if err != nil {
		return nil, &ConflictServiceError{Operation: "list_notifications", Message: "failed to list notifications", Err: err}
	}
	return notifications, nil
}

// AcknowledgeNotification marks a notification acknowledged.
func (s *conflictServiceImpl) AcknowledgeNotification(ctx context.Context, notificationID uuid.UUID) error {
	if err := s.notifications.Acknowledge(ctx, notificationID); err != nil {
		if errors.Is(err, store.ErrNotificationNotFound) {
			return ErrNotificationNotFound
		}
		return &ConflictServiceError{Operation: "acknowledge_notification", Message: "failed to acknowledge notification", Err: err}
	}
	return nil
}
