package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/platform/logger"
	"github.com/tasktide/conflict-engine/internal/store"
)

// ScanReport summarizes one completed scan pass over a scope.
type ScanReport struct {
	ScopeID     uuid.UUID `json:"scope_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Detected    int       `json:"detected"`
	Created     int       `json:"created"`
	Refreshed   int       `json:"refreshed"`
	AutoCleared int       `json:"auto_cleared"`
	Active      int       `json:"active"`

	// NotificationsCreated counts notification rows newly created for
	// conflicts this pass opened.
	NotificationsCreated int `json:"notifications_created"`
}

// Scanner runs the full detection pipeline for a scope: snapshot, concurrent
// detection, transactional reconciliation against the stored conflict set,
// suggestion regeneration and notification delivery. At most one scan runs
// per scope at a time.
type Scanner struct {
	db          *sql.DB
	source      SnapshotSource
	detectors   []Detector
	dedup       *Deduplicator
	generator   *CandidateGenerator
	guarantor   *NotificationGuarantor
	conflicts   store.ConflictStore
	suggestions store.SuggestionStore
	locks       *scopeLocks
	logger      *slog.Logger
}

// NewScanner creates a Scanner wired to the given pipeline stages.
func NewScanner(
	db *sql.DB,
	source SnapshotSource,
	detectors []Detector,
	dedup *Deduplicator,
	generator *CandidateGenerator,
	guarantor *NotificationGuarantor,
	conflicts store.ConflictStore,
	suggestions store.SuggestionStore,
	log *slog.Logger,
) *Scanner {
	if db == nil {
		panic("database cannot be nil")
	}
	if source == nil {
		panic("snapshot source cannot be nil")
	}
	if len(detectors) == 0 {
		panic("at least one detector is required")
	}
	if dedup == nil {
		panic("deduplicator cannot be nil")
	}
	if generator == nil {
		panic("candidate generator cannot be nil")
	}
	if guarantor == nil {
		panic("notification guarantor cannot be nil")
	}
	if conflicts == nil {
		panic("conflict store cannot be nil")
	}
	if suggestions == nil {
		panic("suggestion store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Scanner{
		db:          db,
		source:      source,
		detectors:   detectors,
		dedup:       dedup,
		generator:   generator,
		guarantor:   guarantor,
		conflicts:   conflicts,
		suggestions: suggestions,
		locks:       newScopeLocks(),
		logger:      log.With(slog.String("component", "scanner")),
	}
}

// ScanScope runs one detection pass over the scope and returns the report.
// It returns ErrScanInProgress when another scan holds the scope's slot and
// ErrDataUnavailable when the snapshot source cannot be read; in both cases
// stored conflict state is untouched.
func (s *Scanner) ScanScope(ctx context.Context, scopeID uuid.UUID) (*ScanReport, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !s.locks.TryLock(scopeID) {
		return nil, fmt.Errorf("%w: %s", ErrScanInProgress, scopeID)
	}
	defer s.locks.Unlock(scopeID)

	started := time.Now().UTC()
	log.Info("starting scan", slog.String("scope_id", scopeID.String()))

	facts, err := s.source.Snapshot(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot scope %s: %w", scopeID, err)
	}

	raw, err := runDetectors(ctx, s.detectors, facts)
	if err != nil {
		return nil, fmt.Errorf("detection failed for scope %s: %w", scopeID, err)
	}

	var result *ReconcileResult
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		reconciled, reconcileErr := s.dedup.Reconcile(ctx, scopeID, raw, s.conflicts.WithTx(tx))
		if reconcileErr != nil {
			return reconcileErr
		}
		result = reconciled
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconciliation failed for scope %s: %w", scopeID, err)
	}

	// Suggestion regeneration runs per conflict so a failure on one conflict
	// cannot discard another's ranked set. Enrichment does network work, so
	// generation stays outside the persistence transaction.
	for _, conflict := range result.Active {
		if err := s.regenerateSuggestions(ctx, conflict, facts); err != nil {
			log.Error("failed to regenerate suggestions",
				slog.String("conflict_id", conflict.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	notificationsCreated := 0
	for _, conflict := range result.Created {
		created, err := s.guarantor.EnsureForConflict(ctx, conflict)
		notificationsCreated += created
		if err != nil {
			log.Error("failed to ensure notifications",
				slog.String("conflict_id", conflict.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	report := &ScanReport{
		ScopeID:              scopeID,
		StartedAt:            started,
		FinishedAt:           time.Now().UTC(),
		Detected:             len(raw),
		Created:              len(result.Created),
		Refreshed:            len(result.Refreshed),
		AutoCleared:          len(result.AutoCleared),
		Active:               len(result.Active),
		NotificationsCreated: notificationsCreated,
	}

	log.Info("scan finished",
		slog.String("scope_id", scopeID.String()),
		slog.Int("detected", report.Detected),
		slog.Int("created", report.Created),
		slog.Int("refreshed", report.Refreshed),
		slog.Int("auto_cleared", report.AutoCleared),
		slog.Int("notifications_created", report.NotificationsCreated),
		slog.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

// regenerateSuggestions replaces the conflict's current ranked set. The old
// set is superseded, never deleted, inside the same transaction that writes
// the new one.
func (s *Scanner) regenerateSuggestions(ctx context.Context, conflict *domain.Conflict, facts *domain.FactSet) error {
	suggestions, err := s.generator.Generate(ctx, conflict, facts)
	if err != nil {
		return err
	}
	if len(suggestions) == 0 {
		return nil
	}

	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txSuggestions := s.suggestions.WithTx(tx)
		if err := txSuggestions.SupersedeByConflict(ctx, conflict.ID); err != nil {
			return fmt.Errorf("failed to supersede prior suggestions: %w", err)
		}
		if err := txSuggestions.CreateMultiple(ctx, suggestions); err != nil {
			return fmt.Errorf("failed to persist suggestions: %w", err)
		}
		return nil
	})
}
