package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/platform/logger"
	"github.com/tasktide/conflict-engine/internal/store"
)

// ReconcileResult reports what one deduplication pass changed.
type ReconcileResult struct {
	// Created holds conflicts newly opened by this pass. Only these start a
	// notification cycle.
	Created []*domain.Conflict

	// Refreshed holds previously active conflicts whose evidence, magnitude
	// or severity was updated in place. No new rows, no new notifications.
	Refreshed []*domain.Conflict

	// AutoCleared holds conflicts resolved because the current scan no
	// longer detects their fingerprint.
	AutoCleared []*domain.Conflict

	// Active holds every conflict active after the pass, the union of
	// Created and Refreshed.
	Active []*domain.Conflict
}

// Deduplicator merges raw detector output against the scope's already-active
// conflicts by fingerprint, which is what makes repeated scans idempotent:
// a re-detected conflict updates in place, a disappeared one auto-clears,
// and only genuinely new ones create rows.
type Deduplicator struct {
	logger *slog.Logger
}

// NewDeduplicator creates a Deduplicator.
// If logger is nil, a default logger will be used.
func NewDeduplicator(log *slog.Logger) *Deduplicator {
	if log == nil {
		log = slog.Default()
	}
	return &Deduplicator{
		logger: log.With(slog.String("component", "deduplicator")),
	}
}

// Reconcile applies one scan's raw candidates to the scope's active conflict
// set through the given (transaction-bound) conflict store.
func (d *Deduplicator) Reconcile(
	ctx context.Context,
	scopeID uuid.UUID,
	raw []RawConflict,
	conflicts store.ConflictStore,
) (*ReconcileResult, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	active, err := conflicts.ListActiveByScope(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active conflicts: %w", err)
	}

	existing := make(map[string]*domain.Conflict, len(active))
	for _, c := range active {
		existing[c.Fingerprint] = c
	}

	// Detectors can emit the same fingerprint more than once in one pass
	// (e.g. two schedule violations over the same task pair); keep the
	// highest-magnitude occurrence.
	byFingerprint := make(map[string]RawConflict)
	order := make([]string, 0, len(raw))
	for _, rc := range raw {
		fp := rc.Fingerprint(scopeID)
		if prev, dup := byFingerprint[fp]; dup {
			if rc.Magnitude <= prev.Magnitude {
				continue
			}
		} else {
			order = append(order, fp)
		}
		byFingerprint[fp] = rc
	}

	result := &ReconcileResult{}
	now := time.Now().UTC()

	for _, fp := range order {
		rc := byFingerprint[fp]

		if current, ok := existing[fp]; ok {
			// Same underlying problem, possibly changed shape: refresh the
			// evidence in place so the row tracks reality without starting
			// a new notification cycle.
			current.Severity = rc.Severity
			current.Evidence = rc.Evidence
			if err := conflicts.Update(ctx, current); err != nil {
				return nil, fmt.Errorf("failed to refresh conflict %s: %w", current.ID, err)
			}
			result.Refreshed = append(result.Refreshed, current)
			continue
		}

		conflict, err := domain.NewConflict(scopeID, rc.Type, rc.Severity, rc.TaskIDs, rc.UserIDs, rc.Evidence)
		if err != nil {
			return nil, fmt.Errorf("failed to build conflict: %w", err)
		}
		if err := conflicts.Create(ctx, conflict); err != nil {
			return nil, fmt.Errorf("failed to create conflict: %w", err)
		}
		result.Created = append(result.Created, conflict)

		log.Info("conflict detected",
			slog.String("conflict_id", conflict.ID.String()),
			slog.String("scope_id", scopeID.String()),
			slog.String("type", string(conflict.Type)),
			slog.String("severity", string(conflict.Severity)))
	}

	// Anything previously active whose fingerprint the scan no longer
	// produced has resolved itself; close it so stale conflicts never leak.
	for _, current := range active {
		if _, stillPresent := byFingerprint[current.Fingerprint]; stillPresent {
			continue
		}
		if err := current.Resolve(domain.ResolutionNoteAutoCleared, now); err != nil {
			return nil, fmt.Errorf("failed to auto-clear conflict %s: %w", current.ID, err)
		}
		if err := conflicts.Update(ctx, current); err != nil {
			return nil, fmt.Errorf("failed to persist auto-clear of conflict %s: %w", current.ID, err)
		}
		result.AutoCleared = append(result.AutoCleared, current)

		log.Info("conflict auto-cleared",
			slog.String("conflict_id", current.ID.String()),
			slog.String("scope_id", scopeID.String()),
			slog.String("type", string(current.Type)))
	}

	result.Active = append(result.Active, result.Created...)
	result.Active = append(result.Active, result.Refreshed...)
	return result, nil
}
