package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
)

// ConflictStore defines the interface for conflict data persistence.
type ConflictStore interface {
	// Create saves a new conflict. The partial unique index on
	// (scope_id, fingerprint) for active conflicts makes a second active
	// occurrence fail with ErrActiveConflictExists.
	Create(ctx context.Context, conflict *domain.Conflict) error

	// GetByID retrieves a conflict by its unique ID.
	// Returns ErrConflictNotFound if the conflict does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conflict, error)

	// ListActiveByScope retrieves all active conflicts for a scope, ordered
	// by detection time.
	ListActiveByScope(ctx context.Context, scopeID uuid.UUID) ([]*domain.Conflict, error)

	// Update persists changes to an existing conflict: refreshed evidence
	// and severity during deduplication, or a terminal status transition.
	// Returns ErrConflictNotFound if the conflict does not exist.
	Update(ctx context.Context, conflict *domain.Conflict) error

	// WithTx returns a ConflictStore bound to the given transaction.
	WithTx(tx *sql.Tx) ConflictStore
}

// SuggestionStore defines the interface for resolution suggestion persistence.
type SuggestionStore interface {
	// CreateMultiple saves a batch of suggestions. The operation is expected
	// to run inside the scan transaction so a pass's suggestions appear
	// atomically.
	CreateMultiple(ctx context.Context, suggestions []*domain.ResolutionSuggestion) error

	// GetByID retrieves a suggestion by its unique ID.
	// Returns ErrSuggestionNotFound if the suggestion does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ResolutionSuggestion, error)

	// ListCurrentByConflict retrieves the current (non-superseded) ranked
	// suggestions for a conflict, ordered by confidence descending with the
	// fixed type-priority tie-break.
	ListCurrentByConflict(ctx context.Context, conflictID uuid.UUID) ([]*domain.ResolutionSuggestion, error)

	// SupersedeByConflict marks all current suggestions for a conflict as
	// superseded. Old rows are kept for the audit trail, never deleted.
	SupersedeByConflict(ctx context.Context, conflictID uuid.UUID) error

	// MarkSelected marks one suggestion as selected by a user.
	// Returns ErrSuggestionNotFound if the suggestion does not exist.
	MarkSelected(ctx context.Context, id uuid.UUID) error

	// WithTx returns a SuggestionStore bound to the given transaction.
	WithTx(tx *sql.Tx) SuggestionStore
}
