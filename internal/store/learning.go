package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
)

// LearningStore defines the interface for learning entry persistence.
//
// Feedback updates are append-then-recompute: the caller reads the entry with
// GetForUpdate inside a transaction (taking a row lock so concurrent feedback
// for the same key serializes), recomputes the aggregate in memory, and
// writes it back with Upsert.
type LearningStore interface {
	// GetPair retrieves the scoped and global entries for one
	// (conflict type, resolution type) key. Either return value may be nil
	// when no history exists yet; that is not an error.
	GetPair(
		ctx context.Context,
		scopeID uuid.UUID,
		conflictType domain.ConflictType,
		resolutionType domain.ResolutionType,
	) (scoped, global *domain.LearningEntry, err error)

	// GetForUpdate retrieves one entry with a row lock, creating a zeroed
	// entry if none exists. A nil scopeID addresses the global entry.
	// Must be called within a transaction.
	GetForUpdate(
		ctx context.Context,
		scopeID *uuid.UUID,
		conflictType domain.ConflictType,
		resolutionType domain.ResolutionType,
	) (*domain.LearningEntry, error)

	// Upsert writes an entry, inserting or replacing on its key.
	Upsert(ctx context.Context, entry *domain.LearningEntry) error

	// IncrementSuggested bumps the times-suggested counter for both the
	// scoped and global entries of a key, creating them if absent. Invoked
	// at suggestion generation time.
	IncrementSuggested(
		ctx context.Context,
		scopeID uuid.UUID,
		conflictType domain.ConflictType,
		resolutionType domain.ResolutionType,
	) error

	// WithTx returns a LearningStore bound to the given transaction.
	WithTx(tx *sql.Tx) LearningStore
}

// FeedbackStore defines the interface for feedback record persistence.
// Feedback records are immutable; the store only inserts and reads.
type FeedbackStore interface {
	// Create saves a new feedback record.
	Create(ctx context.Context, record *domain.FeedbackRecord) error

	// ListBySuggestion retrieves the feedback history for one suggestion,
	// oldest first.
	ListBySuggestion(ctx context.Context, suggestionID uuid.UUID) ([]*domain.FeedbackRecord, error)

	// WithTx returns a FeedbackStore bound to the given transaction.
	WithTx(tx *sql.Tx) FeedbackStore
}
