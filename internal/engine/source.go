package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
)

// Common engine errors.
var (
	// ErrDataUnavailable is returned when the fact-extraction source cannot
	// be read. The scan aborts and prior conflict state is left untouched.
	ErrDataUnavailable = errors.New("task snapshot source unavailable")

	// ErrScanInProgress is returned when a scan is requested for a scope
	// that is already being scanned. Callers should retry later; this is
	// not a failure.
	ErrScanInProgress = errors.New("scan already in progress for scope")
)

// SnapshotSource is the boundary to the external task/board domain. It
// returns a read-only snapshot of a scope's tasks and assignees, which the
// engine normalizes into the immutable fact set detectors run over.
//
// Implementations should wrap unreachable-backend errors with
// ErrDataUnavailable so the scanner can abort cleanly.
type SnapshotSource interface {
	Snapshot(ctx context.Context, scopeID uuid.UUID) (*domain.FactSet, error)
}
