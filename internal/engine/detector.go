package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
)

// RawConflict is a detector's unpersisted output: one candidate conflict
// carrying the facts the deduplicator needs to merge it against existing
// active conflicts.
type RawConflict struct {
	Type      domain.ConflictType
	TaskIDs   []uuid.UUID
	UserIDs   []uuid.UUID
	Magnitude float64
	Severity  domain.Severity
	Evidence  json.RawMessage
}

// Fingerprint returns the stable identity of the raw conflict within a scope.
func (r *RawConflict) Fingerprint(scopeID uuid.UUID) string {
	return domain.Fingerprint(scopeID, r.Type, r.TaskIDs)
}

// Detector is one detection pass over the fact set. Detectors are pure
// reads: they never deduplicate, persist, or mutate the snapshot, which is
// what allows the scanner to run them concurrently.
type Detector interface {
	// Name identifies the detector in logs.
	Name() string

	// Detect emits zero or more raw conflict candidates for the snapshot.
	Detect(ctx context.Context, facts *domain.FactSet) ([]RawConflict, error)
}

// runDetectors executes all detectors concurrently over the shared immutable
// snapshot and collects their output. If the context is cancelled or any
// detector fails, the partial results are discarded and the first error is
// returned.
func runDetectors(ctx context.Context, detectors []Detector, facts *domain.FactSet) ([]RawConflict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([][]RawConflict, len(detectors))
	errs := make([]error, len(detectors))

	var wg sync.WaitGroup
	for i, det := range detectors {
		wg.Add(1)
		go func(i int, det Detector) {
			defer wg.Done()
			raw, err := det.Detect(ctx, facts)
			if err != nil {
				errs[i] = fmt.Errorf("detector %s: %w", det.Name(), err)
				return
			}
			results[i] = raw
		}(i, det)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []RawConflict
	for _, raw := range results {
		all = append(all, raw...)
	}
	return all, nil
}

// assigneesOf collects the distinct assignee IDs of the given tasks. These
// become a conflict's affected users.
func assigneesOf(facts *domain.FactSet, taskIDs []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var users []uuid.UUID
	for _, id := range taskIDs {
		task, ok := facts.Tasks[id]
		if !ok || !task.IsAssigned() {
			continue
		}
		if _, dup := seen[task.AssigneeID]; dup {
			continue
		}
		seen[task.AssigneeID] = struct{}{}
		users = append(users, task.AssigneeID)
	}
	return users
}
