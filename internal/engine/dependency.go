package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
)

// DependencyDetector walks each task's dependency graph to a bounded depth,
// flagging cycles (critical, since a cycle makes scheduling impossible) and
// blocked chains where every upstream predecessor is incomplete and overdue.
type DependencyDetector struct {
	maxDepth int
}

// NewDependencyDetector creates a detector with the given maximum walk depth.
// The bound keeps the walk cheap and terminates it on cyclic data.
func NewDependencyDetector(maxDepth int) *DependencyDetector {
	return &DependencyDetector{maxDepth: maxDepth}
}

// Name implements Detector.Name.
func (d *DependencyDetector) Name() string {
	return "dependency_violation"
}

// Detect implements Detector.Detect.
func (d *DependencyDetector) Detect(ctx context.Context, facts *domain.FactSet) ([]RawConflict, error) {
	var out []RawConflict

	// A cycle is reachable from each of its members; report it once.
	seenCycles := make(map[string]struct{})

	for _, task := range sortedTasks(facts) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if task.Status.IsComplete() || len(task.DependsOn) == 0 {
			continue
		}

		if cycle := d.findCycle(facts, task.ID); len(cycle) > 0 {
			key := cycleKey(cycle)
			if _, dup := seenCycles[key]; !dup {
				seenCycles[key] = struct{}{}

				evidence, err := domain.EncodeEvidence(domain.DependencyEvidence{
					Cycle: cycle,
				})
				if err != nil {
					return nil, err
				}

				out = append(out, RawConflict{
					Type:      domain.ConflictTypeDependencyViolation,
					TaskIDs:   cycle,
					UserIDs:   assigneesOf(facts, cycle),
					Magnitude: float64(len(cycle)),
					Severity:  domain.SeverityCritical,
					Evidence:  evidence,
				})
			}
			// A task inside a cycle has no meaningful blocked-chain state.
			continue
		}

		chain := d.blockedChain(facts, task)
		if len(chain) == 0 {
			continue
		}

		affected := append([]uuid.UUID{task.ID}, chain...)
		evidence, err := domain.EncodeEvidence(domain.DependencyEvidence{
			BlockedTaskID: task.ID,
			ChainLength:   len(chain),
		})
		if err != nil {
			return nil, err
		}

		severity := domain.SeverityMedium
		if len(chain) >= 3 {
			severity = domain.SeverityHigh
		}

		out = append(out, RawConflict{
			Type:      domain.ConflictTypeDependencyViolation,
			TaskIDs:   affected,
			UserIDs:   assigneesOf(facts, affected),
			Magnitude: float64(len(chain)),
			Severity:  severity,
			Evidence:  evidence,
		})
	}

	return out, nil
}

// findCycle runs a depth-bounded DFS from the given task and returns the
// first dependency cycle it encounters, in walk order, or nil.
func (d *DependencyDetector) findCycle(facts *domain.FactSet, start uuid.UUID) []uuid.UUID {
	var path []uuid.UUID
	onPath := make(map[uuid.UUID]int)

	var walk func(id uuid.UUID, depth int) []uuid.UUID
	walk = func(id uuid.UUID, depth int) []uuid.UUID {
		if depth > d.maxDepth {
			return nil
		}
		if pos, ok := onPath[id]; ok {
			// The cycle is the path suffix from the first visit of id.
			cycle := make([]uuid.UUID, len(path)-pos)
			copy(cycle, path[pos:])
			return cycle
		}

		task, ok := facts.Tasks[id]
		if !ok {
			return nil
		}

		onPath[id] = len(path)
		path = append(path, id)
		defer func() {
			path = path[:len(path)-1]
			delete(onPath, id)
		}()

		for _, predID := range task.DependsOn {
			if cycle := walk(predID, depth+1); cycle != nil {
				return cycle
			}
		}
		return nil
	}

	return walk(start, 0)
}

// blockedChain walks the task's upstream predecessors to the depth bound and
// returns them if every one is incomplete and overdue at snapshot time.
// Returns nil when any predecessor is complete, not yet overdue, or unknown.
func (d *DependencyDetector) blockedChain(facts *domain.FactSet, task *domain.Task) []uuid.UUID {
	now := facts.SnapshotAt

	var chain []uuid.UUID
	visited := make(map[uuid.UUID]struct{})
	blocked := true

	var walk func(id uuid.UUID, depth int)
	walk = func(id uuid.UUID, depth int) {
		if !blocked || depth > d.maxDepth {
			return
		}
		if _, dup := visited[id]; dup {
			return
		}
		visited[id] = struct{}{}

		pred, ok := facts.Tasks[id]
		if !ok {
			return
		}
		if pred.Status.IsComplete() || pred.DueDate.IsZero() || !pred.DueDate.Before(now) {
			blocked = false
			return
		}

		chain = append(chain, id)
		for _, upstream := range pred.DependsOn {
			walk(upstream, depth+1)
		}
	}

	for _, predID := range task.DependsOn {
		walk(predID, 1)
	}

	if !blocked || len(chain) == 0 {
		return nil
	}
	return chain
}

// cycleKey builds an order-independent identity for a cycle's member set.
func cycleKey(cycle []uuid.UUID) string {
	ids := make([]string, 0, len(cycle))
	for _, id := range cycle {
		ids = append(ids, id.String())
	}
	// Sort so rotations of the same cycle collapse to one key.
	sort.Strings(ids)
	return strings.Join(ids, "|")
}
