package engine

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
)

// OverloadDetector flags assignees whose committed effort inside the sliding
// evaluation window exceeds their declared capacity by the threshold ratio.
type OverloadDetector struct {
	windowDays int
	threshold  float64
}

// NewOverloadDetector creates a detector with the given evaluation window
// (days) and overload threshold ratio.
func NewOverloadDetector(windowDays int, threshold float64) *OverloadDetector {
	return &OverloadDetector{
		windowDays: windowDays,
		threshold:  threshold,
	}
}

// Name implements Detector.Name.
func (d *OverloadDetector) Name() string {
	return "resource_overload"
}

// Detect implements Detector.Detect. For each assignee it sums committed
// effort across incomplete tasks whose time windows overlap the evaluation
// window, prorates the assignee's weekly capacity over the span those tasks
// actually occupy, and emits a candidate when the ratio crosses the
// threshold. Magnitude is the overload ratio.
func (d *OverloadDetector) Detect(ctx context.Context, facts *domain.FactSet) ([]RawConflict, error) {
	windowStart := facts.SnapshotAt
	windowEnd := windowStart.AddDate(0, 0, d.windowDays)

	byAssignee := facts.TasksByAssignee()

	// Iterate assignees in a fixed order so output is reproducible.
	assigneeIDs := make([]uuid.UUID, 0, len(byAssignee))
	for id := range byAssignee {
		assigneeIDs = append(assigneeIDs, id)
	}
	sort.Slice(assigneeIDs, func(i, j int) bool {
		return strings.Compare(assigneeIDs[i].String(), assigneeIDs[j].String()) < 0
	})

	var out []RawConflict
	for _, assigneeID := range assigneeIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		assignee, ok := facts.Assignees[assigneeID]
		if !ok || assignee.WeeklyCapacityDays <= 0 {
			continue
		}

		var (
			committed float64
			taskIDs   []uuid.UUID
			latestDue = windowStart
		)
		for _, task := range byAssignee[assigneeID] {
			if !overlapsWindow(task, windowStart, windowEnd) {
				continue
			}
			committed += task.EffortDays
			taskIDs = append(taskIDs, task.ID)

			due := task.DueDate
			if due.After(windowEnd) {
				due = windowEnd
			}
			if due.After(latestDue) {
				latestDue = due
			}
		}
		if len(taskIDs) == 0 {
			continue
		}

		// Capacity is prorated over the span the overlapping tasks actually
		// occupy, not the full window, so work all due next week is judged
		// against one week of capacity.
		spanDays := math.Ceil(latestDue.Sub(windowStart).Hours() / 24)
		if spanDays < 1 {
			spanDays = 1
		}
		capacityDays := assignee.WeeklyCapacityDays * spanDays / 7

		ratio := committed / capacityDays
		if ratio < d.threshold {
			continue
		}

		evidence, err := domain.EncodeEvidence(domain.OverloadEvidence{
			AssigneeID:    assigneeID,
			CommittedDays: committed,
			CapacityDays:  capacityDays,
			OverloadRatio: ratio,
			WindowStart:   windowStart,
			WindowEnd:     windowEnd,
		})
		if err != nil {
			return nil, err
		}

		out = append(out, RawConflict{
			Type:      domain.ConflictTypeResourceOverload,
			TaskIDs:   taskIDs,
			UserIDs:   []uuid.UUID{assigneeID},
			Magnitude: ratio,
			Severity:  severityForOverload(ratio),
			Evidence:  evidence,
		})
	}

	return out, nil
}

// severityForOverload maps an overload ratio to a severity. A ratio of
// exactly 1.5 is high; only ratios beyond it are critical.
func severityForOverload(ratio float64) domain.Severity {
	switch {
	case ratio > 1.5:
		return domain.SeverityCritical
	case ratio >= 1.3:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

// overlapsWindow reports whether a task's time window intersects
// [windowStart, windowEnd]. Tasks without a start date count as already
// started.
func overlapsWindow(task *domain.Task, windowStart, windowEnd time.Time) bool {
	if !task.StartDate.IsZero() && !task.StartDate.Before(windowEnd) {
		return false
	}
	return !task.DueDate.Before(windowStart)
}
