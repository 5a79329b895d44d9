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

// ScheduleDetector flags tasks whose own window cannot fit their estimated
// effort, and dependent task pairs whose dates violate finish-to-start
// ordering. Magnitude is the number of days of violation.
type ScheduleDetector struct{}

// NewScheduleDetector creates a schedule-infeasibility detector.
func NewScheduleDetector() *ScheduleDetector {
	return &ScheduleDetector{}
}

// Name implements Detector.Name.
func (d *ScheduleDetector) Name() string {
	return "schedule_infeasible"
}

// Detect implements Detector.Detect.
func (d *ScheduleDetector) Detect(ctx context.Context, facts *domain.FactSet) ([]RawConflict, error) {
	var out []RawConflict

	for _, task := range sortedTasks(facts) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if task.Status.IsComplete() {
			continue
		}

		// (a) Due date precedes start date plus the minimum duration the
		// effort estimate implies.
		if !task.StartDate.IsZero() && !task.DueDate.IsZero() {
			minEnd := task.StartDate.AddDate(0, 0, int(math.Ceil(task.EffortDays)))
			if task.DueDate.Before(minEnd) {
				violationDays := daysBetween(task.DueDate, minEnd)

				evidence, err := domain.EncodeEvidence(domain.ScheduleEvidence{
					ViolationDays: violationDays,
				})
				if err != nil {
					return nil, err
				}

				out = append(out, RawConflict{
					Type:      domain.ConflictTypeScheduleInfeasible,
					TaskIDs:   []uuid.UUID{task.ID},
					UserIDs:   assigneesOf(facts, []uuid.UUID{task.ID}),
					Magnitude: violationDays,
					Severity:  severityForSchedule(violationDays),
					Evidence:  evidence,
				})
			}
		}

		// (b) Finish-to-start violations against each predecessor: the
		// predecessor's end date must not land after this task's start.
		for _, predID := range task.DependsOn {
			pred, ok := facts.Tasks[predID]
			if !ok || pred.Status.IsComplete() {
				continue
			}
			if task.StartDate.IsZero() || pred.DueDate.IsZero() {
				continue
			}
			if !pred.DueDate.After(task.StartDate) {
				continue
			}

			violationDays := daysBetween(task.StartDate, pred.DueDate)
			pair := []uuid.UUID{task.ID, predID}

			evidence, err := domain.EncodeEvidence(domain.ScheduleEvidence{
				ViolationDays: violationDays,
				PredecessorID: predID,
				SuccessorID:   task.ID,
			})
			if err != nil {
				return nil, err
			}

			out = append(out, RawConflict{
				Type:      domain.ConflictTypeScheduleInfeasible,
				TaskIDs:   pair,
				UserIDs:   assigneesOf(facts, pair),
				Magnitude: violationDays,
				Severity:  severityForSchedule(violationDays),
				Evidence:  evidence,
			})
		}
	}

	return out, nil
}

// severityForSchedule maps days of violation to a severity.
func severityForSchedule(violationDays float64) domain.Severity {
	switch {
	case violationDays >= 14:
		return domain.SeverityCritical
	case violationDays >= 7:
		return domain.SeverityHigh
	case violationDays >= 2:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// daysBetween returns the whole number of days from earlier to later,
// rounding partial days up.
func daysBetween(earlier, later time.Time) float64 {
	return math.Ceil(later.Sub(earlier).Hours() / 24)
}

// sortedTasks returns the snapshot's tasks ordered by ID so detector output
// is reproducible across runs.
func sortedTasks(facts *domain.FactSet) []*domain.Task {
	tasks := make([]*domain.Task, 0, len(facts.Tasks))
	for _, t := range facts.Tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return strings.Compare(tasks[i].ID.String(), tasks[j].ID.String()) < 0
	})
	return tasks
}
