package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasktide/conflict-engine/internal/domain"
)

func newFactSet(scopeID uuid.UUID, snapshotAt time.Time) *domain.FactSet {
	return &domain.FactSet{
		ScopeID:    scopeID,
		Tasks:      make(map[uuid.UUID]*domain.Task),
		Assignees:  make(map[uuid.UUID]*domain.Assignee),
		SnapshotAt: snapshotAt,
	}
}

func addTask(facts *domain.FactSet, task *domain.Task) *domain.Task {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusTodo
	}
	facts.Tasks[task.ID] = task
	return task
}

func addAssignee(facts *domain.FactSet, assignee *domain.Assignee) *domain.Assignee {
	if assignee.ID == uuid.Nil {
		assignee.ID = uuid.New()
	}
	facts.Assignees[assignee.ID] = assignee
	return assignee
}

func TestOverloadDetector_Detect(t *testing.T) {
	t.Parallel()

	snapshotAt := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	t.Run("flags assignee committed past threshold", func(t *testing.T) {
		t.Parallel()

		facts := newFactSet(uuid.New(), snapshotAt)
		assignee := addAssignee(facts, &domain.Assignee{WeeklyCapacityDays: 10})

		// 15 effort-days all due within one week against 10 days/week.
		due := snapshotAt.AddDate(0, 0, 7)
		t1 := addTask(facts, &domain.Task{AssigneeID: assignee.ID, StartDate: snapshotAt, DueDate: due, EffortDays: 8})
		t2 := addTask(facts, &domain.Task{AssigneeID: assignee.ID, StartDate: snapshotAt, DueDate: due, EffortDays: 7})

		detector := NewOverloadDetector(14, 1.15)
		out, err := detector.Detect(context.Background(), facts)
		require.NoError(t, err)
		require.Len(t, out, 1)

		rc := out[0]
		assert.Equal(t, domain.ConflictTypeResourceOverload, rc.Type)
		assert.ElementsMatch(t, []uuid.UUID{t1.ID, t2.ID}, rc.TaskIDs)
		assert.Equal(t, []uuid.UUID{assignee.ID}, rc.UserIDs)
		assert.InDelta(t, 1.5, rc.Magnitude, 0.0001)
		// A ratio of exactly 1.5 is high, not critical.
		assert.Equal(t, domain.SeverityHigh, rc.Severity)

		ev, err := domain.DecodeEvidence(rc.Type, rc.Evidence)
		require.NoError(t, err)
		overload, ok := ev.(domain.OverloadEvidence)
		require.True(t, ok)
		assert.Equal(t, assignee.ID, overload.AssigneeID)
		assert.InDelta(t, 15.0, overload.CommittedDays, 0.0001)
		assert.InDelta(t, 10.0, overload.CapacityDays, 0.0001)
	})

	t.Run("under threshold emits nothing", func(t *testing.T) {
		t.Parallel()

		facts := newFactSet(uuid.New(), snapshotAt)
		assignee := addAssignee(facts, &domain.Assignee{WeeklyCapacityDays: 10})
		addTask(facts, &domain.Task{
			AssigneeID: assignee.ID,
			StartDate:  snapshotAt,
			DueDate:    snapshotAt.AddDate(0, 0, 7),
			EffortDays: 9,
		})

		detector := NewOverloadDetector(14, 1.15)
		out, err := detector.Detect(context.Background(), facts)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("severity scales with ratio", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, domain.SeverityMedium, severityForOverload(1.2))
		assert.Equal(t, domain.SeverityHigh, severityForOverload(1.3))
		assert.Equal(t, domain.SeverityHigh, severityForOverload(1.5))
		assert.Equal(t, domain.SeverityCritical, severityForOverload(1.51))
	})

	t.Run("ignores completed and out-of-window tasks", func(t *testing.T) {
		t.Parallel()

		facts := newFactSet(uuid.New(), snapshotAt)
		assignee := addAssignee(facts, &domain.Assignee{WeeklyCapacityDays: 5})
		addTask(facts, &domain.Task{
			AssigneeID: assignee.ID,
			StartDate:  snapshotAt,
			DueDate:    snapshotAt.AddDate(0, 0, 7),
			EffortDays: 40,
			Status:     domain.TaskStatusDone,
		})
		addTask(facts, &domain.Task{
			AssigneeID: assignee.ID,
			StartDate:  snapshotAt.AddDate(0, 0, 30),
			DueDate:    snapshotAt.AddDate(0, 0, 40),
			EffortDays: 40,
		})

		detector := NewOverloadDetector(14, 1.15)
		out, err := detector.Detect(context.Background(), facts)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("skips assignees without declared capacity", func(t *testing.T) {
		t.Parallel()

		facts := newFactSet(uuid.New(), snapshotAt)
		assignee := addAssignee(facts, &domain.Assignee{WeeklyCapacityDays: 0})
		addTask(facts, &domain.Task{
			AssigneeID: assignee.ID,
			StartDate:  snapshotAt,
			DueDate:    snapshotAt.AddDate(0, 0, 7),
			EffortDays: 40,
		})

		detector := NewOverloadDetector(14, 1.15)
		out, err := detector.Detect(context.Background(), facts)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestScheduleDetector_Detect(t *testing.T) {
	t.Parallel()

	snapshotAt := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	t.Run("flags window too small for effort", func(t *testing.T) {
		t.Parallel()

		facts := newFactSet(uuid.New(), snapshotAt)
		assignee := addAssignee(facts, &domain.Assignee{WeeklyCapacityDays: 5})
		// 10 effort-days squeezed into a 3-day window: 7 days short.
		task := addTask(facts, &domain.Task{
			AssigneeID: assignee.ID,
			StartDate:  snapshotAt,
			DueDate:    snapshotAt.AddDate(0, 0, 3),
			EffortDays: 10,
		})

		detector := NewScheduleDetector()
		out, err := detector.Detect(context.Background(), facts)
		require.NoError(t, err)
		require.Len(t, out, 1)

		rc := out[0]
		assert.Equal(t, domain.ConflictTypeScheduleInfeasible, rc.Type)
		assert.Equal(t, []uuid.UUID{task.ID}, rc.TaskIDs)
		assert.InDelta(t, 7.0, rc.Magnitude, 0.0001)
		assert.Equal(t, domain.SeverityHigh, rc.Severity)
	})

	t.Run("flags finish-to-start violation", func(t *testing.T) {
		t.Parallel()

		facts := newFactSet(uuid.New(), snapshotAt)
		pred := addTask(facts, &domain.Task{
			StartDate:  snapshotAt,
			DueDate:    snapshotAt.AddDate(0, 0, 10),
			EffortDays: 5,
		})
		succ := addTask(facts, &domain.Task{
			StartDate:  snapshotAt.AddDate(0, 0, 6),
			DueDate:    snapshotAt.AddDate(0, 0, 12),
			EffortDays: 4,
			DependsOn:  []uuid.UUID{pred.ID},
		})

		detector := NewScheduleDetector()
		out, err := detector.Detect(context.Background(), facts)
		require.NoError(t, err)
		require.Len(t, out, 1)

		rc := out[0]
		assert.ElementsMatch(t, []uuid.UUID{pred.ID, succ.ID}, rc.TaskIDs)
		assert.InDelta(t, 4.0, rc.Magnitude, 0.0001)

		ev, err := domain.DecodeEvidence(rc.Type, rc.Evidence)
		require.NoError(t, err)
		schedule, ok := ev.(domain.ScheduleEvidence)
		require.True(t, ok)
		assert.Equal(t, pred.ID, schedule.PredecessorID)
		assert.Equal(t, succ.ID, schedule.SuccessorID)
	})

	t.Run("completed predecessor is not a violation", func(t *testing.T) {
		t.Parallel()

		facts := newFactSet(uuid.New(), snapshotAt)
		pred := addTask(facts, &domain.Task{
			StartDate:  snapshotAt,
			DueDate:    snapshotAt.AddDate(0, 0, 10),
			EffortDays: 5,
			Status:     domain.TaskStatusDone,
		})
		addTask(facts, &domain.Task{
			StartDate:  snapshotAt.AddDate(0, 0, 2),
			DueDate:    snapshotAt.AddDate(0, 0, 12),
			EffortDays: 4,
			DependsOn:  []uuid.UUID{pred.ID},
		})

		detector := NewScheduleDetector()
		out, err := detector.Detect(context.Background(), facts)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("feasible schedule emits nothing", func(t *testing.T) {
		t.Parallel()

		facts := newFactSet(uuid.New(), snapshotAt)
		addTask(facts, &domain.Task{
			StartDate:  snapshotAt,
			DueDate:    snapshotAt.AddDate(0, 0, 10),
			EffortDays: 5,
		})

		detector := NewScheduleDetector()
		out, err := detector.Detect(context.Background(), facts)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestDependencyDetector_Detect(t *testing.T) {
	t.Parallel()

	snapshotAt := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	t.Run("reports a cycle once as critical", func(t *testing.T) {
		t.Parallel()

		facts := newFactSet(uuid.New(), snapshotAt)
		a := addTask(facts, &domain.Task{DueDate: snapshotAt.AddDate(0, 0, 5)})
		b := addTask(facts, &domain.Task{DueDate: snapshotAt.AddDate(0, 0, 6)})
		c := addTask(facts, &domain.Task{DueDate: snapshotAt.AddDate(0, 0, 7)})
		a.DependsOn = []uuid.UUID{b.ID}
		b.DependsOn = []uuid.UUID{c.ID}
		c.DependsOn = []uuid.UUID{a.ID}

		detector := NewDependencyDetector(10)
		out, err := detector.Detect(context.Background(), facts)
		require.NoError(t, err)
		require.Len(t, out, 1)

		rc := out[0]
		assert.Equal(t, domain.ConflictTypeDependencyViolation, rc.Type)
		assert.Equal(t, domain.SeverityCritical, rc.Severity)
		assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID, c.ID}, rc.TaskIDs)
		assert.InDelta(t, 3.0, rc.Magnitude, 0.0001)

		ev, err := domain.DecodeEvidence(rc.Type, rc.Evidence)
		require.NoError(t, err)
		dep, ok := ev.(domain.DependencyEvidence)
		require.True(t, ok)
		assert.Len(t, dep.Cycle, 3)
	})

	t.Run("flags fully blocked overdue chain", func(t *testing.T) {
		t.Parallel()

		facts := newFactSet(uuid.New(), snapshotAt)
		upstream := addTask(facts, &domain.Task{DueDate: snapshotAt.AddDate(0, 0, -10)})
		mid := addTask(facts, &domain.Task{
			DueDate:   snapshotAt.AddDate(0, 0, -5),
			DependsOn: []uuid.UUID{upstream.ID},
		})
		blocked := addTask(facts, &domain.Task{
			StartDate: snapshotAt,
			DueDate:   snapshotAt.AddDate(0, 0, 10),
			DependsOn: []uuid.UUID{mid.ID},
		})

		detector := NewDependencyDetector(10)
		out, err := detector.Detect(context.Background(), facts)
		require.NoError(t, err)

		// The chain is reported for the blocked task; mid itself also has an
		// overdue upstream, so it is flagged too.
		var found *RawConflict
		for i := range out {
			ev, decodeErr := domain.DecodeEvidence(out[i].Type, out[i].Evidence)
			require.NoError(t, decodeErr)
			if dep, ok := ev.(domain.DependencyEvidence); ok && dep.BlockedTaskID == blocked.ID {
				found = &out[i]
				assert.Equal(t, 2, dep.ChainLength)
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, domain.SeverityMedium, found.Severity)
	})

	t.Run("chain with a predecessor still on schedule is not blocked", func(t *testing.T) {
		t.Parallel()

		facts := newFactSet(uuid.New(), snapshotAt)
		onTime := addTask(facts, &domain.Task{DueDate: snapshotAt.AddDate(0, 0, 5)})
		addTask(facts, &domain.Task{
			StartDate: snapshotAt,
			DueDate:   snapshotAt.AddDate(0, 0, 10),
			DependsOn: []uuid.UUID{onTime.ID},
		})

		detector := NewDependencyDetector(10)
		out, err := detector.Detect(context.Background(), facts)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("walk depth is bounded", func(t *testing.T) {
		t.Parallel()

		facts := newFactSet(uuid.New(), snapshotAt)
		// Self-cycle deeper than the bound is never reached.
		var prev *domain.Task
		for i := 0; i < 6; i++ {
			task := addTask(facts, &domain.Task{DueDate: snapshotAt.AddDate(0, 0, 5)})
			if prev != nil {
				prev.DependsOn = []uuid.UUID{task.ID}
			}
			prev = task
		}
		// Close the loop at the end of the chain.
		head := sortedTasks(facts)[0]
		prev.DependsOn = []uuid.UUID{head.ID}

		detector := NewDependencyDetector(2)
		out, err := detector.Detect(context.Background(), facts)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestRunDetectors(t *testing.T) {
	t.Parallel()

	facts := newFactSet(uuid.New(), time.Now().UTC())

	t.Run("merges detector output", func(t *testing.T) {
		t.Parallel()

		d1 := &stubDetector{name: "one", raw: []RawConflict{{Type: domain.ConflictTypeResourceOverload}}}
		d2 := &stubDetector{name: "two", raw: []RawConflict{{Type: domain.ConflictTypeScheduleInfeasible}}}

		out, err := runDetectors(context.Background(), []Detector{d1, d2}, facts)
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})

	t.Run("any detector error discards all output", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		d1 := &stubDetector{name: "one", raw: []RawConflict{{Type: domain.ConflictTypeResourceOverload}}}
		d2 := &stubDetector{name: "two", err: boom}

		out, err := runDetectors(context.Background(), []Detector{d1, d2}, facts)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, out)
	})

	t.Run("cancelled context aborts", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		out, err := runDetectors(ctx, []Detector{&stubDetector{name: "one"}}, facts)
		require.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, out)
	})
}
