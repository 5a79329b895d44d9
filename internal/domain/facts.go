package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the workflow state of a task as reported by the external
// task domain. The engine only distinguishes done from not-done.
type TaskStatus string

// Task workflow states.
const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// IsComplete reports whether the task no longer needs scheduling attention.
func (s TaskStatus) IsComplete() bool {
	return s == TaskStatusDone
}

// Task is the engine's read-only view of one task from the external task
// domain snapshot.
type Task struct {
	ID uuid.UUID `json:"id"`

	// AssigneeID is uuid.Nil for unassigned tasks.
	AssigneeID uuid.UUID `json:"assignee_id"`

	StartDate  time.Time  `json:"start_date"`
	DueDate    time.Time  `json:"due_date"`
	EffortDays float64    `json:"effort_days"`
	Status     TaskStatus `json:"status"`

	// DependsOn lists the IDs of tasks that must finish before this one
	// starts (finish-to-start edges).
	DependsOn []uuid.UUID `json:"depends_on"`
}

// IsAssigned reports whether the task has an assignee.
func (t *Task) IsAssigned() bool {
	return t.AssigneeID != uuid.Nil
}

// Assignee is the engine's read-only view of one assignee from the external
// task domain snapshot.
type Assignee struct {
	ID uuid.UUID `json:"id"`

	// WeeklyCapacityDays is the declared capacity in effort-days per week.
	WeeklyCapacityDays float64 `json:"weekly_capacity_days"`

	Skills []string `json:"skills"`
}

// HasSkill reports whether the assignee declares the given skill.
func (a *Assignee) HasSkill(skill string) bool {
	for _, s := range a.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// FactSet is the normalized, immutable snapshot of one scope's tasks and
// assignees taken at scan start. Detectors only read it, which is what lets
// them run concurrently.
type FactSet struct {
	ScopeID    uuid.UUID               `json:"scope_id"`
	Tasks      map[uuid.UUID]*Task     `json:"tasks"`
	Assignees  map[uuid.UUID]*Assignee `json:"assignees"`
	SnapshotAt time.Time               `json:"snapshot_at"`
}

// IsEmpty reports whether the scope had no tasks at snapshot time. An empty
// scope is not an error; a scan over it completes with zero conflicts.
func (f *FactSet) IsEmpty() bool {
	return len(f.Tasks) == 0
}

// TasksByAssignee groups the snapshot's incomplete tasks by their assignee.
// Unassigned tasks are omitted.
func (f *FactSet) TasksByAssignee() map[uuid.UUID][]*Task {
	grouped := make(map[uuid.UUID][]*Task)
	for _, task := range f.Tasks {
		if !task.IsAssigned() || task.Status.IsComplete() {
			continue
		}
		grouped[task.AssigneeID] = append(grouped[task.AssigneeID], task)
	}
	return grouped
}
