package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/domain/ranking"
	"github.com/tasktide/conflict-engine/internal/enrichment"
	"github.com/tasktide/conflict-engine/internal/platform/logger"
	"github.com/tasktide/conflict-engine/internal/store"
)

// Fixed baseline scores for the candidate types whose value does not depend
// on the conflict's shape.
const (
	baseScoreEscalate = 0.25
	baseScoreIgnore   = 0.10
)

// baseCandidate is an unranked resolution candidate: a type, its structured
// parameters, the heuristic base score and the templated fallback rationale.
type baseCandidate struct {
	rtype     domain.ResolutionType
	params    json.RawMessage
	base      float64
	rationale string
}

// CandidateGenerator assembles the typed resolution-candidate menu for a
// conflict, scores each candidate with the ranking service, optionally
// enriches rationale text through the external collaborator, and returns the
// ranked suggestion set.
type CandidateGenerator struct {
	learning      store.LearningStore
	ranker        ranking.Service
	enricher      enrichment.Enricher
	enrichTimeout time.Duration
	logger        *slog.Logger
}

// NewCandidateGenerator creates a CandidateGenerator. The enricher may be
// nil, in which case all rationale text comes from local templates.
func NewCandidateGenerator(
	learning store.LearningStore,
	ranker ranking.Service,
	enricher enrichment.Enricher,
	enrichTimeout time.Duration,
	log *slog.Logger,
) *CandidateGenerator {
	if learning == nil {
		panic("learning store cannot be nil")
	}
	if ranker == nil {
		panic("ranker cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &CandidateGenerator{
		learning:      learning,
		ranker:        ranker,
		enricher:      enricher,
		enrichTimeout: enrichTimeout,
		logger:        log.With(slog.String("component", "candidate_generator")),
	}
}

// Generate builds a fresh ranked suggestion set for one active conflict.
// It also increments the times-suggested counters the learning store keeps
// per (scope, conflict type, resolution type).
func (g *CandidateGenerator) Generate(
	ctx context.Context,
	conflict *domain.Conflict,
	facts *domain.FactSet,
) ([]*domain.ResolutionSuggestion, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	candidates := g.baseCandidates(conflict, facts)
	if len(candidates) == 0 {
		return nil, nil
	}

	rationales := g.enrich(ctx, conflict, candidates)

	suggestions := make([]*domain.ResolutionSuggestion, 0, len(candidates))
	for _, c := range candidates {
		scoped, global, err := g.learning.GetPair(ctx, conflict.ScopeID, conflict.Type, c.rtype)
		if err != nil {
			return nil, fmt.Errorf("failed to load learning entries: %w", err)
		}

		confidence := g.ranker.Score(c.base, scoped, global)

		rationale := c.rationale
		if enriched, ok := rationales[c.rtype]; ok && enriched != "" {
			rationale = enriched
		}

		suggestion, err := domain.NewResolutionSuggestion(
			conflict.ID,
			c.rtype,
			c.params,
			confidence,
			rationale,
			successSnapshot(scoped, global),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build suggestion: %w", err)
		}
		suggestions = append(suggestions, suggestion)

		if err := g.learning.IncrementSuggested(ctx, conflict.ScopeID, conflict.Type, c.rtype); err != nil {
			return nil, fmt.Errorf("failed to count suggestion: %w", err)
		}
	}

	ranking.SortSuggestions(suggestions)

	log.Debug("generated ranked suggestions",
		slog.String("conflict_id", conflict.ID.String()),
		slog.Int("count", len(suggestions)))
	return suggestions, nil
}

// enrich asks the external collaborator for prose rationale, bounded by the
// configured timeout. Any failure degrades to the templated fallback and is
// never allowed to fail the scan.
func (g *CandidateGenerator) enrich(
	ctx context.Context,
	conflict *domain.Conflict,
	candidates []baseCandidate,
) map[domain.ResolutionType]string {
	if g.enricher == nil {
		return nil
	}

	log := logger.FromContextOrDefault(ctx, g.logger)

	enrichCtx, cancel := context.WithTimeout(ctx, g.enrichTimeout)
	defer cancel()

	req := make([]enrichment.Candidate, 0, len(candidates))
	for _, c := range candidates {
		req = append(req, enrichment.Candidate{
			Type:     c.rtype,
			Params:   c.params,
			Fallback: c.rationale,
		})
	}

	rationales, err := g.enricher.EnrichRationales(enrichCtx, conflict, req)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, enrichment.ErrEnrichmentTimeout) || errors.Is(err, context.DeadlineExceeded) {
			level = slog.LevelInfo
		}
		log.Log(ctx, level, "rationale enrichment failed, using templates",
			slog.String("conflict_id", conflict.ID.String()),
			slog.String("error", err.Error()))
		return nil
	}
	return rationales
}

// baseCandidates assembles the fixed candidate menu for the conflict's type
// and computes each candidate's heuristic base score from the fact set.
func (g *CandidateGenerator) baseCandidates(
	conflict *domain.Conflict,
	facts *domain.FactSet,
) []baseCandidate {
	var out []baseCandidate

	switch conflict.Type {
	case domain.ConflictTypeResourceOverload:
		if c, ok := g.reassignCandidate(conflict, facts); ok {
			out = append(out, c)
		}
		if c, ok := g.rescheduleForOverload(conflict, facts); ok {
			out = append(out, c)
		}
	case domain.ConflictTypeScheduleInfeasible:
		if c, ok := g.rescheduleForSchedule(conflict, facts); ok {
			out = append(out, c)
		}
		if c, ok := g.splitCandidate(conflict, facts); ok {
			out = append(out, c)
		}
	case domain.ConflictTypeDependencyViolation:
		if c, ok := g.rescheduleForDependency(conflict, facts); ok {
			out = append(out, c)
		}
	}

	escalateBase := baseScoreEscalate
	if conflict.Severity == domain.SeverityCritical {
		// Critical conflicts (notably dependency cycles) usually need a
		// human decision; escalation earns a stronger baseline.
		escalateBase = 0.5
	}
	out = append(out,
		baseCandidate{
			rtype:     domain.ResolutionTypeEscalate,
			base:      escalateBase,
			rationale: "Escalate to the project lead for a manual decision.",
		},
		baseCandidate{
			rtype:     domain.ResolutionTypeIgnore,
			base:      baseScoreIgnore,
			rationale: "Leave the conflict as is and accept the risk.",
		},
	)

	return out
}

// reassignCandidate proposes moving the overloaded assignee's largest
// conflicting task to the alternative assignee with the best blend of skill
// match and spare capacity.
func (g *CandidateGenerator) reassignCandidate(
	conflict *domain.Conflict,
	facts *domain.FactSet,
) (baseCandidate, bool) {
	ev, err := domain.DecodeEvidence(conflict.Type, conflict.Evidence)
	if err != nil {
		return baseCandidate{}, false
	}
	overload, ok := ev.(domain.OverloadEvidence)
	if !ok {
		return baseCandidate{}, false
	}

	source, ok := facts.Assignees[overload.AssigneeID]
	if !ok {
		return baseCandidate{}, false
	}

	task := largestTask(facts, conflict.TaskIDs)
	if task == nil {
		return baseCandidate{}, false
	}

	var (
		bestTarget *domain.Assignee
		bestScore  float64
		bestMatch  float64
	)
	for _, target := range sortedAssignees(facts) {
		if target.ID == source.ID || target.WeeklyCapacityDays <= 0 {
			continue
		}

		match := skillMatch(source, target)
		headroom := capacityHeadroom(facts, target, overload.WindowStart, overload.WindowEnd)
		score := clamp01(0.2 + 0.5*match + 0.3*headroom)
		if bestTarget == nil || score > bestScore {
			bestTarget = target
			bestScore = score
			bestMatch = match
		}
	}
	if bestTarget == nil {
		return baseCandidate{}, false
	}

	params, err := json.Marshal(domain.ReassignParams{
		TaskID:           task.ID,
		TargetAssigneeID: bestTarget.ID,
		SkillMatch:       bestMatch,
	})
	if err != nil {
		return baseCandidate{}, false
	}

	return baseCandidate{
		rtype:  domain.ResolutionTypeReassign,
		params: params,
		base:   bestScore,
		rationale: fmt.Sprintf(
			"Reassign the largest conflicting task to assignee %s (skill match %.0f%%) to relieve the overload.",
			bestTarget.ID, bestMatch*100),
	}, true
}

// rescheduleForOverload proposes pushing the largest conflicting task past
// the evaluation window. The base score is the inverse of the disruption:
// the more excess effort has to move, the less attractive rescheduling is.
func (g *CandidateGenerator) rescheduleForOverload(
	conflict *domain.Conflict,
	facts *domain.FactSet,
) (baseCandidate, bool) {
	ev, err := domain.DecodeEvidence(conflict.Type, conflict.Evidence)
	if err != nil {
		return baseCandidate{}, false
	}
	overload, ok := ev.(domain.OverloadEvidence)
	if !ok {
		return baseCandidate{}, false
	}

	task := largestTask(facts, conflict.TaskIDs)
	if task == nil {
		return baseCandidate{}, false
	}

	excessDays := overload.CommittedDays - overload.CapacityDays
	if excessDays < 0 {
		excessDays = 0
	}

	newStart := overload.WindowEnd
	newDue := newStart.AddDate(0, 0, int(task.EffortDays)+1)
	params, err := json.Marshal(domain.RescheduleParams{
		TaskID:   task.ID,
		NewStart: newStart,
		NewDue:   newDue,
	})
	if err != nil {
		return baseCandidate{}, false
	}

	return baseCandidate{
		rtype:  domain.ResolutionTypeReschedule,
		params: params,
		base:   clampBase(0.8-0.04*excessDays, 0.2),
		rationale: fmt.Sprintf(
			"Push the largest conflicting task past the evaluation window to shed %.1f excess effort-days.",
			excessDays),
	}, true
}

// rescheduleForSchedule proposes dates that repair the violated constraint.
func (g *CandidateGenerator) rescheduleForSchedule(
	conflict *domain.Conflict,
	facts *domain.FactSet,
) (baseCandidate, bool) {
	ev, err := domain.DecodeEvidence(conflict.Type, conflict.Evidence)
	if err != nil {
		return baseCandidate{}, false
	}
	schedule, ok := ev.(domain.ScheduleEvidence)
	if !ok {
		return baseCandidate{}, false
	}

	var reschedParams domain.RescheduleParams
	if schedule.SuccessorID != uuid.Nil {
		// Finish-to-start violation: move the successor's start to the
		// predecessor's end.
		succ, ok := facts.Tasks[schedule.SuccessorID]
		pred, predOK := facts.Tasks[schedule.PredecessorID]
		if !ok || !predOK {
			return baseCandidate{}, false
		}
		reschedParams = domain.RescheduleParams{
			TaskID:   succ.ID,
			NewStart: pred.DueDate,
			NewDue:   pred.DueDate.AddDate(0, 0, int(succ.EffortDays)+1),
		}
	} else {
		// Infeasible single-task window: extend the due date to fit the
		// effort estimate.
		task := largestTask(facts, conflict.TaskIDs)
		if task == nil {
			return baseCandidate{}, false
		}
		reschedParams = domain.RescheduleParams{
			TaskID:   task.ID,
			NewStart: task.StartDate,
			NewDue:   task.StartDate.AddDate(0, 0, int(task.EffortDays)+1),
		}
	}

	params, err := json.Marshal(reschedParams)
	if err != nil {
		return baseCandidate{}, false
	}

	return baseCandidate{
		rtype:  domain.ResolutionTypeReschedule,
		params: params,
		base:   clampBase(0.75-0.05*schedule.ViolationDays, 0.2),
		rationale: fmt.Sprintf(
			"Shift the affected dates to absorb the %.0f-day violation.",
			schedule.ViolationDays),
	}, true
}

// splitCandidate proposes splitting the infeasible task into two parts when
// its effort estimate is large enough to divide.
func (g *CandidateGenerator) splitCandidate(
	conflict *domain.Conflict,
	facts *domain.FactSet,
) (baseCandidate, bool) {
	task := largestTask(facts, conflict.TaskIDs)
	if task == nil || task.EffortDays < 2 {
		return baseCandidate{}, false
	}

	params, err := json.Marshal(domain.SplitParams{
		TaskID:     task.ID,
		PartCount:  2,
		PartEffort: task.EffortDays / 2,
	})
	if err != nil {
		return baseCandidate{}, false
	}

	return baseCandidate{
		rtype:  domain.ResolutionTypeSplit,
		params: params,
		base:   0.45,
		rationale: fmt.Sprintf(
			"Split the task into two parts of %.1f effort-days each so they can be scheduled independently.",
			task.EffortDays/2),
	}, true
}

// rescheduleForDependency proposes pushing the blocked task's start out past
// its overdue chain. Cycles are excluded: no date change fixes a cycle.
func (g *CandidateGenerator) rescheduleForDependency(
	conflict *domain.Conflict,
	facts *domain.FactSet,
) (baseCandidate, bool) {
	ev, err := domain.DecodeEvidence(conflict.Type, conflict.Evidence)
	if err != nil {
		return baseCandidate{}, false
	}
	dep, ok := ev.(domain.DependencyEvidence)
	if !ok || len(dep.Cycle) > 0 || dep.BlockedTaskID == uuid.Nil {
		return baseCandidate{}, false
	}

	task, ok := facts.Tasks[dep.BlockedTaskID]
	if !ok {
		return baseCandidate{}, false
	}

	newStart := facts.SnapshotAt.AddDate(0, 0, 7*dep.ChainLength)
	params, err := json.Marshal(domain.RescheduleParams{
		TaskID:   task.ID,
		NewStart: newStart,
		NewDue:   newStart.AddDate(0, 0, int(task.EffortDays)+1),
	})
	if err != nil {
		return baseCandidate{}, false
	}

	return baseCandidate{
		rtype:  domain.ResolutionTypeReschedule,
		params: params,
		base:   clampBase(0.6-0.05*float64(dep.ChainLength), 0.2),
		rationale: fmt.Sprintf(
			"Push the blocked task's start out to clear its %d overdue predecessors.",
			dep.ChainLength),
	}, true
}

// successSnapshot picks the historical success rate recorded on a
// suggestion for audit: the scoped rate when scoped history exists,
// otherwise the global rate, otherwise zero.
func successSnapshot(scoped, global *domain.LearningEntry) float64 {
	if scoped != nil && scoped.TimesSuggested > 0 {
		return scoped.SuccessRate
	}
	if global != nil && global.TimesSuggested > 0 {
		return global.SuccessRate
	}
	return 0
}

// skillMatch is the fraction of the source assignee's declared skills the
// target shares. An unskilled source gives a neutral 0.5.
func skillMatch(source, target *domain.Assignee) float64 {
	if len(source.Skills) == 0 {
		return 0.5
	}
	matched := 0
	for _, skill := range source.Skills {
		if target.HasSkill(skill) {
			matched++
		}
	}
	return float64(matched) / float64(len(source.Skills))
}

// capacityHeadroom estimates how much spare capacity the assignee has inside
// the evaluation window, in [0, 1].
func capacityHeadroom(facts *domain.FactSet, assignee *domain.Assignee, windowStart, windowEnd time.Time) float64 {
	days := windowEnd.Sub(windowStart).Hours() / 24
	if days < 1 {
		days = 1
	}
	capacity := assignee.WeeklyCapacityDays * days / 7
	if capacity <= 0 {
		return 0
	}

	var committed float64
	for _, task := range facts.Tasks {
		if task.AssigneeID != assignee.ID || task.Status.IsComplete() {
			continue
		}
		if overlapsWindow(task, windowStart, windowEnd) {
			committed += task.EffortDays
		}
	}

	return clamp01(1 - committed/capacity)
}

// largestTask returns the incomplete task with the biggest effort estimate
// among the given IDs, with ID order as tie-break.
func largestTask(facts *domain.FactSet, taskIDs []uuid.UUID) *domain.Task {
	var best *domain.Task
	for _, id := range taskIDs {
		task, ok := facts.Tasks[id]
		if !ok || task.Status.IsComplete() {
			continue
		}
		if best == nil || task.EffortDays > best.EffortDays {
			best = task
		}
	}
	return best
}

// sortedAssignees returns the snapshot's assignees ordered by ID.
func sortedAssignees(facts *domain.FactSet) []*domain.Assignee {
	assignees := make([]*domain.Assignee, 0, len(facts.Assignees))
	for _, a := range facts.Assignees {
		assignees = append(assignees, a)
	}
	sort.Slice(assignees, func(i, j int) bool {
		return strings.Compare(assignees[i].ID.String(), assignees[j].ID.String()) < 0
	})
	return assignees
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampBase bounds a computed base score below by floor and above by 1.
func clampBase(v, floor float64) float64 {
	if v < floor {
		return floor
	}
	if v > 1 {
		return 1
	}
	return v
}
