package ranking

import (
	"sort"
	"time"

	"github.com/tasktide/conflict-engine/internal/domain"
)

// learnedAdjustment determines the signed confidence delta for a candidate
// from the scoped and global learning entries for its key.
//
// Either entry may be nil (cold start): a nil entry contributes an
// adjustment of zero and a sample size of zero, so a key with no history
// falls back to the global entry, and a key with no history anywhere falls
// back to the pure heuristic score. Nothing here divides by a counter, so
// empty entries can never produce NaN.
//
// Blend rule: once the scoped entry has at least params.MinSamples
// suggestions behind it, its adjustment is used outright. Below that, the
// scoped and global adjustments are mixed with weight
// scoped.TimesSuggested / MinSamples on the scoped side, so a young project
// leans on global history and gradually shifts to its own.
func learnedAdjustment(scoped, global *domain.LearningEntry, params *Params) float64 {
	scopedAdj := 0.0
	scopedSamples := 0
	if scoped != nil {
		scopedAdj = scoped.ConfidenceAdjustment
		scopedSamples = scoped.TimesSuggested
	}

	globalAdj := 0.0
	if global != nil {
		globalAdj = global.ConfidenceAdjustment
	}

	if scopedSamples >= params.MinSamples {
		return scopedAdj
	}

	weight := float64(scopedSamples) / float64(params.MinSamples)
	return weight*scopedAdj + (1-weight)*globalAdj
}

// FinalScore combines a candidate's base heuristic score with the learned
// adjustment for its (conflict type, resolution type) key and clamps the
// result to [0, 1].
func FinalScore(base float64, scoped, global *domain.LearningEntry, params *Params) float64 {
	return clamp(base+learnedAdjustment(scoped, global, params), 0, 1)
}

// outcomeSignal maps a feedback event to the target value the adjustment
// moves toward: +1 for accepted with a high rating, 0 for accepted without
// one, -1 for rejected.
func outcomeSignal(outcome domain.FeedbackOutcome, rating *int, params *Params) float64 {
	if outcome == domain.FeedbackOutcomeRejected {
		return -1
	}
	if rating != nil && *rating >= params.HighRatingThreshold {
		return 1
	}
	return 0
}

// applyFeedback creates a new LearningEntry with counters and the bounded
// confidence adjustment updated for one feedback event. The adjustment moves
// a single EMA step toward the outcome signal:
//
//	adjustment' = clamp(adjustment + LearningRate * (signal - adjustment),
//	                    -MaxAdjustment, +MaxAdjustment)
//
// One event can therefore move the adjustment by at most
// LearningRate * (1 + MaxAdjustment); a noisy rating cannot swing future
// rankings, while a consistent pattern accumulates over repeated events.
//
// TimesSuggested is incremented at generation time, not here; this function
// only accounts for the outcome.
func applyFeedback(
	entry *domain.LearningEntry,
	outcome domain.FeedbackOutcome,
	rating *int,
	now time.Time,
	params *Params,
) *domain.LearningEntry {
	updated := &domain.LearningEntry{
		ID:                   entry.ID,
		ScopeID:              entry.ScopeID,
		ConflictType:         entry.ConflictType,
		ResolutionType:       entry.ResolutionType,
		TimesSuggested:       entry.TimesSuggested,
		TimesAccepted:        entry.TimesAccepted,
		RatingSum:            entry.RatingSum,
		SuccessRate:          entry.SuccessRate,
		ConfidenceAdjustment: entry.ConfidenceAdjustment,
		UpdatedAt:            now.UTC(),
	}

	if outcome == domain.FeedbackOutcomeAccepted {
		updated.TimesAccepted++
	}
	if rating != nil {
		updated.RatingSum += *rating
	}

	if updated.TimesSuggested > 0 {
		updated.SuccessRate = float64(updated.TimesAccepted) / float64(updated.TimesSuggested)
	}

	signal := outcomeSignal(outcome, rating, params)
	adj := updated.ConfidenceAdjustment
	adj += params.LearningRate * (signal - adj)
	updated.ConfidenceAdjustment = clamp(adj, -params.MaxAdjustment, params.MaxAdjustment)

	return updated
}

// SortSuggestions orders suggestions descending by confidence, breaking ties
// by the fixed resolution-type priority so equal-scored candidates always
// come out in the same order.
func SortSuggestions(suggestions []*domain.ResolutionSuggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return suggestions[i].Type.Priority() < suggestions[j].Type.Priority()
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
