package ranking

import (
	"errors"
	"time"

	"github.com/tasktide/conflict-engine/internal/domain"
)

// Common errors
var (
	ErrNilEntry       = errors.New("learning entry cannot be nil")
	ErrInvalidOutcome = errors.New("invalid feedback outcome")
)

// Service defines the interface for confidence ranking operations.
type Service interface {
	// Score computes the final confidence for a candidate from its base
	// heuristic score and the learning entries for its key. Either entry
	// may be nil when no history exists yet.
	Score(base float64, scoped, global *domain.LearningEntry) float64

	// RecordFeedback computes the updated learning entry for one feedback
	// event. The input entry is not mutated; callers persist the returned
	// entry.
	RecordFeedback(
		entry *domain.LearningEntry,
		outcome domain.FeedbackOutcome,
		rating *int,
		now time.Time,
	) (*domain.LearningEntry, error)

	// Params exposes the active parameters, for audit logging.
	Params() *Params
}

// defaultService is the standard implementation of the Service interface.
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new ranking service with default parameters.
func NewDefaultService() Service {
	return &defaultService{params: NewDefaultParams()}
}

// NewServiceWithParams creates a new ranking service with custom parameters.
func NewServiceWithParams(params *Params) Service {
	return &defaultService{params: params}
}

func (s *defaultService) Score(base float64, scoped, global *domain.LearningEntry) float64 {
	return FinalScore(base, scoped, global, s.params)
}

func (s *defaultService) RecordFeedback(
	entry *domain.LearningEntry,
	outcome domain.FeedbackOutcome,
	rating *int,
	now time.Time,
) (*domain.LearningEntry, error) {
	if entry == nil {
		return nil, ErrNilEntry
	}
	if !outcome.IsValid() {
		return nil, ErrInvalidOutcome
	}

	return applyFeedback(entry, outcome, rating, now, s.params), nil
}

func (s *defaultService) Params() *Params {
	return s.params
}
