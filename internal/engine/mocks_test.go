package engine

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"

	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/enrichment"
	"github.com/tasktide/conflict-engine/internal/store"
)

// fakeConflictStore is an in-memory ConflictStore that enforces the same
// one-active-conflict-per-fingerprint rule the real schema does.
type fakeConflictStore struct {
	mu        sync.Mutex
	conflicts []*domain.Conflict

	failCreate error
	failList   error
	failUpdate error
}

func newFakeConflictStore() *fakeConflictStore {
	return &fakeConflictStore{}
}

func (s *fakeConflictStore) Create(_ context.Context, conflict *domain.Conflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}
	for _, c := range s.conflicts {
		if c.Status == domain.ConflictStatusActive &&
			c.ScopeID == conflict.ScopeID &&
			c.Fingerprint == conflict.Fingerprint {
			return store.ErrActiveConflictExists
		}
	}
	copied := *conflict
	s.conflicts = append(s.conflicts, &copied)
	return nil
}

func (s *fakeConflictStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conflicts {
		if c.ID == id {
			copied := *c
			return &copied, nil
		}
	}
	return nil, store.ErrConflictNotFound
}

func (s *fakeConflictStore) ListActiveByScope(_ context.Context, scopeID uuid.UUID) ([]*domain.Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	var out []*domain.Conflict
	for _, c := range s.conflicts {
		if c.ScopeID == scopeID && c.Status == domain.ConflictStatusActive {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeConflictStore) Update(_ context.Context, conflict *domain.Conflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate != nil {
		return s.failUpdate
	}
	for i, c := range s.conflicts {
		if c.ID == conflict.ID {
			copied := *conflict
			s.conflicts[i] = &copied
			return nil
		}
	}
	return store.ErrConflictNotFound
}

func (s *fakeConflictStore) WithTx(*sql.Tx) store.ConflictStore { return s }

// fakeSuggestionStore records persisted suggestion batches and supersede
// calls.
type fakeSuggestionStore struct {
	mu         sync.Mutex
	current    map[uuid.UUID][]*domain.ResolutionSuggestion
	superseded map[uuid.UUID]int
}

func newFakeSuggestionStore() *fakeSuggestionStore {
	return &fakeSuggestionStore{
		current:    make(map[uuid.UUID][]*domain.ResolutionSuggestion),
		superseded: make(map[uuid.UUID]int),
	}
}

func (s *fakeSuggestionStore) CreateMultiple(_ context.Context, suggestions []*domain.ResolutionSuggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sg := range suggestions {
		s.current[sg.ConflictID] = append(s.current[sg.ConflictID], sg)
	}
	return nil
}

func (s *fakeSuggestionStore) GetByID(_ context.Context, id uuid.UUID) (*domain.ResolutionSuggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range s.current {
		for _, sg := range list {
			if sg.ID == id {
				return sg, nil
			}
		}
	}
	return nil, store.ErrSuggestionNotFound
}

func (s *fakeSuggestionStore) ListCurrentByConflict(_ context.Context, conflictID uuid.UUID) ([]*domain.ResolutionSuggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current[conflictID], nil
}

func (s *fakeSuggestionStore) SupersedeByConflict(_ context.Context, conflictID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.superseded[conflictID]++
	s.current[conflictID] = nil
	return nil
}

func (s *fakeSuggestionStore) MarkSelected(_ context.Context, id uuid.UUID) error {
	return nil
}

func (s *fakeSuggestionStore) WithTx(*sql.Tx) store.SuggestionStore { return s }

// learningKey identifies one learning entry in the fake store. A nil scope
// is represented by uuid.Nil.
type learningKey struct {
	scopeID        uuid.UUID
	conflictType   domain.ConflictType
	resolutionType domain.ResolutionType
}

// fakeLearningStore is an in-memory LearningStore.
type fakeLearningStore struct {
	mu          sync.Mutex
	entries     map[learningKey]*domain.LearningEntry
	incremented map[learningKey]int
}

func newFakeLearningStore() *fakeLearningStore {
	return &fakeLearningStore{
		entries:     make(map[learningKey]*domain.LearningEntry),
		incremented: make(map[learningKey]int),
	}
}

func (s *fakeLearningStore) put(entry *domain.LearningEntry) {
	key := learningKey{
		conflictType:   entry.ConflictType,
		resolutionType: entry.ResolutionType,
	}
	if entry.ScopeID != nil {
		key.scopeID = *entry.ScopeID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
}

func (s *fakeLearningStore) GetPair(
	_ context.Context,
	scopeID uuid.UUID,
	conflictType domain.ConflictType,
	resolutionType domain.ResolutionType,
) (*domain.LearningEntry, *domain.LearningEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scoped := s.entries[learningKey{scopeID, conflictType, resolutionType}]
	global := s.entries[learningKey{uuid.Nil, conflictType, resolutionType}]
	return scoped, global, nil
}

func (s *fakeLearningStore) GetForUpdate(
	_ context.Context,
	scopeID *uuid.UUID,
	conflictType domain.ConflictType,
	resolutionType domain.ResolutionType,
) (*domain.LearningEntry, error) {
	key := learningKey{conflictType: conflictType, resolutionType: resolutionType}
	if scopeID != nil {
		key.scopeID = *scopeID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[key]; ok {
		return entry, nil
	}
	entry, err := domain.NewLearningEntry(scopeID, conflictType, resolutionType)
	if err != nil {
		return nil, err
	}
	s.entries[key] = entry
	return entry, nil
}

func (s *fakeLearningStore) Upsert(_ context.Context, entry *domain.LearningEntry) error {
	s.put(entry)
	return nil
}

func (s *fakeLearningStore) IncrementSuggested(
	_ context.Context,
	scopeID uuid.UUID,
	conflictType domain.ConflictType,
	resolutionType domain.ResolutionType,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incremented[learningKey{scopeID, conflictType, resolutionType}]++
	return nil
}

func (s *fakeLearningStore) WithTx(*sql.Tx) store.LearningStore { return s }

// fakeNotificationStore is an in-memory NotificationStore with the same
// (conflict, user) uniqueness the real schema enforces.
type fakeNotificationStore struct {
	mu            sync.Mutex
	notifications []*domain.Notification

	failEnsure error
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{}
}

func (s *fakeNotificationStore) Ensure(_ context.Context, notification *domain.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failEnsure != nil {
		return false, s.failEnsure
	}
	for _, n := range s.notifications {
		if n.ConflictID == notification.ConflictID && n.UserID == notification.UserID {
			return false, nil
		}
	}
	copied := *notification
	s.notifications = append(s.notifications, &copied)
	return true, nil
}

func (s *fakeNotificationStore) ListByConflict(_ context.Context, conflictID uuid.UUID) ([]*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Notification
	for _, n := range s.notifications {
		if n.ConflictID == conflictID {
			copied := *n
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeNotificationStore) Acknowledge(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id {
			n.Acknowledged = true
			return nil
		}
	}
	return store.ErrNotificationNotFound
}

func (s *fakeNotificationStore) WithTx(*sql.Tx) store.NotificationStore { return s }

// fakeSource returns a fixed fact set or error.
type fakeSource struct {
	facts *domain.FactSet
	err   error

	// release, when non-nil, blocks Snapshot until closed. Used to hold a
	// scan open while a second one is attempted. entered is closed once the
	// blocked snapshot has started.
	release   chan struct{}
	entered   chan struct{}
	enterOnce sync.Once
}

func (s *fakeSource) Snapshot(ctx context.Context, _ uuid.UUID) (*domain.FactSet, error) {
	if s.entered != nil {
		s.enterOnce.Do(func() { close(s.entered) })
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.facts, nil
}

// fakeEnricher returns a fixed rationale map or error.
type fakeEnricher struct {
	rationales map[domain.ResolutionType]string
	err        error
	calls      int
}

func (e *fakeEnricher) EnrichRationales(
	_ context.Context,
	_ *domain.Conflict,
	_ []enrichment.Candidate,
) (map[domain.ResolutionType]string, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.rationales, nil
}

// stubDetector emits a fixed result.
type stubDetector struct {
	name string
	raw  []RawConflict
	err  error
}

func (d *stubDetector) Name() string { return d.name }

func (d *stubDetector) Detect(context.Context, *domain.FactSet) ([]RawConflict, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.raw, nil
}
