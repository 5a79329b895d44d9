package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/domain/ranking"
	"github.com/tasktide/conflict-engine/internal/engine"
	"github.com/tasktide/conflict-engine/internal/events"
	"github.com/tasktide/conflict-engine/internal/store"
)

// MockConflictStore mocks the store.ConflictStore interface.
type MockConflictStore struct {
	mock.Mock
}

func (m *MockConflictStore) Create(ctx context.Context, conflict *domain.Conflict) error {
	args := m.Called(ctx, conflict)
	return args.Error(0)
}

func (m *MockConflictStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conflict, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conflict), args.Error(1)
}

func (m *MockConflictStore) ListActiveByScope(ctx context.Context, scopeID uuid.UUID) ([]*domain.Conflict, error) {
	args := m.Called(ctx, scopeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conflict), args.Error(1)
}

func (m *MockConflictStore) Update(ctx context.Context, conflict *domain.Conflict) error {
	args := m.Called(ctx, conflict)
	return args.Error(0)
}

func (m *MockConflictStore) WithTx(tx *sql.Tx) store.ConflictStore {
	return m
}

// MockSuggestionStore mocks the store.SuggestionStore interface.
type MockSuggestionStore struct {
	mock.Mock
}

func (m *MockSuggestionStore) CreateMultiple(ctx context.Context, suggestions []*domain.ResolutionSuggestion) error {
	args := m.Called(ctx, suggestions)
	return args.Error(0)
}

func (m *MockSuggestionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ResolutionSuggestion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ResolutionSuggestion), args.Error(1)
}

func (m *MockSuggestionStore) ListCurrentByConflict(ctx context.Context, conflictID uuid.UUID) ([]*domain.ResolutionSuggestion, error) {
	args := m.Called(ctx, conflictID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ResolutionSuggestion), args.Error(1)
}

func (m *MockSuggestionStore) SupersedeByConflict(ctx context.Context, conflictID uuid.UUID) error {
	args := m.Called(ctx, conflictID)
	return args.Error(0)
}

func (m *MockSuggestionStore) MarkSelected(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSuggestionStore) WithTx(tx *sql.Tx) store.SuggestionStore {
	return m
}

// MockFeedbackStore mocks the store.FeedbackStore interface.
type MockFeedbackStore struct {
	mock.Mock
}

func (m *MockFeedbackStore) Create(ctx context.Context, record *domain.FeedbackRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockFeedbackStore) ListBySuggestion(ctx context.Context, suggestionID uuid.UUID) ([]*domain.FeedbackRecord, error) {
	args := m.Called(ctx, suggestionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FeedbackRecord), args.Error(1)
}

func (m *MockFeedbackStore) WithTx(tx *sql.Tx) store.FeedbackStore {
	return m
}

// MockLearningStore mocks the store.LearningStore interface.
type MockLearningStore struct {
	mock.Mock
}

func (m *MockLearningStore) GetPair(
	ctx context.Context,
	scopeID uuid.UUID,
	conflictType domain.ConflictType,
	resolutionType domain.ResolutionType,
) (*domain.LearningEntry, *domain.LearningEntry, error) {
	args := m.Called(ctx, scopeID, conflictType, resolutionType)
	var scoped, global *domain.LearningEntry
	if args.Get(0) != nil {
		scoped = args.Get(0).(*domain.LearningEntry)
	}
	if args.Get(1) != nil {
		global = args.Get(1).(*domain.LearningEntry)
	}
	return scoped, global, args.Error(2)
}

func (m *MockLearningStore) GetForUpdate(
	ctx context.Context,
	scopeID *uuid.UUID,
	conflictType domain.ConflictType,
	resolutionType domain.ResolutionType,
) (*domain.LearningEntry, error) {
	args := m.Called(ctx, scopeID, conflictType, resolutionType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LearningEntry), args.Error(1)
}

func (m *MockLearningStore) Upsert(ctx context.Context, entry *domain.LearningEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLearningStore) IncrementSuggested(
	ctx context.Context,
	scopeID uuid.UUID,
	conflictType domain.ConflictType,
	resolutionType domain.ResolutionType,
) error {
	args := m.Called(ctx, scopeID, conflictType, resolutionType)
	return args.Error(0)
}

func (m *MockLearningStore) WithTx(tx *sql.Tx) store.LearningStore {
	return m
}

// MockNotificationStore mocks the store.NotificationStore interface.
type MockNotificationStore struct {
	mock.Mock
}

func (m *MockNotificationStore) Ensure(ctx context.Context, notification *domain.Notification) (bool, error) {
	args := m.Called(ctx, notification)
	return args.Bool(0), args.Error(1)
}

func (m *MockNotificationStore) ListByConflict(ctx context.Context, conflictID uuid.UUID) ([]*domain.Notification, error) {
	args := m.Called(ctx, conflictID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *MockNotificationStore) Acknowledge(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockNotificationStore) WithTx(tx *sql.Tx) store.NotificationStore {
	return m
}

// MockRanker mocks the ranking.Service interface.
type MockRanker struct {
	mock.Mock
}

func (m *MockRanker) Score(base float64, scoped, global *domain.LearningEntry) float64 {
	args := m.Called(base, scoped, global)
	return args.Get(0).(float64)
}

func (m *MockRanker) RecordFeedback(
	entry *domain.LearningEntry,
	outcome domain.FeedbackOutcome,
	rating *int,
	now time.Time,
) (*domain.LearningEntry, error) {
	args := m.Called(entry, outcome, rating, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LearningEntry), args.Error(1)
}

func (m *MockRanker) Params() *ranking.Params {
	args := m.Called()
	return args.Get(0).(*ranking.Params)
}

// MockGuarantor mocks the NotificationGuarantor interface.
type MockGuarantor struct {
	mock.Mock
}

func (m *MockGuarantor) EnsureByConflictID(ctx context.Context, conflictID uuid.UUID) (int, error) {
	args := m.Called(ctx, conflictID)
	return args.Int(0), args.Error(1)
}

// MockScanner mocks the ScopeScanner interface.
type MockScanner struct {
	mock.Mock
}

func (m *MockScanner) ScanScope(ctx context.Context, scopeID uuid.UUID) (*engine.ScanReport, error) {
	args := m.Called(ctx, scopeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.ScanReport), args.Error(1)
}

// MockEventEmitter mocks the events.EventEmitter interface.
type MockEventEmitter struct {
	mock.Mock
}

func (m *MockEventEmitter) EmitEvent(ctx context.Context, event *events.ScanRequestEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
