package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/freight-triage/internal/model"
	"github.com/sells-group/freight-triage/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) LoadThread(ctx context.Context, threadID string) (*model.Thread, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Thread), args.Error(1)
}

func (m *mockStore) SaveThread(ctx context.Context, thread *model.Thread, expectedRevision int) error {
	args := m.Called(ctx, thread, expectedRevision)
	return args.Error(0)
}

func (m *mockStore) ListThreads(ctx context.Context, filter store.ThreadFilter) ([]model.Thread, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Thread), args.Error(1)
}

func (m *mockStore) RecordEvent(ctx context.Context, event *model.ExtractionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockStore) ListEvents(ctx context.Context, threadID string) ([]model.ExtractionEvent, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ExtractionEvent), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// --- Observer ---

type recordingObserver struct {
	mu        sync.Mutex
	decisions []model.Decision
	retries   []string
}

func (o *recordingObserver) ObserveDecision(d model.Decision) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions = append(o.decisions, d)
}

func (o *recordingObserver) ObserveRetry(operation string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries = append(o.retries, operation)
}

// failingStore wraps a real store and fails loads for one thread.
type failingStore struct {
	store.Store
	failThread string
	err        error
}

func (f *failingStore) LoadThread(ctx context.Context, threadID string) (*model.Thread, error) {
	if threadID == f.failThread {
		return nil, f.err
	}
	return f.Store.LoadThread(ctx, threadID)
}
