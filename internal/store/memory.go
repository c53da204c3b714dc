package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/freight-triage/internal/model"
)

// MemoryStore implements Store in process memory. Threads are stored as
// JSON so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]byte
	events  map[string][]model.ExtractionEvent
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string][]byte),
		events:  make(map[string][]model.ExtractionEvent),
	}
}

func (s *MemoryStore) Migrate(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) LoadThread(_ context.Context, threadID string) (*model.Thread, error) {
	s.mu.RLock()
	raw, ok := s.threads[threadID]
	s.mu.RUnlock()
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "memory: thread %s", threadID)
	}
	return decodeThread(raw)
}

func (s *MemoryStore) SaveThread(_ context.Context, thread *model.Thread, expectedRevision int) error {
	if err := checkAdvance(thread, expectedRevision); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := 0
	if raw, ok := s.threads[thread.ID]; ok {
		existing, err := decodeThread(raw)
		if err != nil {
			return err
		}
		stored = existing.Revision
	}
	if stored != expectedRevision {
		return eris.Wrapf(ErrStaleState, "memory: thread %s at revision %d, expected %d", thread.ID, stored, expectedRevision)
	}

	raw, err := json.Marshal(thread)
	if err != nil {
		return eris.Wrap(err, "memory: marshal thread")
	}
	s.threads[thread.ID] = raw
	return nil
}

func (s *MemoryStore) ListThreads(_ context.Context, filter ThreadFilter) ([]model.Thread, error) {
	s.mu.RLock()
	all := make([]model.Thread, 0, len(s.threads))
	for _, raw := range s.threads {
		th, err := decodeThread(raw)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		all = append(all, *th)
	}
	s.mu.RUnlock()

	var out []model.Thread
	for _, th := range all {
		if filter.Complete != nil && lastComplete(&th) != *filter.Complete {
			continue
		}
		if !filter.UpdatedSince.IsZero() && th.UpdatedAt.Before(filter.UpdatedSince) {
			continue
		}
		out = append(out, th)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if limit := limitOf(filter); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) RecordEvent(_ context.Context, event *model.ExtractionEvent) error {
	if _, err := encodeEvent(event); err != nil {
		return err
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return eris.Wrap(err, "memory: marshal event")
	}
	var stored model.ExtractionEvent
	if err := json.Unmarshal(raw, &stored); err != nil {
		return eris.Wrap(err, "memory: copy event")
	}

	s.mu.Lock()
	s.events[event.ThreadID] = append(s.events[event.ThreadID], stored)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, threadID string) ([]model.ExtractionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events[threadID]
	out := make([]model.ExtractionEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func decodeThread(raw []byte) (*model.Thread, error) {
	var th model.Thread
	if err := json.Unmarshal(raw, &th); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal thread")
	}
	return &th, nil
}
