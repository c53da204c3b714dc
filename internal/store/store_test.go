package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/freight-triage/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestMemory(t *testing.T) Store {
	t.Helper()
	return NewMemory()
}

// sampleThread builds a thread whose revision and extraction version are
// both version.
func sampleThread(id string, version int, complete bool) *model.Thread {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.Thread{
		ID:       id,
		Revision: version,
		State: model.CumulativeState{
			Shipment: model.Fields{
				model.FieldOrigin:      "Shanghai",
				model.FieldDestination: "Rotterdam",
				model.FieldWeight:      18000.5,
			},
			Timeline:          model.Fields{model.FieldReadyDate: "2026-04-01"},
			ExtractionVersion: version,
			LastUpdated:       now,
		},
		Messages: []model.Message{
			{ID: "m-1", Direction: model.DirectionInbound, Content: "FCL 40HC Shanghai to Rotterdam"},
		},
		LastDecision: &model.Decision{
			ThreadID: id,
			Version:  version,
			Complete: complete,
			Missing:  []string{},
			Action:   model.ActionClarify,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("LoadMissingThread", func(t *testing.T) {
		s := newStore(t)

		_, err := s.LoadThread(context.Background(), "nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("SaveAndLoadThread", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		th := sampleThread("t-1", 1, false)
		require.NoError(t, s.SaveThread(ctx, th, 0))

		got, err := s.LoadThread(ctx, "t-1")
		require.NoError(t, err)
		assert.Equal(t, "t-1", got.ID)
		assert.Equal(t, 1, got.State.ExtractionVersion)
		assert.Equal(t, "Shanghai", got.State.Shipment.String(model.FieldOrigin))
		assert.InDelta(t, 18000.5, got.State.Shipment[model.FieldWeight], 0.001)
		assert.Equal(t, "2026-04-01", got.State.Timeline.String(model.FieldReadyDate))
		require.Len(t, got.Messages, 1)
		assert.Equal(t, "m-1", got.Messages[0].ID)
		require.NotNil(t, got.LastDecision)
		assert.Equal(t, model.ActionClarify, got.LastDecision.Action)
	})

	t.Run("SaveAdvancesVersion", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveThread(ctx, sampleThread("t-1", 1, false), 0))

		next := sampleThread("t-1", 2, true)
		next.ClarificationRounds = 1
		require.NoError(t, s.SaveThread(ctx, next, 1))

		got, err := s.LoadThread(ctx, "t-1")
		require.NoError(t, err)
		assert.Equal(t, 2, got.State.ExtractionVersion)
		assert.Equal(t, 1, got.ClarificationRounds)
		assert.True(t, got.LastDecision.Complete)
	})

	t.Run("StaleWriteRejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveThread(ctx, sampleThread("t-1", 1, false), 0))
		require.NoError(t, s.SaveThread(ctx, sampleThread("t-1", 2, false), 1))

		// A writer that loaded version 1 lost the race.
		err := s.SaveThread(ctx, sampleThread("t-1", 2, false), 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStaleState))

		// Creating an existing thread is also stale.
		err = s.SaveThread(ctx, sampleThread("t-1", 1, false), 0)
		assert.True(t, errors.Is(err, ErrStaleState))

		got, err := s.LoadThread(ctx, "t-1")
		require.NoError(t, err)
		assert.Equal(t, 2, got.State.ExtractionVersion)
	})

	t.Run("RevisionAdvancesWithoutNewExtraction", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveThread(ctx, sampleThread("t-1", 1, false), 0))

		// A turn without an extraction adds history but keeps the state version.
		next := sampleThread("t-1", 1, false)
		next.Revision = 2
		next.Messages = append(next.Messages, model.Message{ID: "m-2", Content: "any update?"})
		require.NoError(t, s.SaveThread(ctx, next, 1))

		got, err := s.LoadThread(ctx, "t-1")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Revision)
		assert.Equal(t, 1, got.State.ExtractionVersion)
		assert.Len(t, got.Messages, 2)

		// A writer holding revision 1 is stale even though the version matches.
		err = s.SaveThread(ctx, sampleThread("t-1", 2, false), 1)
		assert.True(t, errors.Is(err, ErrStaleState))
	})

	t.Run("RevisionMustAdvance", func(t *testing.T) {
		s := newStore(t)
		err := s.SaveThread(context.Background(), sampleThread("t-1", 0, false), 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStaleState))
	})

	t.Run("SaveRequiresID", func(t *testing.T) {
		s := newStore(t)
		err := s.SaveThread(context.Background(), &model.Thread{Revision: 1}, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "thread id is required")
	})

	t.Run("ListThreadsFilter", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := sampleThread("a", 1, true)
		b := sampleThread("b", 1, false)
		b.UpdatedAt = a.UpdatedAt.Add(time.Hour)
		c := sampleThread("c", 1, false)
		c.UpdatedAt = a.UpdatedAt.Add(-time.Hour)
		for _, th := range []*model.Thread{a, b, c} {
			require.NoError(t, s.SaveThread(ctx, th, 0))
		}

		all, err := s.ListThreads(ctx, ThreadFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"b", "a", "c"}, threadIDs(all))

		complete := true
		done, err := s.ListThreads(ctx, ThreadFilter{Complete: &complete})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, threadIDs(done))

		incomplete := false
		open, err := s.ListThreads(ctx, ThreadFilter{Complete: &incomplete})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, threadIDs(open))

		recent, err := s.ListThreads(ctx, ThreadFilter{UpdatedSince: a.UpdatedAt})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, threadIDs(recent))

		page, err := s.ListThreads(ctx, ThreadFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, threadIDs(page))
	})

	t.Run("RecordAndListEvents", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveThread(ctx, sampleThread("t-1", 2, false), 0))

		second := &model.ExtractionEvent{
			ThreadID:  "t-1",
			MessageID: "m-2",
			Version:   2,
			Source:    model.SourceCustomer,
			Payload:   &model.Extraction{Shipment: model.Fields{model.FieldIncoterms: "FOB"}},
			Complete:  true,
			Missing:   []string{"cargo_nature"},
		}
		first := &model.ExtractionEvent{
			ThreadID: "t-1",
			Version:  1,
			Missing:  []string{"incoterms", "cargo_nature"},
		}
		require.NoError(t, s.RecordEvent(ctx, second))
		require.NoError(t, s.RecordEvent(ctx, first))
		assert.NotEmpty(t, first.ID)
		assert.False(t, first.CreatedAt.IsZero())

		events, err := s.ListEvents(ctx, "t-1")
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, 1, events[0].Version)
		assert.Nil(t, events[0].Payload)
		assert.Equal(t, []string{"incoterms", "cargo_nature"}, events[0].Missing)

		assert.Equal(t, 2, events[1].Version)
		assert.Equal(t, "m-2", events[1].MessageID)
		assert.Equal(t, model.SourceCustomer, events[1].Source)
		assert.True(t, events[1].Complete)
		require.NotNil(t, events[1].Payload)
		assert.Equal(t, "FOB", events[1].Payload.Shipment.String(model.FieldIncoterms))

		none, err := s.ListEvents(ctx, "other")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("RecordEventRequiresThread", func(t *testing.T) {
		s := newStore(t)
		err := s.RecordEvent(context.Background(), &model.ExtractionEvent{Version: 1})
		require.Error(t, err)
	})
}

func threadIDs(threads []model.Thread) []string {
	ids := make([]string, len(threads))
	for i, th := range threads {
		ids[i] = th.ID
	}
	return ids
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestMemoryStore(t *testing.T) {
	storeTestSuite(t, newTestMemory)
}
