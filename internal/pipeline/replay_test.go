package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/freight-triage/internal/model"
	"github.com/sells-group/freight-triage/internal/store"
)

func TestReplay_ProcessesThreadsInOrder(t *testing.T) {
	st := store.NewMemory()
	tr := newTestTracker(st, WithMaxConcurrent(2))

	threads := []ThreadTurns{
		{ThreadID: "a", Turns: []Turn{firstTurn(), secondTurn()}},
		{ThreadID: "b", Turns: []Turn{firstTurn()}},
		{ThreadID: "c", Turns: nil},
	}

	results, err := tr.Replay(context.Background(), threads)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a", results[0].ThreadID)
	require.Len(t, results[0].Decisions, 2)
	assert.Equal(t, model.ActionClarify, results[0].Decisions[0].Action)
	assert.Equal(t, model.ActionConfirm, results[0].Decisions[1].Action)
	assert.Equal(t, 2, results[0].Decisions[1].Version)

	assert.Equal(t, "b", results[1].ThreadID)
	require.Len(t, results[1].Decisions, 1)
	assert.NoError(t, results[1].Err)

	assert.Equal(t, "c", results[2].ThreadID)
	assert.Empty(t, results[2].Decisions)
}

func TestReplay_FailingThreadDoesNotStopOthers(t *testing.T) {
	st := &failingStore{Store: store.NewMemory(), failThread: "bad", err: errors.New("corrupt row")}
	tr := newTestTracker(st)

	results, err := tr.Replay(context.Background(), []ThreadTurns{
		{ThreadID: "bad", Turns: []Turn{firstTurn(), secondTurn()}},
		{ThreadID: "good", Turns: []Turn{firstTurn()}},
	})
	require.NoError(t, err)

	require.Error(t, results[0].Err)
	assert.Empty(t, results[0].Decisions)
	assert.NoError(t, results[1].Err)
	assert.Len(t, results[1].Decisions, 1)
}

func TestReplay_Empty(t *testing.T) {
	tr := newTestTracker(store.NewMemory())
	results, err := tr.Replay(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestReplay_CancelledContext(t *testing.T) {
	tr := newTestTracker(store.NewMemory())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Replay(ctx, []ThreadTurns{{ThreadID: "a", Turns: []Turn{firstTurn()}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
