// Package store persists thread state and the audit trail of merges.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/freight-triage/internal/model"
)

var (
	// ErrNotFound is returned when a thread does not exist.
	ErrNotFound = eris.New("store: not found")

	// ErrStaleState is returned by SaveThread when the stored revision no
	// longer matches the revision the caller loaded.
	ErrStaleState = eris.New("store: stale state")
)

// ThreadFilter specifies criteria for listing threads.
type ThreadFilter struct {
	// Complete filters on the completeness of the last decision when set.
	Complete     *bool     `json:"complete,omitempty"`
	UpdatedSince time.Time `json:"updated_since,omitempty"`
	Limit        int       `json:"limit,omitempty"`
	Offset       int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for thread tracking.
type Store interface {
	// Threads
	LoadThread(ctx context.Context, threadID string) (*model.Thread, error)
	// SaveThread writes thread if the stored revision still equals
	// expectedRevision (0 for a thread that was never saved). The thread's
	// own revision must be greater than expectedRevision.
	SaveThread(ctx context.Context, thread *model.Thread, expectedRevision int) error
	ListThreads(ctx context.Context, filter ThreadFilter) ([]model.Thread, error)

	// Events
	RecordEvent(ctx context.Context, event *model.ExtractionEvent) error
	ListEvents(ctx context.Context, threadID string) ([]model.ExtractionEvent, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func checkAdvance(thread *model.Thread, expectedRevision int) error {
	if thread == nil || thread.ID == "" {
		return eris.New("store: thread id is required")
	}
	if thread.Revision <= expectedRevision {
		return eris.Wrapf(ErrStaleState, "store: thread %s revision %d does not advance %d",
			thread.ID, thread.Revision, expectedRevision)
	}
	return nil
}

func lastComplete(thread *model.Thread) bool {
	return thread.LastDecision != nil && thread.LastDecision.Complete
}

func limitOf(filter ThreadFilter) int {
	if filter.Limit <= 0 {
		return defaultListLimit
	}
	return filter.Limit
}
