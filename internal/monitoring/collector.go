package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/freight-triage/internal/model"
	"github.com/sells-group/freight-triage/internal/store"
)

const collectPageSize = 500

// TagCount is how many threads currently miss a tag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Snapshot holds a point-in-time view of stored threads.
type Snapshot struct {
	Threads    int `json:"threads"`
	Complete   int `json:"complete"`
	Incomplete int `json:"incomplete"`
	// Undecided threads have no decision recorded yet.
	Undecided int `json:"undecided"`

	Actions     map[model.NextAction]int `json:"actions"`
	MissingTags []TagCount               `json:"missing_tags"`

	AvgVersion             float64 `json:"avg_version"`
	AvgClarificationRounds float64 `json:"avg_clarification_rounds"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers snapshots from the store.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a new snapshot collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect builds a snapshot of threads updated within the lookback window.
// A lookback of zero or less covers every stored thread.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		Actions:       make(map[model.NextAction]int),
		MissingTags:   []TagCount{},
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	filter := store.ThreadFilter{Limit: collectPageSize}
	if lookbackHours > 0 {
		filter.UpdatedSince = now.Add(-time.Duration(lookbackHours) * time.Hour)
	}

	tags := make(map[string]int)
	var versions, rounds int
	for {
		threads, err := c.store.ListThreads(ctx, filter)
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: list threads")
		}
		for _, th := range threads {
			snap.Threads++
			versions += th.State.ExtractionVersion
			rounds += th.ClarificationRounds

			d := th.LastDecision
			if d == nil {
				snap.Undecided++
				continue
			}
			if d.Complete {
				snap.Complete++
			} else {
				snap.Incomplete++
			}
			snap.Actions[d.Action]++
			for _, tag := range d.Missing {
				tags[tag]++
			}
		}
		if len(threads) < filter.Limit {
			break
		}
		filter.Offset += len(threads)
	}

	if snap.Threads > 0 {
		snap.AvgVersion = float64(versions) / float64(snap.Threads)
		snap.AvgClarificationRounds = float64(rounds) / float64(snap.Threads)
	}

	for tag, n := range tags {
		snap.MissingTags = append(snap.MissingTags, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(snap.MissingTags, func(i, j int) bool {
		if snap.MissingTags[i].Count != snap.MissingTags[j].Count {
			return snap.MissingTags[i].Count > snap.MissingTags[j].Count
		}
		return snap.MissingTags[i].Tag < snap.MissingTags[j].Tag
	})

	return snap, nil
}
