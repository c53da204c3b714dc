package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/freight-triage/internal/model"
)

// ThreadTurns is the ordered sequence of turns for one thread.
type ThreadTurns struct {
	ThreadID string `json:"thread_id" yaml:"thread_id"`
	Turns    []Turn `json:"turns" yaml:"turns"`
}

// ThreadResult holds the decisions made for one replayed thread. Err is
// set when a turn failed; later turns of that thread are not processed.
type ThreadResult struct {
	ThreadID  string           `json:"thread_id"`
	Decisions []model.Decision `json:"decisions"`
	Err       error            `json:"-"`
}

// Replay processes several threads concurrently, each thread's turns in
// order. A failing thread does not stop the others. Results are returned
// in input order.
func (t *Tracker) Replay(ctx context.Context, threads []ThreadTurns) ([]ThreadResult, error) {
	results := make([]ThreadResult, len(threads))
	if len(threads) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.maxConcurrent)

	var succeeded, failed atomic.Int64

	for i, th := range threads {
		g.Go(func() error {
			res := ThreadResult{ThreadID: th.ThreadID, Decisions: make([]model.Decision, 0, len(th.Turns))}
			for _, turn := range th.Turns {
				d, err := t.Process(gctx, th.ThreadID, turn)
				if err != nil {
					res.Err = err
					break
				}
				res.Decisions = append(res.Decisions, *d)
			}
			results[i] = res

			if res.Err != nil {
				failed.Add(1)
				zap.L().Error("pipeline: replay thread failed",
					zap.String("thread_id", th.ThreadID),
					zap.Int("turns_done", len(res.Decisions)),
					zap.Error(res.Err),
				)
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, eris.Wrap(err, "pipeline: replay")
	}
	if err := ctx.Err(); err != nil {
		return results, eris.Wrap(err, "pipeline: replay")
	}

	zap.L().Info("pipeline: replay complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results, nil
}
