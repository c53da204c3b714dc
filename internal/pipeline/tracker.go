// Package pipeline runs inbound email turns through merge, evaluation and
// routing, and persists the result per thread.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/freight-triage/internal/completeness"
	"github.com/sells-group/freight-triage/internal/config"
	"github.com/sells-group/freight-triage/internal/cumulative"
	"github.com/sells-group/freight-triage/internal/model"
	"github.com/sells-group/freight-triage/internal/resilience"
	"github.com/sells-group/freight-triage/internal/store"
)

// Turn is one inbound message together with what the extractor made of it.
type Turn struct {
	Message    model.Message     `json:"message" yaml:"message"`
	Extraction *model.Extraction `json:"extraction,omitempty" yaml:"extraction,omitempty"`
	// Confidence is the producer's confidence in Extraction, 0 when unknown.
	Confidence float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// Observer receives tracker outcomes, typically for metrics.
type Observer interface {
	ObserveDecision(d model.Decision)
	ObserveRetry(operation string)
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(model.Decision) {}
func (nopObserver) ObserveRetry(string)            {}

// Tracker owns the read-merge-evaluate-save cycle for email threads.
type Tracker struct {
	store         store.Store
	evaluator     *completeness.Evaluator
	gate          config.GateConfig
	retry         resilience.RetryConfig
	maxConcurrent int
	observer      Observer
	now           func() time.Time
	locks         keyedMutex
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithEvaluator sets the completeness evaluator.
func WithEvaluator(e *completeness.Evaluator) Option {
	return func(t *Tracker) {
		if e != nil {
			t.evaluator = e
		}
	}
}

// WithGate sets the routing thresholds.
func WithGate(cfg config.GateConfig) Option {
	return func(t *Tracker) { t.gate = cfg }
}

// WithRetry sets the retry policy for store conflicts and transient errors.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(t *Tracker) { t.retry = cfg }
}

// WithMaxConcurrent bounds the number of threads Replay processes at once.
func WithMaxConcurrent(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxConcurrent = n
		}
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(t *Tracker) {
		if o != nil {
			t.observer = o
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a Tracker backed by st.
func NewTracker(st store.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:         st,
		evaluator:     completeness.New(),
		gate:          DefaultGateConfig(),
		retry:         resilience.DefaultRetryConfig(),
		maxConcurrent: 5,
		observer:      nopObserver{},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewTrackerFromConfig creates a Tracker using the application config.
func NewTrackerFromConfig(st store.Store, cfg *config.Config, opts ...Option) *Tracker {
	base := []Option{
		WithEvaluator(completeness.New(completeness.WithMatcher(completeness.NewMatcher(cfg.Completeness.Matcher)))),
		WithGate(cfg.Gate),
		WithRetry(resilience.FromConfig(cfg.Retry)),
		WithMaxConcurrent(cfg.Pipeline.MaxConcurrentThreads),
	}
	return NewTracker(st, append(base, opts...)...)
}

// Process merges turn into the thread's cumulative state, evaluates the
// result, picks the next action and persists everything. Calls for the
// same thread run one at a time; different threads run concurrently.
func (t *Tracker) Process(ctx context.Context, threadID string, turn Turn) (*model.Decision, error) {
	if threadID == "" {
		return nil, eris.New("pipeline: thread id is required")
	}

	unlock := t.locks.Lock(threadID)
	defer unlock()

	if turn.Message.ID == "" {
		turn.Message.ID = uuid.New().String()
	}

	retryCfg := t.retry
	retryCfg.Retryable = func(err error) bool {
		return errors.Is(err, store.ErrStaleState) || resilience.IsTransient(err)
	}
	retryCfg.OnRetry = func(attempt int, err error) {
		t.observer.ObserveRetry("process")
		resilience.RetryLogger("process", threadID)(attempt, err)
	}

	decision, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*model.Decision, error) {
		return t.processOnce(ctx, threadID, turn)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: process thread %s", threadID)
	}
	return decision, nil
}

func (t *Tracker) processOnce(ctx context.Context, threadID string, turn Turn) (*model.Decision, error) {
	log := zap.L().With(zap.String("thread_id", threadID), zap.String("message_id", turn.Message.ID))
	now := t.now().UTC()

	thread, err := t.store.LoadThread(ctx, threadID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		thread = &model.Thread{ID: threadID, CreatedAt: now}
	case err != nil:
		return nil, eris.Wrap(err, "pipeline: load thread")
	}
	expected := thread.Revision

	// A redelivered message returns the decision already made for it.
	if last := thread.LastDecision; last != nil && last.MessageID == turn.Message.ID {
		log.Debug("pipeline: message already processed")
		d := *last
		return &d, nil
	}

	msg := turn.Message
	if msg.Direction == "" {
		msg.Direction = model.DirectionInbound
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = now
	}
	thread.Messages = append(thread.Messages, msg)

	// Only a turn that carries an extraction changes the cumulative state.
	if turn.Extraction != nil {
		thread.State = cumulative.Merge(thread.State, turn.Extraction, cumulative.WithClock(t.now))
	}

	res := t.evaluator.EvaluateThread(thread.State, thread.Context(turn.Extraction))
	action, reason := Route(res, turn.Confidence, thread.ClarificationRounds, t.gate)
	switch action {
	case model.ActionClarify:
		thread.ClarificationRounds++
	case model.ActionConfirm:
		thread.ClarificationRounds = 0
	}

	decision := model.Decision{
		ThreadID:    threadID,
		MessageID:   msg.ID,
		Version:     thread.State.ExtractionVersion,
		Complete:    res.Complete,
		Missing:     res.Missing,
		Blocking:    res.Blocking(),
		Action:      action,
		Reason:      reason,
		EvaluatedAt: now,
	}
	thread.LastDecision = &decision
	thread.UpdatedAt = now
	thread.Revision = expected + 1

	if err := t.store.SaveThread(ctx, thread, expected); err != nil {
		return nil, eris.Wrap(err, "pipeline: save thread")
	}

	if turn.Extraction != nil {
		event := &model.ExtractionEvent{
			ThreadID:  threadID,
			MessageID: msg.ID,
			Version:   decision.Version,
			Source:    turn.Extraction.Source,
			Payload:   turn.Extraction,
			Complete:  decision.Complete,
			Missing:   decision.Missing,
			CreatedAt: now,
		}
		if err := t.store.RecordEvent(ctx, event); err != nil {
			log.Warn("pipeline: failed to record extraction event", zap.Error(err))
		}
	}

	t.observer.ObserveDecision(decision)
	log.Info("pipeline: turn processed",
		zap.Int("version", decision.Version),
		zap.Bool("complete", decision.Complete),
		zap.Strings("missing", decision.Missing),
		zap.String("next_action", string(decision.Action)),
	)
	return &decision, nil
}
