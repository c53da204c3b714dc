// Package cumulative merges per-turn extraction payloads into the
// thread-wide CumulativeState.
package cumulative

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/freight-triage/internal/model"
)

// Option configures a Merge call.
type Option func(*mergeOptions)

type mergeOptions struct {
	now func() time.Time
}

// WithClock overrides the clock used for last_updated and provenance stamps.
func WithClock(now func() time.Time) Option {
	return func(o *mergeOptions) {
		o.now = now
	}
}

// Merge folds incoming into current and returns the new state. Every
// present field in incoming overwrites the field of the same name; absent
// or blank values never clear an existing one. The version always advances
// by one, even when nothing changed. current is never modified.
//
// Merge is read-then-replace: callers must serialise merges of the same
// thread or one side's updates will be lost.
func Merge(current model.CumulativeState, incoming *model.Extraction, opts ...Option) model.CumulativeState {
	o := mergeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	next := current.Clone()
	next.ExtractionVersion = current.ExtractionVersion + 1
	now := o.now().UTC()
	next.LastUpdated = now

	if incoming == nil {
		zap.L().Debug("cumulative: empty payload, version bumped only",
			zap.Int("version", next.ExtractionVersion),
		)
		return next
	}

	stamp := model.FieldStamp{
		Source:    incoming.Source,
		UpdatedAt: now,
		Version:   next.ExtractionVersion,
	}
	if incoming.ExtractedAt != nil && !incoming.ExtractedAt.IsZero() {
		stamp.UpdatedAt = incoming.ExtractedAt.UTC()
	}

	var updated int
	sections := incoming.Sections()
	for _, name := range model.SectionNames() {
		merged, changed := mergeSection(next.Section(name), sections[name])
		if len(changed) == 0 {
			continue
		}
		next.SetSection(name, merged)
		if next.Provenance == nil {
			next.Provenance = make(map[string]model.FieldStamp)
		}
		for _, key := range changed {
			next.Provenance[model.ProvenanceKey(name, key)] = stamp
		}
		updated += len(changed)
	}

	next.SpecialRequirements = mergeRequirements(next.SpecialRequirements, incoming.SpecialRequirements)
	next.Notes = mergeNotes(next.Notes, incoming.Notes)

	zap.L().Debug("cumulative: merge complete",
		zap.Int("version", next.ExtractionVersion),
		zap.Int("fields_updated", updated),
		zap.String("source", string(incoming.Source)),
	)
	return next
}

// mergeSection overlays the present values of incoming onto a copy of
// existing and returns the keys it wrote.
func mergeSection(existing, incoming model.Fields) (model.Fields, []string) {
	if len(incoming) == 0 {
		return existing, nil
	}
	incoming = incoming.Clone()
	merged := existing
	var changed []string
	for key, value := range incoming {
		if !model.Present(value) {
			continue
		}
		if merged == nil {
			merged = make(model.Fields, len(incoming))
		}
		if key == model.FieldShipmentType {
			value = normalizeShipmentType(value)
		}
		merged[key] = value
		changed = append(changed, key)
	}
	return merged, changed
}

func normalizeShipmentType(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return strings.ToUpper(strings.TrimSpace(s))
}
