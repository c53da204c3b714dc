package monitoring

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/freight-triage/internal/model"
)

// Metrics holds Prometheus metrics for thread triage. It implements the
// tracker's Observer interface.
//
// Metrics:
//   - triage_decisions_total{action} - decisions by next action
//   - triage_evaluations_total{complete} - evaluations by outcome
//   - triage_missing_tags_total{tag} - missing-field tags reported
//   - triage_retries_total{operation} - retried store operations
//   - triage_extraction_version - version reached per processed turn
type Metrics struct {
	DecisionsTotal    *prometheus.CounterVec
	EvaluationsTotal  *prometheus.CounterVec
	MissingTagsTotal  *prometheus.CounterVec
	RetriesTotal      *prometheus.CounterVec
	ExtractionVersion prometheus.Histogram
}

// NewMetrics creates the triage metrics and registers them on reg.
// Pass prometheus.DefaultRegisterer to expose them process-wide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_decisions_total",
				Help: "Total number of routing decisions by next action",
			},
			[]string{"action"},
		),
		EvaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_evaluations_total",
				Help: "Total number of completeness evaluations by outcome",
			},
			[]string{"complete"},
		),
		MissingTagsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_missing_tags_total",
				Help: "Total number of times each missing-field tag was reported",
			},
			[]string{"tag"},
		),
		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_retries_total",
				Help: "Total number of retried store operations",
			},
			[]string{"operation"},
		),
		ExtractionVersion: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "triage_extraction_version",
				Help:    "Extraction version reached by each processed turn",
				Buckets: []float64{1, 2, 3, 4, 5, 8, 13, 21},
			},
		),
	}
}

// ObserveDecision records one processed turn.
func (m *Metrics) ObserveDecision(d model.Decision) {
	m.DecisionsTotal.WithLabelValues(string(d.Action)).Inc()
	m.EvaluationsTotal.WithLabelValues(strconv.FormatBool(d.Complete)).Inc()
	for _, tag := range d.Missing {
		m.MissingTagsTotal.WithLabelValues(tag).Inc()
	}
	m.ExtractionVersion.Observe(float64(d.Version))
}

// ObserveRetry records a retried store operation.
func (m *Metrics) ObserveRetry(operation string) {
	m.RetriesTotal.WithLabelValues(operation).Inc()
}
