package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/freight-triage/internal/completeness"
	"github.com/sells-group/freight-triage/internal/config"
	"github.com/sells-group/freight-triage/internal/model"
)

// DefaultGateConfig returns the routing thresholds used when none are configured.
func DefaultGateConfig() config.GateConfig {
	return config.GateConfig{
		EscalationConfidence:   0.6,
		MaxClarificationRounds: 3,
	}
}

// Route picks the next workflow action for an evaluated turn. A confidence
// of zero means the producer did not report one and never escalates.
// rounds is the number of clarification requests sent since the thread was
// last complete; the tracker resets it on confirmation.
func Route(res completeness.Result, confidence float64, rounds int, cfg config.GateConfig) (model.NextAction, string) {
	if confidence > 0 && confidence < cfg.EscalationConfidence {
		return model.ActionEscalate, fmt.Sprintf("extraction confidence %.2f below %.2f", confidence, cfg.EscalationConfidence)
	}

	if res.Complete {
		return model.ActionConfirm, "all required fields present"
	}

	blocking := res.Blocking()
	if rounds >= cfg.MaxClarificationRounds {
		return model.ActionEscalate, fmt.Sprintf("still missing %s after %d clarification rounds",
			strings.Join(blocking, ", "), rounds)
	}
	return model.ActionClarify, "missing " + strings.Join(blocking, ", ")
}
