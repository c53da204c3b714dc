package model

import "time"

// NextAction is the workflow branch chosen after an evaluation.
type NextAction string

const (
	ActionConfirm  NextAction = "send_confirmation_request"
	ActionClarify  NextAction = "send_clarification_request"
	ActionEscalate NextAction = "escalate_to_human"
)

// Decision is the outcome of processing one inbound turn.
type Decision struct {
	ThreadID    string     `json:"thread_id"`
	MessageID   string     `json:"message_id,omitempty"`
	Version     int        `json:"extraction_version"`
	Complete    bool       `json:"complete"`
	Missing     []string   `json:"missing"`
	Blocking    []string   `json:"blocking"`
	Action      NextAction `json:"next_action"`
	Reason      string     `json:"reason"`
	EvaluatedAt time.Time  `json:"evaluated_at"`
}
