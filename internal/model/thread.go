package model

import (
	"strings"
	"time"
)

// Direction tells whether a message came into the mailbox or was sent by the bot.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Message is a single email in a thread.
type Message struct {
	ID         string    `json:"id" yaml:"id"`
	Sender     string    `json:"sender,omitempty" yaml:"sender,omitempty"`
	Direction  Direction `json:"direction,omitempty" yaml:"direction,omitempty"`
	Subject    string    `json:"subject,omitempty" yaml:"subject,omitempty"`
	Content    string    `json:"content" yaml:"content"`
	ReceivedAt time.Time `json:"received_at,omitempty" yaml:"received_at,omitempty"`
}

// ThreadContext is the read-only conversation text handed to the evaluator:
// the message being processed, the prior messages, and optionally the raw
// extraction of the current message.
type ThreadContext struct {
	Current Message
	History []Message
	Latest  *Extraction
}

// Texts returns the non-blank bodies of the current message followed by
// the history, oldest first.
func (t ThreadContext) Texts() []string {
	texts := make([]string, 0, len(t.History)+1)
	if strings.TrimSpace(t.Current.Content) != "" {
		texts = append(texts, t.Current.Content)
	}
	for _, m := range t.History {
		if strings.TrimSpace(m.Content) != "" {
			texts = append(texts, m.Content)
		}
	}
	return texts
}

// Thread is the persisted record for one email thread.
type Thread struct {
	ID                  string          `json:"thread_id"`
	State               CumulativeState `json:"cumulative_extraction"`
	Messages            []Message       `json:"email_chain"`
	ClarificationRounds int             `json:"clarification_rounds"`
	// Revision counts saves of the thread row and guards concurrent writers.
	// It advances on every save, including turns that carry no extraction.
	Revision     int       `json:"revision"`
	LastDecision *Decision `json:"last_decision,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Context builds the evaluator context for the thread's latest message.
func (t *Thread) Context(latest *Extraction) ThreadContext {
	if len(t.Messages) == 0 {
		return ThreadContext{Latest: latest}
	}
	last := len(t.Messages) - 1
	return ThreadContext{
		Current: t.Messages[last],
		History: t.Messages[:last],
		Latest:  latest,
	}
}

// ExtractionEvent is the audit record of a single merge.
type ExtractionEvent struct {
	ID        string      `json:"id"`
	ThreadID  string      `json:"thread_id"`
	MessageID string      `json:"message_id,omitempty"`
	Version   int         `json:"version"`
	Source    Source      `json:"source,omitempty"`
	Payload   *Extraction `json:"payload,omitempty"`
	Complete  bool        `json:"complete"`
	Missing   []string    `json:"missing,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
