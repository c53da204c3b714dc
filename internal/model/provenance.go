package model

import "time"

// Source identifies who produced an extraction.
type Source string

const (
	SourceCustomer  Source = "customer"
	SourceForwarder Source = "forwarder"
	SourceSystem    Source = "system"
)

// FieldStamp records when a merged field was last written and by whom.
type FieldStamp struct {
	Source    Source    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// ProvenanceKey builds the key used in CumulativeState.Provenance.
func ProvenanceKey(section, field string) string {
	return section + "." + field
}
