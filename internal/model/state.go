package model

import (
	"strings"
	"time"
)

// Extraction is one turn's structured payload from the extraction model.
// Every section is optional and may be partially filled.
type Extraction struct {
	Shipment            Fields     `json:"shipment_details,omitempty" yaml:"shipment_details,omitempty"`
	Container           Fields     `json:"container_details,omitempty" yaml:"container_details,omitempty"`
	Timeline            Fields     `json:"timeline_information,omitempty" yaml:"timeline_information,omitempty"`
	Rate                Fields     `json:"rate_information,omitempty" yaml:"rate_information,omitempty"`
	Contact             Fields     `json:"contact_information,omitempty" yaml:"contact_information,omitempty"`
	SpecialRequirements []string   `json:"special_requirements,omitempty" yaml:"special_requirements,omitempty"`
	Notes               string     `json:"additional_notes,omitempty" yaml:"additional_notes,omitempty"`
	Source              Source     `json:"source,omitempty" yaml:"source,omitempty"`
	ExtractedAt         *time.Time `json:"extracted_at,omitempty" yaml:"extracted_at,omitempty"`
}

// Sections returns the payload's field sections keyed by section name.
func (e *Extraction) Sections() map[string]Fields {
	if e == nil {
		return nil
	}
	return map[string]Fields{
		SectionShipment:  e.Shipment,
		SectionContainer: e.Container,
		SectionTimeline:  e.Timeline,
		SectionRate:      e.Rate,
		SectionContact:   e.Contact,
	}
}

// Empty reports whether the payload carries no present value.
func (e *Extraction) Empty() bool {
	if e == nil {
		return true
	}
	for _, f := range e.Sections() {
		if !f.Empty() {
			return false
		}
	}
	for _, r := range e.SpecialRequirements {
		if strings.TrimSpace(r) != "" {
			return false
		}
	}
	return strings.TrimSpace(e.Notes) == ""
}

// CumulativeState is the merged, thread-wide record built from every
// extraction seen so far. It is treated as a value: merges return a new
// state rather than mutating the old one.
type CumulativeState struct {
	Shipment            Fields                `json:"shipment_details,omitempty"`
	Container           Fields                `json:"container_details,omitempty"`
	Timeline            Fields                `json:"timeline_information,omitempty"`
	Rate                Fields                `json:"rate_information,omitempty"`
	Contact             Fields                `json:"contact_information,omitempty"`
	SpecialRequirements []string              `json:"special_requirements,omitempty"`
	Notes               string                `json:"additional_notes,omitempty"`
	Provenance          map[string]FieldStamp `json:"provenance,omitempty"`
	ExtractionVersion   int                   `json:"extraction_version"`
	LastUpdated         time.Time             `json:"last_updated"`
}

// Section returns the named field section, or nil for unknown names.
func (s *CumulativeState) Section(name string) Fields {
	if p := s.sectionPtr(name); p != nil {
		return *p
	}
	return nil
}

// SetSection replaces the named field section. Unknown names are ignored.
func (s *CumulativeState) SetSection(name string, f Fields) {
	if p := s.sectionPtr(name); p != nil {
		*p = f
	}
}

func (s *CumulativeState) sectionPtr(name string) *Fields {
	switch name {
	case SectionShipment:
		return &s.Shipment
	case SectionContainer:
		return &s.Container
	case SectionTimeline:
		return &s.Timeline
	case SectionRate:
		return &s.Rate
	case SectionContact:
		return &s.Contact
	}
	return nil
}

// SectionNames lists the field sections in a stable order.
func SectionNames() []string {
	return []string{SectionShipment, SectionContainer, SectionTimeline, SectionRate, SectionContact}
}

// Clone returns a deep copy of the state.
func (s CumulativeState) Clone() CumulativeState {
	out := s
	for _, name := range SectionNames() {
		out.SetSection(name, s.Section(name).Clone())
	}
	if s.SpecialRequirements != nil {
		out.SpecialRequirements = append([]string(nil), s.SpecialRequirements...)
	}
	if s.Provenance != nil {
		out.Provenance = make(map[string]FieldStamp, len(s.Provenance))
		for k, v := range s.Provenance {
			out.Provenance[k] = v
		}
	}
	return out
}
