package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtraction_Empty(t *testing.T) {
	t.Parallel()

	var nilExt *Extraction
	assert.True(t, nilExt.Empty())
	assert.True(t, (&Extraction{}).Empty())
	assert.True(t, (&Extraction{
		Shipment:            Fields{"origin": "", "weight": 0},
		SpecialRequirements: []string{"  "},
		Notes:               "\n",
		Source:              SourceCustomer,
	}).Empty())
	assert.False(t, (&Extraction{Timeline: Fields{"ready_date": "2025-06-01"}}).Empty())
	assert.False(t, (&Extraction{SpecialRequirements: []string{"insurance"}}).Empty())
	assert.False(t, (&Extraction{Notes: "call before delivery"}).Empty())
}

func TestExtraction_UnmarshalCategories(t *testing.T) {
	t.Parallel()

	payload := `{
		"shipment_details": {"origin": "Shanghai", "container_type": {"standardized_type": "40HC"}, "container_count": 2},
		"timeline_information": {"ready_date": "2025-06-01"},
		"special_requirements": ["insurance"],
		"additional_notes": "fragile",
		"source": "customer"
	}`
	var e Extraction
	require.NoError(t, json.Unmarshal([]byte(payload), &e))

	assert.Equal(t, "Shanghai", e.Shipment.String(FieldOrigin))
	assert.Equal(t, float64(2), e.Shipment[FieldContainerCount])
	assert.Equal(t, "2025-06-01", e.Timeline.String(FieldReadyDate))
	assert.Equal(t, []string{"insurance"}, e.SpecialRequirements)
	assert.Equal(t, SourceCustomer, e.Source)
	assert.Len(t, e.Sections(), 5)
}

func TestCumulativeState_Sections(t *testing.T) {
	t.Parallel()

	var s CumulativeState
	s.SetSection(SectionTimeline, Fields{"etd": "2025-06-10"})
	s.SetSection("bogus", Fields{"x": 1})

	assert.Equal(t, "2025-06-10", s.Timeline.String(FieldETD))
	assert.Nil(t, s.Section("bogus"))
	assert.Equal(t, []string{SectionShipment, SectionContainer, SectionTimeline, SectionRate, SectionContact}, SectionNames())
}

func TestCumulativeState_CloneIsDeep(t *testing.T) {
	t.Parallel()

	s := CumulativeState{
		Shipment:            Fields{"origin": "Shanghai"},
		SpecialRequirements: []string{"insurance"},
		Provenance:          map[string]FieldStamp{"shipment_details.origin": {Version: 1}},
		ExtractionVersion:   1,
	}
	c := s.Clone()
	c.Shipment["origin"] = "Ningbo"
	c.SpecialRequirements[0] = "none"
	c.Provenance["x"] = FieldStamp{}

	assert.Equal(t, "Shanghai", s.Shipment["origin"])
	assert.Equal(t, "insurance", s.SpecialRequirements[0])
	assert.Len(t, s.Provenance, 1)
}

func TestCumulativeState_JSONLayout(t *testing.T) {
	t.Parallel()

	s := CumulativeState{
		Shipment:          Fields{"origin": "Shanghai"},
		ExtractionVersion: 4,
		LastUpdated:       time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"shipment_details": {"origin": "Shanghai"},
		"extraction_version": 4,
		"last_updated": "2025-01-02T03:04:05Z"
	}`, string(data))
}
