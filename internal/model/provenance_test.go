package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvenanceKey(t *testing.T) {
	assert.Equal(t, "shipment_details.origin", ProvenanceKey(SectionShipment, FieldOrigin))
}

func TestFieldStamp_JSONLayout(t *testing.T) {
	ts := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	stamp := FieldStamp{Source: SourceForwarder, UpdatedAt: ts, Version: 3}

	data, err := json.Marshal(stamp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"forwarder","updated_at":"2025-03-04T10:00:00Z","version":3}`, string(data))
}
