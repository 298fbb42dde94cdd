package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFeatureJSON = `{
  "id": "https://api.weather.gov/alerts/urn:oid:2.49.0.1.840.0.ABC123.002.1",
  "type": "Feature",
  "geometry": {"type": "Polygon", "coordinates": [[[-97.1,35.2],[-97.0,35.3],[-97.1,35.2]]]},
  "properties": {
    "id": "urn:oid:2.49.0.1.840.0.ABC123.002.1",
    "areaDesc": "Cleveland, OK; McClain, OK",
    "geocode": {"SAME": ["040027", "040087"], "UGC": ["OKC027", "OKC087"]},
    "sent": "2024-04-26T15:10:00-05:00",
    "effective": "2024-04-26T15:10:00-05:00",
    "onset": "2024-04-26T15:10:00-05:00",
    "ends": null,
    "status": "Actual",
    "messageType": "Update",
    "severity": "Severe",
    "certainty": "Observed",
    "urgency": "Immediate",
    "event": "Severe Thunderstorm Warning",
    "senderName": "NWS Norman OK",
    "headline": "Severe Thunderstorm Warning issued April 26 at 3:10PM CDT",
    "description": "At 310 PM CDT, a severe thunderstorm was located near Norman.",
    "instruction": "For your protection move to an interior room.",
    "parameters": {"VTEC": ["/O.CON.KOUN.SV.W.0123.000000T0000Z-240426T2045Z/", "/O.EXT.KOUN.SV.W.0123/"]}
  }
}`

func TestBuildRecord(t *testing.T) {
	var raw RawAlert
	require.NoError(t, json.Unmarshal([]byte(testFeatureJSON), &raw))

	id, err := ParseAlertID(raw.FullID())
	require.NoError(t, err)

	rec := BuildRecord(raw, id)

	assert.Equal(t, testFollowUpID, rec.FullID)
	assert.Equal(t, "ABC123", rec.Identifier)
	assert.Equal(t, "002", rec.Sequence)
	assert.Equal(t, "1", rec.Version)
	assert.Equal(t, "Cleveland, OK; McClain, OK", rec.AreaDesc)
	assert.Equal(t, "040027, 040087", rec.SAMECodes)
	assert.Equal(t, "OKC027, OKC087", rec.UGCCodes)
	assert.Equal(t, "2024-04-26T15:10:00-05:00", rec.Sent)
	assert.Equal(t, "2024-04-26T15:10:00-05:00", rec.Onset)
	assert.Empty(t, rec.Ends)
	assert.Equal(t, "Actual", rec.Status)
	assert.Equal(t, "Update", rec.MessageType)
	assert.Equal(t, "Severe", rec.Severity)
	assert.Equal(t, "Observed", rec.Certainty)
	assert.Equal(t, "Immediate", rec.Urgency)
	assert.Equal(t, "Severe Thunderstorm Warning", rec.Event)
	assert.Equal(t, "NWS Norman OK", rec.SenderName)
	assert.Contains(t, rec.Headline, "April 26")
	assert.Contains(t, rec.Instruction, "interior room")
	assert.Equal(t, "/O.CON.KOUN.SV.W.0123.000000T0000Z-240426T2045Z/", rec.VTEC)
	assert.JSONEq(t, `[[[-97.1,35.2],[-97.0,35.3],[-97.1,35.2]]]`, rec.Coordinates)
	assert.False(t, rec.IsRoot())
	assert.Nil(t, rec.ParentID)
}

func TestBuildRecord_OptionalFieldsAbsent(t *testing.T) {
	raw := RawAlert{
		Properties: &AlertProperties{ID: testRootID, Event: "Flood Watch"},
		Geometry:   nil,
	}
	id, err := ParseAlertID(raw.FullID())
	require.NoError(t, err)

	rec := BuildRecord(raw, id)
	assert.Empty(t, rec.VTEC)
	assert.Empty(t, rec.Coordinates)
	assert.Empty(t, rec.SAMECodes)
	assert.Equal(t, "Flood Watch", rec.Event)
	assert.True(t, rec.IsRoot())
}

func TestBuildRecord_NullCoordinates(t *testing.T) {
	var raw RawAlert
	require.NoError(t, json.Unmarshal([]byte(`{"properties":{"id":"`+testRootID+`"},"geometry":{"type":"Polygon","coordinates":null}}`), &raw))
	id, err := ParseAlertID(raw.FullID())
	require.NoError(t, err)

	assert.Empty(t, BuildRecord(raw, id).Coordinates)
}

func TestRawAlert_FullID(t *testing.T) {
	t.Run("prefers properties id", func(t *testing.T) {
		raw := RawAlert{ID: "https://api.weather.gov/alerts/x", Properties: &AlertProperties{ID: testRootID}}
		assert.Equal(t, testRootID, raw.FullID())
	})

	t.Run("falls back to feature id", func(t *testing.T) {
		raw := RawAlert{ID: testRootID}
		assert.Equal(t, testRootID, raw.FullID())
	})
}
