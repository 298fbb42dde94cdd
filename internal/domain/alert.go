package domain

import (
	"encoding/json"
	"strings"
)

// RawAlert is one GeoJSON feature as returned by the alert source.
type RawAlert struct {
	ID         string           `json:"id"`
	Properties *AlertProperties `json:"properties"`
	Geometry   *Geometry        `json:"geometry"`
}

// AlertProperties holds the CAP-derived fields of an alert feature. Nullable
// source fields decode to empty strings.
type AlertProperties struct {
	ID          string     `json:"id"`
	AreaDesc    string     `json:"areaDesc"`
	Geocode     Geocode    `json:"geocode"`
	Sent        string     `json:"sent"`
	Effective   string     `json:"effective"`
	Onset       string     `json:"onset"`
	Ends        string     `json:"ends"`
	Status      string     `json:"status"`
	MessageType string     `json:"messageType"`
	Severity    string     `json:"severity"`
	Certainty   string     `json:"certainty"`
	Urgency     string     `json:"urgency"`
	Event       string     `json:"event"`
	SenderName  string     `json:"senderName"`
	Headline    string     `json:"headline"`
	Description string     `json:"description"`
	Instruction string     `json:"instruction"`
	Parameters  Parameters `json:"parameters"`
}

// Geocode lists the SAME and UGC zone codes an alert covers.
type Geocode struct {
	SAME []string `json:"SAME"`
	UGC  []string `json:"UGC"`
}

// Parameters holds the alert parameters this service keeps.
type Parameters struct {
	VTEC []string `json:"VTEC"`
}

// Geometry is kept opaque; only the coordinates are stored, as raw JSON.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// FullID returns the raw alert identifier, preferring properties.id over the
// feature id.
func (a RawAlert) FullID() string {
	if a.Properties != nil && a.Properties.ID != "" {
		return a.Properties.ID
	}
	return a.ID
}

// RecordRef points at a persisted AlertRecord.
type RecordRef struct {
	ID     int64
	FullID string
}

// AlertRecord is the persisted form of an alert.
type AlertRecord struct {
	ID           int64  `json:"id,omitempty"`
	ParentID     *int64 `json:"parent_id,omitempty"`
	ParentFullID string `json:"parent_full_id,omitempty"`

	FullID     string `json:"full_id"`
	Identifier string `json:"identifier"`
	Sequence   string `json:"sequence"`
	Version    string `json:"version"`

	AreaDesc  string `json:"area_desc"`
	SAMECodes string `json:"same_codes"`
	UGCCodes  string `json:"ugc_codes"`

	Sent      string `json:"sent"`
	Effective string `json:"effective"`
	Onset     string `json:"onset"`
	Ends      string `json:"ends"`

	Status      string `json:"status"`
	MessageType string `json:"message_type"`
	Severity    string `json:"severity"`
	Certainty   string `json:"certainty"`
	Urgency     string `json:"urgency"`
	Event       string `json:"event"`
	SenderName  string `json:"sendername"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Instruction string `json:"instruction"`
	VTEC        string `json:"vtec"`
	Coordinates string `json:"coordinates,omitempty"`
}

// IsRoot reports whether the record originates its identifier series.
func (r AlertRecord) IsRoot() bool {
	return r.Sequence == RootSequence
}

// BuildRecord maps a raw alert onto the fixed record schema. The caller is
// responsible for having checked that Properties is present.
func BuildRecord(raw RawAlert, id AlertID) AlertRecord {
	rec := AlertRecord{
		FullID:     id.FullID,
		Identifier: id.Identifier,
		Sequence:   id.Sequence,
		Version:    id.Version,
	}

	if p := raw.Properties; p != nil {
		rec.AreaDesc = p.AreaDesc
		rec.SAMECodes = joinCodes(p.Geocode.SAME)
		rec.UGCCodes = joinCodes(p.Geocode.UGC)
		rec.Sent = p.Sent
		rec.Effective = p.Effective
		rec.Onset = p.Onset
		rec.Ends = p.Ends
		rec.Status = p.Status
		rec.MessageType = p.MessageType
		rec.Severity = p.Severity
		rec.Certainty = p.Certainty
		rec.Urgency = p.Urgency
		rec.Event = p.Event
		rec.SenderName = p.SenderName
		rec.Headline = p.Headline
		rec.Description = p.Description
		rec.Instruction = p.Instruction
		if len(p.Parameters.VTEC) > 0 {
			rec.VTEC = p.Parameters.VTEC[0]
		}
	}

	rec.Coordinates = coordinatesText(raw.Geometry)
	return rec
}

func joinCodes(codes []string) string {
	return strings.Join(codes, ", ")
}

// coordinatesText returns the geometry coordinates as compact JSON, or "" when
// the alert has no geometry.
func coordinatesText(g *Geometry) string {
	if g == nil || len(g.Coordinates) == 0 || string(g.Coordinates) == "null" {
		return ""
	}
	return string(g.Coordinates)
}
