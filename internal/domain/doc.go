// Package domain models National Weather Service (NWS) active alert data.
//
// # Data Source
//
// Alerts come from the NWS public API at https://api.weather.gov. The
// "active alerts" collection (/alerts/active) returns a GeoJSON
// FeatureCollection; each feature carries CAP-derived properties and an
// optional polygon geometry. Single alerts are fetched from /alerts/{id}.
// The API requires a User-Agent identifying the caller.
//
// # Alert Identifiers
//
// Every alert has a globally unique OID-style identifier:
//
//	urn:oid:2.49.0.1.840.0.<identifier>.<sequence>.<version>
//	e.g. "urn:oid:2.49.0.1.840.0.ABC123.001.1"
//
// Split on ".", segment 6 is the series identifier shared by every update of
// the same event, segment 7 is the zero-padded sequence and segment 8 is the
// version. Sequence "001" marks the originating (root) alert; any other
// sequence is a follow-up that belongs under the root of the same series.
// Identifiers with fewer than nine segments are rejected by [ParseAlertID].
//
// # Parent Reconstruction
//
// The API does not link follow-ups to their root. When a follow-up arrives
// and its root is not already stored, the root's identifier is guessed with
// [ExpectedRootID] and fetched directly. The guess assumes roots are always
// version 1, which upstream does not guarantee.
//
// # Field Conventions
//
// Timestamps (sent, effective, onset, ends) are kept as the source strings.
// SAME and UGC geocode lists are joined with ", ". Only the first VTEC
// parameter is kept. Geometry coordinates are stored as raw JSON and never
// interpreted.
package domain
