package domain

import (
	"fmt"
	"strings"
)

// RootSequence is the sequence segment of an originating alert.
const RootSequence = "001"

// minIDSegments is the number of dot-separated segments an identifier must
// have for segments 6, 7 and 8 to exist.
const minIDSegments = 9

// AlertID is the decomposed form of a raw alert identifier.
type AlertID struct {
	FullID     string
	Identifier string
	Sequence   string
	Version    string
}

// IsRoot reports whether the alert originates an identifier series.
func (id AlertID) IsRoot() bool {
	return id.Sequence == RootSequence
}

// ParseAlertID splits a raw identifier on "." and maps segments 6, 7 and 8 to
// the identifier, sequence and version. Segment contents are not validated.
func ParseAlertID(raw string) (AlertID, error) {
	parts := strings.Split(raw, ".")
	if len(parts) < minIDSegments {
		return AlertID{}, fmt.Errorf("%w: %q has %d segments, need %d", ErrMalformedID, raw, len(parts), minIDSegments)
	}
	return AlertID{
		FullID:     raw,
		Identifier: parts[6],
		Sequence:   parts[7],
		Version:    parts[8],
	}, nil
}

// ExpectedRootID guesses the raw identifier of the root alert for a
// follow-up by replacing its ".<sequence>.<version>" with ".001.1".
//
// Brittle: upstream does not promise that roots are version 1, so a root
// that was itself re-issued will not be found this way.
func ExpectedRootID(id AlertID) string {
	old := "." + id.Sequence + "." + id.Version
	i := strings.LastIndex(id.FullID, old)
	if i < 0 {
		return id.FullID
	}
	return id.FullID[:i] + "." + RootSequence + ".1" + id.FullID[i+len(old):]
}
