package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nws-alert-ingest/internal/domain"
	"github.com/couchcryptid/nws-alert-ingest/internal/ledger"
)

const (
	rootID     = "urn:oid:2.49.0.1.840.0.ABC123.001.1"
	followUpID = "urn:oid:2.49.0.1.840.0.ABC123.002.1"
	otherRoot  = "urn:oid:2.49.0.1.840.0.XYZ789.001.1"
)

func rec(id int64, fullID string, parent *int64) domain.AlertRecord {
	parsed, err := domain.ParseAlertID(fullID)
	if err != nil {
		panic(err)
	}
	r := domain.BuildRecord(domain.RawAlert{}, parsed)
	r.ID = id
	r.ParentID = parent
	return r
}

func ptr(v int64) *int64 { return &v }

func TestValidateAll_ConsistentStore(t *testing.T) {
	records := []domain.AlertRecord{
		rec(1, rootID, nil),
		rec(2, followUpID, ptr(1)),
		rec(3, otherRoot, nil),
	}
	for _, p := range validateAll(records, []string{rootID, followUpID, otherRoot}) {
		assert.True(t, p.passed(), "%s: %v", p.name, p.errors)
	}
}

func TestValidateLedgerBounds(t *testing.T) {
	p := validateLedgerBounds([]string{rootID, otherRoot, rootID})
	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "duplicates entry 0")

	big := make([]string, ledger.MaxEntries+1)
	for i := range big {
		big[i] = fmt.Sprintf("id-%d", i)
	}
	p = validateLedgerBounds(big)
	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "max 10000")
}

func TestValidateLedgerCoverage(t *testing.T) {
	p := validateLedgerCoverage([]string{rootID, otherRoot}, []domain.AlertRecord{rec(1, rootID, nil)})
	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], otherRoot)
}

func TestValidateIdentifiers(t *testing.T) {
	bad := rec(1, rootID, nil)
	bad.Sequence = "002"
	malformed := domain.AlertRecord{ID: 2, FullID: "urn:oid:short"}

	p := validateIdentifiers([]domain.AlertRecord{bad, malformed})
	require.Len(t, p.errors, 2)
	assert.Contains(t, p.errors[0], "record 1")
	assert.Contains(t, p.errors[1], "record 2")
}

func TestValidateSeriesLinkage(t *testing.T) {
	records := []domain.AlertRecord{
		rec(1, rootID, ptr(9)),
		rec(2, followUpID, nil),
		rec(3, otherRoot, nil),
		rec(4, "urn:oid:2.49.0.1.840.0.ABC123.003.1", ptr(3)),
		rec(5, "urn:oid:2.49.0.1.840.0.ABC123.004.1", ptr(4)),
		rec(6, "urn:oid:2.49.0.1.840.0.ABC123.005.1", ptr(42)),
	}

	p := validateSeriesLinkage(records)
	require.Len(t, p.errors, 5)
	assert.Contains(t, p.errors[0], "root "+rootID+" has parent 9")
	assert.Contains(t, p.errors[1], "has no parent")
	assert.Contains(t, p.errors[2], "root of another series")
	assert.Contains(t, p.errors[3], "non-root")
	assert.Contains(t, p.errors[4], "missing record 42")
}
