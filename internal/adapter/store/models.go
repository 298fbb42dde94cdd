package store

import (
	"time"

	"github.com/couchcryptid/nws-alert-ingest/internal/domain"
)

// alertRow is the alerts table. Series lookups go through idx_series.
type alertRow struct {
	ID       int64  `gorm:"primaryKey"`
	ParentID *int64 `gorm:"index"`

	FullID     string `gorm:"uniqueIndex;size:255;not null"`
	Identifier string `gorm:"index:idx_series,priority:1;size:128"`
	Sequence   string `gorm:"index:idx_series,priority:2;size:16"`
	Version    string `gorm:"size:16"`

	AreaDesc  string `gorm:"type:text"`
	SAMECodes string `gorm:"column:same_codes;type:text"`
	UGCCodes  string `gorm:"column:ugc_codes;type:text"`

	Sent      string `gorm:"size:64"`
	Effective string `gorm:"size:64"`
	Onset     string `gorm:"size:64"`
	Ends      string `gorm:"size:64"`

	Status      string `gorm:"size:32"`
	MessageType string `gorm:"size:32"`
	Severity    string `gorm:"size:32"`
	Certainty   string `gorm:"size:32"`
	Urgency     string `gorm:"size:32"`
	Event       string `gorm:"index;size:128"`
	SenderName  string `gorm:"column:sendername;size:255"`
	Headline    string `gorm:"type:text"`
	Description string `gorm:"type:text"`
	Instruction string `gorm:"type:text"`
	VTEC        string `gorm:"column:vtec;type:text"`
	Coordinates string `gorm:"type:text"`

	CreatedAt time.Time
}

func (alertRow) TableName() string {
	return "alerts"
}

// stateRow is one key of the poll state.
type stateRow struct {
	Key       string `gorm:"column:state_key;primaryKey;size:64"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (stateRow) TableName() string {
	return "poll_state"
}

// lockRow is a named lease shared by every process using the database.
// ExpiresAt is unix milliseconds so expiry compares the same on every driver.
type lockRow struct {
	Name      string `gorm:"column:lock_name;primaryKey;size:64"`
	Owner     string `gorm:"size:64;not null"`
	ExpiresAt int64  `gorm:"not null"`
}

func (lockRow) TableName() string {
	return "poll_locks"
}

func toRow(rec domain.AlertRecord, parent *domain.RecordRef) alertRow {
	row := alertRow{
		FullID:      rec.FullID,
		Identifier:  rec.Identifier,
		Sequence:    rec.Sequence,
		Version:     rec.Version,
		AreaDesc:    rec.AreaDesc,
		SAMECodes:   rec.SAMECodes,
		UGCCodes:    rec.UGCCodes,
		Sent:        rec.Sent,
		Effective:   rec.Effective,
		Onset:       rec.Onset,
		Ends:        rec.Ends,
		Status:      rec.Status,
		MessageType: rec.MessageType,
		Severity:    rec.Severity,
		Certainty:   rec.Certainty,
		Urgency:     rec.Urgency,
		Event:       rec.Event,
		SenderName:  rec.SenderName,
		Headline:    rec.Headline,
		Description: rec.Description,
		Instruction: rec.Instruction,
		VTEC:        rec.VTEC,
		Coordinates: rec.Coordinates,
	}
	if parent != nil {
		id := parent.ID
		row.ParentID = &id
	}
	return row
}

func fromRow(row alertRow) domain.AlertRecord {
	return domain.AlertRecord{
		ID:          row.ID,
		ParentID:    row.ParentID,
		FullID:      row.FullID,
		Identifier:  row.Identifier,
		Sequence:    row.Sequence,
		Version:     row.Version,
		AreaDesc:    row.AreaDesc,
		SAMECodes:   row.SAMECodes,
		UGCCodes:    row.UGCCodes,
		Sent:        row.Sent,
		Effective:   row.Effective,
		Onset:       row.Onset,
		Ends:        row.Ends,
		Status:      row.Status,
		MessageType: row.MessageType,
		Severity:    row.Severity,
		Certainty:   row.Certainty,
		Urgency:     row.Urgency,
		Event:       row.Event,
		SenderName:  row.SenderName,
		Headline:    row.Headline,
		Description: row.Description,
		Instruction: row.Instruction,
		VTEC:        row.VTEC,
		Coordinates: row.Coordinates,
	}
}
