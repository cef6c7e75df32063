package store

import (
	"encoding/json"
	"time"

	"github.com/hashicorp-forge/conduit/pkg/structured"
)

// Session is the metadata record for one storage session: a named, isolated,
// append-only collection of records tied to one API/endpoint pairing. It owns
// exactly one record store file.
type Session struct {
	// SessionID is the opaque unique identifier (UUID).
	SessionID string `gorm:"primaryKey;type:varchar(64)" json:"session_id"`

	// SessionName is the caller-chosen display name.
	SessionName string `gorm:"not null" json:"session_name"`

	// Description is optional free text.
	Description string `gorm:"type:text" json:"description,omitempty"`

	// APIName and EndpointName record which API/endpoint feeds this session.
	APIName      string `gorm:"not null;index" json:"api_name"`
	EndpointName string `gorm:"not null" json:"endpoint_name"`

	// FilePath is the session's record store file, relative to nothing:
	// an absolute path owned exclusively by this session.
	FilePath string `gorm:"not null" json:"file_path"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// TotalRecords counts stored records; only Append mutates it, via an
	// atomic increment.
	TotalRecords int64 `gorm:"default:0" json:"total_records"`

	// LastOperationAt is the time of the most recent mutating call.
	LastOperationAt *time.Time `json:"last_operation_at,omitempty"`
}

// TableName specifies the table name for GORM.
func (Session) TableName() string {
	return "storage_sessions"
}

// Operation is an append-only audit record written after every mutating call.
// Entries are never updated or deleted except by cascade on session deletion.
type Operation struct {
	// OperationID is the opaque unique identifier (UUID).
	OperationID string `gorm:"primaryKey;type:varchar(64)" json:"operation_id"`

	SessionID string `gorm:"not null;index" json:"session_id"`

	// OperationType names the mutating call (create_session, store_data).
	OperationType string `gorm:"not null" json:"operation_type"`

	// RecordsAffected is the number of new records the call produced. A
	// deduplicated append logs 0 here while still leaving a trace.
	RecordsAffected int64 `gorm:"default:0" json:"records_affected"`

	Details   string    `gorm:"type:text" json:"details,omitempty"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}

// TableName specifies the table name for GORM.
func (Operation) TableName() string {
	return "data_operations"
}

// Record is one stored API result, written to the session's own record store
// file. ContentHash is unique within the session.
type Record struct {
	// ID is monotonic within the session.
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	// ContentHash is the SHA-256 digest of the raw value's canonical form.
	ContentHash string `gorm:"uniqueIndex;not null;type:varchar(64)" json:"content_hash"`

	// RawData is the value as fetched, before transformation.
	RawData JSON `gorm:"type:text" json:"raw_data"`

	// ProcessedData is the transformed value, when one was produced.
	ProcessedData JSON `gorm:"type:text" json:"processed_data,omitempty"`

	// SourceParams records the request parameters that produced the value.
	SourceParams JSON `gorm:"type:text" json:"source_params,omitempty"`

	Timestamp time.Time `gorm:"index" json:"timestamp"`
}

// TableName specifies the table name for GORM.
func (Record) TableName() string {
	return "api_data"
}

// Raw decodes the stored raw value.
func (r *Record) Raw() (structured.Value, error) {
	if len(r.RawData) == 0 {
		return structured.Null(), nil
	}
	return structured.DecodeJSON([]byte(r.RawData))
}

// Processed decodes the stored processed value, or null when none was stored.
func (r *Record) Processed() (structured.Value, error) {
	if len(r.ProcessedData) == 0 {
		return structured.Null(), nil
	}
	return structured.DecodeJSON([]byte(r.ProcessedData))
}

// Params decodes the request parameters that produced the record, or nil when
// none were stored.
func (r *Record) Params() (map[string]interface{}, error) {
	if len(r.SourceParams) == 0 {
		return nil, nil
	}
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(r.SourceParams), &params); err != nil {
		return nil, err
	}
	return params, nil
}
