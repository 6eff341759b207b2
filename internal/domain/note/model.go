package note

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	MinRawTextLen   = 10
	MaxRawTextLen   = 50000
	DefaultNoteType = "progress"
)

var (
	// ErrInvalidRequest wraps caller input errors.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRedactionUnavailable means the database could not reach the PHI
	// redaction service.
	ErrRedactionUnavailable = errors.New("redaction service unavailable")
)

type IngestRequest struct {
	RawText     string  `json:"raw_text"`
	EncounterID *int64  `json:"encounter_id"`
	NoteType    string  `json:"note_type"`
	Author      *string `json:"author"`
}

// Validate checks the text bounds and applies the note type default. A zero
// encounter id is treated as absent.
func (r *IngestRequest) Validate() error {
	n := utf8.RuneCountInString(r.RawText)
	if n < MinRawTextLen || n > MaxRawTextLen {
		return fmt.Errorf("%w: raw_text must be between %d and %d characters", ErrInvalidRequest, MinRawTextLen, MaxRawTextLen)
	}
	if r.NoteType == "" {
		r.NoteType = DefaultNoteType
	}
	if r.EncounterID != nil && *r.EncounterID == 0 {
		r.EncounterID = nil
	}
	return nil
}

type IngestResponse struct {
	NoteID         int64  `json:"note_id"`
	PatientID      string `json:"patient_id"`
	Message        string `json:"message"`
	PHIEntityCount int    `json:"phi_entity_count"`
}

// RawNote is an unredacted note as stored at ingest time.
type RawNote struct {
	NoteID      int64
	EncounterID *int64
	RawText     string
	NoteType    *string
	Author      *string
}

type ReprocessError struct {
	NoteID int64  `json:"note_id"`
	Error  string `json:"error"`
}

type ReprocessResult struct {
	Message   string           `json:"message"`
	Processed int              `json:"processed"`
	Total     int              `json:"total"`
	Errors    []ReprocessError `json:"errors"`
}

// Record is a redacted note joined with its raw counterpart.
type Record struct {
	NoteID       int64
	PatientID    string
	EncounterID  *int64
	NoteType     *string
	CreatedAt    time.Time
	RawText      string
	RedactedText string
	PHIEntities  []map[string]interface{}
}

type Detail struct {
	NoteID       int64                    `json:"note_id"`
	PatientID    string                   `json:"patient_id"`
	EncounterID  *int64                   `json:"encounter_id"`
	NoteType     *string                  `json:"note_type"`
	CreatedAt    time.Time                `json:"created_at"`
	RawText      *string                  `json:"raw_text"`
	RedactedText string                   `json:"redacted_text"`
	PHIEntities  []map[string]interface{} `json:"phi_entities"`
}
