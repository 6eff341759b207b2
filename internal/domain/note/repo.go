package note

import "context"

type Repository interface {
	EncounterBelongsTo(ctx context.Context, encounterID int64, patientID string) (bool, error)
	// Ingest stores, redacts and embeds a note and returns its id.
	Ingest(ctx context.Context, patientID string, req IngestRequest) (int64, error)
	PHIEntityCount(ctx context.Context, noteID int64) (int, error)
	RawNotes(ctx context.Context, patientID string) ([]RawNote, error)
	// Reprocess replaces the redacted copy of n. It reports false when the
	// redaction produced no row.
	Reprocess(ctx context.Context, patientID string, n RawNote) (bool, error)
	Get(ctx context.Context, patientID string, noteID int64) (*Record, error)
}
