package copilot

import "context"

// ContextRow is a raw row from the context store. Nil fields were NULL.
type ContextRow struct {
	SourceType *string
	SourceID   *int64
	Label      *string
	Snippet    *string
	Score      *float64
	Metadata   map[string]interface{}
}

// ContextStore ranks patient records against a query.
type ContextStore interface {
	RetrieveContext(ctx context.Context, patientID, query string, limit int) ([]ContextRow, error)
}

// PatientDirectory resolves a patient's display name. It returns
// db.ErrNotFound for unknown patients.
type PatientDirectory interface {
	DisplayName(ctx context.Context, patientID string) (string, error)
}
