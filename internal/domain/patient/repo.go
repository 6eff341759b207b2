package patient

import "context"

// Repository reads patient records. Missing patients are reported as
// db.ErrNotFound.
type Repository interface {
	Exists(ctx context.Context, patientID string) (bool, error)
	DisplayName(ctx context.Context, patientID string) (string, error)
	Snapshot(ctx context.Context, patientID string) (*Snapshot, error)
	Timeline(ctx context.Context, patientID string, limit int) ([]TimelineEvent, error)
	Medications(ctx context.Context, patientID, status string) ([]Medication, error)
	Observations(ctx context.Context, patientID, code string, limit int) ([]Vital, error)
}
