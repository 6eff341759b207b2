package action

import "context"

// Repository stores clinical actions. Update and Delete return
// db.ErrNotFound when the action does not belong to the patient.
type Repository interface {
	List(ctx context.Context, patientID, status string) ([]Action, error)
	Create(ctx context.Context, patientID string, reqs []CreateRequest) ([]Action, error)
	Update(ctx context.Context, patientID string, actionID int64, u UpdateRequest) (*Action, error)
	Delete(ctx context.Context, patientID string, actionID int64) error
}
