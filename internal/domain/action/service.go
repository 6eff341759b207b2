package action

import (
	"context"

	"github.com/rs/zerolog"
)

// Patients confirms a patient exists; it returns db.ErrNotFound otherwise.
type Patients interface {
	Require(ctx context.Context, patientID string) error
}

type Service struct {
	repo     Repository
	patients Patients
	logger   zerolog.Logger
}

func NewService(repo Repository, patients Patients, logger zerolog.Logger) *Service {
	return &Service{repo: repo, patients: patients, logger: logger}
}

func (s *Service) List(ctx context.Context, patientID, status string) ([]Action, error) {
	return s.repo.List(ctx, patientID, status)
}

func (s *Service) Create(ctx context.Context, patientID string, req CreateRequest) (*Action, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	if err := s.patients.Require(ctx, patientID); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, patientID, []CreateRequest{req})
	if err != nil {
		return nil, err
	}
	a := created[0]
	s.logger.Info().Int64("action_id", a.ActionID).Str("patient_id", patientID).Msg("action created")
	return &a, nil
}

// CreateBulk saves several actions at once, typically the next actions of a
// copilot answer.
func (s *Service) CreateBulk(ctx context.Context, patientID string, bulk BulkCreateRequest) ([]Action, error) {
	reqs, err := bulk.expand()
	if err != nil {
		return nil, err
	}
	if err := s.patients.Require(ctx, patientID); err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return []Action{}, nil
	}
	created, err := s.repo.Create(ctx, patientID, reqs)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("count", len(created)).Str("patient_id", patientID).Msg("actions created")
	return created, nil
}

func (s *Service) Update(ctx context.Context, patientID string, actionID int64, u UpdateRequest) (*Action, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if sets, _ := u.assignments(); len(sets) == 0 {
		return nil, ErrNoFields
	}
	a, err := s.repo.Update(ctx, patientID, actionID, u)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("action_id", actionID).Str("patient_id", patientID).Msg("action updated")
	return a, nil
}

func (s *Service) Delete(ctx context.Context, patientID string, actionID int64) (*DeleteResponse, error) {
	if err := s.repo.Delete(ctx, patientID, actionID); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("action_id", actionID).Str("patient_id", patientID).Msg("action deleted")
	return &DeleteResponse{Message: "Action deleted", ActionID: actionID}, nil
}
