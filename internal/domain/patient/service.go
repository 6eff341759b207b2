package patient

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/patient360/api/internal/platform/db"
)

type Service struct {
	repo     Repository
	allowRaw bool
	logger   zerolog.Logger
}

// NewService creates the patient service. allowRaw is reported to clients
// on the snapshot so they know whether raw note text can be requested.
func NewService(repo Repository, allowRaw bool, logger zerolog.Logger) *Service {
	return &Service{repo: repo, allowRaw: allowRaw, logger: logger}
}

// Require returns db.ErrNotFound unless the patient exists.
func (s *Service) Require(ctx context.Context, patientID string) error {
	ok, err := s.repo.Exists(ctx, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return db.ErrNotFound
	}
	return nil
}

// DisplayName returns the stored display name, which may be empty.
func (s *Service) DisplayName(ctx context.Context, patientID string) (string, error) {
	return s.repo.DisplayName(ctx, patientID)
}

func (s *Service) Snapshot(ctx context.Context, patientID string) (*Snapshot, error) {
	snap, err := s.repo.Snapshot(ctx, patientID)
	if err != nil {
		return nil, err
	}
	snap.AllowRawView = s.allowRaw
	return snap, nil
}

func (s *Service) Timeline(ctx context.Context, patientID string, limit int) (*Timeline, error) {
	if err := s.Require(ctx, patientID); err != nil {
		return nil, err
	}
	events, err := s.repo.Timeline(ctx, patientID, limit)
	if err != nil {
		return nil, err
	}
	return &Timeline{PatientID: patientID, Events: events, TotalCount: len(events)}, nil
}

func (s *Service) Medications(ctx context.Context, patientID, status string) ([]Medication, error) {
	meds, err := s.repo.Medications(ctx, patientID, status)
	if err != nil {
		return nil, fmt.Errorf("medications for %s: %w", patientID, err)
	}
	return meds, nil
}

func (s *Service) Observations(ctx context.Context, patientID, code string, limit int) ([]Vital, error) {
	obs, err := s.repo.Observations(ctx, patientID, code, limit)
	if err != nil {
		return nil, fmt.Errorf("observations for %s: %w", patientID, err)
	}
	return obs, nil
}
