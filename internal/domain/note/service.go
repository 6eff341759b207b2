package note

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Patients confirms a patient exists; it returns db.ErrNotFound otherwise.
type Patients interface {
	Require(ctx context.Context, patientID string) error
}

type Service struct {
	repo     Repository
	patients Patients
	allowRaw bool
	logger   zerolog.Logger
}

func NewService(repo Repository, patients Patients, allowRaw bool, logger zerolog.Logger) *Service {
	return &Service{repo: repo, patients: patients, allowRaw: allowRaw, logger: logger}
}

// Ingest validates the request and runs the note through the database
// redaction and embedding pipeline.
func (s *Service) Ingest(ctx context.Context, patientID string, req IngestRequest) (*IngestResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.patients.Require(ctx, patientID); err != nil {
		return nil, err
	}
	if req.EncounterID != nil {
		ok, err := s.repo.EncounterBelongsTo(ctx, *req.EncounterID, patientID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: Encounter %d not found for patient %s", ErrInvalidRequest, *req.EncounterID, patientID)
		}
	}

	noteID, err := s.repo.Ingest(ctx, patientID, req)
	if err != nil {
		s.logger.Error().Err(err).Str("patient_id", patientID).Msg("note ingestion failed")
		if isRedactionFailure(err) {
			return nil, fmt.Errorf("%w: %v", ErrRedactionUnavailable, err)
		}
		return nil, fmt.Errorf("ingest note: %w", err)
	}

	count, err := s.repo.PHIEntityCount(ctx, noteID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("note_id", noteID).
		Str("patient_id", patientID).
		Int("phi_entities", count).
		Msg("note ingested")

	return &IngestResponse{
		NoteID:         noteID,
		PatientID:      patientID,
		Message:        fmt.Sprintf("Note ingested successfully. Detected and redacted %d PHI entities.", count),
		PHIEntityCount: count,
	}, nil
}

func isRedactionFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "azure_cognitive") || strings.Contains(msg, "azure_ai")
}

// Reprocess regenerates the redacted copy and embedding of every raw note.
// Per-note failures are collected rather than aborting the run.
func (s *Service) Reprocess(ctx context.Context, patientID string) (*ReprocessResult, error) {
	if err := s.patients.Require(ctx, patientID); err != nil {
		return nil, err
	}
	notes, err := s.repo.RawNotes(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return &ReprocessResult{Message: "No notes found to reprocess"}, nil
	}

	res := &ReprocessResult{Total: len(notes)}
	for _, n := range notes {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		ok, err := s.repo.Reprocess(ctx, patientID, n)
		if err != nil {
			res.Errors = append(res.Errors, ReprocessError{NoteID: n.NoteID, Error: err.Error()})
			continue
		}
		if ok {
			res.Processed++
		}
	}
	res.Message = fmt.Sprintf("Reprocessed %d of %d notes", res.Processed, res.Total)
	if len(res.Errors) > 0 {
		s.logger.Warn().Str("patient_id", patientID).Int("failed", len(res.Errors)).Msg("note reprocess had failures")
	}
	return res, nil
}

// Get returns the redacted note. Raw text is included only when raw viewing
// is enabled and requested; PHI entities only when raw viewing is enabled.
func (s *Service) Get(ctx context.Context, patientID string, noteID int64, includeRaw bool) (*Detail, error) {
	rec, err := s.repo.Get(ctx, patientID, noteID)
	if err != nil {
		return nil, err
	}
	d := &Detail{
		NoteID:       rec.NoteID,
		PatientID:    rec.PatientID,
		EncounterID:  rec.EncounterID,
		NoteType:     rec.NoteType,
		CreatedAt:    rec.CreatedAt,
		RedactedText: rec.RedactedText,
	}
	if s.allowRaw {
		if includeRaw {
			raw := rec.RawText
			d.RawText = &raw
		}
		d.PHIEntities = rec.PHIEntities
	}
	return d, nil
}

// IsInvalid reports whether err was caused by caller input.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}
