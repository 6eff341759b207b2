package copilot

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrInvalidRequest wraps caller input errors.
var ErrInvalidRequest = errors.New("invalid request")

// Backends holds both generators. Hosted is used only while HostedEnabled
// reports true; the predicate is evaluated on every request.
type Backends struct {
	Hosted        Generator
	Template      Generator
	HostedEnabled func() bool
}

func (b Backends) pick() Generator {
	if b.Hosted != nil && b.HostedEnabled != nil && b.HostedEnabled() {
		return b.Hosted
	}
	return b.Template
}

type Service struct {
	patients  PatientDirectory
	retriever *Retriever
	backends  Backends
	logger    zerolog.Logger
}

func NewService(patients PatientDirectory, retriever *Retriever, backends Backends, logger zerolog.Logger) *Service {
	return &Service{patients: patients, retriever: retriever, backends: backends, logger: logger}
}

// prepare validates the request and resolves the patient before any
// pipeline work starts.
func (s *Service) prepare(ctx context.Context, patientID string, req AskRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}
	name, err := s.patients.DisplayName(ctx, patientID)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = defaultPatientName
	}
	return name, nil
}

// Ask answers synchronously. Retrieval and hosted-model failures degrade;
// only input errors and an unknown patient are returned.
func (s *Service) Ask(ctx context.Context, patientID string, req AskRequest) (*AskResponse, error) {
	name, err := s.prepare(ctx, patientID, req)
	if err != nil {
		return nil, err
	}

	res := s.retriever.Retrieve(ctx, patientID, req.Question, req.Limit())
	q := Question{PatientID: patientID, Text: req.Question, PatientName: name, Sources: res.Sources}

	ans, err := s.backends.pick().Generate(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	s.logger.Info().
		Str("patient_id", patientID).
		Str("question", truncate(req.Question, 50)).
		Str("retrieval_method", string(res.Method)).
		Int("sources", len(res.Sources)).
		Msg("copilot answered question")

	actions := ans.NextActions
	if actions == nil {
		actions = []string{}
	}
	return &AskResponse{
		Answer:          ans.Text,
		NextActions:     actions,
		Sources:         res.Sources,
		ModelUsed:       ans.Model,
		RetrievalMethod: res.Method,
	}, nil
}

// Stream validates and resolves the patient, then calls open to start the
// event stream and runs the pipeline over it. Errors returned before open
// is called are caller errors; later failures are delivered as events.
func (s *Service) Stream(ctx context.Context, patientID string, req AskRequest, open func() (Emitter, error)) error {
	name, err := s.prepare(ctx, patientID, req)
	if err != nil {
		return err
	}
	emitter, err := open()
	if err != nil {
		return err
	}

	res := s.retriever.Retrieve(ctx, patientID, req.Question, req.Limit())
	q := Question{PatientID: patientID, Text: req.Question, PatientName: name, Sources: res.Sources}

	o := NewOrchestrator(emitter, s.logger)
	if err := o.Run(ctx, s.backends.pick(), q, res.Method); err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", patientID).
			Str("question", truncate(req.Question, 50)).
			Str("state", o.State().String()).
			Msg("copilot stream ended early")
		return nil
	}

	s.logger.Info().
		Str("patient_id", patientID).
		Str("question", truncate(req.Question, 50)).
		Str("retrieval_method", string(res.Method)).
		Msg("copilot streamed answer")
	return nil
}
