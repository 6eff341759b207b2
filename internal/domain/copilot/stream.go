package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// EventType names a server-sent event of the answer stream.
type EventType string

const (
	EventSource   EventType = "source"
	EventMetadata EventType = "metadata"
	EventDelta    EventType = "delta"
	EventActions  EventType = "actions"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// State is the position of a stream in its event sequence.
type State int

const (
	StateStart State = iota
	StateSourcesSent
	StateMetadataSent
	StateStreamingText
	StateActionsSent
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateSourcesSent:
		return "sources_sent"
	case StateMetadataSent:
		return "metadata_sent"
	case StateStreamingText:
		return "streaming_text"
	case StateActionsSent:
		return "actions_sent"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further events may follow.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError
}

// ErrInvalidTransition is returned for an event the current state forbids.
var ErrInvalidTransition = errors.New("invalid stream transition")

// Transition returns the state reached by emitting ev from s. The accepted
// sequence is source*, metadata, delta+, actions, done, with error allowed
// from any non-terminal state.
func Transition(s State, ev EventType) (State, error) {
	if s.Terminal() {
		return s, fmt.Errorf("%w: %s after %s", ErrInvalidTransition, ev, s)
	}
	if ev == EventError {
		return StateError, nil
	}
	switch {
	case ev == EventSource && (s == StateStart || s == StateSourcesSent):
		return StateSourcesSent, nil
	case ev == EventMetadata && (s == StateStart || s == StateSourcesSent):
		return StateMetadataSent, nil
	case ev == EventDelta && (s == StateMetadataSent || s == StateStreamingText):
		return StateStreamingText, nil
	case ev == EventActions && s == StateStreamingText:
		return StateActionsSent, nil
	case ev == EventDone && s == StateActionsSent:
		return StateDone, nil
	}
	return s, fmt.Errorf("%w: %s after %s", ErrInvalidTransition, ev, s)
}

// Event payloads.
type (
	MetadataPayload struct {
		RetrievalMethod RetrievalMethod `json:"retrieval_method"`
	}
	DeltaPayload struct {
		Text string `json:"text"`
	}
	ActionsPayload struct {
		Actions []string `json:"actions"`
	}
	DonePayload struct {
		Model           *string         `json:"model"`
		RetrievalMethod RetrievalMethod `json:"retrieval_method"`
	}
	ErrorPayload struct {
		Error string `json:"error"`
	}
)

// Emitter delivers one event to the client. *sse.Writer satisfies it.
type Emitter interface {
	Send(event string, data interface{}) error
}

// emitError marks a failure to deliver an event, after which the client is
// assumed gone.
type emitError struct{ err error }

func (e *emitError) Error() string { return "emit event: " + e.err.Error() }
func (e *emitError) Unwrap() error { return e.err }

// isEncodeError reports whether Send failed while encoding the payload, in
// which case nothing reached the client and the stream is still usable.
func isEncodeError(err error) bool {
	var (
		unsupportedValue *json.UnsupportedValueError
		unsupportedType  *json.UnsupportedTypeError
		marshaler        *json.MarshalerError
	)
	return errors.As(err, &unsupportedValue) ||
		errors.As(err, &unsupportedType) ||
		errors.As(err, &marshaler)
}

// Orchestrator drives one answer stream through the state machine.
type Orchestrator struct {
	emitter Emitter
	state   State
	logger  zerolog.Logger
}

func NewOrchestrator(e Emitter, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{emitter: e, state: StateStart, logger: logger}
}

// State returns the current state.
func (o *Orchestrator) State() State { return o.state }

func (o *Orchestrator) emit(ev EventType, payload interface{}) error {
	next, err := Transition(o.state, ev)
	if err != nil {
		return err
	}
	if err := o.emitter.Send(string(ev), payload); err != nil {
		if isEncodeError(err) {
			return fmt.Errorf("encode %s event: %w", ev, err)
		}
		return &emitError{err: err}
	}
	o.state = next
	return nil
}

// Run emits the sources, the retrieval method, the generated text, the next
// actions and the completion event, in that order. Any failure after the
// first event is reported as a single error event unless the client is
// gone. The returned error is for logging only.
func (o *Orchestrator) Run(ctx context.Context, gen Generator, q Question, method RetrievalMethod) error {
	for _, src := range q.Sources {
		if err := o.emit(EventSource, src); err != nil {
			return o.fail(ctx, err)
		}
	}
	if err := o.emit(EventMetadata, MetadataPayload{RetrievalMethod: method}); err != nil {
		return o.fail(ctx, err)
	}

	ans, err := gen.Stream(ctx, q, func(d string) error {
		return o.emit(EventDelta, DeltaPayload{Text: d})
	})
	if err != nil {
		return o.fail(ctx, err)
	}

	actions := ans.NextActions
	if actions == nil {
		actions = []string{}
	}
	if err := o.emit(EventActions, ActionsPayload{Actions: actions}); err != nil {
		return o.fail(ctx, err)
	}
	if err := o.emit(EventDone, DonePayload{Model: ans.Model, RetrievalMethod: method}); err != nil {
		return o.fail(ctx, err)
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, err error) error {
	var ee *emitError
	if errors.As(err, &ee) || ctx.Err() != nil {
		return err
	}
	if sendErr := o.emit(EventError, ErrorPayload{Error: err.Error()}); sendErr != nil {
		o.logger.Debug().Err(sendErr).Msg("could not deliver error event")
	}
	return err
}
