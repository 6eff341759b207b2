package copilot

import (
	"context"
	"errors"

	"github.com/patient360/api/internal/platform/db"
	"github.com/patient360/api/internal/platform/llm"
)

// -- Mock collaborators --

type mockStore struct {
	rows     []ContextRow
	err      error
	gotLimit int
	gotQuery string
	block    bool
}

func (m *mockStore) RetrieveContext(ctx context.Context, patientID, query string, limit int) ([]ContextRow, error) {
	m.gotLimit = limit
	m.gotQuery = query
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.rows, m.err
}

type mockDirectory struct {
	names map[string]string
}

func (m *mockDirectory) DisplayName(_ context.Context, patientID string) (string, error) {
	name, ok := m.names[patientID]
	if !ok {
		return "", db.ErrNotFound
	}
	return name, nil
}

type mockCompleter struct {
	text      string
	err       error
	deltas    []string
	streamErr error
	model     string
	lastReq   llm.Request
	// block makes Complete wait for its context to end.
	block bool
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.lastReq = req
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.text, m.err
}

func (m *mockCompleter) Stream(_ context.Context, req llm.Request, onDelta func(string) error) error {
	m.lastReq = req
	for _, d := range m.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return m.streamErr
}

func (m *mockCompleter) Model() string {
	if m.model == "" {
		return "gpt-test"
	}
	return m.model
}

type recordedEvent struct {
	event string
	data  interface{}
}

// recorder is an Emitter that keeps every event and can fail after n sends.
type recorder struct {
	events  []recordedEvent
	failAt  int
	failErr error
}

func (r *recorder) Send(event string, data interface{}) error {
	if r.failAt > 0 && len(r.events)+1 >= r.failAt {
		if r.failErr == nil {
			r.failErr = errors.New("client disconnected")
		}
		return r.failErr
	}
	r.events = append(r.events, recordedEvent{event: event, data: data})
	return nil
}

func (r *recorder) types() []string {
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.event
	}
	return out
}

func strPtr(s string) *string     { return &s }
func int64Ptr(n int64) *int64     { return &n }
func floatPtr(f float64) *float64 { return &f }
