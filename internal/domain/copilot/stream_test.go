package copilot

import (
	"bytes"
	"context"
	"errors"
	"math"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/patient360/api/internal/platform/sse"
)

// validSequence matches any prefix of source*, metadata, delta+, actions,
// done, optionally closed by a single error. A done followed by an error is
// rejected separately.
var validSequence = regexp.MustCompile(`^S*(M(D+(AF?)?)?)?E?$`)

func encode(types []string) string {
	codes := map[string]string{
		"source": "S", "metadata": "M", "delta": "D", "actions": "A", "done": "F", "error": "E",
	}
	var sb strings.Builder
	for _, t := range types {
		sb.WriteString(codes[t])
	}
	return sb.String()
}

func TestTransition_Table(t *testing.T) {
	tests := []struct {
		from State
		ev   EventType
		want State
		ok   bool
	}{
		{StateStart, EventSource, StateSourcesSent, true},
		{StateStart, EventMetadata, StateMetadataSent, true},
		{StateSourcesSent, EventSource, StateSourcesSent, true},
		{StateSourcesSent, EventMetadata, StateMetadataSent, true},
		{StateMetadataSent, EventDelta, StateStreamingText, true},
		{StateStreamingText, EventDelta, StateStreamingText, true},
		{StateStreamingText, EventActions, StateActionsSent, true},
		{StateActionsSent, EventDone, StateDone, true},
		{StateStreamingText, EventError, StateError, true},
		{StateStart, EventError, StateError, true},

		{StateStart, EventDelta, StateStart, false},
		{StateMetadataSent, EventSource, StateMetadataSent, false},
		{StateMetadataSent, EventActions, StateMetadataSent, false},
		{StateStreamingText, EventDone, StateStreamingText, false},
		{StateActionsSent, EventDelta, StateActionsSent, false},
		{StateDone, EventError, StateDone, false},
		{StateError, EventDone, StateError, false},
	}
	for _, tt := range tests {
		got, err := Transition(tt.from, tt.ev)
		if (err == nil) != tt.ok {
			t.Errorf("Transition(%s, %s) error = %v, want ok=%v", tt.from, tt.ev, err, tt.ok)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
		if got != tt.want {
			t.Errorf("Transition(%s, %s) = %s, want %s", tt.from, tt.ev, got, tt.want)
		}
	}
}

func TestOrchestrator_TemplateRun(t *testing.T) {
	rec := &recorder{}
	o := NewOrchestrator(rec, zerolog.Nop())
	q := Question{Text: "What changed in the last 90 days?", PatientName: "Jane", Sources: sampleSources()}

	if err := o.Run(context.Background(), NewTemplateGenerator(0), q, RetrievalVector); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seq := encode(rec.types())
	if !regexp.MustCompile(`^SSSMD+AF$`).MatchString(seq) {
		t.Fatalf("unexpected event sequence %s", seq)
	}
	if o.State() != StateDone {
		t.Errorf("expected done state, got %s", o.State())
	}

	for i, src := range q.Sources {
		if !reflect.DeepEqual(rec.events[i].data, src) {
			t.Errorf("source %d out of order", i)
		}
	}
	if md := rec.events[3].data.(MetadataPayload); md.RetrievalMethod != RetrievalVector {
		t.Errorf("unexpected metadata %+v", md)
	}
	last := rec.events[len(rec.events)-1].data.(DonePayload)
	if last.Model != nil || last.RetrievalMethod != RetrievalVector {
		t.Errorf("unexpected done payload %+v", last)
	}
	actions := rec.events[len(rec.events)-2].data.(ActionsPayload)
	if actions.Actions[0] != "Review medication changes with patient" {
		t.Errorf("expected template actions, got %q", actions.Actions)
	}
}

func TestOrchestrator_HostedRun(t *testing.T) {
	c := &mockCompleter{deltas: []string{"ANSWER: Stable.", "\n\nNEXT ACTIONS:\n", "- Recheck K\n"}}
	gen := NewHostedGenerator(c, NewTemplateGenerator(0), 0, zerolog.Nop())
	rec := &recorder{}

	err := NewOrchestrator(rec, zerolog.Nop()).Run(context.Background(), gen, Question{Text: "q?", PatientName: "P"}, RetrievalKeyword)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq := encode(rec.types()); seq != "MDDDAF" {
		t.Fatalf("unexpected event sequence %s", seq)
	}
	if d := rec.events[1].data.(DeltaPayload); d.Text != "ANSWER: Stable." {
		t.Errorf("deltas must be forwarded verbatim, got %q", d.Text)
	}
	if a := rec.events[4].data.(ActionsPayload); !reflect.DeepEqual(a.Actions, []string{"Recheck K"}) {
		t.Errorf("actions must come from the accumulated text, got %q", a.Actions)
	}
	done := rec.events[5].data.(DonePayload)
	if done.Model == nil || *done.Model != "gpt-test" || done.RetrievalMethod != RetrievalKeyword {
		t.Errorf("unexpected done payload %+v", done)
	}
	if c.lastReq.Instructions != SystemInstructions || c.lastReq.MaxOutputTokens != 1000 || c.lastReq.Temperature != 0.3 {
		t.Errorf("unexpected hosted request %+v", c.lastReq)
	}
}

func TestOrchestrator_HostedFailureMidStream(t *testing.T) {
	c := &mockCompleter{deltas: []string{"partial "}, streamErr: errors.New("upstream reset")}
	gen := NewHostedGenerator(c, NewTemplateGenerator(0), 0, zerolog.Nop())
	rec := &recorder{}
	o := NewOrchestrator(rec, zerolog.Nop())

	err := o.Run(context.Background(), gen, Question{Sources: sampleSources()[:1]}, RetrievalKeyword)
	if err == nil {
		t.Fatal("expected the failure to be returned for logging")
	}
	if seq := encode(rec.types()); seq != "SMDE" {
		t.Fatalf("unexpected event sequence %s", seq)
	}
	if e := rec.events[3].data.(ErrorPayload); !strings.Contains(e.Error, "upstream reset") {
		t.Errorf("unexpected error payload %+v", e)
	}
	if o.State() != StateError {
		t.Errorf("expected error state, got %s", o.State())
	}
}

func TestOrchestrator_HostedEmptyStreamIsError(t *testing.T) {
	gen := NewHostedGenerator(&mockCompleter{}, NewTemplateGenerator(0), 0, zerolog.Nop())
	rec := &recorder{}

	_ = NewOrchestrator(rec, zerolog.Nop()).Run(context.Background(), gen, Question{}, RetrievalError)
	if seq := encode(rec.types()); seq != "ME" {
		t.Fatalf("expected metadata then error, got %s", seq)
	}
}

func TestOrchestrator_EmitFailureStopsWithoutErrorEvent(t *testing.T) {
	c := &mockCompleter{deltas: []string{"a", "b", "c", "d"}}
	gen := NewHostedGenerator(c, NewTemplateGenerator(0), 0, zerolog.Nop())
	rec := &recorder{failAt: 3}

	err := NewOrchestrator(rec, zerolog.Nop()).Run(context.Background(), gen, Question{}, RetrievalKeyword)
	if err == nil {
		t.Fatal("expected emit failure to be returned")
	}
	if seq := encode(rec.types()); seq != "MD" {
		t.Fatalf("expected the stream to stop at the failed emit, got %s", seq)
	}
}

func TestOrchestrator_CancelledContextSendsNoError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	gen := NewTemplateGenerator(0)

	cancel()
	_ = NewOrchestrator(rec, zerolog.Nop()).Run(ctx, gen, Question{Text: "Summarize", PatientName: "P"}, RetrievalKeyword)
	for _, ev := range rec.types() {
		if ev == string(EventError) {
			t.Fatal("no error event may be sent to a departed client")
		}
	}
}

func TestOrchestrator_SequencesAreValid(t *testing.T) {
	runs := []struct {
		name string
		gen  Generator
		rec  *recorder
	}{
		{"template", NewTemplateGenerator(0), &recorder{}},
		{"hosted ok", NewHostedGenerator(&mockCompleter{deltas: []string{"x"}}, nil, 0, zerolog.Nop()), &recorder{}},
		{"hosted fails", NewHostedGenerator(&mockCompleter{streamErr: errors.New("boom")}, nil, 0, zerolog.Nop()), &recorder{}},
		{"client leaves", NewTemplateGenerator(0), &recorder{failAt: 5}},
	}
	for _, r := range runs {
		t.Run(r.name, func(t *testing.T) {
			q := Question{Text: "Summarize", PatientName: "P", Sources: sampleSources()}
			_ = NewOrchestrator(r.rec, zerolog.Nop()).Run(context.Background(), r.gen, q, RetrievalKeyword)
			seq := encode(r.rec.types())
			if !validSequence.MatchString(seq) || strings.HasSuffix(seq, "FE") {
				t.Errorf("invalid event sequence %s", seq)
			}
		})
	}
}

func TestOrchestrator_UnencodableSourceEndsWithErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	o := NewOrchestrator(sse.NewStreamWriter(&buf), zerolog.Nop())
	q := Question{Text: "q?", PatientName: "P", Sources: []Source{{SourceType: SourceNote, SourceID: 1, Score: math.NaN()}}}

	if err := o.Run(context.Background(), NewTemplateGenerator(0), q, RetrievalVector); err == nil {
		t.Fatal("expected an error")
	}
	out := buf.String()
	if strings.Count(out, "event: error\n") != 1 {
		t.Fatalf("expected exactly one error event, got %q", out)
	}
	if strings.Contains(out, "event: done") || strings.Contains(out, "event: source") {
		t.Errorf("unexpected events in %q", out)
	}
	if o.State() != StateError {
		t.Errorf("expected error state, got %s", o.State())
	}
}
