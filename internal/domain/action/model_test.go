package action

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestCreateRequest_Normalize_Defaults(t *testing.T) {
	r := CreateRequest{ActionText: "Order HbA1c", RelatedSources: json.RawMessage("null")}
	if err := r.Normalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != StatusPending || r.Priority != PriorityNormal || r.Source != SourceAISuggested {
		t.Errorf("unexpected defaults: %s/%s/%s", r.Status, r.Priority, r.Source)
	}
	if r.RelatedSources != nil {
		t.Error("expected JSON null sources to be dropped")
	}
}

func TestCreateRequest_Normalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"blank text", CreateRequest{ActionText: "   "}},
		{"bad status", CreateRequest{ActionText: "x", Status: "done"}},
		{"bad priority", CreateRequest{ActionText: "x", Priority: "critical"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Normalize(); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestBulkCreateRequest_Expand(t *testing.T) {
	bulk := BulkCreateRequest{
		Actions: []CreateRequest{
			{ActionText: "Recheck eGFR in 3 months"},
			{ActionText: "Review statin", OriginalAIText: strPtr("Consider statin review"), RelatedQuestion: strPtr("own")},
		},
		RelatedQuestion: strPtr("What changed?"),
		RelatedSources:  json.RawMessage(`[{"source_type":"lab","source_id":4}]`),
	}
	reqs, err := bulk.expand()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *reqs[0].OriginalAIText != "Recheck eGFR in 3 months" {
		t.Errorf("expected original text to default to action text, got %q", *reqs[0].OriginalAIText)
	}
	if *reqs[1].OriginalAIText != "Consider statin review" {
		t.Errorf("expected provided original text kept, got %q", *reqs[1].OriginalAIText)
	}
	for i, r := range reqs {
		if *r.RelatedQuestion != "What changed?" {
			t.Errorf("reqs[%d]: expected shared question, got %q", i, *r.RelatedQuestion)
		}
		if string(r.RelatedSources) != `[{"source_type":"lab","source_id":4}]` {
			t.Errorf("reqs[%d]: expected shared sources, got %s", i, r.RelatedSources)
		}
		if r.Status != StatusPending {
			t.Errorf("reqs[%d]: expected defaults applied, got status %q", i, r.Status)
		}
	}
}

func TestBulkCreateRequest_Expand_KeepsPerActionContext(t *testing.T) {
	bulk := BulkCreateRequest{Actions: []CreateRequest{{ActionText: "x", RelatedQuestion: strPtr("own")}}}
	reqs, err := bulk.expand()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *reqs[0].RelatedQuestion != "own" {
		t.Errorf("expected per-action question kept, got %q", *reqs[0].RelatedQuestion)
	}
}

func TestUpdateRequest_Assignments(t *testing.T) {
	tests := []struct {
		name     string
		u        UpdateRequest
		wantSets []string
		wantArgs []interface{}
	}{
		{"empty", UpdateRequest{}, nil, nil},
		{
			"text and notes",
			UpdateRequest{ActionText: strPtr("a"), DoctorNotes: strPtr("n")},
			[]string{"action_text = $1", "doctor_notes = $2"},
			[]interface{}{"a", "n"},
		},
		{
			"completed stamps completed_at",
			UpdateRequest{Status: strPtr(StatusCompleted), UpdatedBy: strPtr("dr")},
			[]string{"status = $1", "completed_at = NOW()", "updated_by = $2"},
			[]interface{}{StatusCompleted, "dr"},
		},
		{
			"dismissed does not",
			UpdateRequest{Status: strPtr(StatusDismissed), Priority: strPtr(PriorityHigh)},
			[]string{"status = $1", "priority = $2"},
			[]interface{}{StatusDismissed, PriorityHigh},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sets, args := tt.u.assignments()
			if !reflect.DeepEqual(sets, tt.wantSets) {
				t.Errorf("sets = %v, want %v", sets, tt.wantSets)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestUpdateRequest_Validate(t *testing.T) {
	if err := (UpdateRequest{Status: strPtr("archived")}).Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	if err := (UpdateRequest{Priority: strPtr(PriorityUrgent)}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
