package patient

import (
	"errors"
	"testing"

	"github.com/patient360/api/internal/platform/db"
)

func TestDecodeSnapshot(t *testing.T) {
	raw := []byte(`{"patient":{"patient_id":"p1","display_name":"Jane Doe","dob":"1960-04-02","sex":"F","mrn":"MRN1","age":64},
		"problems":[{"problem_id":1,"display":"Type 2 diabetes","status":"active"}],
		"key_vitals":[{"code":"4548-4","display":"HbA1c","value":"7.2","unit":"%","observed_at":"2024-03-01T09:00:00+00:00"}]}`)

	snap, err := decodeSnapshot(raw, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Patient.DisplayName != "Jane Doe" {
		t.Errorf("expected Jane Doe, got %q", snap.Patient.DisplayName)
	}
	if len(snap.Problems) != 1 || snap.Problems[0].Display != "Type 2 diabetes" {
		t.Errorf("unexpected problems: %+v", snap.Problems)
	}
	if snap.Allergies == nil || snap.ActiveMedications == nil {
		t.Error("expected missing collections to be empty, not nil")
	}
	if snap.KeyVitals[0].ObservedAt == nil {
		t.Error("expected observed_at to be parsed")
	}
}

func TestDecodeSnapshot_Defaults(t *testing.T) {
	snap, err := decodeSnapshot([]byte(`{"patient":{}}`), "p9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Patient.PatientID != "p9" || snap.Patient.DisplayName != "Unknown" || snap.Patient.Sex != "U" {
		t.Errorf("unexpected defaults: %+v", snap.Patient)
	}
}

func TestDecodeSnapshot_NotFound(t *testing.T) {
	for _, raw := range []string{"", "null", `{}`, `{"patient":null}`} {
		if _, err := decodeSnapshot([]byte(raw), "p1"); !errors.Is(err, db.ErrNotFound) {
			t.Errorf("decodeSnapshot(%q): expected ErrNotFound, got %v", raw, err)
		}
	}
}

func TestDecodeSnapshot_StringEncoded(t *testing.T) {
	raw := []byte(`"{\"patient\":{\"patient_id\":\"p1\",\"display_name\":\"Jane\"}}"`)
	snap, err := decodeSnapshot(raw, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Patient.DisplayName != "Jane" {
		t.Errorf("expected Jane, got %q", snap.Patient.DisplayName)
	}
}

func TestDecodeTimeline(t *testing.T) {
	raw := []byte(`[{"event_type":"note","event_id":3,"event_time":"2024-02-01T10:00:00Z","description":"Progress note"},
		{"event_id":4,"event_time":"2024-01-01T10:00:00Z"}]`)
	events, err := decodeTimeline(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].EventType != "unknown" {
		t.Errorf("expected default event type, got %q", events[1].EventType)
	}
}

func TestDecodeTimeline_Empty(t *testing.T) {
	for _, raw := range []string{"", "null", "[]"} {
		events, err := decodeTimeline([]byte(raw))
		if err != nil {
			t.Fatalf("decodeTimeline(%q): unexpected error: %v", raw, err)
		}
		if events == nil || len(events) != 0 {
			t.Errorf("decodeTimeline(%q): expected empty slice, got %v", raw, events)
		}
	}
}
