package patient

import "time"

type Patient struct {
	PatientID   string  `json:"patient_id"`
	DisplayName string  `json:"display_name"`
	DOB         *string `json:"dob"`
	Sex         string  `json:"sex"`
	MRN         string  `json:"mrn"`
	Age         *int    `json:"age"`
}

type Problem struct {
	ProblemID int64   `json:"problem_id"`
	Display   string  `json:"display"`
	Status    string  `json:"status"`
	OnsetDate *string `json:"onset_date"`
}

type Allergy struct {
	AllergyID int64   `json:"allergy_id"`
	Substance string  `json:"substance"`
	Reaction  *string `json:"reaction"`
	Severity  *string `json:"severity"`
}

// Medication dates are calendar dates rendered as YYYY-MM-DD.
type Medication struct {
	MedID      int64   `json:"med_id"`
	Name       string  `json:"name"`
	Dose       *string `json:"dose"`
	Frequency  *string `json:"frequency"`
	Status     *string `json:"status"`
	StartDate  *string `json:"start_date"`
	EndDate    *string `json:"end_date"`
	Prescriber *string `json:"prescriber"`
	Reason     *string `json:"reason"`
}

// Vital is an observation; Value is the text value or the numeric value
// rendered as text.
type Vital struct {
	Code       string     `json:"code"`
	Display    string     `json:"display"`
	Value      *string    `json:"value"`
	Unit       *string    `json:"unit"`
	ObservedAt *time.Time `json:"observed_at"`
}

type Snapshot struct {
	Patient           Patient      `json:"patient"`
	Problems          []Problem    `json:"problems"`
	Allergies         []Allergy    `json:"allergies"`
	ActiveMedications []Medication `json:"active_medications"`
	KeyVitals         []Vital      `json:"key_vitals"`
	AllowRawView      bool         `json:"allow_raw_view"`
}

type TimelineEvent struct {
	EventType    string                 `json:"event_type"`
	EventID      int64                  `json:"event_id"`
	EventTime    time.Time              `json:"event_time"`
	EventSubtype *string                `json:"event_subtype"`
	Description  *string                `json:"description"`
	Details      map[string]interface{} `json:"details"`
}

type Timeline struct {
	PatientID  string          `json:"patient_id"`
	Events     []TimelineEvent `json:"events"`
	TotalCount int             `json:"total_count"`
}

// normalize fills the defaults applied to a snapshot decoded from the
// database so that empty collections serialize as [] rather than null.
func (s *Snapshot) normalize(patientID string) {
	if s.Patient.PatientID == "" {
		s.Patient.PatientID = patientID
	}
	if s.Patient.DisplayName == "" {
		s.Patient.DisplayName = "Unknown"
	}
	if s.Patient.Sex == "" {
		s.Patient.Sex = "U"
	}
	if s.Problems == nil {
		s.Problems = []Problem{}
	}
	if s.Allergies == nil {
		s.Allergies = []Allergy{}
	}
	if s.ActiveMedications == nil {
		s.ActiveMedications = []Medication{}
	}
	if s.KeyVitals == nil {
		s.KeyVitals = []Vital{}
	}
}

func (e *TimelineEvent) normalize() {
	if e.EventType == "" {
		e.EventType = "unknown"
	}
}
