package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusDismissed  = "dismissed"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

const SourceAISuggested = "ai_suggested"

var (
	// ErrInvalidRequest wraps caller input errors.
	ErrInvalidRequest = errors.New("invalid request")
	ErrNoFields       = errors.New("no fields to update")
)

var (
	validStatus   = map[string]bool{StatusPending: true, StatusInProgress: true, StatusCompleted: true, StatusDismissed: true}
	validPriority = map[string]bool{PriorityLow: true, PriorityNormal: true, PriorityHigh: true, PriorityUrgent: true}
)

// Action is a clinical follow-up item, either suggested by the copilot or
// entered by a clinician.
type Action struct {
	ActionID       int64      `json:"action_id"`
	PatientID      string     `json:"patient_id"`
	ActionText     string     `json:"action_text"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	Source         string     `json:"source"`
	OriginalAIText *string    `json:"original_ai_text"`
	CreatedBy      *string    `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
	DoctorNotes    *string    `json:"doctor_notes"`
}

type CreateRequest struct {
	ActionText      string          `json:"action_text"`
	Status          string          `json:"status"`
	Priority        string          `json:"priority"`
	Source          string          `json:"source"`
	OriginalAIText  *string         `json:"original_ai_text"`
	RelatedQuestion *string         `json:"related_question"`
	RelatedSources  json.RawMessage `json:"related_sources"`
	CreatedBy       *string         `json:"created_by"`
	DoctorNotes     *string         `json:"doctor_notes"`
}

// Normalize applies defaults and validates the request.
func (r *CreateRequest) Normalize() error {
	if strings.TrimSpace(r.ActionText) == "" {
		return fmt.Errorf("%w: action_text is required", ErrInvalidRequest)
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if r.Priority == "" {
		r.Priority = PriorityNormal
	}
	if r.Source == "" {
		r.Source = SourceAISuggested
	}
	if !validStatus[r.Status] {
		return fmt.Errorf("%w: invalid status %q", ErrInvalidRequest, r.Status)
	}
	if !validPriority[r.Priority] {
		return fmt.Errorf("%w: invalid priority %q", ErrInvalidRequest, r.Priority)
	}
	if isNullJSON(r.RelatedSources) {
		r.RelatedSources = nil
	}
	return nil
}

// BulkCreateRequest saves a set of copilot suggestions. The shared question
// and sources override the per-action values when present.
type BulkCreateRequest struct {
	Actions         []CreateRequest `json:"actions"`
	RelatedQuestion *string         `json:"related_question"`
	RelatedSources  json.RawMessage `json:"related_sources"`
}

// expand returns the normalized per-action requests. The original AI text
// defaults to the action text.
func (b BulkCreateRequest) expand() ([]CreateRequest, error) {
	out := make([]CreateRequest, 0, len(b.Actions))
	for i, a := range b.Actions {
		if err := a.Normalize(); err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}
		if a.OriginalAIText == nil || *a.OriginalAIText == "" {
			text := a.ActionText
			a.OriginalAIText = &text
		}
		if b.RelatedQuestion != nil && *b.RelatedQuestion != "" {
			a.RelatedQuestion = b.RelatedQuestion
		}
		if !isNullJSON(b.RelatedSources) {
			a.RelatedSources = b.RelatedSources
		}
		out = append(out, a)
	}
	return out, nil
}

type UpdateRequest struct {
	ActionText  *string `json:"action_text"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	DoctorNotes *string `json:"doctor_notes"`
	UpdatedBy   *string `json:"updated_by"`
}

func (u UpdateRequest) Validate() error {
	if u.Status != nil && !validStatus[*u.Status] {
		return fmt.Errorf("%w: invalid status %q", ErrInvalidRequest, *u.Status)
	}
	if u.Priority != nil && !validPriority[*u.Priority] {
		return fmt.Errorf("%w: invalid priority %q", ErrInvalidRequest, *u.Priority)
	}
	return nil
}

// assignments returns the SET clauses and their arguments, numbered from $1.
// Setting the status to completed also stamps completed_at.
func (u UpdateRequest) assignments() ([]string, []interface{}) {
	var (
		sets []string
		args []interface{}
	)
	add := func(col string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("action_text", u.ActionText)
	add("status", u.Status)
	if u.Status != nil && *u.Status == StatusCompleted {
		sets = append(sets, "completed_at = NOW()")
	}
	add("priority", u.Priority)
	add("doctor_notes", u.DoctorNotes)
	add("updated_by", u.UpdatedBy)
	return sets, args
}

type DeleteResponse struct {
	Message  string `json:"message"`
	ActionID int64  `json:"action_id"`
}

func isNullJSON(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
