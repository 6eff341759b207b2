package copilot

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// SourceType is the kind of record a citation points at.
type SourceType string

const (
	SourceNote    SourceType = "note"
	SourceLab     SourceType = "lab"
	SourceMed     SourceType = "med"
	SourceUnknown SourceType = "unknown"
)

// RetrievalMethod tags how sources were found.
type RetrievalMethod string

const (
	RetrievalVector  RetrievalMethod = "vector"
	RetrievalKeyword RetrievalMethod = "keyword"
	RetrievalHybrid  RetrievalMethod = "hybrid"
	RetrievalError   RetrievalMethod = "error"
)

// Source is one citation attached to an answer. Score is not normalized.
type Source struct {
	SourceType SourceType             `json:"source_type"`
	SourceID   int64                  `json:"source_id"`
	Label      string                 `json:"label"`
	Snippet    string                 `json:"snippet"`
	Score      float64                `json:"score"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// RetrievalResult is the outcome of one retrieval, already degraded on
// failure.
type RetrievalResult struct {
	Sources []Source
	Method  RetrievalMethod
}

// Question is everything a generator needs to answer.
type Question struct {
	PatientID   string
	Text        string
	PatientName string
	Sources     []Source
}

// ParsedAnswer is the structured form of a completion.
type ParsedAnswer struct {
	Answer      string
	NextActions []string
}

// Answer is a generator's final output. Model is nil for the template
// backend.
type Answer struct {
	Text        string
	NextActions []string
	Model       *string
}

const (
	MinQuestionLen    = 3
	MaxQuestionLen    = 2000
	DefaultMaxSources = 5
	MaxSources        = 20

	defaultPatientName = "the patient"
)

// AskRequest is the body of both copilot endpoints.
type AskRequest struct {
	Question   string `json:"question"`
	MaxSources *int   `json:"max_sources,omitempty"`
}

// Limit returns max_sources with the default applied.
func (r AskRequest) Limit() int {
	if r.MaxSources == nil {
		return DefaultMaxSources
	}
	return *r.MaxSources
}

// Validate checks the question length and source ceiling.
func (r AskRequest) Validate() error {
	n := utf8.RuneCountInString(r.Question)
	if n < MinQuestionLen || n > MaxQuestionLen {
		return errors.New("question must be between 3 and 2000 characters")
	}
	if strings.TrimSpace(r.Question) == "" {
		return errors.New("question must not be blank")
	}
	if l := r.Limit(); l < 1 || l > MaxSources {
		return errors.New("max_sources must be between 1 and 20")
	}
	return nil
}

// AskResponse is the synchronous answer.
type AskResponse struct {
	Answer          string          `json:"answer"`
	NextActions     []string        `json:"next_actions"`
	Sources         []Source        `json:"sources"`
	ModelUsed       *string         `json:"model_used"`
	RetrievalMethod RetrievalMethod `json:"retrieval_method"`
}

// truncate shortens s to n runes for log lines.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
