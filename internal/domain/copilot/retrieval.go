package copilot

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// vectorScoreThreshold is carried over from the ranking function's scoring
// convention. It is an opaque compatibility constant: the store does not
// report which strategy produced a row, so a note scoring above it is taken
// as evidence of vector search. This is an approximation.
const vectorScoreThreshold = 0.5

// Retriever wraps a ContextStore with a timeout and degrades every failure
// to an empty result tagged RetrievalError.
type Retriever struct {
	store   ContextStore
	timeout time.Duration
	logger  zerolog.Logger
}

func NewRetriever(store ContextStore, timeout time.Duration, logger zerolog.Logger) *Retriever {
	return &Retriever{store: store, timeout: timeout, logger: logger}
}

// Retrieve never fails.
func (r *Retriever) Retrieve(ctx context.Context, patientID, query string, limit int) RetrievalResult {
	limit = clampLimit(limit)
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	rows, err := r.store.RetrieveContext(ctx, patientID, query, limit)
	if err != nil {
		r.logger.Error().Err(err).
			Str("patient_id", patientID).
			Str("question", truncate(query, 50)).
			Msg("context retrieval failed, continuing without sources")
		return RetrievalResult{Sources: []Source{}, Method: RetrievalError}
	}

	sources := make([]Source, 0, len(rows))
	for _, row := range rows {
		sources = append(sources, sourceFromRow(row))
	}
	method := ClassifyRetrieval(sources)

	r.logger.Debug().
		Str("patient_id", patientID).
		Int("sources", len(sources)).
		Str("retrieval_method", string(method)).
		Msg("context retrieved")

	return RetrievalResult{Sources: sources, Method: method}
}

// ClassifyRetrieval reports vector when any note scores above the threshold,
// keyword otherwise.
func ClassifyRetrieval(sources []Source) RetrievalMethod {
	for _, s := range sources {
		if s.SourceType == SourceNote && s.Score > vectorScoreThreshold {
			return RetrievalVector
		}
	}
	return RetrievalKeyword
}

func sourceFromRow(row ContextRow) Source {
	s := Source{
		SourceType: SourceUnknown,
		Label:      "Unknown source",
		Metadata:   row.Metadata,
	}
	if row.SourceType != nil && *row.SourceType != "" {
		s.SourceType = SourceType(*row.SourceType)
	}
	if row.SourceID != nil {
		s.SourceID = *row.SourceID
	}
	if row.Label != nil {
		s.Label = *row.Label
	}
	if row.Snippet != nil {
		s.Snippet = *row.Snippet
	}
	// NaN and infinite scores cannot be encoded as JSON.
	if row.Score != nil && !math.IsNaN(*row.Score) && !math.IsInf(*row.Score, 0) {
		s.Score = *row.Score
	}
	return s
}

func clampLimit(n int) int {
	switch {
	case n < 1:
		return DefaultMaxSources
	case n > MaxSources:
		return MaxSources
	default:
		return n
	}
}
