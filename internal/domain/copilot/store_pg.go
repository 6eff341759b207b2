package copilot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/patient360/api/internal/platform/db"
)

type contextStorePG struct{ db db.Runner }

func NewContextStorePG(r db.Runner) ContextStore {
	return &contextStorePG{db: r}
}

func (s *contextStorePG) RetrieveContext(ctx context.Context, patientID, query string, limit int) ([]ContextRow, error) {
	var out []ContextRow
	err := s.db.Run(ctx, func(q db.Querier) error {
		rows, err := q.Query(ctx, `
			SELECT source_type, source_id, label, snippet, score, metadata
			FROM retrieve_context($1, $2, $3)`,
			patientID, query, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				r    ContextRow
				meta []byte
			)
			if err := rows.Scan(&r.SourceType, &r.SourceID, &r.Label, &r.Snippet, &r.Score, &meta); err != nil {
				return err
			}
			if r.Metadata, err = decodeMetadata(meta); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	return out, nil
}

// decodeMetadata accepts a JSON object, or a JSON string holding one.
func decodeMetadata(raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	switch m := v.(type) {
	case map[string]interface{}:
		return m, nil
	case string:
		inner, err := decodeMetadata([]byte(m))
		if err != nil {
			return nil, nil
		}
		return inner, nil
	default:
		return nil, nil
	}
}
