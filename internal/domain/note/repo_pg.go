package note

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/patient360/api/internal/platform/db"
)

type repoPG struct{ db db.Runner }

func NewRepoPG(r db.Runner) Repository {
	return &repoPG{db: r}
}

func (r *repoPG) EncounterBelongsTo(ctx context.Context, encounterID int64, patientID string) (bool, error) {
	var ok bool
	err := r.db.Run(ctx, func(q db.Querier) error {
		return q.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM encounters WHERE encounter_id = $1 AND patient_id = $2)`,
			encounterID, patientID).Scan(&ok)
	})
	if err != nil {
		return false, fmt.Errorf("check encounter: %w", err)
	}
	return ok, nil
}

func (r *repoPG) Ingest(ctx context.Context, patientID string, req IngestRequest) (int64, error) {
	var id *int64
	err := r.db.Run(ctx, func(q db.Querier) error {
		return q.QueryRow(ctx, `SELECT ingest_note($1, $2, $3, $4, $5)`,
			patientID, req.EncounterID, req.RawText, req.NoteType, req.Author).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	if id == nil {
		return 0, fmt.Errorf("ingest_note returned no id")
	}
	return *id, nil
}

func (r *repoPG) PHIEntityCount(ctx context.Context, noteID int64) (int, error) {
	var raw []byte
	err := r.db.Run(ctx, func(q db.Querier) error {
		return q.QueryRow(ctx, `SELECT phi_entities FROM notes_phi WHERE note_id = $1`, noteID).Scan(&raw)
	})
	if db.IsNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count phi entities: %w", err)
	}
	entities, err := decodeEntities(raw)
	if err != nil {
		return 0, err
	}
	return len(entities), nil
}

func (r *repoPG) RawNotes(ctx context.Context, patientID string) ([]RawNote, error) {
	var notes []RawNote
	err := r.db.Run(ctx, func(q db.Querier) error {
		rows, err := q.Query(ctx, `
			SELECT note_id, encounter_id, raw_text, note_type, author
			FROM notes_raw WHERE patient_id = $1 ORDER BY note_id`, patientID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var n RawNote
			if err := rows.Scan(&n.NoteID, &n.EncounterID, &n.RawText, &n.NoteType, &n.Author); err != nil {
				return err
			}
			notes = append(notes, n)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list raw notes: %w", err)
	}
	return notes, nil
}

func (r *repoPG) Reprocess(ctx context.Context, patientID string, n RawNote) (bool, error) {
	var inserted bool
	err := r.db.Run(ctx, func(q db.Querier) error {
		if _, err := q.Exec(ctx, `DELETE FROM notes_phi WHERE note_id = $1`, n.NoteID); err != nil {
			return err
		}
		var id int64
		err := q.QueryRow(ctx, `
			WITH redaction AS (
				SELECT * FROM redact_phi($1, 'en')
			)
			INSERT INTO notes_phi (note_id, patient_id, encounter_id, redacted_text, phi_entities, embedding)
			SELECT $2, $3, $4, r.redacted_text, r.phi_entities, generate_embedding(r.redacted_text)
			FROM redaction r
			RETURNING note_id`,
			n.RawText, n.NoteID, patientID, n.EncounterID).Scan(&id)
		if db.IsNoRows(err) {
			return nil
		}
		if err != nil {
			return err
		}
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *repoPG) Get(ctx context.Context, patientID string, noteID int64) (*Record, error) {
	var (
		rec Record
		raw []byte
	)
	err := r.db.Run(ctx, func(q db.Querier) error {
		return q.QueryRow(ctx, `
			SELECT np.note_id, np.patient_id, np.encounter_id, np.redacted_text,
				np.phi_entities, np.created_at, nr.note_type, nr.raw_text
			FROM notes_phi np
			JOIN notes_raw nr ON nr.note_id = np.note_id
			WHERE np.patient_id = $1 AND np.note_id = $2`,
			patientID, noteID).Scan(&rec.NoteID, &rec.PatientID, &rec.EncounterID, &rec.RedactedText,
			&raw, &rec.CreatedAt, &rec.NoteType, &rec.RawText)
	})
	if db.IsNoRows(err) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	if rec.PHIEntities, err = decodeEntities(raw); err != nil {
		return nil, err
	}
	return &rec, nil
}

// decodeEntities accepts a JSON array, or a JSON string holding one. NULL
// decodes to an empty list.
func decodeEntities(raw []byte) ([]map[string]interface{}, error) {
	entities := []map[string]interface{}{}
	if len(raw) == 0 || string(raw) == "null" {
		return entities, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode phi entities: %w", err)
		}
		raw = []byte(s)
	}
	if err := json.Unmarshal(raw, &entities); err != nil {
		return nil, fmt.Errorf("decode phi entities: %w", err)
	}
	if entities == nil {
		entities = []map[string]interface{}{}
	}
	return entities, nil
}
