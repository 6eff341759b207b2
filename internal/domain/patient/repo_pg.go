package patient

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

func (r *repoPG) Exists(ctx context.Context, patientID string) (bool, error) {
	var exists bool
	err := r.db.Run(ctx, func(q db.Querier) error {
		return q.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM patients WHERE patient_id = $1)`, patientID).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("check patient: %w", err)
	}
	return exists, nil
}

func (r *repoPG) DisplayName(ctx context.Context, patientID string) (string, error) {
	var name *string
	err := r.db.Run(ctx, func(q db.Querier) error {
		return q.QueryRow(ctx,
			`SELECT display_name FROM patients WHERE patient_id = $1`, patientID).Scan(&name)
	})
	if db.IsNoRows(err) {
		return "", db.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get display name: %w", err)
	}
	if name == nil {
		return "", nil
	}
	return *name, nil
}

// snapshotDoc is the document returned by get_patient_snapshot.
type snapshotDoc struct {
	Patient           *Patient     `json:"patient"`
	Problems          []Problem    `json:"problems"`
	Allergies         []Allergy    `json:"allergies"`
	ActiveMedications []Medication `json:"active_medications"`
	KeyVitals         []Vital      `json:"key_vitals"`
}

func (r *repoPG) Snapshot(ctx context.Context, patientID string) (*Snapshot, error) {
	var raw []byte
	err := r.db.Run(ctx, func(q db.Querier) error {
		return q.QueryRow(ctx, `SELECT get_patient_snapshot($1)`, patientID).Scan(&raw)
	})
	if db.IsNoRows(err) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return decodeSnapshot(raw, patientID)
}

func decodeSnapshot(raw []byte, patientID string) (*Snapshot, error) {
	raw, err := unwrapJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, db.ErrNotFound
	}
	var doc snapshotDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Patient == nil {
		return nil, db.ErrNotFound
	}
	s := &Snapshot{
		Patient:           *doc.Patient,
		Problems:          doc.Problems,
		Allergies:         doc.Allergies,
		ActiveMedications: doc.ActiveMedications,
		KeyVitals:         doc.KeyVitals,
	}
	s.normalize(patientID)
	return s, nil
}

func (r *repoPG) Timeline(ctx context.Context, patientID string, limit int) ([]TimelineEvent, error) {
	var raw []byte
	err := r.db.Run(ctx, func(q db.Querier) error {
		return q.QueryRow(ctx, `SELECT get_patient_timeline($1, $2)`, patientID, limit).Scan(&raw)
	})
	if err != nil && !db.IsNoRows(err) {
		return nil, fmt.Errorf("get timeline: %w", err)
	}
	return decodeTimeline(raw)
}

func decodeTimeline(raw []byte) ([]TimelineEvent, error) {
	raw, err := unwrapJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	events := []TimelineEvent{}
	if len(raw) == 0 || string(raw) == "null" {
		return events, nil
	}
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	for i := range events {
		events[i].normalize()
	}
	return events, nil
}

// unwrapJSON returns raw unchanged unless it is a JSON string, in which
// case the string's contents are returned.
func unwrapJSON(raw []byte) ([]byte, error) {
	if len(raw) == 0 || raw[0] != '"' {
		return raw, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

const medCols = `med_id, name, dose, frequency, status,
	start_date::text, end_date::text, prescriber, reason`

func (r *repoPG) Medications(ctx context.Context, patientID, status string) ([]Medication, error) {
	sql := `SELECT ` + medCols + ` FROM medications WHERE patient_id = $1`
	args := []interface{}{patientID}
	if status != "" {
		sql += ` AND status = $2`
		args = append(args, status)
	}
	sql += ` ORDER BY start_date DESC`

	meds := []Medication{}
	err := r.db.Run(ctx, func(q db.Querier) error {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m Medication
			if err := rows.Scan(&m.MedID, &m.Name, &m.Dose, &m.Frequency, &m.Status,
				&m.StartDate, &m.EndDate, &m.Prescriber, &m.Reason); err != nil {
				return err
			}
			meds = append(meds, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return meds, nil
}

func (r *repoPG) Observations(ctx context.Context, patientID, code string, limit int) ([]Vital, error) {
	sql := `SELECT code, display, COALESCE(value_text, value_num::text), unit, observed_at
		FROM observations WHERE patient_id = $1`
	args := []interface{}{patientID}
	if code != "" {
		sql += ` AND code = $2 ORDER BY observed_at DESC LIMIT $3`
		args = append(args, code, limit)
	} else {
		sql += ` ORDER BY observed_at DESC LIMIT $2`
		args = append(args, limit)
	}

	vitals := []Vital{}
	err := r.db.Run(ctx, func(q db.Querier) error {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var v Vital
			if err := rows.Scan(&v.Code, &v.Display, &v.Value, &v.Unit, &v.ObservedAt); err != nil {
				return err
			}
			vitals = append(vitals, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	return vitals, nil
}
