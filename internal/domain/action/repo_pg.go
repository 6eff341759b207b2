package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/patient360/api/internal/platform/db"
)

const actionCols = `action_id, patient_id, action_text, status, priority, source,
	original_ai_text, created_by, created_at, updated_at, doctor_notes`

type repoPG struct{ db db.Runner }

func NewRepoPG(r db.Runner) Repository {
	return &repoPG{db: r}
}

func scanAction(row pgx.Row) (Action, error) {
	var a Action
	err := row.Scan(&a.ActionID, &a.PatientID, &a.ActionText, &a.Status, &a.Priority, &a.Source,
		&a.OriginalAIText, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt, &a.DoctorNotes)
	return a, err
}

func (r *repoPG) List(ctx context.Context, patientID, status string) ([]Action, error) {
	sql := `SELECT ` + actionCols + ` FROM clinical_actions WHERE patient_id = $1`
	args := []interface{}{patientID}
	if status != "" {
		sql += ` AND status = $2`
		args = append(args, status)
	}
	sql += ` ORDER BY created_at DESC`

	actions := []Action{}
	err := r.db.Run(ctx, func(q db.Querier) error {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanAction(rows)
			if err != nil {
				return err
			}
			actions = append(actions, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return actions, nil
}

// Create inserts the requests in order on a single connection.
func (r *repoPG) Create(ctx context.Context, patientID string, reqs []CreateRequest) ([]Action, error) {
	created := make([]Action, 0, len(reqs))
	err := r.db.Run(ctx, func(q db.Querier) error {
		for _, req := range reqs {
			a, err := scanAction(q.QueryRow(ctx, `
				INSERT INTO clinical_actions (
					patient_id, action_text, status, priority, source, original_ai_text,
					related_question, related_sources, created_by, doctor_notes
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				RETURNING `+actionCols,
				patientID, req.ActionText, req.Status, req.Priority, req.Source, req.OriginalAIText,
				req.RelatedQuestion, []byte(req.RelatedSources), req.CreatedBy, req.DoctorNotes))
			if err != nil {
				return err
			}
			created = append(created, a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create action: %w", err)
	}
	return created, nil
}

func (r *repoPG) Update(ctx context.Context, patientID string, actionID int64, u UpdateRequest) (*Action, error) {
	sets, args := u.assignments()
	if len(sets) == 0 {
		return nil, ErrNoFields
	}
	sets = append(sets, "updated_at = NOW()")
	n := len(args)
	args = append(args, actionID, patientID)
	sql := fmt.Sprintf(`UPDATE clinical_actions SET %s
		WHERE action_id = $%d AND patient_id = $%d
		RETURNING `+actionCols, strings.Join(sets, ", "), n+1, n+2)

	var a Action
	err := r.db.Run(ctx, func(q db.Querier) error {
		var err error
		a, err = scanAction(q.QueryRow(ctx, sql, args...))
		return err
	})
	if db.IsNoRows(err) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update action: %w", err)
	}
	return &a, nil
}

func (r *repoPG) Delete(ctx context.Context, patientID string, actionID int64) error {
	var id int64
	err := r.db.Run(ctx, func(q db.Querier) error {
		return q.QueryRow(ctx, `
			DELETE FROM clinical_actions WHERE action_id = $1 AND patient_id = $2
			RETURNING action_id`, actionID, patientID).Scan(&id)
	})
	if db.IsNoRows(err) {
		return db.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete action: %w", err)
	}
	return nil
}
