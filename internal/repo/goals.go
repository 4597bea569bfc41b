package repo

import (
	"context"
	"database/sql"

	"civicdesk/internal/domain"
)

const goalColumns = `id,title,COALESCE(description,''),level,related_id,department_id,target_value,current_value,unit,deadline,status,created_at,updated_at,version`

func scanGoal(row rowScanner) (domain.Goal, error) {
	var g domain.Goal
	var level, status string
	var deadline sql.NullString
	err := row.Scan(&g.ID, &g.Title, &g.Description, &level, &g.RelatedID, &g.DepartmentID, &g.TargetValue, &g.CurrentValue,
		&g.Unit, &deadline, &status, &g.CreatedAt, &g.UpdatedAt, &g.Version)
	if err != nil {
		return g, notFoundOr(err)
	}
	g.Level = domain.GoalLevel(level)
	g.Status = domain.GoalStatus(status)
	g.Deadline = ptrFromNull(deadline)
	return g, nil
}

func (r Repo) InsertGoal(ctx context.Context, tx *sql.Tx, g domain.Goal) error {
	_, err := r.on(tx).ExecContext(ctx, r.q(`INSERT INTO goals(id,title,description,level,related_id,department_id,target_value,current_value,unit,deadline,status,created_at,updated_at,version) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		g.ID, g.Title, nullable(g.Description), string(g.Level), g.RelatedID, g.DepartmentID, g.TargetValue, g.CurrentValue,
		g.Unit, nullablePtr(g.Deadline), string(g.Status), g.CreatedAt, g.UpdatedAt, g.Version)
	return err
}

func (r Repo) GetGoal(ctx context.Context, id string) (domain.Goal, error) {
	return r.GetGoalTx(ctx, nil, id)
}

func (r Repo) GetGoalTx(ctx context.Context, tx *sql.Tx, id string) (domain.Goal, error) {
	return scanGoal(r.on(tx).QueryRowContext(ctx, r.q(`SELECT `+goalColumns+` FROM goals WHERE id=?`), id))
}

// GoalFilter narrows ListGoals; zero fields match everything.
type GoalFilter struct {
	Level        domain.GoalLevel
	RelatedID    string
	DepartmentID string
}

// ListGoals returns goals newest first.
func (r Repo) ListGoals(ctx context.Context, f GoalFilter) ([]domain.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE 1=1`
	var args []any
	if f.Level != "" {
		query += ` AND level=?`
		args = append(args, string(f.Level))
	}
	if f.RelatedID != "" {
		query += ` AND related_id=?`
		args = append(args, f.RelatedID)
	}
	if f.DepartmentID != "" {
		query += ` AND department_id=?`
		args = append(args, f.DepartmentID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

// UpdateGoalProgress writes current value and status when the stored version still equals expected.
func (r Repo) UpdateGoalProgress(ctx context.Context, tx *sql.Tx, g domain.Goal, expected int64) (bool, error) {
	res, err := r.on(tx).ExecContext(ctx, r.q(`UPDATE goals SET current_value=?, status=?, updated_at=?, version=version+1 WHERE id=? AND version=?`),
		g.CurrentValue, string(g.Status), g.UpdatedAt, g.ID, expected)
	if err != nil {
		return false, err
	}
	return affectedOne(res)
}
