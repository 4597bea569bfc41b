package repo

import (
	"context"
	"database/sql"

	"civicdesk/internal/domain"
)

const grievanceColumns = `id,title,description,department_id,raised_by,addressed_to,status,resolution_notes,is_anonymous,reopened_count,can_reopen,closed_at,created_at,updated_at,version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrievance(row rowScanner) (domain.Grievance, error) {
	var g domain.Grievance
	var addressed, notes, closed sql.NullString
	var status string
	err := row.Scan(&g.ID, &g.Title, &g.Description, &g.DepartmentID, &g.RaisedBy, &addressed, &status, &notes,
		&g.IsAnonymous, &g.ReopenedCount, &g.CanReopen, &closed, &g.CreatedAt, &g.UpdatedAt, &g.Version)
	if err != nil {
		return g, notFoundOr(err)
	}
	g.Status = domain.GrievanceStatus(status)
	g.AddressedTo = ptrFromNull(addressed)
	g.ResolutionNotes = ptrFromNull(notes)
	g.ClosedAt = ptrFromNull(closed)
	return g, nil
}

func (r Repo) InsertGrievance(ctx context.Context, tx *sql.Tx, g domain.Grievance) error {
	_, err := r.on(tx).ExecContext(ctx, r.q(`INSERT INTO grievances(`+grievanceColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		g.ID, g.Title, g.Description, g.DepartmentID, g.RaisedBy, nullablePtr(g.AddressedTo), string(g.Status), g.ResolutionNotes,
		g.IsAnonymous, g.ReopenedCount, g.CanReopen, g.ClosedAt, g.CreatedAt, g.UpdatedAt, g.Version)
	return err
}

func (r Repo) GetGrievance(ctx context.Context, id string) (domain.Grievance, error) {
	return r.GetGrievanceTx(ctx, nil, id)
}

func (r Repo) GetGrievanceTx(ctx context.Context, tx *sql.Tx, id string) (domain.Grievance, error) {
	return scanGrievance(r.on(tx).QueryRowContext(ctx, r.q(`SELECT `+grievanceColumns+` FROM grievances WHERE id=?`), id))
}

// UpdateGrievanceState writes the lifecycle fields of g when the stored version still
// equals expected. It reports false when another writer got there first.
func (r Repo) UpdateGrievanceState(ctx context.Context, tx *sql.Tx, g domain.Grievance, expected int64) (bool, error) {
	res, err := r.on(tx).ExecContext(ctx, r.q(`UPDATE grievances SET status=?, resolution_notes=?, reopened_count=?, can_reopen=?, closed_at=?, updated_at=?, version=version+1 WHERE id=? AND version=?`),
		string(g.Status), g.ResolutionNotes, g.ReopenedCount, g.CanReopen, g.ClosedAt, g.UpdatedAt, g.ID, expected)
	if err != nil {
		return false, err
	}
	return affectedOne(res)
}

func (r Repo) ListGrievancesByCitizen(ctx context.Context, userID string) ([]domain.Grievance, error) {
	return r.listGrievances(ctx, `SELECT `+grievanceColumns+` FROM grievances WHERE raised_by=? ORDER BY created_at DESC, id DESC`, userID)
}

func (r Repo) ListGrievancesByDepartment(ctx context.Context, departmentID string) ([]domain.Grievance, error) {
	return r.listGrievances(ctx, `SELECT `+grievanceColumns+` FROM grievances WHERE department_id=? ORDER BY created_at DESC, id DESC`, departmentID)
}

// EmployeeQueue returns grievances addressed to employeeID plus the unaddressed ones of
// departmentID. An empty departmentID limits the result to the addressed branch.
func (r Repo) EmployeeQueue(ctx context.Context, employeeID, departmentID string) ([]domain.Grievance, error) {
	if departmentID == "" {
		return r.listGrievances(ctx, `SELECT `+grievanceColumns+` FROM grievances WHERE addressed_to=? ORDER BY created_at DESC, id DESC`, employeeID)
	}
	return r.listGrievances(ctx, `SELECT `+grievanceColumns+` FROM grievances
WHERE addressed_to=? OR (department_id=? AND (addressed_to IS NULL OR addressed_to=''))
ORDER BY created_at DESC, id DESC`, employeeID, departmentID)
}

func (r Repo) listGrievances(ctx context.Context, query string, args ...any) ([]domain.Grievance, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Grievance{}
	for rows.Next() {
		g, err := scanGrievance(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}
