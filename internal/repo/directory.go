package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"civicdesk/internal/domain"
)

const departmentColumns = `id,name,COALESCE(username,''),head,budget,expenditure,COALESCE(description,''),created_at`

func scanDepartment(row rowScanner) (domain.Department, error) {
	var d domain.Department
	err := row.Scan(&d.ID, &d.Name, &d.Username, &d.Head, &d.Budget, &d.Expenditure, &d.Description, &d.CreatedAt)
	return d, notFoundOr(err)
}

func (r Repo) InsertDepartment(ctx context.Context, tx *sql.Tx, d domain.Department) error {
	_, err := r.on(tx).ExecContext(ctx, r.q(`INSERT INTO departments(id,name,username,head,budget,expenditure,description,created_at) VALUES (?,?,?,?,?,?,?,?)`),
		d.ID, d.Name, nullable(d.Username), d.Head, d.Budget, d.Expenditure, nullable(d.Description), d.CreatedAt)
	return err
}

func (r Repo) GetDepartment(ctx context.Context, id string) (domain.Department, error) {
	return r.GetDepartmentTx(ctx, nil, id)
}

func (r Repo) GetDepartmentTx(ctx context.Context, tx *sql.Tx, id string) (domain.Department, error) {
	return scanDepartment(r.on(tx).QueryRowContext(ctx, r.q(`SELECT `+departmentColumns+` FROM departments WHERE id=?`), id))
}

func (r Repo) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+departmentColumns+` FROM departments ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Department{}
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

const userColumns = `id,name,email,COALESCE(phone,''),COALESCE(address,''),COALESCE(city,''),COALESCE(state,''),created_at`

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := r.on(tx).ExecContext(ctx, r.q(`INSERT INTO users(id,name,email,phone,address,city,state,created_at) VALUES (?,?,?,?,?,?,?,?)`),
		u.ID, u.Name, u.Email, nullable(u.Phone), nullable(u.Address), nullable(u.City), nullable(u.State), u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := r.DB.QueryRowContext(ctx, r.q(`SELECT `+userColumns+` FROM users WHERE id=?`), id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Address, &u.City, &u.State, &u.CreatedAt)
	return u, notFoundOr(err)
}

const employeeColumns = `id,name,role,department_id,team_id,email,rank,is_public_contact,created_at`

func scanEmployee(row rowScanner) (domain.Employee, error) {
	var e domain.Employee
	var team sql.NullString
	err := row.Scan(&e.ID, &e.Name, &e.Role, &e.DepartmentID, &team, &e.Email, &e.Rank, &e.IsPublicContact, &e.CreatedAt)
	if err != nil {
		return e, notFoundOr(err)
	}
	e.TeamID = ptrFromNull(team)
	return e, nil
}

func (r Repo) InsertEmployee(ctx context.Context, tx *sql.Tx, e domain.Employee) error {
	_, err := r.on(tx).ExecContext(ctx, r.q(`INSERT INTO employees(`+employeeColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`),
		e.ID, e.Name, e.Role, e.DepartmentID, nullablePtr(e.TeamID), e.Email, e.Rank, e.IsPublicContact, e.CreatedAt)
	return err
}

func (r Repo) GetEmployee(ctx context.Context, id string) (domain.Employee, error) {
	return r.GetEmployeeTx(ctx, nil, id)
}

func (r Repo) GetEmployeeTx(ctx context.Context, tx *sql.Tx, id string) (domain.Employee, error) {
	return scanEmployee(r.on(tx).QueryRowContext(ctx, r.q(`SELECT `+employeeColumns+` FROM employees WHERE id=?`), id))
}

// ListEmployees returns employees ordered by rank then name; departmentID filters when set.
func (r Repo) ListEmployees(ctx context.Context, departmentID string, publicOnly bool) ([]domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE 1=1`
	var args []any
	if departmentID != "" {
		query += ` AND department_id=?`
		args = append(args, departmentID)
	}
	if publicOnly {
		query += ` AND is_public_contact=?`
		args = append(args, true)
	}
	query += ` ORDER BY rank DESC, name ASC`
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) InsertTeam(ctx context.Context, tx *sql.Tx, t domain.Team) error {
	members := t.Members
	if members == nil {
		members = []string{}
	}
	payload, err := json.Marshal(members)
	if err != nil {
		return fmt.Errorf("marshal team members: %w", err)
	}
	_, err = r.on(tx).ExecContext(ctx, r.q(`INSERT INTO teams(id,name,department_id,lead,project,members_json,created_at) VALUES (?,?,?,?,?,?,?)`),
		t.ID, t.Name, t.DepartmentID, t.Lead, nullable(t.Project), string(payload), t.CreatedAt)
	return err
}

func (r Repo) GetTeamTx(ctx context.Context, tx *sql.Tx, id string) (domain.Team, error) {
	rows, err := r.on(tx).QueryContext(ctx, r.q(`SELECT id,name,department_id,lead,COALESCE(project,''),members_json,created_at FROM teams WHERE id=?`), id)
	if err != nil {
		return domain.Team{}, err
	}
	teams, err := scanTeams(rows)
	if err != nil {
		return domain.Team{}, err
	}
	if len(teams) == 0 {
		return domain.Team{}, ErrNotFound
	}
	return teams[0], nil
}

func (r Repo) ListTeams(ctx context.Context, departmentID string) ([]domain.Team, error) {
	query := `SELECT id,name,department_id,lead,COALESCE(project,''),members_json,created_at FROM teams`
	var args []any
	if departmentID != "" {
		query += ` WHERE department_id=?`
		args = append(args, departmentID)
	}
	query += ` ORDER BY name ASC`
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	return scanTeams(rows)
}

func scanTeams(rows *sql.Rows) ([]domain.Team, error) {
	defer rows.Close()
	res := []domain.Team{}
	for rows.Next() {
		var t domain.Team
		var members string
		if err := rows.Scan(&t.ID, &t.Name, &t.DepartmentID, &t.Lead, &t.Project, &members, &t.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(members), &t.Members); err != nil {
			return nil, fmt.Errorf("team %s members: %w", t.ID, err)
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) InsertScheme(ctx context.Context, tx *sql.Tx, s domain.Scheme) error {
	_, err := r.on(tx).ExecContext(ctx, r.q(`INSERT INTO schemes(id,title,description,department_id,active,created_at) VALUES (?,?,?,?,?,?)`),
		s.ID, s.Title, s.Description, s.DepartmentID, s.Active, s.CreatedAt)
	return err
}

// ListSchemes returns schemes newest first; activeOnly hides retired ones.
func (r Repo) ListSchemes(ctx context.Context, departmentID string, activeOnly bool) ([]domain.Scheme, error) {
	query := `SELECT id,title,description,department_id,active,created_at FROM schemes WHERE 1=1`
	var args []any
	if departmentID != "" {
		query += ` AND department_id=?`
		args = append(args, departmentID)
	}
	if activeOnly {
		query += ` AND active=?`
		args = append(args, true)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Scheme{}
	for rows.Next() {
		var s domain.Scheme
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.DepartmentID, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

const messageColumns = `id,sender_id,sender_role,recipient_id,department_id,content,is_read,created_at`

func (r Repo) InsertMessage(ctx context.Context, tx *sql.Tx, m domain.Message) error {
	_, err := r.on(tx).ExecContext(ctx, r.q(`INSERT INTO messages(`+messageColumns+`) VALUES (?,?,?,?,?,?,?,?)`),
		m.ID, m.SenderID, m.SenderRole, m.RecipientID, nullablePtr(m.DepartmentID), m.Content, m.IsRead, m.CreatedAt)
	return err
}

// Inbox lists messages for a recipient, newest first.
func (r Repo) Inbox(ctx context.Context, recipientID string) ([]domain.Message, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT `+messageColumns+` FROM messages WHERE recipient_id=? ORDER BY created_at DESC, id DESC`), recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		var dept sql.NullString
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderRole, &m.RecipientID, &dept, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.DepartmentID = ptrFromNull(dept)
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) MarkMessageRead(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.on(tx).ExecContext(ctx, r.q(`UPDATE messages SET is_read=? WHERE id=?`), true, id)
	if err != nil {
		return err
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
