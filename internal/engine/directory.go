package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/mail"
	"strings"

	"civicdesk/internal/domain"
	"civicdesk/internal/events"
	"civicdesk/internal/repo"
)

func (e Engine) CreateDepartment(ctx context.Context, d domain.Department, actorID string) (domain.Department, error) {
	switch {
	case blank(d.Name):
		return d, domain.Required("name")
	case blank(d.Head):
		return d, domain.Required("head")
	case d.Budget < 0:
		return d, domain.ValidationError{Field: "budget", Message: "must be >= 0"}
	case d.Expenditure < 0:
		return d, domain.ValidationError{Field: "expenditure", Message: "must be >= 0"}
	}
	if d.ID == "" {
		d.ID = newID()
	}
	d.Username = strings.TrimSpace(d.Username)
	d.CreatedAt = e.stamp()
	tx, err := e.begin(ctx)
	if err != nil {
		return d, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertDepartment(ctx, tx, d); err != nil {
		return d, storeErr("insert department", "department", d.ID, err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.DepartmentCreated, d.ID, "department", d.ID, actorOr(actorID, SystemActor), events.EventPayload{"name": d.Name}); err != nil {
		return d, storeErr("append event", "event", d.ID, err)
	}
	return d, e.commit(tx)
}

func (e Engine) GetDepartment(ctx context.Context, id string) (domain.Department, error) {
	d, err := e.Repo.GetDepartment(ctx, id)
	return d, storeErr("get department", "department", id, err)
}

func (e Engine) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	res, err := e.Repo.ListDepartments(ctx)
	if err != nil {
		return nil, storeErr("list departments", "department", "", err)
	}
	return res, nil
}

func validEmail(field, v string) error {
	if blank(v) {
		return domain.Required(field)
	}
	if _, err := mail.ParseAddress(v); err != nil {
		return domain.ValidationError{Field: field, Message: "is not a valid address"}
	}
	return nil
}

func (e Engine) CreateUser(ctx context.Context, u domain.User, actorID string) (domain.User, error) {
	if blank(u.Name) {
		return u, domain.Required("name")
	}
	if err := validEmail("email", u.Email); err != nil {
		return u, err
	}
	if u.ID == "" {
		u.ID = newID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = e.stamp()
	tx, err := e.begin(ctx)
	if err != nil {
		return u, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return u, storeErr("insert user", "user", u.ID, err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.UserCreated, "", "user", u.ID, actorOr(actorID, u.ID), nil); err != nil {
		return u, storeErr("append event", "event", u.ID, err)
	}
	return u, e.commit(tx)
}

func (e Engine) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := e.Repo.GetUser(ctx, id)
	return u, storeErr("get user", "user", id, err)
}

func (e Engine) CreateEmployee(ctx context.Context, emp domain.Employee, actorID string) (domain.Employee, error) {
	switch {
	case blank(emp.Name):
		return emp, domain.Required("name")
	case blank(emp.Role):
		return emp, domain.Required("role")
	case blank(emp.DepartmentID):
		return emp, domain.Required("department_id")
	case emp.Rank < 0 || emp.Rank > 10:
		return emp, domain.ValidationError{Field: "rank", Message: "must be between 0 and 10"}
	}
	if err := validEmail("email", emp.Email); err != nil {
		return emp, err
	}
	if emp.ID == "" {
		emp.ID = newID()
	}
	emp.Email = strings.ToLower(strings.TrimSpace(emp.Email))
	if emp.TeamID != nil && blank(*emp.TeamID) {
		emp.TeamID = nil
	}
	emp.CreatedAt = e.stamp()
	tx, err := e.begin(ctx)
	if err != nil {
		return emp, err
	}
	defer tx.Rollback()
	if _, err := e.requireDepartment(ctx, tx, emp.DepartmentID); err != nil {
		return emp, err
	}
	if emp.TeamID != nil {
		if _, err := e.Repo.GetTeamTx(ctx, tx, *emp.TeamID); err != nil {
			return emp, storeErr("get team", "team", *emp.TeamID, err)
		}
	}
	if err := e.Repo.InsertEmployee(ctx, tx, emp); err != nil {
		return emp, storeErr("insert employee", "employee", emp.ID, err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.EmployeeCreated, emp.DepartmentID, "employee", emp.ID, actorOr(actorID, SystemActor), events.EventPayload{"role": emp.Role}); err != nil {
		return emp, storeErr("append event", "event", emp.ID, err)
	}
	return emp, e.commit(tx)
}

func (e Engine) GetEmployee(ctx context.Context, id string) (domain.Employee, error) {
	emp, err := e.Repo.GetEmployee(ctx, id)
	return emp, storeErr("get employee", "employee", id, err)
}

func (e Engine) ListEmployees(ctx context.Context, departmentID string) ([]domain.Employee, error) {
	res, err := e.Repo.ListEmployees(ctx, departmentID, false)
	if err != nil {
		return nil, storeErr("list employees", "employee", "", err)
	}
	return res, nil
}

// PublicContacts lists the employees a department exposes to citizens.
func (e Engine) PublicContacts(ctx context.Context, departmentID string) ([]domain.Employee, error) {
	if blank(departmentID) {
		return nil, domain.Required("department_id")
	}
	res, err := e.Repo.ListEmployees(ctx, departmentID, true)
	if err != nil {
		return nil, storeErr("list employees", "employee", "", err)
	}
	return res, nil
}

func (e Engine) CreateTeam(ctx context.Context, t domain.Team, actorID string) (domain.Team, error) {
	switch {
	case blank(t.Name):
		return t, domain.Required("name")
	case blank(t.DepartmentID):
		return t, domain.Required("department_id")
	case blank(t.Lead):
		return t, domain.Required("lead")
	}
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Members == nil {
		t.Members = []string{}
	}
	t.CreatedAt = e.stamp()
	tx, err := e.begin(ctx)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if _, err := e.requireDepartment(ctx, tx, t.DepartmentID); err != nil {
		return t, err
	}
	if err := e.Repo.InsertTeam(ctx, tx, t); err != nil {
		return t, storeErr("insert team", "team", t.ID, err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.TeamCreated, t.DepartmentID, "team", t.ID, actorOr(actorID, SystemActor), events.EventPayload{"members": len(t.Members)}); err != nil {
		return t, storeErr("append event", "event", t.ID, err)
	}
	return t, e.commit(tx)
}

func (e Engine) ListTeams(ctx context.Context, departmentID string) ([]domain.Team, error) {
	res, err := e.Repo.ListTeams(ctx, departmentID)
	if err != nil {
		return nil, storeErr("list teams", "team", "", err)
	}
	return res, nil
}

// CreateScheme publishes a welfare scheme. New schemes are active unless told otherwise.
func (e Engine) CreateScheme(ctx context.Context, s domain.Scheme, inactive bool, actorID string) (domain.Scheme, error) {
	switch {
	case blank(s.Title):
		return s, domain.Required("title")
	case blank(s.Description):
		return s, domain.Required("description")
	case blank(s.DepartmentID):
		return s, domain.Required("department_id")
	}
	if s.ID == "" {
		s.ID = newID()
	}
	s.Active = !inactive
	s.CreatedAt = e.stamp()
	tx, err := e.begin(ctx)
	if err != nil {
		return s, err
	}
	defer tx.Rollback()
	if _, err := e.requireDepartment(ctx, tx, s.DepartmentID); err != nil {
		return s, err
	}
	if err := e.Repo.InsertScheme(ctx, tx, s); err != nil {
		return s, storeErr("insert scheme", "scheme", s.ID, err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.SchemeCreated, s.DepartmentID, "scheme", s.ID, actorOr(actorID, SystemActor), events.EventPayload{"active": s.Active}); err != nil {
		return s, storeErr("append event", "event", s.ID, err)
	}
	return s, e.commit(tx)
}

func (e Engine) ListSchemes(ctx context.Context, departmentID string, includeInactive bool) ([]domain.Scheme, error) {
	res, err := e.Repo.ListSchemes(ctx, departmentID, !includeInactive)
	if err != nil {
		return nil, storeErr("list schemes", "scheme", "", err)
	}
	return res, nil
}

func validSenderRole(role string) bool {
	switch role {
	case "citizen", "employee", "admin":
		return true
	}
	return false
}

func (e Engine) SendMessage(ctx context.Context, m domain.Message) (domain.Message, error) {
	switch {
	case blank(m.SenderID):
		return m, domain.Required("sender_id")
	case !validSenderRole(m.SenderRole):
		return m, domain.ValidationError{Field: "sender_role", Message: "must be one of citizen, employee, admin"}
	case blank(m.RecipientID):
		return m, domain.Required("recipient_id")
	case blank(m.Content):
		return m, domain.Required("content")
	}
	if m.DepartmentID != nil && blank(*m.DepartmentID) {
		m.DepartmentID = nil
	}
	m.ID = newID()
	m.IsRead = false
	m.CreatedAt = e.stamp()
	tx, err := e.begin(ctx)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()
	dept := ""
	if m.DepartmentID != nil {
		dept = *m.DepartmentID
		if _, err := e.requireDepartment(ctx, tx, dept); err != nil {
			return m, err
		}
	}
	if err := e.Repo.InsertMessage(ctx, tx, m); err != nil {
		return m, storeErr("insert message", "message", m.ID, err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.MessageSent, dept, "message", m.ID, m.SenderID, events.EventPayload{"recipient_id": m.RecipientID}); err != nil {
		return m, storeErr("append event", "event", m.ID, err)
	}
	return m, e.commit(tx)
}

func (e Engine) Inbox(ctx context.Context, recipientID string) ([]domain.Message, error) {
	if blank(recipientID) {
		return nil, domain.Required("recipient_id")
	}
	res, err := e.Repo.Inbox(ctx, recipientID)
	if err != nil {
		return nil, storeErr("inbox", "message", "", err)
	}
	return res, nil
}

func (e Engine) MarkMessageRead(ctx context.Context, id string) error {
	return storeErr("mark message read", "message", id, e.Repo.MarkMessageRead(ctx, nil, id))
}

// CreateAPIKey stores a new key for actorID and returns the plaintext once.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string, roles []string) (domain.APIKey, string, error) {
	if blank(actorID) {
		return domain.APIKey{}, "", domain.Required("actor_id")
	}
	if len(roles) == 0 {
		return domain.APIKey{}, "", domain.Required("roles")
	}
	for _, r := range roles {
		if _, ok := e.Config.Auth.RBAC.Roles[r]; !ok {
			return domain.APIKey{}, "", domain.ValidationError{Field: "roles", Message: "unknown role " + r}
		}
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", err
	}
	plain := "cdk_" + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        newID(),
		ActorID:   actorID,
		Roles:     roles,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.stamp(),
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", storeErr("insert api key", "api key", key.ID, err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.APIKeyCreated, "", "api_key", key.ID, actorID, events.EventPayload{"roles": roles}); err != nil {
		return domain.APIKey{}, "", storeErr("append event", "event", key.ID, err)
	}
	if err := e.commit(tx); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plain, nil
}
