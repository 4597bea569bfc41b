package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"civicdesk/internal/domain"
	"civicdesk/internal/events"
)

// GrievanceCreateOptions are parameters for filing a grievance.
type GrievanceCreateOptions struct {
	Title        string
	Description  string
	DepartmentID string
	RaisedBy     string
	AddressedTo  *string
	IsAnonymous  bool
	ActorID      string
}

// GrievanceStatusOptions are parameters for a status change.
type GrievanceStatusOptions struct {
	ID              string
	Status          domain.GrievanceStatus
	ResolutionNotes *string
	ExpectedVersion *int64
	ActorID         string
}

const errCannotReopen = "grievance cannot be reopened"

// AnonymousActor stands in for the raiser of an anonymous grievance in the event log.
const AnonymousActor = "anonymous"

// grievanceActor is the event actor for a write on g. The raiser of an anonymous
// grievance is never recorded, whether passed explicitly or used as the fallback.
func grievanceActor(g domain.Grievance, actorID string) string {
	actor := actorOr(actorID, g.RaisedBy)
	if g.IsAnonymous && actor == g.RaisedBy {
		return AnonymousActor
	}
	return actor
}

func (e Engine) CreateGrievance(ctx context.Context, opts GrievanceCreateOptions) (domain.Grievance, error) {
	switch {
	case blank(opts.Title):
		return domain.Grievance{}, domain.Required("title")
	case blank(opts.Description):
		return domain.Grievance{}, domain.Required("description")
	case blank(opts.DepartmentID):
		return domain.Grievance{}, domain.Required("department_id")
	case blank(opts.RaisedBy):
		return domain.Grievance{}, domain.Required("raised_by")
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Grievance{}, err
	}
	defer tx.Rollback()

	if _, err := e.requireDepartment(ctx, tx, opts.DepartmentID); err != nil {
		return domain.Grievance{}, err
	}
	now := e.stamp()
	g := domain.Grievance{
		ID:           newID(),
		Title:        opts.Title,
		Description:  opts.Description,
		DepartmentID: opts.DepartmentID,
		RaisedBy:     opts.RaisedBy,
		Status:       domain.GrievancePending,
		IsAnonymous:  opts.IsAnonymous,
		CanReopen:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
	if opts.AddressedTo != nil && !blank(*opts.AddressedTo) {
		to := *opts.AddressedTo
		g.AddressedTo = &to
	}
	if err := e.Repo.InsertGrievance(ctx, tx, g); err != nil {
		return domain.Grievance{}, storeErr("insert grievance", "grievance", g.ID, err)
	}
	payload := events.EventPayload{"status": g.Status, "anonymous": g.IsAnonymous}
	if g.AddressedTo != nil {
		payload["addressed_to"] = *g.AddressedTo
	}
	if err := e.eventWriter().Append(ctx, tx, events.GrievanceCreated, g.DepartmentID, "grievance", g.ID, grievanceActor(g, opts.ActorID), payload); err != nil {
		return domain.Grievance{}, storeErr("append event", "event", g.ID, err)
	}
	if err := e.commit(tx); err != nil {
		return domain.Grievance{}, err
	}
	e.Metrics.GrievanceTransition(string(g.Status))
	return g, nil
}

func (e Engine) GetGrievance(ctx context.Context, id string) (domain.Grievance, error) {
	g, err := e.Repo.GetGrievance(ctx, id)
	if err != nil {
		return g, storeErr("get grievance", "grievance", id, err)
	}
	return g, nil
}

func ensureGrievanceStatus(status domain.GrievanceStatus) error {
	switch status {
	case domain.GrievanceResolved, domain.GrievanceRejected, domain.GrievancePending:
		return nil
	case domain.GrievanceInProgress:
		return domain.ValidationError{Field: "status", Message: "In Progress cannot be set directly"}
	}
	return domain.ValidationError{Field: "status", Message: "must be one of Resolved, Rejected, Pending"}
}

// SetGrievanceStatus moves a grievance to Resolved, Rejected or back to Pending.
// Closing stamps closed_at; returning to Pending clears it. Notes overwrite only when given.
func (e Engine) SetGrievanceStatus(ctx context.Context, opts GrievanceStatusOptions) (domain.Grievance, error) {
	if err := ensureGrievanceStatus(opts.Status); err != nil {
		return domain.Grievance{}, err
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Grievance{}, err
	}
	defer tx.Rollback()

	g, err := e.Repo.GetGrievanceTx(ctx, tx, opts.ID)
	if err != nil {
		return g, storeErr("get grievance", "grievance", opts.ID, err)
	}
	if err := checkVersion("grievance", opts.ExpectedVersion, g.Version); err != nil {
		e.Metrics.Conflict("grievance")
		return g, err
	}
	if opts.Status.Closed() && e.Config.Grievances.RequireResolutionNotes {
		notes := g.ResolutionNotes
		if opts.ResolutionNotes != nil {
			notes = opts.ResolutionNotes
		}
		if notes == nil || blank(*notes) {
			return g, domain.ValidationError{Field: "resolution_notes", Message: "required when closing a grievance"}
		}
	}
	from := g.Status
	now := e.stamp()
	g.Status = opts.Status
	if opts.ResolutionNotes != nil {
		notes := *opts.ResolutionNotes
		g.ResolutionNotes = &notes
	}
	if opts.Status.Closed() {
		g.ClosedAt = &now
	} else {
		g.ClosedAt = nil
	}
	g.UpdatedAt = now
	ok, err := e.Repo.UpdateGrievanceState(ctx, tx, g, g.Version)
	if err != nil {
		return g, storeErr("update grievance", "grievance", g.ID, err)
	}
	if !ok {
		e.Metrics.Conflict("grievance")
		return g, domain.ConflictError{Reason: "grievance was modified concurrently"}
	}
	g.Version++
	if err := e.eventWriter().Append(ctx, tx, events.GrievanceStatusChanged, g.DepartmentID, "grievance", g.ID, grievanceActor(g, actorOr(opts.ActorID, SystemActor)), events.EventPayload{
		"from":      from,
		"to":        g.Status,
		"has_notes": g.ResolutionNotes != nil,
	}); err != nil {
		return g, storeErr("append event", "event", g.ID, err)
	}
	if err := e.commit(tx); err != nil {
		return g, err
	}
	e.Metrics.GrievanceTransition(string(g.Status))
	e.log().WithFields(logrus.Fields{"grievance": g.ID, "from": from, "to": g.Status}).Debug("grievance status changed")
	return g, nil
}

// ReopenGrievance returns a closed grievance to Pending. It refuses with ConflictError
// when reopening is disabled, the grievance is not closed, or max_reopens is reached.
func (e Engine) ReopenGrievance(ctx context.Context, id string, expectedVersion *int64, actorID string) (domain.Grievance, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Grievance{}, err
	}
	defer tx.Rollback()

	g, err := e.Repo.GetGrievanceTx(ctx, tx, id)
	if err != nil {
		return g, storeErr("get grievance", "grievance", id, err)
	}
	if err := checkVersion("grievance", expectedVersion, g.Version); err != nil {
		e.Metrics.Conflict("grievance")
		return g, err
	}
	maxReopens := e.Config.Grievances.MaxReopens
	if !g.CanReopen || !g.Status.Closed() || (maxReopens > 0 && g.ReopenedCount >= maxReopens) {
		e.Metrics.Conflict("grievance")
		return g, domain.ConflictError{Reason: errCannotReopen}
	}
	from := g.Status
	g.Status = domain.GrievancePending
	g.ReopenedCount++
	g.ClosedAt = nil
	g.UpdatedAt = e.stamp()
	ok, err := e.Repo.UpdateGrievanceState(ctx, tx, g, g.Version)
	if err != nil {
		return g, storeErr("update grievance", "grievance", g.ID, err)
	}
	if !ok {
		e.Metrics.Conflict("grievance")
		return g, domain.ConflictError{Reason: "grievance was modified concurrently"}
	}
	g.Version++
	if err := e.eventWriter().Append(ctx, tx, events.GrievanceReopened, g.DepartmentID, "grievance", g.ID, grievanceActor(g, actorID), events.EventPayload{
		"from":           from,
		"reopened_count": g.ReopenedCount,
	}); err != nil {
		return g, storeErr("append event", "event", g.ID, err)
	}
	if err := e.commit(tx); err != nil {
		return g, err
	}
	e.Metrics.GrievanceTransition(string(g.Status))
	return g, nil
}

// EmployeeQueue lists grievances routed to an employee: those addressed to them and the
// unaddressed ones of their department. Unknown employees only see the addressed branch.
func (e Engine) EmployeeQueue(ctx context.Context, employeeID string) ([]domain.Grievance, error) {
	if blank(employeeID) {
		return nil, domain.Required("employee_id")
	}
	departmentID := ""
	emp, err := e.Repo.GetEmployee(ctx, employeeID)
	switch {
	case err == nil:
		departmentID = emp.DepartmentID
	case domain.IsNotFound(err):
	default:
		return nil, storeErr("get employee", "employee", employeeID, err)
	}
	res, err := e.Repo.EmployeeQueue(ctx, employeeID, departmentID)
	if err != nil {
		return nil, storeErr("employee queue", "grievance", "", err)
	}
	return res, nil
}

func (e Engine) ListGrievancesByCitizen(ctx context.Context, userID string) ([]domain.Grievance, error) {
	if blank(userID) {
		return nil, domain.Required("user_id")
	}
	res, err := e.Repo.ListGrievancesByCitizen(ctx, userID)
	if err != nil {
		return nil, storeErr("list grievances", "grievance", "", err)
	}
	return res, nil
}

func (e Engine) ListGrievancesByDepartment(ctx context.Context, departmentID string) ([]domain.Grievance, error) {
	if blank(departmentID) {
		return nil, domain.Required("department_id")
	}
	res, err := e.Repo.ListGrievancesByDepartment(ctx, departmentID)
	if err != nil {
		return nil, storeErr("list grievances", "grievance", "", err)
	}
	return res, nil
}
