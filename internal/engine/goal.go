package engine

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"civicdesk/internal/domain"
	"civicdesk/internal/events"
	"civicdesk/internal/repo"
)

// GoalCreateOptions are parameters for setting a goal. RelatedID names a department,
// team or employee depending on Level.
type GoalCreateOptions struct {
	Title       string
	Description string
	Level       domain.GoalLevel
	RelatedID   string
	TargetValue float64
	Unit        string
	Deadline    *string
	ActorID     string
}

func (e Engine) CreateGoal(ctx context.Context, opts GoalCreateOptions) (domain.Goal, error) {
	switch {
	case blank(opts.Title):
		return domain.Goal{}, domain.Required("title")
	case opts.Level == "":
		return domain.Goal{}, domain.Required("level")
	case !opts.Level.Valid():
		return domain.Goal{}, domain.ValidationError{Field: "level", Message: "must be one of Organization, Team, Individual"}
	case blank(opts.RelatedID):
		return domain.Goal{}, domain.Required("related_id")
	case blank(opts.Unit):
		return domain.Goal{}, domain.Required("unit")
	case opts.TargetValue < 0 || math.IsNaN(opts.TargetValue) || math.IsInf(opts.TargetValue, 0):
		return domain.Goal{}, domain.ValidationError{Field: "target_value", Message: "must be >= 0"}
	}
	var deadline *string
	if opts.Deadline != nil && !blank(*opts.Deadline) {
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(*opts.Deadline))
		if err != nil {
			return domain.Goal{}, domain.ValidationError{Field: "deadline", Message: "must be an RFC 3339 timestamp"}
		}
		v := domain.FormatTime(ts)
		deadline = &v
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Goal{}, err
	}
	defer tx.Rollback()
	deptID, err := e.goalDepartment(ctx, tx, opts.Level, strings.TrimSpace(opts.RelatedID))
	if err != nil {
		return domain.Goal{}, err
	}
	now := e.stamp()
	g := domain.Goal{
		ID:           newID(),
		Title:        strings.TrimSpace(opts.Title),
		Description:  opts.Description,
		Level:        opts.Level,
		RelatedID:    strings.TrimSpace(opts.RelatedID),
		DepartmentID: deptID,
		TargetValue:  opts.TargetValue,
		Unit:         strings.TrimSpace(opts.Unit),
		Deadline:     deadline,
		Status:       domain.GoalPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
	if err := e.Repo.InsertGoal(ctx, tx, g); err != nil {
		return g, storeErr("insert goal", "goal", g.ID, err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.GoalCreated, g.DepartmentID, "goal", g.ID, actorOr(opts.ActorID, SystemActor), events.EventPayload{
		"level":      g.Level,
		"related_id": g.RelatedID,
		"target":     g.TargetValue,
		"unit":       g.Unit,
	}); err != nil {
		return g, storeErr("append event", "event", g.ID, err)
	}
	return g, e.commit(tx)
}

// goalDepartment resolves the department that owns the goal's subject.
func (e Engine) goalDepartment(ctx context.Context, tx *sql.Tx, level domain.GoalLevel, relatedID string) (string, error) {
	switch level {
	case domain.GoalTeam:
		t, err := e.Repo.GetTeamTx(ctx, tx, relatedID)
		if err != nil {
			return "", storeErr("get team", "team", relatedID, err)
		}
		return t.DepartmentID, nil
	case domain.GoalIndividual:
		emp, err := e.Repo.GetEmployeeTx(ctx, tx, relatedID)
		if err != nil {
			return "", storeErr("get employee", "employee", relatedID, err)
		}
		return emp.DepartmentID, nil
	}
	d, err := e.requireDepartment(ctx, tx, relatedID)
	return d.ID, err
}

func (e Engine) GetGoal(ctx context.Context, id string) (domain.Goal, error) {
	g, err := e.Repo.GetGoal(ctx, id)
	return g, storeErr("get goal", "goal", id, err)
}

// ListGoals returns goals newest first, narrowed by f.
func (e Engine) ListGoals(ctx context.Context, f repo.GoalFilter) ([]domain.Goal, error) {
	if f.Level != "" && !f.Level.Valid() {
		return nil, domain.ValidationError{Field: "level", Message: "must be one of Organization, Team, Individual"}
	}
	res, err := e.Repo.ListGoals(ctx, f)
	if err != nil {
		return nil, storeErr("list goals", "goal", "", err)
	}
	return res, nil
}

// nextGoalStatus applies a progress report. Reaching a positive target completes the
// goal; any progress moves a pending goal along. Other statuses are kept.
func nextGoalStatus(g domain.Goal, progress float64) domain.GoalStatus {
	switch {
	case g.TargetValue > 0 && progress >= g.TargetValue:
		return domain.GoalCompleted
	case progress > 0 && g.Status == domain.GoalPending:
		return domain.GoalInProgress
	}
	return g.Status
}

// UpdateGoalProgress replaces the goal's current value with progress.
func (e Engine) UpdateGoalProgress(ctx context.Context, id string, progress float64, expectedVersion *int64, actorID string) (domain.Goal, error) {
	if progress < 0 || math.IsNaN(progress) || math.IsInf(progress, 0) {
		return domain.Goal{}, domain.ValidationError{Field: "progress", Message: "must be >= 0"}
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Goal{}, err
	}
	defer tx.Rollback()
	g, err := e.Repo.GetGoalTx(ctx, tx, id)
	if err != nil {
		return g, storeErr("get goal", "goal", id, err)
	}
	if err := checkVersion("goal", expectedVersion, g.Version); err != nil {
		e.Metrics.Conflict("goal")
		return g, err
	}
	from := g.Status
	previous := g.CurrentValue
	g.CurrentValue = progress
	g.Status = nextGoalStatus(g, progress)
	g.UpdatedAt = e.stamp()
	ok, err := e.Repo.UpdateGoalProgress(ctx, tx, g, g.Version)
	if err != nil {
		return g, storeErr("update goal", "goal", g.ID, err)
	}
	if !ok {
		e.Metrics.Conflict("goal")
		return g, domain.ConflictError{Reason: "goal was modified concurrently"}
	}
	g.Version++
	if err := e.eventWriter().Append(ctx, tx, events.GoalProgressUpdated, g.DepartmentID, "goal", g.ID, actorOr(actorID, SystemActor), events.EventPayload{
		"from_value": previous,
		"to_value":   g.CurrentValue,
		"from":       from,
		"to":         g.Status,
	}); err != nil {
		return g, storeErr("append event", "event", g.ID, err)
	}
	if err := e.commit(tx); err != nil {
		return g, err
	}
	if g.Status != from {
		e.log().WithFields(logrus.Fields{"goal": g.ID, "from": from, "to": g.Status}).Debug("goal status changed")
	}
	return g, nil
}
