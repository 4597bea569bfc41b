package engine_test

import (
	"errors"
	"testing"

	"civicdesk/internal/domain"
	"civicdesk/internal/engine"
	"civicdesk/internal/repo"
)

func TestCreateGoalResolvesDepartment(t *testing.T) {
	env := newTestEnv(t)
	team, err := env.Engine.CreateTeam(env.Ctx, domain.Team{Name: "Leak response", DepartmentID: env.Dept.ID, Lead: "Asha"}, "admin")
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	emp, err := env.Engine.CreateEmployee(env.Ctx, domain.Employee{Name: "Ravi", Role: "Plumber", DepartmentID: env.Dept.ID, Email: "ravi@example.org"}, "")
	if err != nil {
		t.Fatalf("create employee: %v", err)
	}
	org, err := env.Engine.CreateGoal(env.Ctx, engine.GoalCreateOptions{
		Title: "Close backlog", Level: domain.GoalOrganization, RelatedID: env.Dept.ID, TargetValue: 100, Unit: "Files",
		Deadline: strPtr("2024-03-31T00:00:00+05:30"),
	})
	if err != nil {
		t.Fatalf("create org goal: %v", err)
	}
	if org.Status != domain.GoalPending || org.CurrentValue != 0 || org.Version != 1 || org.DepartmentID != env.Dept.ID {
		t.Fatalf("unexpected defaults: %+v", org)
	}
	if org.Deadline == nil || *org.Deadline != "2024-03-30T18:30:00.000000Z" {
		t.Fatalf("deadline not normalized: %v", org.Deadline)
	}
	teamGoal, err := env.Engine.CreateGoal(env.Ctx, engine.GoalCreateOptions{Title: "Fix leaks", Level: domain.GoalTeam, RelatedID: team.ID, TargetValue: 20, Unit: "Leaks"})
	if err != nil || teamGoal.DepartmentID != env.Dept.ID {
		t.Fatalf("team goal: %v %+v", err, teamGoal)
	}
	own, err := env.Engine.CreateGoal(env.Ctx, engine.GoalCreateOptions{Title: "Training", Level: domain.GoalIndividual, RelatedID: emp.ID, TargetValue: 8, Unit: "Hours"})
	if err != nil || own.DepartmentID != env.Dept.ID {
		t.Fatalf("individual goal: %v %+v", err, own)
	}

	all, err := env.Engine.ListGoals(env.Ctx, repo.GoalFilter{})
	if err != nil || len(all) != 3 || all[0].ID != own.ID || all[2].ID != org.ID {
		t.Fatalf("expected newest first: %v %+v", err, all)
	}
	teams, _ := env.Engine.ListGoals(env.Ctx, repo.GoalFilter{Level: domain.GoalTeam})
	if len(teams) != 1 || teams[0].ID != teamGoal.ID {
		t.Fatalf("level filter: %+v", teams)
	}
	mine, _ := env.Engine.ListGoals(env.Ctx, repo.GoalFilter{RelatedID: emp.ID})
	if len(mine) != 1 || mine[0].ID != own.ID {
		t.Fatalf("related filter: %+v", mine)
	}
	none, err := env.Engine.ListGoals(env.Ctx, repo.GoalFilter{DepartmentID: "elsewhere"})
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil list: %v %+v", err, none)
	}
	if _, err := env.Engine.ListGoals(env.Ctx, repo.GoalFilter{Level: "Galaxy"}); !domain.IsValidation(err) {
		t.Fatalf("expected level validation, got %v", err)
	}

	evts, err := env.Engine.ListEvents(env.Ctx, repo.EventFilters{EntityKind: "goal"})
	if err != nil || len(evts) != 3 || evts[0].Type != "goal.created" || evts[0].ActorID != engine.SystemActor {
		t.Fatalf("unexpected goal events: %v %+v", err, evts)
	}
}

func TestCreateGoalValidation(t *testing.T) {
	env := newTestEnv(t)
	base := engine.GoalCreateOptions{Title: "t", Level: domain.GoalOrganization, RelatedID: env.Dept.ID, TargetValue: 1, Unit: "%"}
	cases := []struct {
		field  string
		mutate func(o *engine.GoalCreateOptions)
	}{
		{"title", func(o *engine.GoalCreateOptions) { o.Title = " " }},
		{"level", func(o *engine.GoalCreateOptions) { o.Level = "" }},
		{"level", func(o *engine.GoalCreateOptions) { o.Level = "Galaxy" }},
		{"related_id", func(o *engine.GoalCreateOptions) { o.RelatedID = "" }},
		{"unit", func(o *engine.GoalCreateOptions) { o.Unit = "" }},
		{"target_value", func(o *engine.GoalCreateOptions) { o.TargetValue = -1 }},
		{"deadline", func(o *engine.GoalCreateOptions) { o.Deadline = strPtr("next week") }},
	}
	for _, c := range cases {
		opts := base
		c.mutate(&opts)
		_, err := env.Engine.CreateGoal(env.Ctx, opts)
		var ve domain.ValidationError
		if !errors.As(err, &ve) || ve.Field != c.field {
			t.Fatalf("%s: expected validation error, got %v", c.field, err)
		}
	}
	for _, level := range []domain.GoalLevel{domain.GoalOrganization, domain.GoalTeam, domain.GoalIndividual} {
		opts := base
		opts.Level = level
		opts.RelatedID = "ghost"
		if _, err := env.Engine.CreateGoal(env.Ctx, opts); !domain.IsNotFound(err) {
			t.Fatalf("%s: expected not found for unknown subject, got %v", level, err)
		}
	}
	if all, _ := env.Engine.ListGoals(env.Ctx, repo.GoalFilter{}); len(all) != 0 {
		t.Fatalf("rejected goals were stored: %+v", all)
	}
}

func TestUpdateGoalProgress(t *testing.T) {
	env := newTestEnv(t)
	g, err := env.Engine.CreateGoal(env.Ctx, engine.GoalCreateOptions{Title: "Close backlog", Level: domain.GoalOrganization, RelatedID: env.Dept.ID, TargetValue: 10, Unit: "Files"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	g, err = env.Engine.UpdateGoalProgress(env.Ctx, g.ID, 0, nil, "clerk-7")
	if err != nil || g.Status != domain.GoalPending || g.Version != 2 {
		t.Fatalf("zero progress: %v %+v", err, g)
	}
	g, err = env.Engine.UpdateGoalProgress(env.Ctx, g.ID, 4, nil, "clerk-7")
	if err != nil || g.Status != domain.GoalInProgress || g.CurrentValue != 4 {
		t.Fatalf("partial progress: %v %+v", err, g)
	}
	stale := int64(1)
	if _, err := env.Engine.UpdateGoalProgress(env.Ctx, g.ID, 9, &stale, "clerk-7"); !domain.IsConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if _, err := env.Engine.UpdateGoalProgress(env.Ctx, g.ID, -1, nil, "clerk-7"); !domain.IsValidation(err) {
		t.Fatalf("expected progress validation, got %v", err)
	}
	g, err = env.Engine.UpdateGoalProgress(env.Ctx, g.ID, 12, &g.Version, "clerk-7")
	if err != nil || g.Status != domain.GoalCompleted || g.CurrentValue != 12 {
		t.Fatalf("target reached: %v %+v", err, g)
	}
	g, err = env.Engine.UpdateGoalProgress(env.Ctx, g.ID, 3, nil, "clerk-7")
	if err != nil || g.Status != domain.GoalCompleted || g.CurrentValue != 3 {
		t.Fatalf("completed goal must stay completed: %v %+v", err, g)
	}
	stored, err := env.Engine.GetGoal(env.Ctx, g.ID)
	if err != nil || stored.Version != g.Version || stored.Status != domain.GoalCompleted || stored.CurrentValue != 3 {
		t.Fatalf("stored mismatch: %v %+v", err, stored)
	}
	if _, err := env.Engine.UpdateGoalProgress(env.Ctx, "missing", 1, nil, ""); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	evts, _ := env.Engine.ListEvents(env.Ctx, repo.EventFilters{EntityKind: "goal"})
	if len(evts) != 5 || evts[0].Type != "goal.progress_updated" || evts[0].ActorID != "clerk-7" {
		t.Fatalf("unexpected goal events: %+v", evts)
	}
}

func TestZeroTargetGoalNeverCompletes(t *testing.T) {
	env := newTestEnv(t)
	g, err := env.Engine.CreateGoal(env.Ctx, engine.GoalCreateOptions{Title: "Open ended", Level: domain.GoalOrganization, RelatedID: env.Dept.ID, Unit: "Visits"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	g, err = env.Engine.UpdateGoalProgress(env.Ctx, g.ID, 5, nil, "")
	if err != nil || g.Status != domain.GoalInProgress {
		t.Fatalf("expected in progress, got %v %+v", err, g)
	}
}
