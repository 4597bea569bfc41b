package engine_test

import (
	"testing"

	"civicdesk/internal/domain"
	"civicdesk/internal/repo"
)

func TestDirectoryUniqueness(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateDepartment(env.Ctx, domain.Department{Name: "Health", Head: "Dr. K", Username: "health"}, "admin"); err != nil {
		t.Fatalf("create department: %v", err)
	}
	if _, err := env.Engine.CreateDepartment(env.Ctx, domain.Department{Name: "Health 2", Head: "Dr. L", Username: "health"}, "admin"); !domain.IsConflict(err) {
		t.Fatalf("expected username conflict, got %v", err)
	}
	if _, err := env.Engine.CreateDepartment(env.Ctx, domain.Department{Name: "Broke", Head: "X", Budget: -1}, "admin"); !domain.IsValidation(err) {
		t.Fatalf("expected budget validation, got %v", err)
	}

	if _, err := env.Engine.CreateUser(env.Ctx, domain.User{Name: "Meera", Email: "Meera@Example.org"}, ""); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := env.Engine.CreateUser(env.Ctx, domain.User{Name: "Meera 2", Email: "meera@example.org"}, ""); !domain.IsConflict(err) {
		t.Fatalf("expected email conflict, got %v", err)
	}
	if _, err := env.Engine.CreateUser(env.Ctx, domain.User{Name: "No Mail", Email: "not-an-email"}, ""); !domain.IsValidation(err) {
		t.Fatalf("expected email validation, got %v", err)
	}
	if _, err := env.Engine.GetUser(env.Ctx, "missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEmployeesAndTeams(t *testing.T) {
	env := newTestEnv(t)
	team, err := env.Engine.CreateTeam(env.Ctx, domain.Team{Name: "Leak response", DepartmentID: env.Dept.ID, Lead: "Asha", Members: []string{"Asha", "Ravi"}}, "admin")
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	if _, err := env.Engine.CreateEmployee(env.Ctx, domain.Employee{Name: "Ravi", Role: "Plumber", DepartmentID: env.Dept.ID, Email: "ravi@example.org", TeamID: strPtr("ghost")}, ""); !domain.IsNotFound(err) {
		t.Fatalf("expected unknown team, got %v", err)
	}
	if _, err := env.Engine.CreateEmployee(env.Ctx, domain.Employee{Name: "Ravi", Role: "Plumber", DepartmentID: env.Dept.ID, Email: "ravi@example.org", Rank: 11}, ""); !domain.IsValidation(err) {
		t.Fatalf("expected rank validation, got %v", err)
	}
	pub, err := env.Engine.CreateEmployee(env.Ctx, domain.Employee{Name: "Asha", Role: "Engineer", DepartmentID: env.Dept.ID, Email: "asha@example.org", Rank: 5, IsPublicContact: true, TeamID: &team.ID}, "")
	if err != nil {
		t.Fatalf("create employee: %v", err)
	}
	if _, err := env.Engine.CreateEmployee(env.Ctx, domain.Employee{Name: "Ravi", Role: "Plumber", DepartmentID: env.Dept.ID, Email: "ravi@example.org"}, ""); err != nil {
		t.Fatalf("create employee: %v", err)
	}
	contacts, err := env.Engine.PublicContacts(env.Ctx, env.Dept.ID)
	if err != nil || len(contacts) != 1 || contacts[0].ID != pub.ID {
		t.Fatalf("public contacts: %v %+v", err, contacts)
	}
	all, _ := env.Engine.ListEmployees(env.Ctx, env.Dept.ID)
	if len(all) != 2 || all[0].ID != pub.ID {
		t.Fatalf("expected rank ordering: %+v", all)
	}
	teams, _ := env.Engine.ListTeams(env.Ctx, env.Dept.ID)
	if len(teams) != 1 || len(teams[0].Members) != 2 {
		t.Fatalf("unexpected teams: %+v", teams)
	}
}

func TestSchemesAndMessages(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateScheme(env.Ctx, domain.Scheme{Title: "Rainwater", Description: "Subsidy", DepartmentID: env.Dept.ID}, false, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateScheme(env.Ctx, domain.Scheme{Title: "Old", Description: "Retired", DepartmentID: env.Dept.ID}, true, ""); err != nil {
		t.Fatal(err)
	}
	active, _ := env.Engine.ListSchemes(env.Ctx, "", false)
	if len(active) != 1 || active[0].Title != "Rainwater" || !active[0].Active {
		t.Fatalf("unexpected active schemes: %+v", active)
	}
	all, _ := env.Engine.ListSchemes(env.Ctx, "", true)
	if len(all) != 2 || all[0].Title != "Old" {
		t.Fatalf("expected newest first: %+v", all)
	}

	if _, err := env.Engine.SendMessage(env.Ctx, domain.Message{SenderID: "u1", SenderRole: "mayor", RecipientID: "u2", Content: "hi"}); !domain.IsValidation(err) {
		t.Fatalf("expected sender role validation, got %v", err)
	}
	m, err := env.Engine.SendMessage(env.Ctx, domain.Message{SenderID: "u1", SenderRole: "citizen", RecipientID: "u2", Content: "hello", DepartmentID: &env.Dept.ID})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := env.Engine.MarkMessageRead(env.Ctx, m.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	inbox, _ := env.Engine.Inbox(env.Ctx, "u2")
	if len(inbox) != 1 || !inbox[0].IsRead {
		t.Fatalf("unexpected inbox: %+v", inbox)
	}
	if err := env.Engine.MarkMessageRead(env.Ctx, "missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateAPIKey(t *testing.T) {
	env := newTestEnv(t)
	if _, _, err := env.Engine.CreateAPIKey(env.Ctx, "ops", "ci", []string{"ghost"}); !domain.IsValidation(err) {
		t.Fatalf("expected unknown role validation, got %v", err)
	}
	key, plain, err := env.Engine.CreateAPIKey(env.Ctx, "ops", "ci", []string{"department"})
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	stored, err := env.Engine.Repo.GetAPIKeyByHash(env.Ctx, repo.HashAPIKey(plain))
	if err != nil || stored.ID != key.ID || len(stored.Roles) != 1 || stored.Roles[0] != "department" {
		t.Fatalf("lookup by hash: %v %+v", err, stored)
	}
}
