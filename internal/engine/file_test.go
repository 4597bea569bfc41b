package engine_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"civicdesk/internal/domain"
	"civicdesk/internal/engine"
)

func (env testEnv) file(t *testing.T, title string) domain.File {
	t.Helper()
	f, err := env.Engine.CreateFile(env.Ctx, engine.FileCreateOptions{Title: title, Description: "quarterly budget", DepartmentID: env.Dept.ID})
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	return f
}

func TestCreateFile(t *testing.T) {
	env := newTestEnv(t)
	f := env.file(t, "Budget Q3")
	if f.Status != domain.FileDraft || f.Priority != domain.PriorityMedium {
		t.Fatalf("unexpected defaults: %+v", f)
	}
	if !strings.HasPrefix(f.ReferenceNumber, "FILE-") || strings.ToUpper(f.ReferenceNumber) != f.ReferenceNumber {
		t.Fatalf("unexpected reference: %s", f.ReferenceNumber)
	}
	if len(f.History) != 1 || f.History[0].Stage != "Created" || f.History[0].Notes != "File created in system." || f.History[0].UpdatedBy != "Admin" {
		t.Fatalf("unexpected history: %+v", f.History)
	}
	stored, err := env.Engine.GetFile(env.Ctx, f.ID)
	if err != nil || len(stored.History) != 1 || stored.ReferenceNumber != f.ReferenceNumber {
		t.Fatalf("stored file mismatch: %v %+v", err, stored)
	}
}

func TestCreateFileValidation(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateFile(env.Ctx, engine.FileCreateOptions{DepartmentID: env.Dept.ID}); !domain.IsValidation(err) {
		t.Fatalf("expected title validation, got %v", err)
	}
	if _, err := env.Engine.CreateFile(env.Ctx, engine.FileCreateOptions{Title: "x", DepartmentID: env.Dept.ID, Priority: "Urgent"}); !domain.IsValidation(err) {
		t.Fatalf("expected priority validation, got %v", err)
	}
	if _, err := env.Engine.CreateFile(env.Ctx, engine.FileCreateOptions{Title: "x", DepartmentID: "nope"}); !domain.IsNotFound(err) {
		t.Fatalf("expected unknown department, got %v", err)
	}
}

func TestReferenceCollisionRegenerates(t *testing.T) {
	env := newTestEnv(t)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env.Engine.Now = func() time.Time { return fixed }

	a := env.file(t, "first")
	b := env.file(t, "second")
	if a.ReferenceNumber == b.ReferenceNumber {
		t.Fatalf("expected distinct references, both %s", a.ReferenceNumber)
	}

	_, err := env.Engine.CreateFile(env.Ctx, engine.FileCreateOptions{Title: "dup", DepartmentID: env.Dept.ID, ReferenceNumber: a.ReferenceNumber})
	var ce domain.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict on supplied duplicate, got %v", err)
	}
	files, _ := env.Engine.ListFilesByDepartment(env.Ctx, env.Dept.ID)
	if len(files) != 2 {
		t.Fatalf("duplicate insert leaked a row: %d files", len(files))
	}
}

func TestFileWorkflowHistory(t *testing.T) {
	env := newTestEnv(t)
	f := env.file(t, "Budget Q3")
	steps := []domain.FileStatus{domain.FileInReview, domain.FilePendingApproval, domain.FileApproved}
	var err error
	for _, s := range steps {
		before := len(f.History)
		f, err = env.Engine.TransitionFile(env.Ctx, f.ID, s, nil, nil, "")
		if err != nil {
			t.Fatalf("to %s: %v", s, err)
		}
		if len(f.History) != before+1 || f.History[len(f.History)-1].Stage != string(s) {
			t.Fatalf("history not appended for %s: %+v", s, f.History)
		}
	}
	stored, _ := env.Engine.GetFile(env.Ctx, f.ID)
	want := []string{"Created", "In Review", "Pending Approval", "Approved"}
	if len(stored.History) != len(want) {
		t.Fatalf("unexpected history length %d", len(stored.History))
	}
	for i, w := range want {
		if stored.History[i].Stage != w {
			t.Fatalf("history[%d] = %s, want %s", i, stored.History[i].Stage, w)
		}
	}
	if stored.History[1].Notes != "File details updated." {
		t.Fatalf("expected default notes, got %q", stored.History[1].Notes)
	}
	if got := testutil.ToFloat64(env.Engine.Metrics.FileTransitions.WithLabelValues("Draft", "In Review")); got != 1 {
		t.Fatalf("file transition counter = %v", got)
	}
}

func TestIllegalTransitionDoesNotMutate(t *testing.T) {
	env := newTestEnv(t)
	f := env.file(t, "Budget Q3")
	_, err := env.Engine.TransitionFile(env.Ctx, f.ID, domain.FileApproved, nil, nil, "")
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict for Draft -> Approved, got %v", err)
	}
	if _, err := env.Engine.TransitionFile(env.Ctx, f.ID, domain.FileDraft, strPtr("again"), nil, ""); !domain.IsConflict(err) {
		t.Fatalf("expected conflict for Draft -> Draft, got %v", err)
	}
	high := domain.PriorityHigh
	if _, err := env.Engine.UpdateFile(env.Ctx, engine.FileUpdateOptions{ID: f.ID, Status: &f.Status, Priority: &high}); !domain.IsConflict(err) {
		t.Fatalf("expected conflict for same-status update, got %v", err)
	}
	if _, err := env.Engine.TransitionFile(env.Ctx, f.ID, "Archived", nil, nil, ""); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
	if _, err := env.Engine.TransitionFile(env.Ctx, "missing", domain.FileInReview, nil, nil, ""); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	stored, _ := env.Engine.GetFile(env.Ctx, f.ID)
	if stored.Status != domain.FileDraft || stored.Priority != domain.PriorityMedium || len(stored.History) != 1 || stored.Version != 1 {
		t.Fatalf("illegal transition mutated file: %+v", stored)
	}
}

func TestTerminalStates(t *testing.T) {
	env := newTestEnv(t)
	f := env.file(t, "Budget Q3")
	for _, s := range []domain.FileStatus{domain.FileInReview, domain.FilePendingApproval, domain.FileRejected} {
		if _, err := env.Engine.TransitionFile(env.Ctx, f.ID, s, nil, nil, ""); err != nil {
			t.Fatalf("to %s: %v", s, err)
		}
	}
	for _, s := range []domain.FileStatus{domain.FileDraft, domain.FileInReview, domain.FileApproved} {
		if _, err := env.Engine.TransitionFile(env.Ctx, f.ID, s, nil, nil, ""); !domain.IsConflict(err) {
			t.Fatalf("Rejected -> %s should conflict, got %v", s, err)
		}
	}

	approved := env.file(t, "Budget Q4")
	for _, s := range []domain.FileStatus{domain.FileInReview, domain.FilePendingApproval, domain.FileApproved} {
		if _, err := env.Engine.TransitionFile(env.Ctx, approved.ID, s, nil, nil, ""); err != nil {
			t.Fatalf("to %s: %v", s, err)
		}
	}
	before, _ := env.Engine.GetFile(env.Ctx, approved.ID)
	for _, s := range []domain.FileStatus{domain.FileApproved, domain.FileRejected, domain.FilePendingApproval} {
		if _, err := env.Engine.TransitionFile(env.Ctx, approved.ID, s, nil, nil, ""); !domain.IsConflict(err) {
			t.Fatalf("Approved -> %s should conflict, got %v", s, err)
		}
	}
	after, _ := env.Engine.GetFile(env.Ctx, approved.ID)
	if after.Version != before.Version || len(after.History) != len(before.History) || after.UpdatedAt != before.UpdatedAt {
		t.Fatalf("terminal file mutated: before %+v after %+v", before, after)
	}
	if last := after.History[len(after.History)-1]; last.Stage != string(domain.FileApproved) {
		t.Fatalf("last stage = %q", last.Stage)
	}
}

func TestUpdateFileDetails(t *testing.T) {
	env := newTestEnv(t)
	f := env.file(t, "Budget Q3")
	high := domain.PriorityHigh
	updated, err := env.Engine.UpdateFile(env.Ctx, engine.FileUpdateOptions{
		ID:         f.ID,
		AssignedTo: strPtr("Section Officer"),
		Priority:   &high,
		Notes:      strPtr("escalated"),
		ActorID:    "dept-admin",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	last := updated.History[len(updated.History)-1]
	if updated.Status != domain.FileDraft || updated.Priority != high || updated.AssignedTo != "Section Officer" {
		t.Fatalf("unexpected file: %+v", updated)
	}
	if last.Stage != "Updated" || last.Notes != "escalated" || last.UpdatedBy != "dept-admin" {
		t.Fatalf("unexpected history entry: %+v", last)
	}
	if _, err := env.Engine.UpdateFile(env.Ctx, engine.FileUpdateOptions{ID: f.ID}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for empty update, got %v", err)
	}
	stale := int64(1)
	if _, err := env.Engine.UpdateFile(env.Ctx, engine.FileUpdateOptions{ID: f.ID, Notes: strPtr("late"), ExpectedVersion: &stale}); !domain.IsConflict(err) {
		t.Fatalf("expected stale version conflict, got %v", err)
	}
}

func TestListFilesByDepartmentOrder(t *testing.T) {
	env := newTestEnv(t)
	a := env.file(t, "A")
	b := env.file(t, "B")
	if _, err := env.Engine.TransitionFile(env.Ctx, a.ID, domain.FileInReview, nil, nil, ""); err != nil {
		t.Fatal(err)
	}
	files, err := env.Engine.ListFilesByDepartment(env.Ctx, env.Dept.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].ID != a.ID || files[1].ID != b.ID {
		t.Fatalf("expected most recently updated first: %+v", files)
	}
	if len(files[0].History) != 2 {
		t.Fatalf("list should include history: %+v", files[0].History)
	}
}
