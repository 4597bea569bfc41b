package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"civicdesk/internal/domain"
	"civicdesk/internal/events"
	"civicdesk/internal/repo"
)

const (
	stageCreated      = "Created"
	stageUpdated      = "Updated"
	notesCreated      = "File created in system."
	notesDefault      = "File details updated."
	defaultFileAuthor = "Admin"
)

// FileCreateOptions are parameters for opening an e-Office file.
type FileCreateOptions struct {
	Title           string
	Description     string
	Priority        domain.Priority
	DepartmentID    string
	AssignedTo      string
	ReferenceNumber string
	ActorID         string
}

// FileUpdateOptions carries an update; nil fields are left unchanged.
type FileUpdateOptions struct {
	ID              string
	Status          *domain.FileStatus
	Notes           *string
	AssignedTo      *string
	Priority        *domain.Priority
	ExpectedVersion *int64
	ActorID         string
}

func ensureFileTransition(from, to domain.FileStatus) error {
	if !to.Valid() {
		return domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown file status %q", to)}
	}
	switch from {
	case domain.FileDraft:
		if to == domain.FileInReview {
			return nil
		}
	case domain.FileInReview:
		if to == domain.FileDraft || to == domain.FilePendingApproval {
			return nil
		}
	case domain.FilePendingApproval:
		if to == domain.FileInReview || to == domain.FileApproved || to == domain.FileRejected {
			return nil
		}
	}
	return domain.ConflictError{Reason: fmt.Sprintf("invalid file transition %s -> %s", from, to)}
}

// referenceNumber encodes the creation instant as uppercase base36 milliseconds.
func referenceNumber(prefix string, millis int64) string {
	return prefix + "-" + strings.ToUpper(strconv.FormatInt(millis, 36))
}

func (e Engine) CreateFile(ctx context.Context, opts FileCreateOptions) (domain.File, error) {
	if blank(opts.Title) {
		return domain.File{}, domain.Required("title")
	}
	if blank(opts.DepartmentID) {
		return domain.File{}, domain.Required("department_id")
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	if !opts.Priority.Valid() {
		return domain.File{}, domain.ValidationError{Field: "priority", Message: "must be one of High, Medium, Low"}
	}
	supplied := strings.TrimSpace(opts.ReferenceNumber)
	retries := e.Config.Files.ReferenceRetries
	if retries < 1 || supplied != "" {
		retries = 1
	}
	base := e.now().UnixMilli()
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		ref := supplied
		if ref == "" {
			ref = referenceNumber(e.Config.Files.ReferencePrefix, base+int64(attempt))
		}
		f, err := e.insertFile(ctx, opts, ref)
		if err == nil {
			return f, nil
		}
		if !repo.IsUniqueViolation(err) {
			return domain.File{}, storeErr("insert file", "file", "", err)
		}
		lastErr = err
		if supplied == "" {
			e.log().WithField("reference_number", ref).Debug("reference number collision; regenerating")
		}
	}
	e.Metrics.Conflict("file")
	if supplied != "" {
		return domain.File{}, domain.ConflictError{Reason: fmt.Sprintf("reference number %s already exists", supplied)}
	}
	return domain.File{}, domain.ConflictError{Reason: fmt.Sprintf("could not allocate a unique reference number after %d attempts: %v", retries, lastErr)}
}

func (e Engine) insertFile(ctx context.Context, opts FileCreateOptions, ref string) (domain.File, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.File{}, err
	}
	defer tx.Rollback()

	if _, err := e.requireDepartment(ctx, tx, opts.DepartmentID); err != nil {
		return domain.File{}, err
	}
	now := e.stamp()
	f := domain.File{
		ID:              newID(),
		Title:           opts.Title,
		ReferenceNumber: ref,
		DepartmentID:    opts.DepartmentID,
		Status:          domain.FileDraft,
		Priority:        opts.Priority,
		AssignedTo:      opts.AssignedTo,
		Description:     opts.Description,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
	if err := e.Repo.InsertFile(ctx, tx, f); err != nil {
		return domain.File{}, err
	}
	first := domain.HistoryEntry{
		Stage:     stageCreated,
		Timestamp: now,
		Notes:     notesCreated,
		UpdatedBy: actorOr(opts.ActorID, defaultFileAuthor),
	}
	if err := e.Repo.AppendFileHistory(ctx, tx, f.ID, first); err != nil {
		return domain.File{}, err
	}
	f.History = []domain.HistoryEntry{first}
	if err := e.eventWriter().Append(ctx, tx, events.FileCreated, f.DepartmentID, "file", f.ID, first.UpdatedBy, events.EventPayload{
		"reference_number": f.ReferenceNumber,
		"priority":         f.Priority,
	}); err != nil {
		return domain.File{}, err
	}
	if err := e.commit(tx); err != nil {
		return domain.File{}, err
	}
	return f, nil
}

func (e Engine) GetFile(ctx context.Context, id string) (domain.File, error) {
	f, err := e.Repo.GetFile(ctx, id)
	if err != nil {
		return f, storeErr("get file", "file", id, err)
	}
	return f, nil
}

func (e Engine) ListFilesByDepartment(ctx context.Context, departmentID string) ([]domain.File, error) {
	if blank(departmentID) {
		return nil, domain.Required("department_id")
	}
	res, err := e.Repo.ListFilesByDepartment(ctx, departmentID)
	if err != nil {
		return nil, storeErr("list files", "file", "", err)
	}
	if res == nil {
		res = []domain.File{}
	}
	return res, nil
}

// TransitionFile moves a file along the approval workflow and appends exactly one
// history entry. Illegal edges fail with ConflictError and leave the file untouched.
func (e Engine) TransitionFile(ctx context.Context, id string, target domain.FileStatus, notes *string, expectedVersion *int64, actorID string) (domain.File, error) {
	return e.UpdateFile(ctx, FileUpdateOptions{
		ID:              id,
		Status:          &target,
		Notes:           notes,
		ExpectedVersion: expectedVersion,
		ActorID:         actorID,
	})
}

// UpdateFile applies a status change and/or detail edits. A supplied status is always a
// transition and must be a legal edge, self-loops included; edits without a status are
// recorded as "Updated".
func (e Engine) UpdateFile(ctx context.Context, opts FileUpdateOptions) (domain.File, error) {
	if opts.Status != nil && !opts.Status.Valid() {
		return domain.File{}, domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown file status %q", *opts.Status)}
	}
	if opts.Priority != nil && !opts.Priority.Valid() {
		return domain.File{}, domain.ValidationError{Field: "priority", Message: "must be one of High, Medium, Low"}
	}
	if opts.Status == nil && opts.Notes == nil && opts.AssignedTo == nil && opts.Priority == nil {
		return domain.File{}, domain.ValidationError{Message: "nothing to update"}
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.File{}, err
	}
	defer tx.Rollback()

	f, err := e.Repo.GetFileTx(ctx, tx, opts.ID)
	if err != nil {
		return f, storeErr("get file", "file", opts.ID, err)
	}
	if err := checkVersion("file", opts.ExpectedVersion, f.Version); err != nil {
		e.Metrics.Conflict("file")
		return f, err
	}
	from := f.Status
	stage := stageUpdated
	if opts.Status != nil {
		if err := ensureFileTransition(f.Status, *opts.Status); err != nil {
			e.Metrics.Conflict("file")
			return f, err
		}
		f.Status = *opts.Status
		stage = string(f.Status)
	}
	if opts.AssignedTo != nil {
		f.AssignedTo = *opts.AssignedTo
	}
	if opts.Priority != nil {
		f.Priority = *opts.Priority
	}
	now := e.stamp()
	f.UpdatedAt = now
	entry := domain.HistoryEntry{
		Stage:     stage,
		Timestamp: now,
		Notes:     notesDefault,
		UpdatedBy: actorOr(opts.ActorID, defaultFileAuthor),
	}
	if opts.Notes != nil && !blank(*opts.Notes) {
		entry.Notes = *opts.Notes
	}
	ok, err := e.Repo.UpdateFileState(ctx, tx, f, f.Version)
	if err != nil {
		return f, storeErr("update file", "file", f.ID, err)
	}
	if !ok {
		e.Metrics.Conflict("file")
		return f, domain.ConflictError{Reason: "file was modified concurrently"}
	}
	f.Version++
	if err := e.Repo.AppendFileHistory(ctx, tx, f.ID, entry); err != nil {
		return f, storeErr("append file history", "file", f.ID, err)
	}
	f.History = append(f.History, entry)
	evtType := events.FileUpdated
	if f.Status != from {
		evtType = events.FileTransitioned
	}
	if err := e.eventWriter().Append(ctx, tx, evtType, f.DepartmentID, "file", f.ID, entry.UpdatedBy, events.EventPayload{
		"from":  from,
		"to":    f.Status,
		"stage": entry.Stage,
	}); err != nil {
		return f, storeErr("append event", "event", f.ID, err)
	}
	if err := e.commit(tx); err != nil {
		return f, err
	}
	if f.Status != from {
		e.Metrics.FileTransition(string(from), string(f.Status))
	}
	return f, nil
}
