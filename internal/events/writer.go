package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"civicdesk/internal/db"
	"civicdesk/internal/domain"
)

const (
	GrievanceCreated       = "grievance.created"
	GrievanceStatusChanged = "grievance.status_changed"
	GrievanceReopened      = "grievance.reopened"
	FileCreated            = "file.created"
	FileTransitioned       = "file.transitioned"
	FileUpdated            = "file.updated"
	FIRSubmitted           = "fir.submitted"
	FIRStatusUpdated       = "fir.status_updated"
	DepartmentCreated      = "department.created"
	UserCreated            = "user.created"
	EmployeeCreated        = "employee.created"
	TeamCreated            = "team.created"
	SchemeCreated          = "scheme.created"
	MessageSent            = "message.sent"
	APIKeyCreated          = "apikey.created"
	GoalCreated            = "goal.created"
	GoalProgressUpdated    = "goal.progress_updated"
)

type Writer struct {
	DB  *db.Conn
	Now func() time.Time
}

type EventPayload map[string]any

// Append records one event inside tx. Without a tx it writes straight to the pool.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, departmentID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := domain.FormatTime(w.Now())
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	query := w.DB.Rebind(`INSERT INTO events(ts,type,department_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`)
	args := []any{ts, evtType, nullable(departmentID), entityKind, nullable(entityID), actorID, string(data)}
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = w.DB.ExecContext(ctx, query, args...)
	}
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
