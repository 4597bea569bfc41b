package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"civicdesk/internal/config"
	"civicdesk/internal/db"
	"civicdesk/internal/domain"
	"civicdesk/internal/events"
	"civicdesk/internal/ledger"
	"civicdesk/internal/metrics"
	"civicdesk/internal/repo"
)

// SystemActor attributes writes that no person performed directly.
const SystemActor = "system"

type Engine struct {
	DB      *db.Conn
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Ledger  ledger.Relay
	Metrics *metrics.Metrics
	Log     logrus.FieldLogger
	Now     func() time.Time
}

func New(conn *db.Conn, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     conn,
		Repo:   repo.Repo{DB: conn},
		Events: events.Writer{DB: conn},
		Config: cfg,
		Ledger: ledger.NewMemoryRelay(),
		Log:    logrus.StandardLogger(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return domain.FormatTime(e.now())
}

func (e Engine) log() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}

func (e Engine) eventWriter() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

func (e Engine) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.UpstreamError{Op: "store begin", Err: err}
	}
	return tx, nil
}

func (e Engine) commit(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return domain.UpstreamError{Op: "store commit", Err: err}
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}

// storeErr classifies an entity store error into the domain taxonomy.
func storeErr(op, entity, id string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve domain.ValidationError
		ne domain.NotFoundError
		ce domain.ConflictError
		ue domain.UpstreamError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ne), errors.As(err, &ce), errors.As(err, &ue):
		return err
	case repo.IsUniqueViolation(err):
		return domain.ConflictError{Reason: fmt.Sprintf("%s already exists", entity)}
	case errors.Is(err, domain.ErrNotFound):
		return domain.NotFoundError{Entity: entity, ID: id}
	case repo.IsForeignKeyViolation(err):
		return domain.NotFoundError{Entity: entity + " reference", ID: id}
	}
	return domain.UpstreamError{Op: "store " + op, Err: err}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func actorOr(actorID, fallback string) string {
	if blank(actorID) {
		return fallback
	}
	return actorID
}

// checkVersion rejects a write when the caller pinned a version that is no longer current.
func checkVersion(entity string, expected *int64, current int64) error {
	if expected == nil || *expected == current {
		return nil
	}
	return domain.ConflictError{Reason: fmt.Sprintf("%s version mismatch: expected %d, current %d", entity, *expected, current)}
}

func (e Engine) requireDepartment(ctx context.Context, tx *sql.Tx, departmentID string) (domain.Department, error) {
	d, err := e.Repo.GetDepartmentTx(ctx, tx, departmentID)
	if err != nil {
		return d, storeErr("get department", "department", departmentID, err)
	}
	return d, nil
}

// ListEvents returns the newest events first.
func (e Engine) ListEvents(ctx context.Context, f repo.EventFilters) ([]domain.Event, error) {
	evts, err := e.Repo.LatestEvents(ctx, f)
	if err != nil {
		return nil, storeErr("list events", "event", "", err)
	}
	if evts == nil {
		evts = []domain.Event{}
	}
	return evts, nil
}
