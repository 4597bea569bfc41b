package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"civicdesk/internal/domain"
	"civicdesk/internal/repo"
)

type failingRelay struct{}

var errRelayDown = errors.New("relay down")

func (failingRelay) RecordEntry(context.Context, string) (domain.LedgerReceipt, error) {
	return domain.LedgerReceipt{}, errRelayDown
}

func (failingRelay) ListEntries(context.Context) ([]domain.LedgerEntry, error) {
	return nil, errRelayDown
}

func (failingRelay) UpdateEntryStatus(context.Context, string, string, string) (domain.LedgerReceipt, error) {
	return domain.LedgerReceipt{}, errRelayDown
}

func TestSubmitAndUpdateFIR(t *testing.T) {
	env := newTestEnv(t)
	receipt, err := env.Engine.SubmitFIR(env.Ctx, "chain snatching near market")
	if err != nil || receipt.Hash == "" {
		t.Fatalf("submit: %v %+v", err, receipt)
	}
	entries, err := env.Engine.ListFIRs(env.Ctx)
	if err != nil || len(entries) != 1 || entries[0].Status != "Open" {
		t.Fatalf("list: %v %+v", err, entries)
	}
	if _, err := env.Engine.UpdateFIRStatus(env.Ctx, entries[0].ID, "Closed", "accused arrested"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := env.Engine.UpdateFIRStatus(env.Ctx, "42", "Closed", ""); !domain.IsNotFound(err) {
		t.Fatalf("expected not found for unknown fir, got %v", err)
	}
	evts, err := env.Engine.ListEvents(env.Ctx, repo.EventFilters{EntityKind: "fir"})
	if err != nil || len(evts) != 2 {
		t.Fatalf("events: %v %+v", err, evts)
	}
	if evts[1].Type != "fir.submitted" || evts[1].ActorID != "system" {
		t.Fatalf("unexpected submit event: %+v", evts[1])
	}
}

func TestFIRValidation(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.SubmitFIR(env.Ctx, "  "); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := env.Engine.UpdateFIRStatus(env.Ctx, "1", "", ""); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRelayFailureIsUpstream(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Ledger = failingRelay{}
	_, err := env.Engine.SubmitFIR(env.Ctx, "theft")
	if !domain.IsUpstream(err) || !errors.Is(err, errRelayDown) {
		t.Fatalf("expected upstream error wrapping relay failure, got %v", err)
	}
	if _, err := env.Engine.ListFIRs(env.Ctx); !domain.IsUpstream(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if got := testutil.ToFloat64(env.Engine.Metrics.LedgerCalls.WithLabelValues("record", "error")); got != 1 {
		t.Fatalf("relay called %v times, want exactly one attempt", got)
	}
	evts, _ := env.Engine.ListEvents(env.Ctx, repo.EventFilters{EntityKind: "fir"})
	if len(evts) != 0 {
		t.Fatalf("failed submission should not be logged: %+v", evts)
	}
}
