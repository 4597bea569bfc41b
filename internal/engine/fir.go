package engine

import (
	"context"
	"errors"

	"civicdesk/internal/domain"
	"civicdesk/internal/events"
	"civicdesk/internal/ledger"
)

// SubmitFIR records a First Information Report on the ledger. Relay failures are
// surfaced as UpstreamError and never retried here.
func (e Engine) SubmitFIR(ctx context.Context, description string) (domain.LedgerReceipt, error) {
	if blank(description) {
		return domain.LedgerReceipt{}, domain.Required("description")
	}
	receipt, err := e.Ledger.RecordEntry(ctx, description)
	e.Metrics.LedgerCall("record", err)
	if err != nil {
		e.log().WithError(err).Warn("ledger record failed")
		return domain.LedgerReceipt{}, domain.UpstreamError{Op: "ledger record", Err: err}
	}
	if err := e.eventWriter().Append(ctx, nil, events.FIRSubmitted, "", "fir", "", SystemActor, events.EventPayload{
		"hash": receipt.Hash,
	}); err != nil {
		return receipt, storeErr("append event", "event", "", err)
	}
	return receipt, nil
}

// UpdateFIRStatus records a status change for an existing FIR.
func (e Engine) UpdateFIRStatus(ctx context.Context, id, status, notes string) (domain.LedgerReceipt, error) {
	if blank(id) {
		return domain.LedgerReceipt{}, domain.Required("id")
	}
	if blank(status) {
		return domain.LedgerReceipt{}, domain.Required("status")
	}
	receipt, err := e.Ledger.UpdateEntryStatus(ctx, id, status, notes)
	e.Metrics.LedgerCall("update", err)
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownEntry) {
			return domain.LedgerReceipt{}, domain.NotFoundError{Entity: "fir", ID: id}
		}
		e.log().WithError(err).WithField("fir", id).Warn("ledger update failed")
		return domain.LedgerReceipt{}, domain.UpstreamError{Op: "ledger update", Err: err}
	}
	if err := e.eventWriter().Append(ctx, nil, events.FIRStatusUpdated, "", "fir", id, SystemActor, events.EventPayload{
		"hash":   receipt.Hash,
		"status": status,
	}); err != nil {
		return receipt, storeErr("append event", "event", id, err)
	}
	return receipt, nil
}

func (e Engine) ListFIRs(ctx context.Context) ([]domain.LedgerEntry, error) {
	entries, err := e.Ledger.ListEntries(ctx)
	e.Metrics.LedgerCall("list", err)
	if err != nil {
		return nil, domain.UpstreamError{Op: "ledger list", Err: err}
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	return entries, nil
}
