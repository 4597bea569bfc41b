package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"civicdesk/internal/config"
	"civicdesk/internal/domain"
	"civicdesk/internal/ledger"
)

func TestOpenWiresRelayAndOutbox(t *testing.T) {
	var relayCalls, hookCalls atomic.Int32
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		relayCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(domain.LedgerReceipt{Hash: "0xabc"})
	}))
	defer relay.Close()
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hookCalls.Add(1)
	}))
	defer hook.Close()

	cfg := config.Default()
	cfg.Ledger.URL = relay.URL
	cfg.Outbox.Webhooks = []config.Webhook{{URL: hook.URL}}

	ctx := context.Background()
	a, err := Open(ctx, cfg, Options{Workspace: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := a.Engine.Ledger.(*ledger.HTTPRelay); !ok {
		t.Fatalf("expected http relay, got %T", a.Engine.Ledger)
	}
	if a.Outbox == nil || len(a.Outbox.Sinks) != 1 {
		t.Fatalf("expected one outbox sink")
	}

	a.Outbox.DispatchOnce(ctx)
	receipt, err := a.Engine.SubmitFIR(ctx, "stolen scooter")
	if err != nil || receipt.Hash != "0xabc" {
		t.Fatalf("submit fir: %v %+v", err, receipt)
	}
	a.Outbox.DispatchOnce(ctx)
	if relayCalls.Load() != 1 || hookCalls.Load() != 1 {
		t.Fatalf("relay calls %d, webhook calls %d", relayCalls.Load(), hookCalls.Load())
	}

	a.StartOutbox(ctx)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestOpenDefaultsToMemoryRelay(t *testing.T) {
	a, err := Open(context.Background(), nil, Options{Workspace: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()
	if _, ok := a.Engine.Ledger.(*ledger.MemoryRelay); !ok {
		t.Fatalf("expected memory relay, got %T", a.Engine.Ledger)
	}
	if a.Outbox != nil {
		t.Fatalf("outbox should be disabled without sinks")
	}
	if _, err := a.Registry.Gather(); err != nil {
		t.Fatalf("gather: %v", err)
	}
}
