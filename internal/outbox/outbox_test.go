package outbox_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"

	"civicdesk/internal/config"
	"civicdesk/internal/db"
	"civicdesk/internal/domain"
	"civicdesk/internal/engine"
	"civicdesk/internal/metrics"
	"civicdesk/internal/migrate"
	"civicdesk/internal/outbox"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func newEngine(t *testing.T) engine.Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return engine.New(conn, config.Default())
}

func TestNewWithoutSinks(t *testing.T) {
	eng := newEngine(t)
	if d := outbox.New(config.Default(), eng.Repo, nil, nil); d != nil {
		t.Fatalf("expected nil dispatcher without sinks")
	}
}

func TestDispatchDeliversNewEvents(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)
	if _, err := eng.CreateDepartment(ctx, domain.Department{Name: "Before", Head: "H"}, "admin"); err != nil {
		t.Fatal(err)
	}

	var (
		mu       sync.Mutex
		received []outbox.Envelope
		headers  []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var env outbox.Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, env)
		headers = append(headers, r.Header.Get("X-Civicdesk-Secret"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	writer := &fakeWriter{}
	m := metrics.New(prometheus.NewRegistry())
	d := &outbox.Dispatcher{
		Repo: eng.Repo,
		Sinks: []outbox.Sink{
			outbox.NewWebhookSink(config.Webhook{URL: srv.URL, Events: []string{"grievance.created"}, Secret: "s3cret"}),
			&outbox.KafkaSink{Writer: writer},
		},
		Metrics: m,
	}
	d.DispatchOnce(ctx)

	dept, err := eng.CreateDepartment(ctx, domain.Department{Name: "After", Head: "H"}, "admin")
	if err != nil {
		t.Fatal(err)
	}
	g, err := eng.CreateGrievance(ctx, engine.GrievanceCreateOptions{Title: "t", Description: "d", DepartmentID: dept.ID, RaisedBy: "c1"})
	if err != nil {
		t.Fatal(err)
	}
	d.DispatchOnce(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0].Type != "grievance.created" || received[0].EntityID != g.ID || headers[0] != "s3cret" {
		t.Fatalf("unexpected webhook deliveries: %+v", received)
	}
	var payload map[string]any
	if err := json.Unmarshal(received[0].Payload, &payload); err != nil || payload["status"] != "Pending" {
		t.Fatalf("unexpected payload: %s", received[0].Payload)
	}
	if len(writer.msgs) != 2 || string(writer.msgs[1].Key) != g.ID {
		t.Fatalf("unexpected kafka messages: %d", len(writer.msgs))
	}
	if got := testutil.ToFloat64(m.OutboxDeliveries.WithLabelValues("kafka", "ok")); got != 2 {
		t.Fatalf("kafka deliveries = %v", got)
	}

	// nothing new: no redelivery
	d.DispatchOnce(ctx)
	if len(received) != 1 || len(writer.msgs) != 2 {
		t.Fatalf("events were redelivered")
	}
}

func TestFailedDeliveryIsRetried(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)
	fail := true
	var mu sync.Mutex
	count := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		count++
	}))
	defer srv.Close()

	d := &outbox.Dispatcher{Repo: eng.Repo, Sinks: []outbox.Sink{outbox.NewWebhookSink(config.Webhook{URL: srv.URL})}}
	d.DispatchOnce(ctx)
	if _, err := eng.CreateDepartment(ctx, domain.Department{Name: "D", Head: "H"}, "admin"); err != nil {
		t.Fatal(err)
	}
	d.DispatchOnce(ctx)
	mu.Lock()
	fail = false
	mu.Unlock()
	d.DispatchOnce(ctx)
	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("expected one successful redelivery, got %d", count)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	eng := newEngine(t)
	d := &outbox.Dispatcher{Repo: eng.Repo, Sinks: []outbox.Sink{&outbox.KafkaSink{Writer: &fakeWriter{}}}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
}

func TestLateCommittedLowerIDIsDelivered(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)
	if _, err := eng.CreateDepartment(ctx, domain.Department{Name: "Before", Head: "H"}, "admin"); err != nil {
		t.Fatal(err)
	}
	insert := func(id int64, entity string) {
		t.Helper()
		_, err := eng.DB.ExecContext(ctx, `INSERT INTO events(id,ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES(?,?,?,?,?,?,?)`,
			id, "2026-01-01T00:00:00Z", "file.moved", "file", entity, "system", "{}")
		if err != nil {
			t.Fatalf("insert event %d: %v", id, err)
		}
	}

	writer := &fakeWriter{}
	d := &outbox.Dispatcher{Repo: eng.Repo, Sinks: []outbox.Sink{&outbox.KafkaSink{Writer: writer}}}
	d.DispatchOnce(ctx)

	insert(10, "f-10")
	d.DispatchOnce(ctx)
	insert(5, "f-5")
	d.DispatchOnce(ctx)
	d.DispatchOnce(ctx)

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if len(writer.msgs) != 2 || string(writer.msgs[0].Key) != "f-10" || string(writer.msgs[1].Key) != "f-5" {
		keys := make([]string, 0, len(writer.msgs))
		for _, m := range writer.msgs {
			keys = append(keys, string(m.Key))
		}
		t.Fatalf("unexpected deliveries: %v", keys)
	}
}
