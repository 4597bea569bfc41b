package outbox

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"civicdesk/internal/config"
	"civicdesk/internal/domain"
	"civicdesk/internal/metrics"
	"civicdesk/internal/repo"
)

const (
	defaultInterval = 2 * time.Second
	defaultBatch    = 100
	// lookback is how many ids below the high-water mark are re-read each pass. Postgres
	// identity ids are allocated at insert but become visible at commit, so a lower id
	// can appear after a higher one has been delivered.
	lookback = 32
)

// Sink receives event-log rows in id order.
type Sink interface {
	Name() string
	Accepts(evtType string) bool
	Deliver(ctx context.Context, evt domain.Event) error
}

// Dispatcher tails the event log and forwards new rows to every sink. Each sink keeps its
// own high-water mark plus the ids it handled within the lookback window; a failed
// delivery stops that sink's batch so the event is retried next tick.
type Dispatcher struct {
	Repo     repo.Repo
	Sinks    []Sink
	Interval time.Duration
	Log      logrus.FieldLogger
	Metrics  *metrics.Metrics

	mu     sync.Mutex
	states map[int]*sinkState
}

type sinkState struct {
	high int64
	seen map[int64]struct{}
}

func (s *sinkState) handled(id int64) {
	s.seen[id] = struct{}{}
	if id > s.high {
		s.high = id
	}
	for old := range s.seen {
		if old <= s.high-lookback {
			delete(s.seen, old)
		}
	}
}

func windowStart(high int64) int64 {
	if high <= lookback {
		return 0
	}
	return high - lookback
}

// New builds a dispatcher with the sinks configured under outbox. It returns nil when
// no sink is configured.
func New(cfg *config.Config, r repo.Repo, log logrus.FieldLogger, m *metrics.Metrics) *Dispatcher {
	if cfg == nil {
		return nil
	}
	var sinks []Sink
	for _, hook := range cfg.Outbox.Webhooks {
		if !hook.IsEnabled() || strings.TrimSpace(hook.URL) == "" {
			continue
		}
		sinks = append(sinks, NewWebhookSink(hook))
	}
	if len(cfg.Outbox.Kafka.Brokers) > 0 {
		sinks = append(sinks, NewKafkaSink(cfg.Outbox.Kafka.Brokers, cfg.Outbox.Kafka.Topic))
	}
	if len(sinks) == 0 {
		return nil
	}
	interval := defaultInterval
	if cfg.Outbox.IntervalSeconds > 0 {
		interval = time.Duration(cfg.Outbox.IntervalSeconds) * time.Second
	}
	return &Dispatcher{
		Repo:     r,
		Sinks:    sinks,
		Interval: interval,
		Log:      log,
		Metrics:  m,
	}
}

func (d *Dispatcher) log() logrus.FieldLogger {
	if d.Log != nil {
		return d.Log
	}
	return logrus.StandardLogger()
}

// Run dispatches until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	interval := d.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce runs one delivery pass over every sink.
func (d *Dispatcher) DispatchOnce(ctx context.Context) {
	for i, sink := range d.Sinks {
		if ctx.Err() != nil {
			return
		}
		d.dispatchSink(ctx, i, sink)
	}
}

func (d *Dispatcher) dispatchSink(ctx context.Context, idx int, sink Sink) {
	st := d.stateFor(ctx, idx)
	d.mu.Lock()
	from := windowStart(st.high)
	d.mu.Unlock()
	evts, err := d.Repo.EventsAfter(ctx, defaultBatch+lookback, from)
	if err != nil {
		d.log().WithError(err).WithField("sink", sink.Name()).Warn("outbox: fetch events failed")
		return
	}
	for _, evt := range evts {
		d.mu.Lock()
		_, done := st.seen[evt.ID]
		d.mu.Unlock()
		if done {
			continue
		}
		if sink.Accepts(evt.Type) {
			err := sink.Deliver(ctx, evt)
			d.Metrics.OutboxDelivery(sink.Name(), err)
			if err != nil {
				d.log().WithError(err).WithFields(logrus.Fields{"sink": sink.Name(), "event_id": evt.ID}).Warn("outbox: delivery failed")
				return
			}
		}
		d.mu.Lock()
		st.handled(evt.ID)
		d.mu.Unlock()
	}
}

// stateFor starts a sink at the newest event, so only events after startup are sent.
// Ids already inside the lookback window at startup count as handled.
func (d *Dispatcher) stateFor(ctx context.Context, idx int) *sinkState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.states == nil {
		d.states = make(map[int]*sinkState)
	}
	if st, ok := d.states[idx]; ok {
		return st
	}
	st := &sinkState{seen: map[int64]struct{}{}}
	latest, err := d.Repo.LatestEventID(ctx)
	if err != nil {
		d.log().WithError(err).Warn("outbox: init cursor failed")
		latest = 0
	}
	st.high = latest
	if latest > 0 {
		existing, err := d.Repo.EventsAfter(ctx, lookback, windowStart(latest))
		if err != nil {
			d.log().WithError(err).Warn("outbox: init window failed")
		}
		for _, evt := range existing {
			if evt.ID <= latest {
				st.seen[evt.ID] = struct{}{}
			}
		}
	}
	d.states[idx] = st
	return st
}

// Envelope is the wire form of an event for every sink.
type Envelope struct {
	ID           int64           `json:"id"`
	Type         string          `json:"type"`
	DepartmentID string          `json:"department_id,omitempty"`
	EntityKind   string          `json:"entity_kind"`
	EntityID     string          `json:"entity_id,omitempty"`
	ActorID      string          `json:"actor_id"`
	TS           string          `json:"ts"`
	Payload      json.RawMessage `json:"payload"`
	PayloadRaw   string          `json:"payload_raw,omitempty"`
}

func envelope(evt domain.Event) ([]byte, error) {
	payload := json.RawMessage("{}")
	var raw string
	if evt.Payload != "" {
		if json.Valid([]byte(evt.Payload)) {
			payload = json.RawMessage(evt.Payload)
		} else {
			raw = evt.Payload
		}
	}
	return json.Marshal(Envelope{
		ID:           evt.ID,
		Type:         evt.Type,
		DepartmentID: evt.DepartmentID,
		EntityKind:   evt.EntityKind,
		EntityID:     evt.EntityID,
		ActorID:      evt.ActorID,
		TS:           evt.TS,
		Payload:      payload,
		PayloadRaw:   raw,
	})
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		if key := strings.TrimSpace(evt); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
