package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service counters. A nil *Metrics is a no-op.
type Metrics struct {
	GrievanceTransitions *prometheus.CounterVec
	FileTransitions      *prometheus.CounterVec
	TransitionConflicts  *prometheus.CounterVec
	LedgerCalls          *prometheus.CounterVec
	OutboxDeliveries     *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		GrievanceTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civicdesk",
			Name:      "grievance_transitions_total",
			Help:      "Grievance status changes by target status.",
		}, []string{"to"}),
		FileTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civicdesk",
			Name:      "file_transitions_total",
			Help:      "File workflow moves by edge.",
		}, []string{"from", "to"}),
		TransitionConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civicdesk",
			Name:      "transition_conflicts_total",
			Help:      "Refused transitions, reopens and stale writes.",
		}, []string{"entity"}),
		LedgerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civicdesk",
			Name:      "ledger_calls_total",
			Help:      "Ledger relay calls by operation and result.",
		}, []string{"op", "result"}),
		OutboxDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civicdesk",
			Name:      "outbox_deliveries_total",
			Help:      "Outbox deliveries by sink and result.",
		}, []string{"sink", "result"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "civicdesk",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) GrievanceTransition(to string) {
	if m == nil {
		return
	}
	m.GrievanceTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) FileTransition(from, to string) {
	if m == nil {
		return
	}
	m.FileTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Conflict(entity string) {
	if m == nil {
		return
	}
	m.TransitionConflicts.WithLabelValues(entity).Inc()
}

func (m *Metrics) LedgerCall(op string, err error) {
	if m == nil {
		return
	}
	m.LedgerCalls.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) OutboxDelivery(sink string, err error) {
	if m == nil {
		return
	}
	m.OutboxDeliveries.WithLabelValues(sink, result(err)).Inc()
}

func (m *Metrics) ObserveHTTP(method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, status).Observe(seconds)
}
