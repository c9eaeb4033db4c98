// Package monitor exposes Prometheus metrics for the engine. Counters cover
// the per-iteration pipeline (events in, order actions out) and the audit
// stream's health; they are served at /metrics by the ops API.
package monitor

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every engine metric. A nil *Metrics is valid and turns all
// recording into no-ops, so wiring metrics stays optional.
type Metrics struct {
	eventsTotal    *prometheus.CounterVec
	ordersApproved *prometheus.CounterVec
	ordersRefused  *prometheus.CounterVec
	auditEmitted   prometheus.Counter
	auditDropped   prometheus.Counter
}

// New registers the engine metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_events_total",
				Help: "Events consumed by the engine run loop",
			},
			[]string{"kind"},
		),
		ordersApproved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_orders_approved_total",
				Help: "Risk-approved order requests sent for execution",
			},
			[]string{"action"}, // open|cancel
		),
		ordersRefused: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_orders_refused_total",
				Help: "Order requests refused by the risk manager",
			},
			[]string{"action"},
		),
		auditEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_audit_events_total",
			Help: "Audit events emitted on the audit channel",
		}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_audit_dropped_total",
			Help: "Audit events dropped because the audit channel was full",
		}),
	}

	reg.MustRegister(m.eventsTotal, m.ordersApproved, m.ordersRefused, m.auditEmitted, m.auditDropped)
	return m
}

func (m *Metrics) IncEvent(kind string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) AddOrdersApproved(action string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ordersApproved.WithLabelValues(action).Add(float64(n))
}

func (m *Metrics) AddOrdersRefused(action string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ordersRefused.WithLabelValues(action).Add(float64(n))
}

func (m *Metrics) IncAuditEmitted() {
	if m == nil {
		return
	}
	m.auditEmitted.Inc()
}

func (m *Metrics) IncAuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}
