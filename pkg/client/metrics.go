package client

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's counters on a private registry, so multiple
// engines (and tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	ConfirmedAppends prometheus.Counter
	Reconciled       prometheus.Counter
	PendingExpired   prometheus.Counter
	SendsRejected    prometheus.Counter
	BackfillFailures prometheus.Counter
	Reconnects       prometheus.Counter
	TypingEvents     prometheus.Counter
}

// NewMetrics creates and registers the engine counters.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ConfirmedAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solterm_messages_confirmed_total",
			Help: "Push-delivered messages accepted into channel logs",
		}),
		Reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solterm_messages_reconciled_total",
			Help: "Confirmations that replaced a pending local echo in place",
		}),
		PendingExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solterm_pending_expired_total",
			Help: "Optimistic sends removed after the confirmation window elapsed",
		}),
		SendsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solterm_sends_rejected_total",
			Help: "Pending messages rolled back on an explicit server rejection",
		}),
		BackfillFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solterm_backfill_failures_total",
			Help: "Channel history loads that failed and surfaced a placeholder",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solterm_reconnects_total",
			Help: "Times the push connection was re-established",
		}),
		TypingEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solterm_typing_events_total",
			Help: "Local typing announcements emitted to the transport",
		}),
	}
	reg.MustRegister(
		m.ConfirmedAppends, m.Reconciled, m.PendingExpired,
		m.SendsRejected, m.BackfillFailures, m.Reconnects, m.TypingEvents,
	)
	return m
}

// Registry exposes the underlying registry for scraping or test assertions.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
