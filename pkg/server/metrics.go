package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the server counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsTotal prometheus.Counter
	ActiveSessions   prometheus.Gauge
	MessagesTotal    prometheus.Counter
	BroadcastsTotal  prometheus.Counter
	RejectionsTotal  prometheus.Counter
}

// NewMetrics creates and registers the server counters.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solterm_server_connections_total",
			Help: "Websocket connections accepted",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "solterm_server_active_sessions",
			Help: "Currently connected sessions",
		}),
		MessagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solterm_server_messages_total",
			Help: "Messages accepted and fanned out",
		}),
		BroadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solterm_server_broadcasts_total",
			Help: "Broadcast messages fanned out across channels",
		}),
		RejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solterm_server_rejections_total",
			Help: "Sends refused with a sendRejected event",
		}),
	}
	reg.MustRegister(m.ConnectionsTotal, m.ActiveSessions, m.MessagesTotal, m.BroadcastsTotal, m.RejectionsTotal)
	return m
}

// Registry exposes the underlying registry for the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
