// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	ActiveConnections prometheus.Gauge
	EventsReceived    *prometheus.CounterVec
	MessagesRelayed   prometheus.Counter
	AuthFailures      prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_active_connections",
			Help: "Number of live authenticated WebSocket connections.",
		}),
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_events_received_total",
			Help: "Inbound events by event name.",
		}, []string{"event"}),
		MessagesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_messages_relayed_total",
			Help: "Chat messages fanned out to online recipients.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_auth_failures_total",
			Help: "Handshakes rejected by the credential check.",
		}),
	}
	reg.MustRegister(m.ActiveConnections, m.EventsReceived, m.MessagesRelayed, m.AuthFailures)
	return m
}

// Handler serves the scrape endpoint for this metrics set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
